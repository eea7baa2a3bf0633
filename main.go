package main

import (
	"context"
	"os"

	logx "github.com/partselect-assistant/server/pkg/logger"
)

func main() {
	logx.Init()
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		logx.Error().Err(err).Msg("partsagent failed")
		os.Exit(1)
	}
}
