package main

import (
	"encoding/json"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/partselect-assistant/server/internal/agent/guardrail"
	"github.com/partselect-assistant/server/internal/agent/model"
	"github.com/partselect-assistant/server/internal/transport"
	logx "github.com/partselect-assistant/server/pkg/logger"
)

func newRootCmd() *cobra.Command {
	var envFile string
	var cfg AppConfig

	root := &cobra.Command{
		Use:           "partsagent",
		Short:         "PartSelect refrigerator and dishwasher parts assistant",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			loaded, err := loadConfig(envFile)
			if err != nil {
				return err
			}
			cfg = loaded
			logx.Init(logx.LoggerOpts{Environment: cfg.Environment, Level: cfg.LogLevel})
			return nil
		},
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before the environment")

	root.AddCommand(newServeCmd(&cfg), newAskCmd(&cfg), newPresetsCmd())
	return root
}

func newServeCmd(cfg *AppConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP and WebSocket API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			app, err := buildApp(ctx, *cfg)
			if err != nil {
				return err
			}
			defer app.Close()

			srv := transport.New(cfg.Server, app.assistant, app.metrics.Handler())
			return srv.Run(ctx)
		},
	}
}

func newAskCmd(cfg *AppConfig) *cobra.Command {
	var conversationID string
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer one question and print the response JSON",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := buildApp(cmd.Context(), *cfg)
			if err != nil {
				return err
			}
			defer app.Close()

			resp := app.assistant.Chat(cmd.Context(), model.ChatRequest{
				Message:        strings.Join(args, " "),
				ConversationID: conversationID,
				Channel:        model.ChannelCLI,
			})
			return printJSON(cmd, resp)
		},
	}
	cmd.Flags().StringVar(&conversationID, "conversation", "", "conversation id to continue")
	return cmd
}

func newPresetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "presets",
		Short: "Print the guardrail presets",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return printJSON(cmd, guardrail.Presets())
		},
	}
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
