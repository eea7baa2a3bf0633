package tools

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"

	"github.com/partselect-assistant/server/internal/agent/model"
	"github.com/partselect-assistant/server/internal/metrics"
	logx "github.com/partselect-assistant/server/pkg/logger"
)

// safeTool wraps a handler so that it never fails the agent loop: bad
// arguments, handler errors, timeouts and panics all become error payloads
// the model can read.
type safeTool struct {
	name    string
	info    *schema.ToolInfo
	params  map[string]param
	inner   tool.InvokableTool
	timeout time.Duration
	metrics *metrics.Collector
}

var _ tool.InvokableTool = (*safeTool)(nil)

func (t *safeTool) Info(_ context.Context) (*schema.ToolInfo, error) {
	return t.info, nil
}

func (t *safeTool) InvokableRun(ctx context.Context, argumentsInJSON string, opts ...tool.Option) (string, error) {
	args := coerceArguments(t.params, argumentsInJSON)
	start := time.Now()

	out, err := t.run(ctx, args, opts...)
	latency := time.Since(start)

	outcome := "success"
	rec := model.ToolCallRecord{
		Agent:     agentFrom(ctx),
		Name:      t.name,
		Arguments: args,
		Latency:   latency,
	}
	if err != nil {
		outcome = "error"
		if errors.Is(err, context.DeadlineExceeded) {
			outcome = "timeout"
		}
		logx.Warn().Err(err).Str("tool", t.name).Str("args", args).Dur("latency", latency).Msg("tool call failed")
		rec.Error = err.Error()
		out = errorPayload(t.name, err.Error())
	} else {
		logx.Debug().Str("tool", t.name).Dur("latency", latency).Msg("tool call completed")
	}
	rec.Result = out

	t.metrics.RecordToolCall(t.name, outcome, latency)
	RecorderFrom(ctx).Add(rec)
	return out, nil
}

type runResult struct {
	out string
	err error
}

func (t *safeTool) run(ctx context.Context, args string, opts ...tool.Option) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	done := make(chan runResult, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- runResult{err: fmt.Errorf("tool panicked: %v", p)}
			}
		}()
		out, err := t.inner.InvokableRun(ctx, args, opts...)
		done <- runResult{out: out, err: err}
	}()

	select {
	case r := <-done:
		return r.out, r.err
	case <-ctx.Done():
		return "", fmt.Errorf("tool timed out after %s: %w", t.timeout, ctx.Err())
	}
}
