package tools

import (
	"context"
	"sync"

	"github.com/partselect-assistant/server/internal/agent/model"
)

type recorderKey struct{}

// Recorder collects the tool calls made while serving one request. It is
// shared by concurrently running agents, so appends are locked.
type Recorder struct {
	mu    sync.Mutex
	calls []model.ToolCallRecord
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

// WithRecorder attaches rec to ctx; tools called under ctx append to it.
func WithRecorder(ctx context.Context, rec *Recorder) context.Context {
	return context.WithValue(ctx, recorderKey{}, rec)
}

// RecorderFrom returns the recorder on ctx, or nil.
func RecorderFrom(ctx context.Context) *Recorder {
	rec, _ := ctx.Value(recorderKey{}).(*Recorder)
	return rec
}

func (r *Recorder) Add(rec model.ToolCallRecord) {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.calls = append(r.calls, rec)
	r.mu.Unlock()
}

// Records returns a copy of the calls recorded so far, in call order.
func (r *Recorder) Records() []model.ToolCallRecord {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.ToolCallRecord, len(r.calls))
	copy(out, r.calls)
	return out
}

type agentKey struct{}

// WithAgent tags tool records made under ctx with the agent name.
func WithAgent(ctx context.Context, agent string) context.Context {
	return context.WithValue(ctx, agentKey{}, agent)
}

func agentFrom(ctx context.Context) string {
	a, _ := ctx.Value(agentKey{}).(string)
	return a
}
