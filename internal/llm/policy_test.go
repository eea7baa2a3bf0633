package llm

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	errx "github.com/partselect-assistant/server/internal/core/error"
)

type step struct {
	msg *schema.Message
	err error
}

type scriptedProvider struct {
	name  string
	mu    sync.Mutex
	steps []step
	calls int
}

func (s *scriptedProvider) Name() string { return s.name }

func (s *scriptedProvider) Generate(ctx context.Context, _ *Request) (*schema.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if len(s.steps) == 0 {
		return nil, errors.New("script exhausted")
	}
	st := s.steps[0]
	s.steps = s.steps[1:]
	return st.msg, st.err
}

func textStep(text string) step { return step{msg: schema.AssistantMessage(text, nil)} }
func errStep(err error) step    { return step{err: err} }

type sleepRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *sleepRecorder) sleep(_ context.Context, d time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.delays = append(r.delays, d)
	return nil
}

func testRequest() *Request {
	return &Request{Messages: []*schema.Message{schema.SystemMessage("sys"), schema.UserMessage("hi")}}
}

func newTestPolicy(t *testing.T, rec *sleepRecorder, providers ...Provider) *Policy {
	t.Helper()
	retry := DefaultRetryPolicy()
	retry.Jitter = false
	p, err := NewPolicy(retry, providers, WithSleep(rec.sleep))
	require.NoError(t, err)
	return p
}

func TestPolicy_PrimarySucceeds(t *testing.T) {
	rec := &sleepRecorder{}
	primary := &scriptedProvider{name: "primary", steps: []step{textStep("hello")}}
	fallback := &scriptedProvider{name: "fallback"}

	msg, err := newTestPolicy(t, rec, primary, fallback).Generate(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, "hello", msg.Content)
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 0, fallback.calls)
	assert.Empty(t, rec.delays)
}

func TestPolicy_RetriesWithBackoff(t *testing.T) {
	rec := &sleepRecorder{}
	primary := &scriptedProvider{name: "primary", steps: []step{
		errStep(errors.New("rate limited")),
		errStep(context.DeadlineExceeded),
		textStep("third time"),
	}}

	msg, err := newTestPolicy(t, rec, primary).Generate(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, "third time", msg.Content)
	assert.Equal(t, 3, primary.calls)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, rec.delays)
}

func TestPolicy_SwitchesToFallbackOnce(t *testing.T) {
	rec := &sleepRecorder{}
	boom := errors.New("unavailable")
	primary := &scriptedProvider{name: "primary", steps: []step{errStep(boom), errStep(boom), errStep(boom)}}
	fallback := &scriptedProvider{name: "fallback", steps: []step{textStep("from fallback")}}

	msg, err := newTestPolicy(t, rec, primary, fallback).Generate(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, "from fallback", msg.Content)
	assert.Equal(t, 3, primary.calls)
	assert.Equal(t, 1, fallback.calls)
}

func TestPolicy_ExhaustionIsProviderError(t *testing.T) {
	rec := &sleepRecorder{}
	boom := errors.New("unavailable")
	primary := &scriptedProvider{name: "primary", steps: []step{errStep(boom), errStep(boom), errStep(boom)}}
	fallback := &scriptedProvider{name: "fallback", steps: []step{errStep(boom), textStep("never reached")}}

	_, err := newTestPolicy(t, rec, primary, fallback).Generate(context.Background(), testRequest())
	require.Error(t, err)
	assert.True(t, errx.IsKind(err, errx.KindProvider))
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, fallback.calls)
}

func TestPolicy_PermanentErrorSkipsRetries(t *testing.T) {
	rec := &sleepRecorder{}
	primary := &scriptedProvider{name: "primary", steps: []step{errStep(Permanent(errors.New("bad request")))}}
	fallback := &scriptedProvider{name: "fallback", steps: []step{textStep("ok")}}

	msg, err := newTestPolicy(t, rec, primary, fallback).Generate(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, "ok", msg.Content)
	assert.Equal(t, 1, primary.calls)
	assert.Empty(t, rec.delays)
}

func TestPolicy_MalformedResponsesAreRetried(t *testing.T) {
	rec := &sleepRecorder{}
	toolOnly := &schema.Message{Role: schema.Assistant, ToolCalls: []schema.ToolCall{{ID: "c1", Function: schema.FunctionCall{Name: "search_parts"}}}}
	primary := &scriptedProvider{name: "primary", steps: []step{
		{msg: nil},
		{msg: schema.AssistantMessage("  ", nil)},
		{msg: toolOnly},
	}}

	req := testRequest()
	req.RequireContent = true
	_, err := newTestPolicy(t, rec, primary).Generate(context.Background(), req)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedResponse)
	assert.Equal(t, 3, primary.calls)
}

func TestPolicy_ToolCallsWithoutTextAreValid(t *testing.T) {
	rec := &sleepRecorder{}
	toolOnly := &schema.Message{Role: schema.Assistant, ToolCalls: []schema.ToolCall{{ID: "c1", Function: schema.FunctionCall{Name: "search_parts"}}}}
	primary := &scriptedProvider{name: "primary", steps: []step{{msg: toolOnly}}}

	msg, err := newTestPolicy(t, rec, primary).Generate(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Len(t, msg.ToolCalls, 1)
}

func TestPolicy_StopsWhenContextDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	primary := &scriptedProvider{name: "primary", steps: []step{errStep(errors.New("flaky"))}}
	fallback := &scriptedProvider{name: "fallback", steps: []step{textStep("ok")}}

	p, err := NewPolicy(DefaultRetryPolicy(), []Provider{primary, fallback}, WithSleep(func(ctx context.Context, _ time.Duration) error {
		cancel()
		return ctx.Err()
	}))
	require.NoError(t, err)

	_, err = p.Generate(ctx, testRequest())
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, fallback.calls)
}

type hangingProvider struct {
	calls atomic.Int32
}

func (h *hangingProvider) Name() string { return "hanging" }

func (h *hangingProvider) Generate(ctx context.Context, _ *Request) (*schema.Message, error) {
	h.calls.Add(1)
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestPolicy_HangingPrimaryLeavesTimeForFallback(t *testing.T) {
	rec := &sleepRecorder{}
	primary := &hangingProvider{}
	fallback := &scriptedProvider{name: "fallback", steps: []step{textStep("from fallback")}}

	retry := DefaultRetryPolicy()
	retry.Jitter = false
	retry.CallTimeout = 2 * time.Second
	p, err := NewPolicy(retry, []Provider{primary, fallback}, WithSleep(rec.sleep))
	require.NoError(t, err)

	// The per-call timeout is longer than the caller's whole deadline.
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	msg, err := p.Generate(ctx, testRequest())
	require.NoError(t, err)
	assert.Equal(t, "from fallback", msg.Content)
	assert.Equal(t, int32(1), primary.calls.Load())
	assert.Equal(t, 1, fallback.calls)
}

func TestProviderBudget(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	last, lastCancel := providerBudget(ctx, 1)
	defer lastCancel()
	assert.Equal(t, ctx, last)

	first, firstCancel := providerBudget(ctx, 2)
	defer firstCancel()
	parent, _ := ctx.Deadline()
	capped, ok := first.Deadline()
	require.True(t, ok)
	assert.True(t, capped.Before(parent))

	unbounded, unboundedCancel := providerBudget(context.Background(), 2)
	defer unboundedCancel()
	_, ok = unbounded.Deadline()
	assert.False(t, ok)
}

func TestNewPolicy_RequiresProvider(t *testing.T) {
	_, err := NewPolicy(DefaultRetryPolicy(), []Provider{nil})
	require.Error(t, err)
}

func TestRetryPolicy_BackoffBounds(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		p := RetryPolicy{
			MaxAttempts:  3,
			InitialDelay: time.Duration(rapid.IntRange(1, 2000).Draw(t, "initial_ms")) * time.Millisecond,
			Multiplier:   rapid.Float64Range(1, 4).Draw(t, "multiplier"),
			Jitter:       rapid.Bool().Draw(t, "jitter"),
		}
		p.MaxDelay = p.InitialDelay * time.Duration(rapid.IntRange(1, 20).Draw(t, "max_factor"))
		p = p.normalized()
		r := rapid.Float64Range(0, 1).Draw(t, "rand")
		retry := rapid.IntRange(1, 10).Draw(t, "retry")

		d := p.Backoff(retry, func() float64 { return r })
		upper := time.Duration(float64(p.MaxDelay) * 1.25)
		if d < p.InitialDelay || d > upper+time.Nanosecond {
			t.Fatalf("delay %v outside [%v, %v]", d, p.InitialDelay, upper)
		}
		if !p.Jitter && retry > 1 && d < p.Backoff(retry-1, nil) {
			t.Fatalf("delay decreased without jitter")
		}
	})
}
