package llm

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/cloudwego/eino/schema"

	"github.com/partselect-assistant/server/internal/agent/model"
	errx "github.com/partselect-assistant/server/internal/core/error"
	"github.com/partselect-assistant/server/internal/metrics"
	logx "github.com/partselect-assistant/server/pkg/logger"
)

// RetryPolicy configures retries on the primary provider and the single
// switch to the next provider once those attempts are spent.
type RetryPolicy struct {
	MaxAttempts      int
	InitialDelay     time.Duration
	MaxDelay         time.Duration
	Multiplier       float64
	Jitter           bool
	FallbackAttempts int
	CallTimeout      time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:      3,
		InitialDelay:     1 * time.Second,
		MaxDelay:         10 * time.Second,
		Multiplier:       2.0,
		Jitter:           true,
		FallbackAttempts: 1,
		CallTimeout:      8 * time.Second,
	}
}

// RetryPolicyFromConfig builds a policy from configuration, keeping defaults for unset values.
func RetryPolicyFromConfig(cfg model.RetryConfig, callTimeout time.Duration) RetryPolicy {
	p := RetryPolicy{
		MaxAttempts:      cfg.MaxAttempts,
		InitialDelay:     cfg.InitialDelay,
		MaxDelay:         cfg.MaxDelay,
		Multiplier:       cfg.Multiplier,
		Jitter:           cfg.Jitter,
		FallbackAttempts: cfg.FallbackAttempts,
		CallTimeout:      callTimeout,
	}
	return p.normalized()
}

func (p RetryPolicy) normalized() RetryPolicy {
	def := DefaultRetryPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = def.MaxAttempts
	}
	if p.InitialDelay <= 0 {
		p.InitialDelay = def.InitialDelay
	}
	if p.MaxDelay < p.InitialDelay {
		p.MaxDelay = p.InitialDelay
	}
	if p.Multiplier < 1.0 {
		p.Multiplier = def.Multiplier
	}
	if p.FallbackAttempts <= 0 {
		p.FallbackAttempts = def.FallbackAttempts
	}
	return p
}

// Backoff returns the delay before retry number retry (1-based):
// initial * multiplier^(retry-1), capped at MaxDelay, with +/-25% jitter,
// never below InitialDelay.
func (p RetryPolicy) Backoff(retry int, rnd func() float64) time.Duration {
	delay := float64(p.InitialDelay) * math.Pow(p.Multiplier, float64(retry-1))
	if delay > float64(p.MaxDelay) {
		delay = float64(p.MaxDelay)
	}
	if p.Jitter && rnd != nil {
		jitter := delay * 0.25
		delay += (rnd()*2 - 1) * jitter
	}
	if delay < float64(p.InitialDelay) {
		delay = float64(p.InitialDelay)
	}
	return time.Duration(delay)
}

// Policy wraps every outbound model call: per-attempt timeout, exponential
// backoff on the primary provider, then one switch to the fallback.
// It is safe for concurrent use.
type Policy struct {
	providers []Provider
	retry     RetryPolicy
	metrics   *metrics.Collector
	sleep     func(context.Context, time.Duration) error
	rnd       func() float64
}

type PolicyOption func(*Policy)

func WithMetrics(m *metrics.Collector) PolicyOption {
	return func(p *Policy) { p.metrics = m }
}

// WithSleep replaces the backoff wait, mostly for tests.
func WithSleep(fn func(context.Context, time.Duration) error) PolicyOption {
	return func(p *Policy) { p.sleep = fn }
}

// NewPolicy takes providers in preference order; the first is the primary.
func NewPolicy(retry RetryPolicy, providers []Provider, opts ...PolicyOption) (*Policy, error) {
	var ps []Provider
	for _, prov := range providers {
		if prov != nil {
			ps = append(ps, prov)
		}
	}
	if len(ps) == 0 {
		return nil, fmt.Errorf("no llm provider configured")
	}
	p := &Policy{
		providers: ps,
		retry:     retry.normalized(),
		sleep:     sleepCtx,
		rnd:       rand.Float64,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Providers lists provider names in preference order.
func (p *Policy) Providers() []string {
	out := make([]string, 0, len(p.providers))
	for _, prov := range p.providers {
		out = append(out, prov.Name())
	}
	return out
}

// Generate runs req through the providers. Exhaustion returns an errx provider error.
func (p *Policy) Generate(ctx context.Context, req *Request) (*schema.Message, error) {
	if req == nil || len(req.Messages) == 0 {
		return nil, errx.InvalidInput("llm request has no messages")
	}

	var errs []error
	for i, prov := range p.providers {
		attempts := p.retry.MaxAttempts
		if i > 0 {
			attempts = p.retry.FallbackAttempts
			logx.Warn().
				Str("provider", prov.Name()).
				Str("previous", p.providers[i-1].Name()).
				Msg("switching to fallback llm provider")
		}

		provCtx, cancel := providerBudget(ctx, len(p.providers)-i)
		msg, err := p.attempt(provCtx, prov, req, attempts)
		cancel()
		if err == nil {
			return msg, nil
		}
		errs = append(errs, err)
		if ctx.Err() != nil {
			break
		}
	}

	err := errors.Join(errs...)
	if ctx.Err() != nil {
		err = fmt.Errorf("%w: %w", ctx.Err(), err)
	}
	logx.Error().Err(err).Msg("all llm providers exhausted")
	return nil, errx.Provider(err)
}

// providerShare is the part of the remaining deadline a provider may spend
// while later providers are still waiting.
const providerShare = 2.0 / 3.0

// providerBudget caps a provider's retries so the providers after it keep
// part of the caller's deadline.
func providerBudget(ctx context.Context, left int) (context.Context, context.CancelFunc) {
	deadline, ok := ctx.Deadline()
	if !ok || left <= 1 {
		return ctx, func() {}
	}
	share := time.Duration(float64(time.Until(deadline)) * providerShare)
	return context.WithTimeout(ctx, share)
}

func (p *Policy) attempt(ctx context.Context, prov Provider, req *Request, attempts int) (*schema.Message, error) {
	var lastErr error
	for a := 1; a <= attempts; a++ {
		if a > 1 {
			delay := p.retry.Backoff(a-1, p.rnd)
			logx.Debug().
				Str("provider", prov.Name()).
				Int("attempt", a).
				Dur("delay", delay).
				Err(lastErr).
				Msg("retrying llm call")
			if err := p.sleep(ctx, delay); err != nil {
				return nil, fmt.Errorf("%s: %w", prov.Name(), err)
			}
		}

		msg, err := p.call(ctx, prov, req)
		if err == nil {
			return msg, nil
		}
		lastErr = err
		if IsPermanent(err) || ctx.Err() != nil {
			break
		}
	}
	return nil, fmt.Errorf("%s: %w", prov.Name(), lastErr)
}

func (p *Policy) call(ctx context.Context, prov Provider, req *Request) (*schema.Message, error) {
	callCtx := ctx
	if p.retry.CallTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, p.retry.CallTimeout)
		defer cancel()
	}

	start := time.Now()
	msg, err := prov.Generate(callCtx, req)
	if err == nil {
		err = checkResponse(req, msg)
	}
	elapsed := time.Since(start)

	outcome := "success"
	switch {
	case err == nil:
	case errors.Is(err, context.DeadlineExceeded):
		outcome = "timeout"
	case errors.Is(err, ErrMalformedResponse):
		outcome = "malformed"
	default:
		outcome = "error"
	}
	p.metrics.RecordLLMRequest(prov.Name(), outcome, elapsed)

	if err != nil {
		logx.Warn().Err(err).Str("provider", prov.Name()).Str("outcome", outcome).Dur("latency", elapsed).Msg("llm call failed")
		return nil, err
	}
	if name, cost := model.MessageCost(msg); cost > 0 {
		p.metrics.RecordLLMCost(name, cost)
	}
	return msg, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
