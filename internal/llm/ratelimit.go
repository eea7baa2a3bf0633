package llm

import (
	"context"
	"time"

	"github.com/cloudwego/eino/schema"
	"golang.org/x/time/rate"
)

type rateLimited struct {
	Provider
	limiter *rate.Limiter
}

// RateLimited caps p at rpm requests per minute. rpm <= 0 returns p unchanged.
func RateLimited(p Provider, rpm int) Provider {
	if rpm <= 0 {
		return p
	}
	return &rateLimited{
		Provider: p,
		limiter:  rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), 1),
	}
}

func (r *rateLimited) Generate(ctx context.Context, req *Request) (*schema.Message, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return r.Provider.Generate(ctx, req)
}
