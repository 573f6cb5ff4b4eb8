package llm

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// rateLimitedClient paces calls to an inner backend. Wait blocks until the
// limiter grants a slot or the caller's context is cancelled, so a stalled
// provider never queues unbounded work.
type rateLimitedClient struct {
	inner   LLMClient
	limiter *rate.Limiter
}

var _ LLMClient = (*rateLimitedClient)(nil)

// NewRateLimited wraps client with a shared limiter of perMinute requests
// per minute. perMinute values below 1 are treated as 1.
func NewRateLimited(client LLMClient, perMinute int) LLMClient {
	if perMinute < 1 {
		perMinute = 1
	}
	interval := time.Minute / time.Duration(perMinute)
	return &rateLimitedClient{
		inner:   client,
		limiter: rate.NewLimiter(rate.Every(interval), perMinute),
	}
}

func (r *rateLimitedClient) Generate(ctx context.Context, prompt string, params GenerationParams) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter wait: %w", err)
	}
	return r.inner.Generate(ctx, prompt, params)
}
