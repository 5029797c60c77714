package llm

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// RateLimitConfig configures rate limiting for LLM providers.
type RateLimitConfig struct {
	// RequestsPerMinute limits the number of API calls per minute (0 = unlimited)
	RequestsPerMinute int
	// BurstSize allows temporary bursts above the steady rate
	BurstSize int
}

// RateLimitProvider wraps a provider with a request rate limiter shared by
// completions and embeddings.
type RateLimitProvider struct {
	inner   Provider
	limiter *rate.Limiter
}

// NewRateLimitProvider creates a rate-limited provider wrapper.
func NewRateLimitProvider(inner Provider, config *RateLimitConfig) *RateLimitProvider {
	limit := rate.Inf
	burst := 1
	if config != nil && config.RequestsPerMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(config.RequestsPerMinute))
		burst = config.BurstSize
		if burst <= 0 {
			burst = 1
		}
	}
	return &RateLimitProvider{inner: inner, limiter: rate.NewLimiter(limit, burst)}
}

// Name returns the underlying provider name.
func (r *RateLimitProvider) Name() string {
	return r.inner.Name()
}

// Complete waits for capacity and delegates to the inner provider.
func (r *RateLimitProvider) Complete(ctx context.Context, prompt *Prompt, opts *RequestOptions) (*Response, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return r.inner.Complete(ctx, prompt, opts)
}

// Embed waits for capacity and delegates to the inner provider.
func (r *RateLimitProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return r.inner.Embed(ctx, texts)
}

// WithRateLimit wraps a provider with rate limiting.
func WithRateLimit(p Provider, config *RateLimitConfig) Provider {
	if p == nil {
		return nil
	}
	return NewRateLimitProvider(p, config)
}
