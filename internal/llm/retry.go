package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"
)

// RetryConfig configures retry behavior for provider calls.
type RetryConfig struct {
	MaxRetries int           // Maximum number of retry attempts (0 = no retries)
	RetryDelay time.Duration // Initial delay between retries
	MaxDelay   time.Duration // Maximum delay between retries (caps exponential backoff)
	Timeout    time.Duration // Per-attempt timeout (0 = none)
}

// DefaultRetryConfig returns the configuration used when none is given.
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxRetries: 3,
		RetryDelay: time.Second,
		MaxDelay:   30 * time.Second,
		Timeout:    2 * time.Minute,
	}
}

// RetryProvider wraps a Provider with timeout and retry logic.
type RetryProvider struct {
	inner  Provider
	config *RetryConfig
}

// NewRetryProvider wraps an existing provider with retry logic.
func NewRetryProvider(inner Provider, config *RetryConfig) *RetryProvider {
	if config == nil {
		config = DefaultRetryConfig()
	}
	return &RetryProvider{
		inner:  inner,
		config: config,
	}
}

// Name returns the underlying provider name.
func (r *RetryProvider) Name() string {
	return r.inner.Name()
}

// Complete sends a prompt with timeout and retry logic.
func (r *RetryProvider) Complete(ctx context.Context, prompt *Prompt, opts *RequestOptions) (*Response, error) {
	var resp *Response
	err := r.do(ctx, func(ctx context.Context) error {
		var err error
		resp, err = r.inner.Complete(ctx, prompt, opts)
		return err
	})
	return resp, err
}

// Embed sends an embedding request with timeout and retry logic.
func (r *RetryProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	var out [][]float32
	err := r.do(ctx, func(ctx context.Context) error {
		var err error
		out, err = r.inner.Embed(ctx, texts)
		return err
	})
	return out, err
}

func (r *RetryProvider) do(ctx context.Context, call func(context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt <= r.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(r.calculateBackoff(attempt)):
			}
		}

		attemptCtx, cancel := ctx, context.CancelFunc(func() {})
		if r.config.Timeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, r.config.Timeout)
		}
		err := call(attemptCtx)
		cancel()
		if err == nil {
			return nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !r.isRetryable(err) {
			return err
		}
	}
	return fmt.Errorf("max retries (%d) exceeded: %w", r.config.MaxRetries, lastErr)
}

// calculateBackoff returns the delay for the given attempt using exponential backoff.
func (r *RetryProvider) calculateBackoff(attempt int) time.Duration {
	delay := r.config.RetryDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if r.config.MaxDelay > 0 && delay > r.config.MaxDelay {
			return r.config.MaxDelay
		}
	}
	return delay
}

// isRetryable determines if an error should trigger a retry.
func (r *RetryProvider) isRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, ErrMalformedResponse) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.StatusCode == http.StatusTooManyRequests:
			// Daily quotas do not reset within a retry window.
			return !strings.Contains(statusErr.Body, "per day")
		case statusErr.StatusCode >= 500:
			return true
		default:
			return false
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return false
}

// WrapWithRetry wraps provider with the retry settings from cfg.
func WrapWithRetry(provider Provider, cfg ProviderConfig) Provider {
	if provider == nil {
		return nil
	}
	config := DefaultRetryConfig()
	config.MaxRetries = cfg.MaxRetries
	if cfg.RetryDelay > 0 {
		config.RetryDelay = cfg.RetryDelay
	}
	if cfg.MaxDelay > 0 {
		config.MaxDelay = cfg.MaxDelay
	}
	if cfg.Timeout > 0 {
		config.Timeout = cfg.Timeout
	}
	return NewRetryProvider(provider, config)
}
