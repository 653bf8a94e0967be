package gemini

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// Option configures the Provider.
type Option func(*Provider)

// SleepFunc waits between retry attempts. It returns early with the
// context error when the context is cancelled.
type SleepFunc func(ctx context.Context, d time.Duration) error

// RetryPolicy bounds the StreamTurn retry loop.
type RetryPolicy struct {
	// MaxAttempts is the total number of tries, the first included.
	MaxAttempts int
	// BaseDelay scales rate-limit backoff and is the flat wait after
	// transport and upstream failures.
	BaseDelay time.Duration
}

// DefaultRetryPolicy returns the production retry policy.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   2 * time.Second,
	}
}

// WithBaseURL sets the base URL for API requests.
// Default: https://generativelanguage.googleapis.com/v1beta
func WithBaseURL(url string) Option {
	return func(p *Provider) {
		p.baseURL = url
	}
}

// WithHTTPClient sets the HTTP client for API requests.
func WithHTTPClient(client *http.Client) Option {
	return func(p *Provider) {
		p.httpClient = client
	}
}

// WithModel sets the model answering conversation turns.
func WithModel(model string) Option {
	return func(p *Provider) {
		if model != "" {
			p.model = model
		}
	}
}

// WithRetryPolicy overrides the retry policy.
func WithRetryPolicy(policy RetryPolicy) Option {
	return func(p *Provider) {
		if policy.MaxAttempts > 0 {
			p.retry.MaxAttempts = policy.MaxAttempts
		}
		if policy.BaseDelay > 0 {
			p.retry.BaseDelay = policy.BaseDelay
		}
	}
}

// WithSleepFunc replaces the wait between retry attempts.
func WithSleepFunc(sleep SleepFunc) Option {
	return func(p *Provider) {
		if sleep != nil {
			p.sleep = sleep
		}
	}
}

// WithLogger sets the logger for retry and stream diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Provider) {
		if logger != nil {
			p.logger = logger
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
