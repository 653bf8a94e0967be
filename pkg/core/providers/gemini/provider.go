// Package gemini implements the streaming Gemini upstream client.
// It sends the running conversation to the streamGenerateContent SSE
// endpoint and yields the reply as incremental text deltas.
package gemini

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"
)

const (
	// DefaultBaseURL is the default Gemini API endpoint.
	DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

	// DefaultModel answers conversation turns unless overridden.
	DefaultModel = "gemini-2.0-flash"
)

// Provider is a streaming client for the Gemini generateContent API.
// Retry state is explicit: the attempt counter lives in StreamTurn and
// both the transport and the sleep between attempts are injectable.
type Provider struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
	retry      RetryPolicy
	sleep      SleepFunc
	logger     *slog.Logger
}

// New creates a new Gemini provider.
func New(apiKey string, opts ...Option) *Provider {
	p := &Provider{
		apiKey:     apiKey,
		model:      DefaultModel,
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{},
		retry:      DefaultRetryPolicy(),
		sleep:      sleepContext,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name returns the provider identifier.
func (p *Provider) Name() string {
	return "gemini"
}

// Model returns the configured model name.
func (p *Provider) Model() string {
	return p.model
}

// StreamTurn sends the conversation so far and returns a handle over the
// streamed reply. Rate limiting waits attempt_index*BaseDelay before the
// next try; transport and upstream failures wait a flat BaseDelay. After
// MaxAttempts tries the last classified error is returned.
func (p *Provider) StreamTurn(ctx context.Context, history []Turn) (*Stream, error) {
	if len(history) == 0 {
		return nil, &Error{Type: ErrInvalidRequest, Message: "empty history"}
	}
	req := buildRequest(history)

	var lastErr error
	for attempt := 1; attempt <= p.retry.MaxAttempts; attempt++ {
		body, err := p.doStreamRequest(ctx, req)
		if err == nil {
			return newStream(body), nil
		}
		lastErr = err

		var apiErr *Error
		if !errors.As(err, &apiErr) || !apiErr.IsRetryable() {
			return nil, err
		}
		if attempt == p.retry.MaxAttempts {
			break
		}

		wait := p.retry.BaseDelay
		if apiErr.Type == ErrRateLimit {
			wait = time.Duration(attempt) * p.retry.BaseDelay
		}
		p.logger.Warn("upstream attempt failed",
			"attempt", attempt,
			"error_type", string(apiErr.Type),
			"wait", wait)
		if err := p.sleep(ctx, wait); err != nil {
			return nil, &Error{Type: ErrTransport, Message: err.Error()}
		}
	}
	return nil, lastErr
}
