package gemini

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// ErrorType categorizes upstream failures.
type ErrorType string

const (
	ErrInvalidRequest ErrorType = "invalid_request_error"
	ErrAuthentication ErrorType = "authentication_error"
	ErrRateLimit      ErrorType = "rate_limit_error"
	ErrTransport      ErrorType = "transport_error"
	ErrUpstream       ErrorType = "upstream_error"
)

// Error represents a failed upstream call.
type Error struct {
	Type    ErrorType `json:"type"`
	Message string    `json:"message"`
	Code    int       `json:"code,omitempty"`
	Status  string    `json:"status,omitempty"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("gemini: %s: %s (http %d)", e.Type, e.Message, e.Code)
	}
	return fmt.Sprintf("gemini: %s: %s", e.Type, e.Message)
}

// IsRetryable returns true if another attempt may succeed.
func (e *Error) IsRetryable() bool {
	switch e.Type {
	case ErrRateLimit, ErrTransport, ErrUpstream:
		return true
	default:
		return false
	}
}

// geminiError is the error response body from the Gemini API.
type geminiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// parseError classifies a non-2xx response.
func (p *Provider) parseError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)

	apiErr := &Error{
		Type:    ErrUpstream,
		Message: strings.TrimSpace(string(body)),
		Code:    resp.StatusCode,
	}

	var parsed geminiError
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error.Message != "" {
		apiErr.Message = parsed.Error.Message
		apiErr.Status = parsed.Error.Status
	}

	switch parsed.Error.Status {
	case "INVALID_ARGUMENT", "FAILED_PRECONDITION":
		apiErr.Type = ErrInvalidRequest
	case "UNAUTHENTICATED", "PERMISSION_DENIED":
		apiErr.Type = ErrAuthentication
	case "RESOURCE_EXHAUSTED":
		apiErr.Type = ErrRateLimit
	}

	// The HTTP status code is authoritative when it names a class.
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		apiErr.Type = ErrRateLimit
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		apiErr.Type = ErrAuthentication
	case resp.StatusCode >= 500:
		apiErr.Type = ErrUpstream
	case resp.StatusCode == http.StatusBadRequest && apiErr.Type == ErrUpstream:
		apiErr.Type = ErrInvalidRequest
	}

	return apiErr
}
