package llm

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/tildaslashalef/prtwin/internal/claude"
	"github.com/tildaslashalef/prtwin/internal/gemini"
	"github.com/tildaslashalef/prtwin/internal/ollama"
)

// Shared error taxonomy for provider failures. Adapters translate raw
// provider errors into these so callers never match on transport details.
var (
	// ErrRateLimited indicates the provider throttled the request
	ErrRateLimited = errors.New("llm: rate limited")

	// ErrUnavailable indicates a provider-side outage or overload
	ErrUnavailable = errors.New("llm: provider unavailable")

	// ErrTimeout indicates the request did not complete in time
	ErrTimeout = errors.New("llm: request timed out")

	// ErrBadRequest indicates the provider rejected the request itself
	ErrBadRequest = errors.New("llm: bad request")

	// ErrAuth indicates missing or invalid provider credentials
	ErrAuth = errors.New("llm: authentication failed")
)

// IsTransient reports whether an error is worth retrying: throttling,
// provider outages, and timeouts. Bad requests and auth failures are not.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, ErrRateLimited) || errors.Is(err, ErrUnavailable) || errors.Is(err, ErrTimeout) {
		return true
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	return false
}

// translateStatus wraps err with the taxonomy sentinel matching an HTTP
// status code, or returns it unchanged when no sentinel applies
func translateStatus(status int, err error) error {
	switch {
	case status == http.StatusTooManyRequests:
		return errors.Join(ErrRateLimited, err)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return errors.Join(ErrAuth, err)
	case status >= 500:
		return errors.Join(ErrUnavailable, err)
	case status >= 400:
		return errors.Join(ErrBadRequest, err)
	default:
		return err
	}
}

// translateError maps a raw provider error into the shared taxonomy
func translateError(err error) error {
	if err == nil {
		return nil
	}

	var claudeErr *claude.APIError
	if errors.As(err, &claudeErr) {
		return translateStatus(claudeErr.StatusCode, err)
	}

	var geminiErr *gemini.APIError
	if errors.As(err, &geminiErr) {
		return translateStatus(geminiErr.StatusCode, err)
	}

	var ollamaErr *ollama.APIError
	if errors.As(err, &ollamaErr) {
		return translateStatus(ollamaErr.StatusCode, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return errors.Join(ErrTimeout, err)
	}

	return err
}
