package llm

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrMalformedResponse is returned when a provider answers with a body that
// cannot be decoded or carries no usable result.
var ErrMalformedResponse = errors.New("malformed provider response")

// StatusError is a non-2xx HTTP response from a provider.
type StatusError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	body := e.Body
	if len(body) > 512 {
		body = body[:512] + "..."
	}
	return fmt.Sprintf("%s: %d %s: %s", e.Provider, e.StatusCode, http.StatusText(e.StatusCode), body)
}

// Malformed wraps cause as an ErrMalformedResponse from provider.
func Malformed(provider string, cause error) error {
	if cause == nil {
		return fmt.Errorf("%s: %w", provider, ErrMalformedResponse)
	}
	return fmt.Errorf("%s: %w: %v", provider, ErrMalformedResponse, cause)
}
