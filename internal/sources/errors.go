package sources

import (
	"errors"
	"fmt"
)

// Common errors returned by source adapters.
var (
	// ErrRateLimited indicates the provider's rate limit held even
	// after the single permitted retry.
	ErrRateLimited = errors.New("source rate limit exceeded")

	// ErrNetworkError indicates a network connectivity issue.
	ErrNetworkError = errors.New("network error communicating with source")

	// ErrInvalidResponse indicates an unexpected provider payload.
	ErrInvalidResponse = errors.New("invalid response from source")
)

// APIError represents a non-2xx response from a provider API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("source API error (status %d): %s", e.StatusCode, e.Message)
}

// IsRateLimited returns true if the error indicates rate limiting.
func IsRateLimited(err error) bool {
	if errors.Is(err, ErrRateLimited) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429
	}
	return false
}
