package client

import (
	"errors"
	"fmt"
)

// Common errors returned by the client.
var (
	// ErrRetryExhausted is returned when all retry attempts are exhausted.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrContextCancelled is returned when the context is cancelled during retry.
	ErrContextCancelled = errors.New("context cancelled")

	// ErrRateLimited is returned when the throttle state blocks a request.
	ErrRateLimited = errors.New("request blocked: canvas throttle critical")

	// ErrNotConfigured is returned when the session has no domain or token.
	ErrNotConfigured = errors.New("canvas session not configured")

	// ErrForeignURL is returned for absolute URLs outside the session's domain.
	// The access token is only ever sent to the configured Canvas host.
	ErrForeignURL = errors.New("url is not on the canvas domain")
)

// ErrorClass represents a classification of HTTP errors.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx client errors.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassRateLimit represents throttled requests: a 403 whose body says
	// "Rate Limit Exceeded", or a 429.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassNetwork represents network/timeout errors.
	ErrorClassNetwork ErrorClass = "network"
)

// APIError represents a failed Canvas request.
type APIError struct {
	StatusCode int
	ErrorClass ErrorClass
	Message    string
	// Body is the response body, if any was read
	Body []byte
	Err  error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("canvas %s error (status %d): %s: %v",
			e.ErrorClass, e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("canvas %s error (status %d): %s",
		e.ErrorClass, e.StatusCode, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *APIError) Unwrap() error {
	return e.Err
}

// IsStatus reports whether err is an APIError with the given status code.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == status
}

// shouldRetry determines if an error should be retried based on its classification.
func shouldRetry(errorClass ErrorClass) bool {
	switch errorClass {
	case ErrorClassClient:
		// 4xx errors are not transient
		return false
	case ErrorClassServer:
		return true
	case ErrorClassRateLimit:
		// The bucket leaks, so waiting helps
		return true
	case ErrorClassNetwork:
		return true
	default:
		return false
	}
}

// classifyError maps an error from a request attempt to its class.
func classifyError(err error) ErrorClass {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorClass
	}
	return ErrorClassNetwork
}
