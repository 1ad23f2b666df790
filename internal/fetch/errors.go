package fetch

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorClass classifies a failed attempt for retry decisions and metrics.
type ErrorClass string

const (
	ErrorClassNetwork   ErrorClass = "network"
	ErrorClassRateLimit ErrorClass = "rate_limit"
	ErrorClassServer    ErrorClass = "server"
	ErrorClassClient    ErrorClass = "client"
)

var (
	// ErrRetryExhausted is matched by every NetworkError.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrNotFound is matched by a StatusError carrying 404.
	ErrNotFound = errors.New("resource not found")

	// ErrInvalidRequest is matched by a StatusError carrying any other 4xx.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrMalformedPayload wraps response bodies that fail to decode.
	ErrMalformedPayload = errors.New("malformed payload")
)

// classifyStatus maps a response status to an error class. ok is false for
// statuses that are not failures.
func classifyStatus(status int) (ErrorClass, bool) {
	switch {
	case status == http.StatusTooManyRequests:
		return ErrorClassRateLimit, true
	case status >= 500:
		return ErrorClassServer, true
	case status >= 400:
		return ErrorClassClient, true
	default:
		return "", false
	}
}

// shouldRetry reports whether a failure of this class is retried.
func shouldRetry(class ErrorClass) bool {
	switch class {
	case ErrorClassNetwork, ErrorClassRateLimit, ErrorClassServer:
		return true
	default:
		return false
	}
}

// NetworkError is returned once every attempt failed with a retryable
// condition. StatusCode is zero when the last attempt got no response.
type NetworkError struct {
	URL        string
	Attempts   int
	Class      ErrorClass
	StatusCode int
	Err        error
}

func (e *NetworkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("request %s failed after %d attempts (%s, status %d)", e.URL, e.Attempts, e.Class, e.StatusCode)
	}
	return fmt.Sprintf("request %s failed after %d attempts (%s): %v", e.URL, e.Attempts, e.Class, e.Err)
}

// Unwrap exposes ErrRetryExhausted and the last attempt's cause.
func (e *NetworkError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrRetryExhausted}
	}
	return []error{ErrRetryExhausted, e.Err}
}

// StatusError is a client error response that was not retried.
type StatusError struct {
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("request %s: unexpected status code %d: %s", e.URL, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("request %s: unexpected status code %d", e.URL, e.StatusCode)
}

// Is matches ErrNotFound for 404 and ErrInvalidRequest otherwise.
func (e *StatusError) Is(target error) bool {
	if e.StatusCode == http.StatusNotFound {
		return target == ErrNotFound
	}
	return target == ErrInvalidRequest
}
