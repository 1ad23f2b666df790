package types

import (
	"errors"
	"fmt"
)

var (
	// ErrMarketNotFound is returned when neither the id nor the slug lookup finds a market.
	ErrMarketNotFound = errors.New("market not found")

	// ErrUpstreamUnavailable is returned when the upstream could not be reached
	// and no cached data was available. Callers may retry.
	ErrUpstreamUnavailable = errors.New("upstream temporarily unavailable")

	// ErrInvalidQuery is returned for malformed query parameters.
	ErrInvalidQuery = errors.New("invalid query")
)

// MarketNotFoundError carries the identifier that failed to resolve.
type MarketNotFoundError struct {
	ID string
}

func (e *MarketNotFoundError) Error() string {
	return fmt.Sprintf("market %q not found", e.ID)
}

// Is makes errors.Is(err, ErrMarketNotFound) match.
func (e *MarketNotFoundError) Is(target error) bool {
	return target == ErrMarketNotFound
}

// UnavailableError wraps the origin failure behind ErrUpstreamUnavailable.
type UnavailableError struct {
	Op  string
	Err error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("%s: %v: %v", e.Op, ErrUpstreamUnavailable, e.Err)
}

// Unwrap exposes both the sentinel and the origin failure.
func (e *UnavailableError) Unwrap() []error {
	return []error{ErrUpstreamUnavailable, e.Err}
}

// IsRetryable reports whether the caller may retry the failed operation.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrUpstreamUnavailable)
}
