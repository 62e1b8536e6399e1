package breaker

import (
	"errors"
	"fmt"
	"time"
)

// ErrOpen is the sentinel all circuit-open rejections unwrap to. Use
// errors.Is(err, ErrOpen) or IsOpen to distinguish a rejection from an error
// returned by the wrapped operation.
var ErrOpen = errors.New("circuit open")

// OpenError is returned by Do when the breaker declines to execute the
// operation. It carries the state that caused the rejection and, while the
// breaker is open, the time remaining until a call may run as the probe.
type OpenError struct {
	Name  string
	State State

	// RetryAfter is how long until the next probe is eligible. It is zero
	// when the rejection came from the half-open gate, where eligibility
	// depends on the pending probe settling rather than on elapsed time.
	RetryAfter time.Duration
}

// Error implements the error interface.
func (e *OpenError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("circuit breaker %q is %s (retry in %s)", e.Name, e.State, e.RetryAfter)
	}
	if e.State == StateHalfOpen {
		return fmt.Sprintf("circuit breaker %q is %s (probe in flight)", e.Name, e.State)
	}
	return fmt.Sprintf("circuit breaker %q is %s", e.Name, e.State)
}

// Unwrap ties OpenError to the ErrOpen sentinel.
func (e *OpenError) Unwrap() error {
	return ErrOpen
}

// IsOpen reports whether err is a circuit-open rejection.
func IsOpen(err error) bool {
	return errors.Is(err, ErrOpen)
}
