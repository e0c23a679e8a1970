package ga

import (
	"errors"
	"fmt"
)

// ErrRetryExhausted matches any RetryExhaustedError via errors.Is.
var ErrRetryExhausted = errors.New("retry budget exhausted")

// RetryExhaustedError reports that rejection sampling could not produce an
// in-domain individual within the configured budget.
type RetryExhaustedError struct {
	Phase    string // "seed" or "offspring"
	Attempts int
}

func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("%s: no in-domain individual after %d attempts", e.Phase, e.Attempts)
}

func (e *RetryExhaustedError) Is(target error) bool {
	if target == ErrRetryExhausted {
		return true
	}
	_, ok := target.(*RetryExhaustedError)
	return ok
}

// ValidationError represents an invalid configuration value.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid config: " + e.Field + " " + e.Reason
}
