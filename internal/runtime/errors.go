package runtime

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// TimeoutError reports that the runtime did not answer within the timeout,
// or that the caller abandoned the call. Safe to retry.
type TimeoutError struct {
	Target  string
	Timeout time.Duration
	Err     error
}

func (e *TimeoutError) Error() string {
	if errors.Is(e.Err, context.Canceled) {
		return fmt.Sprintf("runtime %s: invocation cancelled", e.Target)
	}
	return fmt.Sprintf("runtime %s: no response within %s", e.Target, e.Timeout)
}

func (e *TimeoutError) Unwrap() error {
	return e.Err
}

// FaultError reports that the runtime answered with a fault. The downstream
// logic failed on its input, so retrying is not expected to help.
type FaultError struct {
	Target     string
	StatusCode int
	Message    string
}

func (e *FaultError) Error() string {
	return fmt.Sprintf("runtime %s returned fault (status %d): %s", e.Target, e.StatusCode, e.Message)
}

// UnreachableError reports a network-level failure reaching the runtime:
// connection refused, DNS or TLS errors. Safe to retry.
type UnreachableError struct {
	Target string
	Err    error
}

func (e *UnreachableError) Error() string {
	return fmt.Sprintf("runtime %s unreachable: %v", e.Target, e.Err)
}

func (e *UnreachableError) Unwrap() error {
	return e.Err
}

// IsTimeout checks if an error is a TimeoutError.
func IsTimeout(err error) bool {
	var timeoutErr *TimeoutError
	return errors.As(err, &timeoutErr)
}

// IsFault checks if an error is a FaultError.
func IsFault(err error) bool {
	var faultErr *FaultError
	return errors.As(err, &faultErr)
}

// IsUnreachable checks if an error is an UnreachableError.
func IsUnreachable(err error) bool {
	var unreachableErr *UnreachableError
	return errors.As(err, &unreachableErr)
}

// IsRetryable reports whether the caller may safely retry the invocation.
func IsRetryable(err error) bool {
	return IsTimeout(err) || IsUnreachable(err)
}
