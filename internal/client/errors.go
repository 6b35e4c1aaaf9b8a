package client

import (
	"errors"
	"fmt"
	"strings"
)

// ToolNotFoundError is returned when a name matches no discovered tool, or
// matches several by substring.
type ToolNotFoundError struct {
	Name       string
	Candidates []string
}

func (e *ToolNotFoundError) Error() string {
	if len(e.Candidates) > 0 {
		return fmt.Sprintf("tool %q is ambiguous, candidates: %s", e.Name, strings.Join(e.Candidates, ", "))
	}
	return fmt.Sprintf("tool %q not found", e.Name)
}

// UnauthenticatedError is returned when the gateway still rejects the session
// after a forced token refresh.
type UnauthenticatedError struct {
	Err error
}

func (e *UnauthenticatedError) Error() string {
	if e.Err == nil {
		return "unauthenticated"
	}
	return "unauthenticated: " + e.Err.Error()
}

func (e *UnauthenticatedError) Unwrap() error {
	return e.Err
}

// IsToolNotFound checks whether err is a ToolNotFoundError.
func IsToolNotFound(err error) bool {
	var target *ToolNotFoundError
	return errors.As(err, &target)
}

// IsUnauthenticated checks whether err is an UnauthenticatedError.
func IsUnauthenticated(err error) bool {
	var target *UnauthenticatedError
	return errors.As(err, &target)
}

// errUnauthorizedResult marks a tool result whose status code was 401.
var errUnauthorizedResult = errors.New("gateway returned 401 Unauthorized")

// acquireError wraps a failure to obtain the gateway token. It is never a
// gateway rejection, whatever status the token endpoint answered with.
type acquireError struct {
	Err error
}

func (e *acquireError) Error() string {
	return "acquire gateway token: " + e.Err.Error()
}

func (e *acquireError) Unwrap() error {
	return e.Err
}

// is401 matches the transport's wording for rejected requests. Token
// acquisition failures never match.
func is401(err error) bool {
	if err == nil {
		return false
	}
	var acquireErr *acquireError
	if errors.As(err, &acquireErr) {
		return false
	}
	if errors.Is(err, errUnauthorizedResult) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "401") || strings.Contains(strings.ToLower(msg), "unauthorized")
}
