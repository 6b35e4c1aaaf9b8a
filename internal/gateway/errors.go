package gateway

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// UnauthenticatedError reports a missing or malformed bearer credential.
type UnauthenticatedError struct {
	Reason string
}

func (e *UnauthenticatedError) Error() string {
	return "Unauthenticated: " + e.Reason
}

// UnknownToolError reports an identifier that resolves to no tool. The
// message names the tool with its target prefix stripped.
type UnknownToolError struct {
	Identifier string
}

func (e *UnknownToolError) Error() string {
	return "Unknown tool: " + ToolName(e.Identifier)
}

// InvalidArgumentsError reports required arguments that are absent, null
// or empty.
type InvalidArgumentsError struct {
	Tool    string
	Missing []string
}

func (e *InvalidArgumentsError) Error() string {
	if len(e.Missing) == 1 {
		return "Missing required parameter: " + e.Missing[0]
	}
	return "Missing required parameters: " + strings.Join(e.Missing, ", ")
}

// InvocationError wraps a failure raised while running a resolved tool.
type InvocationError struct {
	Tool string
	Err  error
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("Error: %v", e.Err)
}

func (e *InvocationError) Unwrap() error {
	return e.Err
}

// IsUnauthenticated checks if an error is an UnauthenticatedError.
func IsUnauthenticated(err error) bool {
	var authErr *UnauthenticatedError
	return errors.As(err, &authErr)
}

// IsUnknownTool checks if an error is an UnknownToolError.
func IsUnknownTool(err error) bool {
	var unknownErr *UnknownToolError
	return errors.As(err, &unknownErr)
}

// IsInvalidArguments checks if an error is an InvalidArgumentsError.
func IsInvalidArguments(err error) bool {
	var argsErr *InvalidArgumentsError
	return errors.As(err, &argsErr)
}

// StatusCode maps an error onto the HTTP status reported in results.
func StatusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case IsUnauthenticated(err):
		return http.StatusUnauthorized
	case IsUnknownTool(err), IsInvalidArguments(err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
