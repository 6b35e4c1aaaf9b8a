package gateway

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/giantswarm/toolgate/internal/runtime"
	"github.com/giantswarm/toolgate/pkg/logging"
)

// DefaultToolTimeout bounds a runtime call when neither the tool nor the
// dispatcher configure a timeout.
const DefaultToolTimeout = 120 * time.Second

// Dispatcher authenticates the shape of an inbound call, resolves the tool
// and runs it. Every call produces a well-formed InvocationResult.
//
// Signature and claim checks happen before the dispatcher is reached (see
// Authorizer); here only the presence and shape of the bearer header are
// checked.
type Dispatcher struct {
	router  *Router
	invoker runtime.Invoker
	timeout time.Duration
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithDefaultTimeout sets the timeout used for tools that set none.
func WithDefaultTimeout(d time.Duration) DispatcherOption {
	return func(disp *Dispatcher) {
		if d > 0 {
			disp.timeout = d
		}
	}
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(router *Router, invoker runtime.Invoker, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		router:  router,
		invoker: invoker,
		timeout: DefaultToolTimeout,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Router returns the router the dispatcher resolves against.
func (d *Dispatcher) Router() *Router {
	return d.router
}

// BearerToken extracts the credential from an Authorization header value.
// The scheme is matched case-insensitively; the token must be non-empty and
// contain no whitespace.
func BearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	if token == "" || strings.ContainsAny(token, " \t\r\n") {
		return "", false
	}
	return token, true
}

// Dispatch runs one invocation.
func (d *Dispatcher) Dispatch(ctx context.Context, req InvocationRequest, authHeader string) (result InvocationResult) {
	started := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err := &InvocationError{Tool: req.ToolIdentifier, Err: fmt.Errorf("panic: %v", r)}
			logging.Error("Gateway", err, "Recovered panic while dispatching %s", req.ToolIdentifier)
			result = failure(err)
		}
		logging.Info("Gateway", "Dispatched %s: status=%d in %s",
			req.ToolIdentifier, result.StatusCode, time.Since(started).Round(time.Millisecond))
	}()

	if _, ok := BearerToken(authHeader); !ok {
		reason := "missing Authorization header"
		if authHeader != "" {
			reason = "Authorization header is not a bearer token"
		}
		return failure(&UnauthenticatedError{Reason: reason})
	}

	resolved, ok := d.router.Resolve(req.ToolIdentifier)
	if !ok {
		return failure(&UnknownToolError{Identifier: req.ToolIdentifier})
	}
	tool := resolved.Handler

	if missing := missingArguments(tool.required, req.Arguments); len(missing) > 0 {
		return failure(&InvalidArgumentsError{Tool: resolved.Name, Missing: missing})
	}

	payload := req.Arguments
	if tool.Payload != nil {
		built, err := tool.Payload.Build(req.Arguments)
		if err != nil {
			return failure(&InvocationError{Tool: resolved.Name, Err: err})
		}
		payload = built
	}

	timeout := tool.Timeout
	if timeout <= 0 {
		timeout = d.timeout
	}

	resp, err := d.invoker.Invoke(ctx, tool.Runtime, payload, timeout)
	if err != nil {
		invErr := &InvocationError{Tool: resolved.Name, Err: err}
		logging.Error("Gateway", err, "Tool %s failed", resolved.Name)
		return failure(invErr)
	}

	return InvocationResult{StatusCode: http.StatusOK, Body: resp.Value()}
}

func failure(err error) InvocationResult {
	return InvocationResult{
		StatusCode: StatusCode(err),
		Body:       err.Error(),
		IsError:    true,
		Err:        err,
	}
}

// missingArguments lists required names whose value is absent, null or an
// empty string.
func missingArguments(required []string, args map[string]any) []string {
	var missing []string
	for _, name := range required {
		v, ok := args[name]
		if !ok || v == nil {
			missing = append(missing, name)
			continue
		}
		if s, isString := v.(string); isString && s == "" {
			missing = append(missing, name)
		}
	}
	return missing
}
