package runtime

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/giantswarm/toolgate/internal/oauth"
	"github.com/giantswarm/toolgate/pkg/logging"
)

const (
	// DefaultQualifier selects the runtime endpoint version when none is configured.
	DefaultQualifier = "DEFAULT"

	// DefaultTimeout applies when Invoke is called with a zero timeout.
	DefaultTimeout = 120 * time.Second

	// HeaderSessionID carries the per-invocation runtime session.
	HeaderSessionID = "X-Runtime-Session-Id"
	// HeaderTraceID carries the trace id, which equals the session id.
	HeaderTraceID = "X-Trace-Id"
	// HeaderRuntimeError marks a response body as a fault payload.
	HeaderRuntimeError = "X-Runtime-Error"

	// DefaultMaxResponseBytes caps the size of a runtime reply.
	DefaultMaxResponseBytes = 10 << 20
)

// Target identifies a downstream runtime.
type Target struct {
	// Name is the gateway target the runtime backs, used in errors and logs.
	Name      string
	ARN       string
	Endpoint  string
	Qualifier string

	// TokenProvider, when set, names the oauth provider whose token is sent
	// as the runtime's bearer credential.
	TokenProvider string
	TokenScopes   []string
}

func (t Target) label() string {
	if t.Name != "" {
		return t.Name
	}
	return t.ARN
}

// Response is a successful runtime reply. Body is the downstream content
// unmodified, except that event streams are reduced to their data payloads.
type Response struct {
	ContentType string
	Body        []byte
	SessionID   string
}

// Value returns the body as a json.RawMessage when it is valid JSON and the
// runtime declared a JSON type, and as a string otherwise.
func (r *Response) Value() any {
	if isJSON(r.ContentType) && json.Valid(r.Body) {
		return json.RawMessage(r.Body)
	}
	return string(r.Body)
}

// Invoker calls a runtime synchronously. Implementations must honor timeout
// and ctx cancellation and must not retry.
type Invoker interface {
	Invoke(ctx context.Context, target Target, payload map[string]any, timeout time.Duration) (*Response, error)
}

// HTTPInvoker invokes runtimes over HTTP:
//
//	POST <endpoint>/runtimes/<escaped arn>/invocations?qualifier=<qualifier>
type HTTPInvoker struct {
	httpClient       *http.Client
	tokens           oauth.TokenSource
	newID            func() string
	maxResponseBytes int64
}

// InvokerOption configures an HTTPInvoker.
type InvokerOption func(*HTTPInvoker)

// WithHTTPClient sets the client used for runtime calls.
func WithHTTPClient(c *http.Client) InvokerOption {
	return func(i *HTTPInvoker) {
		i.httpClient = c
	}
}

// WithTokenSource enables bearer authentication for targets that name a
// TokenProvider.
func WithTokenSource(ts oauth.TokenSource) InvokerOption {
	return func(i *HTTPInvoker) {
		i.tokens = ts
	}
}

// WithSessionIDFunc replaces the session id generator.
func WithSessionIDFunc(fn func() string) InvokerOption {
	return func(i *HTTPInvoker) {
		i.newID = fn
	}
}

// WithMaxResponseBytes caps the reply size. Larger replies fail with a
// FaultError instead of being cut short.
func WithMaxResponseBytes(n int64) InvokerOption {
	return func(i *HTTPInvoker) {
		if n > 0 {
			i.maxResponseBytes = n
		}
	}
}

// NewHTTPInvoker creates an HTTPInvoker.
func NewHTTPInvoker(opts ...InvokerOption) *HTTPInvoker {
	i := &HTTPInvoker{
		httpClient:       &http.Client{},
		newID:            uuid.NewString,
		maxResponseBytes: DefaultMaxResponseBytes,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Invoke sends payload to target and waits up to timeout for the reply.
func (i *HTTPInvoker) Invoke(ctx context.Context, target Target, payload map[string]any, timeout time.Duration) (*Response, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	endpoint, err := invocationURL(target)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode runtime payload: %w", err)
	}

	sessionID := i.newID()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build runtime request: %w", err)
	}
	req.Header.Set("Content-Type", contentTypeJSON)
	req.Header.Set("Accept", contentTypeJSON+", "+contentTypeEventStream)
	req.Header.Set(HeaderSessionID, sessionID)
	req.Header.Set(HeaderTraceID, sessionID)

	if target.TokenProvider != "" && i.tokens != nil {
		token, err := i.tokens.Acquire(ctx, target.TokenProvider, target.TokenScopes, oauth.AuthFlowM2M, false)
		if err != nil {
			if ctx.Err() != nil {
				return nil, &TimeoutError{Target: target.label(), Timeout: timeout, Err: ctx.Err()}
			}
			if oauth.IsConfigurationError(err) {
				return nil, fmt.Errorf("runtime %s: %w", target.label(), err)
			}
			return nil, &UnreachableError{Target: target.label(), Err: err}
		}
		req.Header.Set("Authorization", token.AuthorizationHeader())
	}

	logging.Info("Runtime", "Invoking runtime %s with session %s", target.label(), logging.TruncateIdentifier(sessionID))
	started := time.Now()

	resp, err := i.httpClient.Do(req)
	if err != nil {
		return nil, classifyTransportError(ctx, target, timeout, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, i.maxResponseBytes+1))
	if err != nil {
		return nil, classifyTransportError(ctx, target, timeout, err)
	}
	if int64(len(raw)) > i.maxResponseBytes {
		logging.Warn("Runtime", "Runtime %s reply exceeds %d bytes", target.label(), i.maxResponseBytes)
		return nil, &FaultError{Target: target.label(), StatusCode: resp.StatusCode, Message: fmt.Sprintf("response exceeds %d bytes", i.maxResponseBytes)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 || resp.Header.Get(HeaderRuntimeError) != "" {
		fault := &FaultError{Target: target.label(), StatusCode: resp.StatusCode, Message: faultMessage(resp.Header.Get(HeaderRuntimeError), raw)}
		logging.Warn("Runtime", "Runtime %s returned fault after %s: %s", target.label(), time.Since(started).Round(time.Millisecond), fault.Message)
		return nil, fault
	}

	contentType := resp.Header.Get("Content-Type")
	if isEventStream(contentType) {
		raw, err = decodeEventStream(bytes.NewReader(raw))
		if err != nil {
			return nil, &FaultError{Target: target.label(), StatusCode: resp.StatusCode, Message: "malformed event stream: " + err.Error()}
		}
	}

	logging.Debug("Runtime", "Runtime %s answered in %s (%d bytes, %s)",
		target.label(), time.Since(started).Round(time.Millisecond), len(raw), contentType)

	return &Response{ContentType: contentType, Body: raw, SessionID: sessionID}, nil
}

func invocationURL(target Target) (string, error) {
	if target.Endpoint == "" {
		return "", fmt.Errorf("runtime %s: endpoint is not configured", target.label())
	}
	if target.ARN == "" {
		return "", fmt.Errorf("runtime %s: runtime ARN is not configured", target.label())
	}
	base := strings.TrimSuffix(target.Endpoint, "/")
	if _, err := url.ParseRequestURI(base); err != nil {
		return "", fmt.Errorf("runtime %s: invalid endpoint: %w", target.label(), err)
	}

	qualifier := target.Qualifier
	if qualifier == "" {
		qualifier = DefaultQualifier
	}

	query := url.Values{"qualifier": []string{qualifier}}.Encode()
	return base + "/runtimes/" + url.PathEscape(target.ARN) + "/invocations?" + query, nil
}

// classifyTransportError maps a failed round trip onto the runtime error
// taxonomy. A ctx that has ended wins over whatever the transport reported.
func classifyTransportError(ctx context.Context, target Target, timeout time.Duration, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return &TimeoutError{Target: target.label(), Timeout: timeout, Err: ctxErr}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &TimeoutError{Target: target.label(), Timeout: timeout, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &TimeoutError{Target: target.label(), Timeout: timeout, Err: err}
	}
	return &UnreachableError{Target: target.label(), Err: err}
}

// faultMessage extracts a human readable message from a fault body.
func faultMessage(header string, body []byte) string {
	var fault struct {
		Message      string `json:"message"`
		ErrorMessage string `json:"errorMessage"`
	}
	if json.Unmarshal(body, &fault) == nil {
		if fault.Message != "" {
			return fault.Message
		}
		if fault.ErrorMessage != "" {
			return fault.ErrorMessage
		}
	}
	if msg := strings.TrimSpace(string(body)); msg != "" {
		return msg
	}
	if header != "" {
		return header
	}
	return "empty fault response"
}
