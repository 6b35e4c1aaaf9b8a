package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	mcpclient "github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/giantswarm/toolgate/internal/gateway"
	"github.com/giantswarm/toolgate/internal/oauth"
	"github.com/giantswarm/toolgate/pkg/logging"
)

const (
	protocolVersion    = "2024-11-05"
	defaultInitTimeout = 30 * time.Second
)

// Config describes the gateway and the credentials used to reach it.
type Config struct {
	GatewayURL string
	Provider   string
	Scopes     []string
	Flow       oauth.AuthFlow

	ClientName    string
	ClientVersion string
	// HTTPClient overrides the transport's HTTP client, mainly for tests.
	HTTPClient  *http.Client
	InitTimeout time.Duration
}

// Session is one authenticated MCP session against the gateway. It is safe
// for concurrent use; a reconnect after a token refresh swaps the underlying
// connection for every caller.
type Session struct {
	cfg    Config
	tokens oauth.TokenSource

	mu    sync.Mutex
	conn  *mcpclient.Client
	token *oauth.Token
	tools []gateway.ToolSchema
}

// Open acquires a token and establishes the session. A 401 during the
// handshake is retried once with a freshly exchanged token.
func Open(ctx context.Context, cfg Config, tokens oauth.TokenSource) (*Session, error) {
	if cfg.GatewayURL == "" {
		return nil, &oauth.ConfigurationError{Provider: cfg.Provider, Field: "gatewayUrl", Reason: "is required"}
	}
	if tokens == nil {
		return nil, errors.New("client: token source is required")
	}
	if cfg.Flow == "" {
		cfg.Flow = oauth.AuthFlowM2M
	}
	if cfg.ClientName == "" {
		cfg.ClientName = "toolgate-client"
	}
	if cfg.ClientVersion == "" {
		cfg.ClientVersion = "dev"
	}
	if cfg.InitTimeout <= 0 {
		cfg.InitTimeout = defaultInitTimeout
	}

	s := &Session{cfg: cfg, tokens: tokens}

	err := s.connect(ctx, false)
	if is401(err) {
		logging.Info("Client", "Gateway rejected initial token, refreshing")
		err = s.connect(ctx, true)
		if is401(err) {
			return nil, &UnauthenticatedError{Err: err}
		}
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// connect replaces the current connection with one carrying a token acquired
// with the given force flag.
func (s *Session) connect(ctx context.Context, forceRefresh bool) error {
	token, err := s.tokens.Acquire(ctx, s.cfg.Provider, s.cfg.Scopes, s.cfg.Flow, forceRefresh)
	if err != nil {
		return &acquireError{Err: err}
	}

	opts := []transport.StreamableHTTPCOption{
		transport.WithHTTPHeaders(map[string]string{"Authorization": token.AuthorizationHeader()}),
	}
	if s.cfg.HTTPClient != nil {
		opts = append(opts, transport.WithHTTPBasicClient(s.cfg.HTTPClient))
	}

	conn, err := mcpclient.NewStreamableHttpClient(s.cfg.GatewayURL, opts...)
	if err != nil {
		return fmt.Errorf("create gateway transport: %w", err)
	}
	if err := conn.Start(ctx); err != nil {
		conn.Close()
		return fmt.Errorf("start gateway transport: %w", err)
	}

	initCtx, cancel := context.WithTimeout(ctx, s.cfg.InitTimeout)
	defer cancel()

	initResult, err := conn.Initialize(initCtx, mcp.InitializeRequest{
		Params: struct {
			ProtocolVersion string                 `json:"protocolVersion"`
			Capabilities    mcp.ClientCapabilities `json:"capabilities"`
			ClientInfo      mcp.Implementation     `json:"clientInfo"`
		}{
			ProtocolVersion: protocolVersion,
			ClientInfo: mcp.Implementation{
				Name:    s.cfg.ClientName,
				Version: s.cfg.ClientVersion,
			},
			Capabilities: mcp.ClientCapabilities{},
		},
	})
	if err != nil {
		conn.Close()
		return fmt.Errorf("initialize gateway session: %w", err)
	}

	s.mu.Lock()
	old := s.conn
	s.conn = conn
	s.token = token
	s.mu.Unlock()

	if old != nil {
		_ = old.Close()
	}

	logging.Debug("Client", "Connected to %s (%s %s), token expires %s",
		s.cfg.GatewayURL, initResult.ServerInfo.Name, initResult.ServerInfo.Version,
		token.ExpiresAt.Format(time.RFC3339))
	return nil
}

func (s *Session) current() (*mcpclient.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil, errors.New("client: session is closed")
	}
	return s.conn, nil
}

// DiscoverTools lists the gateway's tools. The first call pages through the
// full listing; later calls return the same snapshot.
func (s *Session) DiscoverTools(ctx context.Context) ([]gateway.ToolSchema, error) {
	s.mu.Lock()
	cached := s.tools
	s.mu.Unlock()
	if cached != nil {
		return append([]gateway.ToolSchema(nil), cached...), nil
	}

	var tools []gateway.ToolSchema
	err := s.withRetry(ctx, func(conn *mcpclient.Client) error {
		var err error
		tools, err = listAllTools(ctx, conn)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.tools == nil {
		s.tools = tools
	}
	cached = s.tools
	s.mu.Unlock()

	logging.Debug("Client", "Discovered %d tools", len(cached))
	return append([]gateway.ToolSchema(nil), cached...), nil
}

func listAllTools(ctx context.Context, conn *mcpclient.Client) ([]gateway.ToolSchema, error) {
	tools := []gateway.ToolSchema{}
	var cursor mcp.Cursor
	for {
		req := mcp.ListToolsRequest{}
		req.Params.Cursor = cursor

		res, err := conn.ListTools(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("list tools: %w", err)
		}
		for _, t := range res.Tools {
			schema, err := toToolSchema(t)
			if err != nil {
				return nil, err
			}
			tools = append(tools, schema)
		}
		if res.NextCursor == "" {
			return tools, nil
		}
		cursor = res.NextCursor
	}
}

func toToolSchema(t mcp.Tool) (gateway.ToolSchema, error) {
	raw := t.RawInputSchema
	if len(raw) == 0 {
		data, err := json.Marshal(t.InputSchema)
		if err != nil {
			return gateway.ToolSchema{}, fmt.Errorf("encode schema of %s: %w", t.Name, err)
		}
		raw = data
	}
	return gateway.ToolSchema{Name: t.Name, Description: t.Description, InputSchema: raw}, nil
}

// FindTool returns the discovered tool that name matches, using the same
// rules as Invoke.
func (s *Session) FindTool(ctx context.Context, name string) (gateway.ToolSchema, error) {
	tools, err := s.DiscoverTools(ctx)
	if err != nil {
		return gateway.ToolSchema{}, err
	}
	return matchTool(tools, name)
}

// Invoke calls the tool that name matches. The returned error is non-nil
// only for failures outside the gateway's own result, such as an unknown
// tool, an unusable session or a rejected token; gateway-side failures come
// back as a result with IsError set.
func (s *Session) Invoke(ctx context.Context, name string, args map[string]any) (gateway.InvocationResult, error) {
	tool, err := s.FindTool(ctx, name)
	if err != nil {
		return gateway.InvocationResult{}, err
	}
	if args == nil {
		args = map[string]any{}
	}

	var result gateway.InvocationResult
	err = s.withRetry(ctx, func(conn *mcpclient.Client) error {
		res, err := conn.CallTool(ctx, mcp.CallToolRequest{
			Params: mcp.CallToolParams{Name: tool.Name, Arguments: args},
		})
		if err != nil {
			return fmt.Errorf("call %s: %w", tool.Name, err)
		}
		result = toInvocationResult(res)
		if result.StatusCode == http.StatusUnauthorized {
			return errUnauthorizedResult
		}
		return nil
	})
	if err != nil {
		return gateway.InvocationResult{}, err
	}

	logging.Debug("Client", "Invoked %s: status=%d", tool.Name, result.StatusCode)
	return result, nil
}

// withRetry runs call on the current connection. On a 401 it refreshes the
// token, reconnects and runs call exactly once more.
func (s *Session) withRetry(ctx context.Context, call func(*mcpclient.Client) error) error {
	conn, err := s.current()
	if err != nil {
		return err
	}

	err = call(conn)
	if !is401(err) {
		return err
	}

	logging.Info("Client", "Gateway returned 401, refreshing token and reconnecting")
	if err := s.connect(ctx, true); err != nil {
		if is401(err) {
			return &UnauthenticatedError{Err: err}
		}
		return err
	}

	conn, err = s.current()
	if err != nil {
		return err
	}
	if err := call(conn); err != nil {
		if is401(err) {
			return &UnauthenticatedError{Err: err}
		}
		return err
	}
	return nil
}

// Token returns the token the current connection was opened with.
func (s *Session) Token() *oauth.Token {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// Close releases the connection. It is safe to call more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()

	if conn == nil {
		return nil
	}
	return conn.Close()
}

// structuredResult mirrors gateway.InvocationResult on the wire.
type structuredResult struct {
	StatusCode int             `json:"statusCode"`
	Body       json.RawMessage `json:"body"`
	IsError    bool            `json:"isError"`
}

// toInvocationResult recovers the gateway's result from an MCP tool result,
// falling back to the text content when no structured result is attached.
func toInvocationResult(res *mcp.CallToolResult) gateway.InvocationResult {
	if res.StructuredContent != nil {
		if data, err := json.Marshal(res.StructuredContent); err == nil {
			var sr structuredResult
			if err := json.Unmarshal(data, &sr); err == nil && sr.StatusCode != 0 {
				return gateway.InvocationResult{
					StatusCode: sr.StatusCode,
					Body:       decodeBody(sr.Body),
					IsError:    sr.IsError,
				}
			}
		}
	}

	text := textContent(res)
	result := gateway.InvocationResult{StatusCode: http.StatusOK, Body: text, IsError: res.IsError}
	if res.IsError {
		switch {
		case strings.HasPrefix(text, "Unauthenticated:"):
			result.StatusCode = http.StatusUnauthorized
		case strings.HasPrefix(text, "Unknown tool:"), strings.HasPrefix(text, "Missing required parameter"):
			result.StatusCode = http.StatusBadRequest
		default:
			result.StatusCode = http.StatusInternalServerError
		}
	}
	return result
}

func decodeBody(raw json.RawMessage) any {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return raw
}

func textContent(res *mcp.CallToolResult) string {
	var parts []string
	for _, c := range res.Content {
		if tc, ok := mcp.AsTextContent(c); ok {
			parts = append(parts, tc.Text)
		}
	}
	return strings.Join(parts, "\n")
}
