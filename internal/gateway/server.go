package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/giantswarm/toolgate/pkg/logging"
)

const (
	DefaultMCPPath    = "/mcp"
	DefaultInvokePath = "/invoke"
	HealthPath        = "/healthz"

	maxEnvelopeBytes = 1 << 20
)

type authHeaderKey struct{}

// WithAuthorization stores the raw Authorization header value in ctx.
func WithAuthorization(ctx context.Context, header string) context.Context {
	return context.WithValue(ctx, authHeaderKey{}, header)
}

// AuthorizationFrom returns the header stored by WithAuthorization.
func AuthorizationFrom(ctx context.Context) string {
	v, _ := ctx.Value(authHeaderKey{}).(string)
	return v
}

// ServerConfig configures the gateway HTTP surface.
type ServerConfig struct {
	Name       string
	Version    string
	MCPPath    string
	InvokePath string
}

// Server exposes a Dispatcher over HTTP: an MCP streamable HTTP endpoint
// listing every tool as <target>___<tool>, a plain JSON invocation endpoint,
// and a health check.
type Server struct {
	cfg        ServerConfig
	dispatcher *Dispatcher
	authorizer *Authorizer

	mcpServer  *server.MCPServer
	streamable *server.StreamableHTTPServer
	httpServer *http.Server
}

// NewServer builds the gateway. authorizer may be nil, in which case only the
// dispatcher's header shape check applies.
func NewServer(cfg ServerConfig, dispatcher *Dispatcher, authorizer *Authorizer) *Server {
	if cfg.MCPPath == "" {
		cfg.MCPPath = DefaultMCPPath
	}
	if cfg.InvokePath == "" {
		cfg.InvokePath = DefaultInvokePath
	}
	if cfg.Name == "" {
		cfg.Name = "toolgate"
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}

	s := &Server{
		cfg:        cfg,
		dispatcher: dispatcher,
		authorizer: authorizer,
	}

	s.mcpServer = server.NewMCPServer(cfg.Name, cfg.Version, server.WithToolCapabilities(false))
	for _, t := range dispatcher.Router().Tools() {
		exposed := t.ExposedName()
		tool := mcp.NewToolWithRawSchema(exposed, t.Schema.Description, t.Schema.InputSchema)
		s.mcpServer.AddTool(tool, s.toolHandler(exposed))
		logging.Debug("Gateway", "Exposed tool %s", exposed)
	}

	s.streamable = server.NewStreamableHTTPServer(s.mcpServer,
		server.WithHTTPContextFunc(func(ctx context.Context, r *http.Request) context.Context {
			return WithAuthorization(ctx, r.Header.Get("Authorization"))
		}),
	)
	return s
}

// toolHandler forwards an MCP tool call to the dispatcher. The dispatch
// result travels as structured content so clients can recover the status.
func (s *Server) toolHandler(exposed string) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		result := s.dispatcher.Dispatch(ctx, InvocationRequest{
			ToolIdentifier: req.Params.Name,
			Arguments:      req.GetArguments(),
		}, AuthorizationFrom(ctx))

		return &mcp.CallToolResult{
			Content:           []mcp.Content{mcp.NewTextContent(result.BodyText())},
			StructuredContent: result,
			IsError:           result.IsError,
		}, nil
	}
}

// Handler returns the routed HTTP handler. Authorization, when configured,
// guards the MCP and invocation endpoints but not the health check.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(HealthPath, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle(s.cfg.MCPPath, s.guard(s.streamable))
	mux.Handle(s.cfg.InvokePath, s.guard(http.HandlerFunc(s.handleInvoke)))
	return mux
}

func (s *Server) guard(h http.Handler) http.Handler {
	if s.authorizer == nil {
		return h
	}
	return s.authorizer.Middleware(h)
}

func (s *Server) handleInvoke(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req InvocationRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxEnvelopeBytes))
	if err := dec.Decode(&req); err != nil {
		writeResult(w, InvocationResult{
			StatusCode: http.StatusBadRequest,
			Body:       fmt.Sprintf("invalid invocation envelope: %v", err),
			IsError:    true,
		})
		return
	}

	writeResult(w, s.dispatcher.Dispatch(r.Context(), req, r.Header.Get("Authorization")))
}

func writeResult(w http.ResponseWriter, result InvocationResult) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(result.StatusCode)
	if err := json.NewEncoder(w).Encode(result); err != nil {
		logging.Error("Gateway", err, "Failed to write invocation result")
	}
}

// Serve accepts connections on ln until ctx is done, then shuts down
// gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info("Gateway", "Serving %s on %s (mcp=%s invoke=%s)", s.cfg.Name, ln.Addr(), s.cfg.MCPPath, s.cfg.InvokePath)
		errCh <- s.httpServer.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logging.Info("Gateway", "Shutting down gateway")
	if err := s.streamable.Shutdown(shutdownCtx); err != nil {
		logging.Warn("Gateway", "Error shutting down MCP transport: %v", err)
	}
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown gateway: %w", err)
	}
	return nil
}
