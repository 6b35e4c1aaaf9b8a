package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/giantswarm/toolgate/internal/client"
	"github.com/giantswarm/toolgate/internal/config"
	"github.com/giantswarm/toolgate/internal/gateway"
	"github.com/giantswarm/toolgate/internal/oauth"
	"github.com/giantswarm/toolgate/internal/runtime"
	"github.com/giantswarm/toolgate/pkg/logging"
)

// Services is the explicit process context: everything a command needs,
// constructed once and released by Close.
//
// The token side (Store, Provider, Watcher) is always present. The gateway
// side (Invoker through Server) is only built for serve.
type Services struct {
	Store    *oauth.TokenStore
	Provider *oauth.Provider
	Watcher  *config.SecretWatcher

	Invoker    *runtime.HTTPInvoker
	Router     *gateway.Router
	Dispatcher *gateway.Dispatcher
	Authorizer *gateway.Authorizer
	Server     *gateway.Server

	cfg           *Config
	stopCleanup   context.CancelFunc
	cleanupDoneCh chan struct{}
}

// Mode selects which part of the process context is built.
type Mode int

const (
	// ModeClient builds the token side only.
	ModeClient Mode = iota
	// ModeServe additionally builds the gateway.
	ModeServe
)

// InitializeServices validates the configuration sections mode needs and
// constructs the services. Validation failures are returned before any
// goroutine is started.
func InitializeServices(cfg *Config, mode Mode) (*Services, error) {
	tg := cfg.Toolgate

	if err := tg.ValidateOAuth(); err != nil {
		return nil, err
	}
	switch mode {
	case ModeServe:
		if err := tg.ValidateGateway(); err != nil {
			return nil, err
		}
	case ModeClient:
		if err := tg.ValidateClient(); err != nil {
			return nil, err
		}
	}

	providers, err := tg.OAuth.OAuthProviders()
	if err != nil {
		return nil, err
	}

	s := &Services{cfg: cfg}
	s.Store = oauth.NewTokenStore()
	s.Provider = oauth.NewProvider(s.Store, providers,
		oauth.WithHTTPClient(http.DefaultClient),
		oauth.WithExpiryMargin(tg.OAuth.ExpiryMargin.Std()),
		oauth.WithDefaultLifetime(tg.OAuth.DefaultLifetime.Std()),
		oauth.WithExchangeTimeout(tg.OAuth.ExchangeTimeout.Std()),
	)
	if err := s.Provider.Validate(); err != nil {
		return nil, err
	}
	s.Watcher = config.NewSecretWatcher(tg.OAuth.Providers, s.Provider)

	if mode == ModeServe {
		if err := s.initGateway(); err != nil {
			return nil, err
		}
	}

	if err := s.Watcher.Start(); err != nil {
		logging.Warn("Services", "Client secret rotation is disabled: %v", err)
	}
	s.startCleanup()

	logging.Debug("Services", "Initialized %d OAuth providers", len(providers))
	return s, nil
}

func (s *Services) initGateway() error {
	tg := s.cfg.Toolgate

	tools, err := BuildTools(tg.Gateway.Targets)
	if err != nil {
		return err
	}

	s.Router, err = gateway.NewRouter(tools)
	if err != nil {
		return err
	}

	s.Invoker = runtime.NewHTTPInvoker(runtime.WithTokenSource(s.Provider))
	s.Dispatcher = gateway.NewDispatcher(s.Router, s.Invoker,
		gateway.WithDefaultTimeout(tg.Gateway.DefaultTimeout.Std()))

	if tg.Gateway.Authorizer.Enabled() {
		s.Authorizer, err = gateway.NewAuthorizer(gateway.AuthorizerConfig{
			DiscoveryURL:   tg.Gateway.Authorizer.DiscoveryURL,
			AllowedClients: tg.Gateway.Authorizer.AllowedClients,
			RequiredScopes: tg.Gateway.Authorizer.RequiredScopes,
		})
		if err != nil {
			return err
		}
	} else {
		logging.Warn("Services", "Inbound JWT verification is disabled, only the bearer header shape is checked")
	}

	s.Server = gateway.NewServer(gateway.ServerConfig{
		Name:       tg.Gateway.Name,
		Version:    s.cfg.Version,
		MCPPath:    tg.Gateway.MCPPath,
		InvokePath: tg.Gateway.InvokePath,
	}, s.Dispatcher, s.Authorizer)

	logging.Info("Services", "Registered %d tools across %d targets", len(s.Router.Tools()), len(tg.Gateway.Targets))
	return nil
}

func (s *Services) startCleanup() {
	interval := s.cfg.Toolgate.OAuth.CleanupInterval.Std()
	if interval <= 0 {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.stopCleanup = cancel
	s.cleanupDoneCh = make(chan struct{})
	go func() {
		defer close(s.cleanupDoneCh)
		s.Store.RunCleanup(ctx, interval)
	}()
}

// OpenSession opens a gateway session with the configured client settings.
func (s *Services) OpenSession(ctx context.Context) (*client.Session, error) {
	tg := s.cfg.Toolgate
	session, err := client.Open(ctx, client.Config{
		GatewayURL:    tg.Client.GatewayURL,
		Provider:      tg.Client.Provider,
		Scopes:        tg.Client.Scopes,
		Flow:          oauth.AuthFlow(tg.Client.AuthFlow),
		ClientName:    "toolgate",
		ClientVersion: s.cfg.Version,
	}, s.Provider)
	if err != nil {
		return nil, fmt.Errorf("open gateway session: %w", err)
	}
	return session, nil
}

// Close stops background work. Cached tokens are dropped with the store.
func (s *Services) Close() error {
	if s.stopCleanup != nil {
		s.stopCleanup()
		<-s.cleanupDoneCh
		s.stopCleanup = nil
	}
	if s.Watcher != nil {
		return s.Watcher.Stop()
	}
	return nil
}
