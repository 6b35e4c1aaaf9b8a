package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/sync/singleflight"

	"github.com/giantswarm/toolgate/pkg/logging"
)

const (
	wellKnownOpenIDSuffix = "/.well-known/openid-configuration"

	// DefaultDiscoveryTimeout bounds one OpenID discovery attempt.
	DefaultDiscoveryTimeout = 10 * time.Second
)

// ErrDiscoveryUnavailable is returned while the identity provider's
// discovery document cannot be fetched.
var ErrDiscoveryUnavailable = errors.New("identity provider discovery unavailable")

// AuthorizerConfig configures JWT verification of inbound bearer tokens.
type AuthorizerConfig struct {
	// DiscoveryURL is the OpenID discovery document, e.g.
	// https://cognito-idp.<region>.amazonaws.com/<pool>/.well-known/openid-configuration.
	// The issuer is the URL with the well-known suffix removed.
	DiscoveryURL string
	// AllowedClients restricts the client_id claim. Empty allows any client.
	AllowedClients []string
	// RequiredScopes must all be present in the space-separated scope claim.
	RequiredScopes []string
	// HTTPClient is used for discovery and key fetches. The default client
	// times out after DiscoveryTimeout.
	HTTPClient       *http.Client
	DiscoveryTimeout time.Duration
}

// Claims is the subset of access-token claims the gateway checks.
type Claims struct {
	Subject  string `json:"sub"`
	ClientID string `json:"client_id"`
	Scope    string `json:"scope"`
	TokenUse string `json:"token_use"`
}

// Scopes splits the scope claim.
func (c Claims) Scopes() []string {
	return strings.Fields(c.Scope)
}

// Authorizer verifies bearer tokens against an OpenID provider before
// requests reach the Dispatcher.
//
// Discovery happens on first use and is retried on every request until it
// succeeds, so the gateway can start before the identity provider is ready.
// Concurrent requests share one discovery attempt, and each of them stops
// waiting when its own context ends.
type Authorizer struct {
	cfg    AuthorizerConfig
	issuer string

	mu       sync.RWMutex
	verifier *oidc.IDTokenVerifier

	discovery singleflight.Group
}

// NewAuthorizer creates an Authorizer. No network I/O happens here.
func NewAuthorizer(cfg AuthorizerConfig) (*Authorizer, error) {
	if cfg.DiscoveryURL == "" {
		return nil, errors.New("authorizer discovery URL is required")
	}
	if cfg.DiscoveryTimeout <= 0 {
		cfg.DiscoveryTimeout = DefaultDiscoveryTimeout
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: cfg.DiscoveryTimeout}
	}
	return &Authorizer{
		cfg:    cfg,
		issuer: strings.TrimSuffix(strings.TrimSuffix(cfg.DiscoveryURL, "/"), wellKnownOpenIDSuffix),
	}, nil
}

// Issuer returns the issuer the authorizer expects in tokens.
func (a *Authorizer) Issuer() string {
	return a.issuer
}

func (a *Authorizer) getVerifier(ctx context.Context) (*oidc.IDTokenVerifier, error) {
	a.mu.RLock()
	verifier := a.verifier
	a.mu.RUnlock()
	if verifier != nil {
		return verifier, nil
	}

	ch := a.discovery.DoChan(a.issuer, func() (interface{}, error) {
		return a.discover()
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*oidc.IDTokenVerifier), nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %w", ErrDiscoveryUnavailable, ctx.Err())
	}
}

// discover runs inside the single-flight group, detached from any request.
func (a *Authorizer) discover() (*oidc.IDTokenVerifier, error) {
	a.mu.RLock()
	verifier := a.verifier
	a.mu.RUnlock()
	if verifier != nil {
		return verifier, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.DiscoveryTimeout)
	defer cancel()

	// go-oidc keeps only the HTTP client of this context for later key fetches.
	provider, err := oidc.NewProvider(oidc.ClientContext(ctx, a.cfg.HTTPClient), a.issuer)
	if err != nil {
		logging.Warn("Gateway", "OpenID discovery for %s failed: %v", a.issuer, err)
		return nil, fmt.Errorf("%w: %v", ErrDiscoveryUnavailable, err)
	}

	// Access tokens carry client_id rather than aud.
	verifier = provider.Verifier(&oidc.Config{SkipClientIDCheck: true})

	a.mu.Lock()
	a.verifier = verifier
	a.mu.Unlock()

	logging.Info("Gateway", "OpenID discovery for %s succeeded", a.issuer)
	return verifier, nil
}

// Verify checks signature, issuer, expiry, client and scopes of raw.
func (a *Authorizer) Verify(ctx context.Context, raw string) (*Claims, error) {
	verifier, err := a.getVerifier(ctx)
	if err != nil {
		return nil, err
	}

	token, err := verifier.Verify(ctx, raw)
	if err != nil {
		return nil, &UnauthenticatedError{Reason: err.Error()}
	}

	var claims Claims
	if err := token.Claims(&claims); err != nil {
		return nil, &UnauthenticatedError{Reason: "unreadable claims: " + err.Error()}
	}
	claims.Subject = token.Subject

	if len(a.cfg.AllowedClients) > 0 && !slices.Contains(a.cfg.AllowedClients, claims.ClientID) {
		return nil, &UnauthenticatedError{Reason: fmt.Sprintf("client %q is not allowed", claims.ClientID)}
	}

	granted := claims.Scopes()
	for _, scope := range a.cfg.RequiredScopes {
		if !slices.Contains(granted, scope) {
			return nil, &UnauthenticatedError{Reason: fmt.Sprintf("token lacks scope %q", scope)}
		}
	}

	return &claims, nil
}

// Middleware rejects requests whose bearer token does not verify.
func (a *Authorizer) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := BearerToken(r.Header.Get("Authorization"))
		if !ok {
			w.Header().Set("WWW-Authenticate", `Bearer realm="toolgate"`)
			http.Error(w, "missing bearer token", http.StatusUnauthorized)
			return
		}

		claims, err := a.Verify(r.Context(), raw)
		if errors.Is(err, ErrDiscoveryUnavailable) {
			http.Error(w, "authorization is temporarily unavailable", http.StatusServiceUnavailable)
			return
		}
		if err != nil {
			logging.Debug("Gateway", "Rejected bearer token: %v", err)
			w.Header().Set("WWW-Authenticate", `Bearer realm="toolgate", error="invalid_token"`)
			http.Error(w, "invalid bearer token", http.StatusUnauthorized)
			return
		}

		logging.Debug("Gateway", "Authorized client=%s", claims.ClientID)
		next.ServeHTTP(w, r)
	})
}
