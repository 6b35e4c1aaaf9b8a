package oauth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/sync/singleflight"

	"github.com/giantswarm/toolgate/pkg/logging"
)

const (
	// MinExpiryMargin is the smallest safety margin subtracted from a token's
	// lifetime. Tokens are retired this long before the server would reject them.
	MinExpiryMargin = 30 * time.Second

	// DefaultLifetime applies when the token response carries no expires_in.
	DefaultLifetime = time.Hour

	// DefaultExchangeTimeout bounds a single call to the token endpoint.
	DefaultExchangeTimeout = 10 * time.Second
)

// TokenSource hands out bearer tokens. Provider is the implementation used
// throughout toolgate; tests substitute their own.
type TokenSource interface {
	Acquire(ctx context.Context, providerName string, scopes []string, flow AuthFlow, forceRefresh bool) (*Token, error)
}

// ProviderConfig describes one OAuth client registration.
type ProviderConfig struct {
	Name string
	// Issuer is used for metadata discovery when TokenURL is empty.
	Issuer   string
	TokenURL string
	ClientID string
	// ClientSecret is wrapped so provider configs can be logged safely.
	ClientSecret RedactedToken
	// ScopePrefix is prepended as "<prefix>/" to scopes that carry no
	// resource-server part, e.g. "invoke" becomes "ResourceServer/invoke".
	ScopePrefix    string
	AuthStyle      oauth2.AuthStyle
	EndpointParams map[string]string
}

// Validate reports every missing required field.
func (c ProviderConfig) Validate() error {
	var errs []error
	if c.Name == "" {
		errs = append(errs, &ConfigurationError{Field: "name", Reason: "is required"})
	}
	if c.ClientID == "" {
		errs = append(errs, &ConfigurationError{Provider: c.Name, Field: "clientId", Reason: "is required"})
	}
	if c.ClientSecret.IsEmpty() {
		errs = append(errs, &ConfigurationError{Provider: c.Name, Field: "clientSecret", Reason: "is required"})
	}
	if c.Issuer == "" && c.TokenURL == "" {
		errs = append(errs, &ConfigurationError{Provider: c.Name, Field: "tokenUrl", Reason: "either tokenUrl or issuer is required"})
	}
	return errors.Join(errs...)
}

// Provider performs client-credentials exchanges and caches the results in
// a TokenStore. Concurrent misses for the same CacheKey share one exchange.
type Provider struct {
	store    *TokenStore
	metadata *MetadataResolver

	mu      sync.RWMutex
	configs map[string]ProviderConfig

	group singleflight.Group

	httpClient      *http.Client
	expiryMargin    time.Duration
	defaultLifetime time.Duration
	exchangeTimeout time.Duration
	now             func() time.Time
}

// ProviderOption configures a Provider.
type ProviderOption func(*Provider)

// WithHTTPClient sets the client used for token and discovery requests.
func WithHTTPClient(c *http.Client) ProviderOption {
	return func(p *Provider) {
		p.httpClient = c
	}
}

// WithExpiryMargin sets the safety margin. Values below MinExpiryMargin are raised to it.
func WithExpiryMargin(d time.Duration) ProviderOption {
	return func(p *Provider) {
		p.expiryMargin = max(d, MinExpiryMargin)
	}
}

// WithDefaultLifetime sets the lifetime assumed when expires_in is absent.
func WithDefaultLifetime(d time.Duration) ProviderOption {
	return func(p *Provider) {
		if d > 0 {
			p.defaultLifetime = d
		}
	}
}

// WithExchangeTimeout bounds each call to the token endpoint.
func WithExchangeTimeout(d time.Duration) ProviderOption {
	return func(p *Provider) {
		if d > 0 {
			p.exchangeTimeout = d
		}
	}
}

// WithClock replaces time.Now when stamping new tokens.
func WithClock(now func() time.Time) ProviderOption {
	return func(p *Provider) {
		p.now = now
	}
}

// NewProvider creates a Provider for the given registrations.
// Call Validate to fail fast on incomplete registrations.
func NewProvider(store *TokenStore, configs []ProviderConfig, opts ...ProviderOption) *Provider {
	p := &Provider{
		store:           store,
		configs:         make(map[string]ProviderConfig, len(configs)),
		httpClient:      &http.Client{Timeout: 30 * time.Second},
		expiryMargin:    MinExpiryMargin,
		defaultLifetime: DefaultLifetime,
		exchangeTimeout: DefaultExchangeTimeout,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.metadata = NewMetadataResolver(p.httpClient)
	for _, c := range configs {
		p.configs[c.Name] = c
	}
	return p
}

// Validate checks every registered provider.
func (p *Provider) Validate() error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var errs []error
	for _, name := range p.namesLocked() {
		if err := p.configs[name].Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Providers returns the registered provider names in sorted order.
func (p *Provider) Providers() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.namesLocked()
}

func (p *Provider) namesLocked() []string {
	names := make([]string, 0, len(p.configs))
	for name := range p.configs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Store returns the token store backing this provider.
func (p *Provider) Store() *TokenStore {
	return p.store
}

// UpdateClientSecret replaces the secret for provider and drops its cached
// tokens, so the next Acquire exchanges with the new credential.
func (p *Provider) UpdateClientSecret(provider string, secret RedactedToken) error {
	p.mu.Lock()
	cfg, ok := p.configs[provider]
	if !ok {
		p.mu.Unlock()
		return &ConfigurationError{Provider: provider, Reason: "unknown provider"}
	}
	cfg.ClientSecret = secret
	p.configs[provider] = cfg
	p.mu.Unlock()

	n := p.store.InvalidateProvider(provider)
	logging.Info("OAuth", "Client secret for provider=%s rotated, dropped %d cached tokens", provider, n)
	return nil
}

func (p *Provider) config(name string) (ProviderConfig, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	c, ok := p.configs[name]
	return c, ok
}

// Acquire returns a token for providerName covering scopes.
//
// Unless forceRefresh is set, a cached unexpired token is returned without
// network I/O. Otherwise a client-credentials exchange runs, shared with any
// concurrent caller using the same CacheKey. The exchange is bounded by its
// own timeout and is not cancelled when one waiter gives up; a waiter whose
// ctx ends returns early with an AuthExchangeError wrapping ctx.Err().
func (p *Provider) Acquire(ctx context.Context, providerName string, scopes []string, flow AuthFlow, forceRefresh bool) (*Token, error) {
	if flow == "" {
		flow = AuthFlowM2M
	}
	if flow != AuthFlowM2M {
		return nil, &ConfigurationError{Provider: providerName, Field: "authFlow", Reason: fmt.Sprintf("unsupported flow %q", flow)}
	}

	cfg, ok := p.config(providerName)
	if !ok {
		return nil, &ConfigurationError{Provider: providerName, Reason: "unknown provider"}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	key := NewCacheKey(providerName, scopes, flow)

	if !forceRefresh {
		if token, ok := p.store.Get(key); ok {
			logging.Debug("OAuth", "Cache hit for provider=%s scopes=%q", providerName, key.Scopes)
			return token, nil
		}
	}

	ch := p.group.DoChan(key.String(), func() (interface{}, error) {
		return p.exchange(key, cfg, !forceRefresh)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Token), nil
	case <-ctx.Done():
		return nil, &AuthExchangeError{Provider: providerName, Err: ctx.Err()}
	}
}

// exchange runs inside the single-flight group. When recheck is set the
// store is consulted again, so a caller that missed just before another
// exchange finished reuses its result.
func (p *Provider) exchange(key CacheKey, cfg ProviderConfig, recheck bool) (*Token, error) {
	if recheck {
		if token, ok := p.store.Get(key); ok {
			return token, nil
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.exchangeTimeout)
	defer cancel()
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)

	tokenURL, err := p.tokenURL(ctx, cfg)
	if err != nil {
		return nil, err
	}

	cc := clientcredentials.Config{
		ClientID:       cfg.ClientID,
		ClientSecret:   cfg.ClientSecret.Value(),
		TokenURL:       tokenURL,
		Scopes:         qualifyScopes(cfg.ScopePrefix, key.ScopeList()),
		EndpointParams: endpointParams(cfg.EndpointParams),
		AuthStyle:      cfg.AuthStyle,
	}

	logging.Debug("OAuth", "Exchanging client credentials for provider=%s scopes=%q", cfg.Name, strings.Join(cc.Scopes, " "))

	issuedAt := p.now()
	started := time.Now()
	raw, err := cc.Token(ctx)
	if err != nil {
		exchangeErr := newAuthExchangeError(cfg.Name, err)
		logging.Error("OAuth", exchangeErr, "Client-credentials exchange failed for provider=%s", cfg.Name)
		return nil, exchangeErr
	}
	if raw.AccessToken == "" {
		return nil, &AuthExchangeError{Provider: cfg.Name, Err: errors.New("token response has no access_token")}
	}

	lifetime := p.defaultLifetime
	if !raw.Expiry.IsZero() {
		// oauth2 stamps Expiry against the wall clock when it parses expires_in.
		lifetime = raw.Expiry.Sub(started)
	}

	token := &Token{
		Value:       NewRedactedToken(raw.AccessToken),
		TokenType:   raw.Type(),
		Scopes:      grantedScopes(raw, cc.Scopes),
		ExpiresAt:   issuedAt.Add(lifetime - p.expiryMargin),
		ProviderKey: key.String(),
	}
	p.store.Put(key, token)

	logging.Info("OAuth", "Acquired token for provider=%s (lifetime %s, usable until %s)",
		cfg.Name, lifetime.Round(time.Second), token.ExpiresAt.Format(time.RFC3339))
	return token, nil
}

func (p *Provider) tokenURL(ctx context.Context, cfg ProviderConfig) (string, error) {
	if cfg.TokenURL != "" {
		return cfg.TokenURL, nil
	}
	md, err := p.metadata.Resolve(ctx, cfg.Issuer)
	if err != nil {
		return "", &AuthExchangeError{Provider: cfg.Name, Err: err}
	}
	return md.TokenEndpoint, nil
}

// qualifyScopes applies the resource-server prefix to bare scopes.
func qualifyScopes(prefix string, scopes []string) []string {
	if prefix == "" {
		return scopes
	}
	prefix = strings.TrimSuffix(prefix, "/")
	out := make([]string, len(scopes))
	for i, s := range scopes {
		if strings.Contains(s, "/") {
			out[i] = s
			continue
		}
		out[i] = prefix + "/" + s
	}
	return out
}

func endpointParams(params map[string]string) url.Values {
	if len(params) == 0 {
		return nil
	}
	v := make(url.Values, len(params))
	for k, val := range params {
		v.Set(k, val)
	}
	return v
}

func grantedScopes(raw *oauth2.Token, requested []string) []string {
	if s, ok := raw.Extra("scope").(string); ok && s != "" {
		return strings.Fields(s)
	}
	return requested
}

func newAuthExchangeError(provider string, err error) *AuthExchangeError {
	exchangeErr := &AuthExchangeError{Provider: provider, Err: err}

	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		exchangeErr.Code = retrieveErr.ErrorCode
		exchangeErr.Description = retrieveErr.ErrorDescription
		if retrieveErr.Response != nil {
			exchangeErr.StatusCode = retrieveErr.Response.StatusCode
		}
	}
	return exchangeErr
}
