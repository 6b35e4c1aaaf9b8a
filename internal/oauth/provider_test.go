package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

type tokenServer struct {
	*httptest.Server
	calls     atomic.Int32
	lastScope atomic.Value
	delay     time.Duration
	expiresIn int
	release   chan struct{}
	fail      bool
}

func newTokenServer(t *testing.T) *tokenServer {
	t.Helper()
	ts := &tokenServer{expiresIn: 3600}
	ts.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := ts.calls.Add(1)
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		ts.lastScope.Store(r.PostForm.Get("scope"))

		if ts.release != nil {
			<-ts.release
		}
		if ts.delay > 0 {
			time.Sleep(ts.delay)
		}

		w.Header().Set("Content-Type", "application/json")
		if ts.fail {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_client","error_description":"client authentication failed"}`))
			return
		}
		resp := map[string]any{
			"access_token": fmt.Sprintf("token-%d", n),
			"token_type":   "Bearer",
		}
		if ts.expiresIn > 0 {
			resp["expires_in"] = ts.expiresIn
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(ts.Close)
	return ts
}

func testProviderConfig(tokenURL string) ProviderConfig {
	return ProviderConfig{
		Name:         "agentcore-identity-for-gateway",
		TokenURL:     tokenURL,
		ClientID:     "client-id",
		ClientSecret: NewRedactedToken("client-secret"),
		ScopePrefix:  "ResourceServer",
		AuthStyle:    oauth2.AuthStyleInParams,
	}
}

func TestProvider_AcquireCachesToken(t *testing.T) {
	srv := newTokenServer(t)
	p := NewProvider(NewTokenStore(), []ProviderConfig{testProviderConfig(srv.URL)})

	ctx := context.Background()
	first, err := p.Acquire(ctx, "agentcore-identity-for-gateway", []string{"invoke"}, AuthFlowM2M, false)
	require.NoError(t, err)
	second, err := p.Acquire(ctx, "agentcore-identity-for-gateway", []string{"invoke"}, AuthFlowM2M, false)
	require.NoError(t, err)

	assert.Equal(t, int32(1), srv.calls.Load())
	assert.Same(t, first, second)
	assert.Equal(t, "Bearer", first.TokenType)
	assert.Equal(t, []string{"ResourceServer/invoke"}, first.Scopes)
	assert.Equal(t, "ResourceServer/invoke", srv.lastScope.Load())
}

func TestProvider_ForceRefreshExchangesAgain(t *testing.T) {
	srv := newTokenServer(t)
	p := NewProvider(NewTokenStore(), []ProviderConfig{testProviderConfig(srv.URL)})

	ctx := context.Background()
	first, err := p.Acquire(ctx, "agentcore-identity-for-gateway", nil, AuthFlowM2M, false)
	require.NoError(t, err)
	second, err := p.Acquire(ctx, "agentcore-identity-for-gateway", nil, AuthFlowM2M, true)
	require.NoError(t, err)

	assert.Equal(t, int32(2), srv.calls.Load())
	assert.NotEqual(t, first.Value.Value(), second.Value.Value())
}

func TestProvider_ConcurrentMissesShareOneExchange(t *testing.T) {
	srv := newTokenServer(t)
	srv.delay = 50 * time.Millisecond
	p := NewProvider(NewTokenStore(), []ProviderConfig{testProviderConfig(srv.URL)})

	const callers = 20
	start := make(chan struct{})
	tokens := make([]*Token, callers)
	errs := make([]error, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			tokens[i], errs[i] = p.Acquire(context.Background(), "agentcore-identity-for-gateway", []string{"invoke"}, AuthFlowM2M, false)
		}(i)
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), srv.calls.Load(), "exactly one exchange expected")
	for i := range tokens {
		require.NoError(t, errs[i])
		assert.Equal(t, tokens[0].Value.Value(), tokens[i].Value.Value())
	}
}

func TestProvider_DistinctKeysDoNotBlockEachOther(t *testing.T) {
	srv := newTokenServer(t)
	srv.release = make(chan struct{})
	p := NewProvider(NewTokenStore(), []ProviderConfig{testProviderConfig(srv.URL)})

	blocked := make(chan error, 1)
	go func() {
		_, err := p.Acquire(context.Background(), "agentcore-identity-for-gateway", []string{"slow"}, AuthFlowM2M, false)
		blocked <- err
	}()

	// Wait until the slow exchange reached the server.
	require.Eventually(t, func() bool { return srv.calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	// A second key must get its own exchange even though the first is still running.
	done := make(chan error, 1)
	go func() {
		_, err := p.Acquire(context.Background(), "agentcore-identity-for-gateway", []string{"fast"}, AuthFlowM2M, false)
		done <- err
	}()
	require.Eventually(t, func() bool { return srv.calls.Load() == 2 }, time.Second, 5*time.Millisecond)

	close(srv.release)
	require.NoError(t, <-done)
	require.NoError(t, <-blocked)
}

func TestProvider_ExpiredTokenTriggersFreshExchange(t *testing.T) {
	srv := newTokenServer(t)
	srv.expiresIn = 60
	clock := newFakeClock()
	store := NewTokenStore(WithStoreClock(clock.Now))
	p := NewProvider(store, []ProviderConfig{testProviderConfig(srv.URL)}, WithClock(clock.Now))

	ctx := context.Background()
	first, err := p.Acquire(ctx, "agentcore-identity-for-gateway", nil, AuthFlowM2M, false)
	require.NoError(t, err)

	// 60s lifetime minus the 30s margin.
	assert.WithinDuration(t, clock.Now().Add(30*time.Second), first.ExpiresAt, 2*time.Second)

	clock.Advance(31 * time.Second)

	second, err := p.Acquire(ctx, "agentcore-identity-for-gateway", nil, AuthFlowM2M, false)
	require.NoError(t, err)
	assert.Equal(t, int32(2), srv.calls.Load())
	assert.NotEqual(t, first.Value.Value(), second.Value.Value())
}

func TestProvider_MissingExpiresInUsesDefaultLifetime(t *testing.T) {
	srv := newTokenServer(t)
	srv.expiresIn = 0
	clock := newFakeClock()
	p := NewProvider(NewTokenStore(WithStoreClock(clock.Now)), []ProviderConfig{testProviderConfig(srv.URL)},
		WithClock(clock.Now), WithDefaultLifetime(10*time.Minute))

	token, err := p.Acquire(context.Background(), "agentcore-identity-for-gateway", nil, AuthFlowM2M, false)
	require.NoError(t, err)
	assert.Equal(t, clock.Now().Add(10*time.Minute-30*time.Second), token.ExpiresAt)
}

func TestProvider_ExpiryMarginHasFloor(t *testing.T) {
	p := NewProvider(NewTokenStore(), nil, WithExpiryMargin(time.Second))
	assert.Equal(t, MinExpiryMargin, p.expiryMargin)

	p = NewProvider(NewTokenStore(), nil, WithExpiryMargin(2*time.Minute))
	assert.Equal(t, 2*time.Minute, p.expiryMargin)
}

func TestProvider_RejectedGrant(t *testing.T) {
	srv := newTokenServer(t)
	srv.fail = true
	p := NewProvider(NewTokenStore(), []ProviderConfig{testProviderConfig(srv.URL)})

	_, err := p.Acquire(context.Background(), "agentcore-identity-for-gateway", []string{"invoke"}, AuthFlowM2M, false)
	require.Error(t, err)
	assert.True(t, IsAuthExchangeError(err))

	var exchangeErr *AuthExchangeError
	require.True(t, errors.As(err, &exchangeErr))
	assert.Equal(t, http.StatusBadRequest, exchangeErr.StatusCode)
	assert.Equal(t, "invalid_client", exchangeErr.Code)
	assert.Equal(t, 0, p.Store().Len(), "failures must not be cached")
}

func TestProvider_NetworkFailure(t *testing.T) {
	srv := newTokenServer(t)
	url := srv.URL
	srv.Close()

	p := NewProvider(NewTokenStore(), []ProviderConfig{testProviderConfig(url)})
	_, err := p.Acquire(context.Background(), "agentcore-identity-for-gateway", nil, AuthFlowM2M, false)
	assert.True(t, IsAuthExchangeError(err))
}

func TestProvider_WaiterCancellation(t *testing.T) {
	srv := newTokenServer(t)
	srv.release = make(chan struct{})
	p := NewProvider(NewTokenStore(), []ProviderConfig{testProviderConfig(srv.URL)})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := p.Acquire(ctx, "agentcore-identity-for-gateway", nil, AuthFlowM2M, false)
		errCh <- err
	}()

	require.Eventually(t, func() bool { return srv.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	cancel()

	err := <-errCh
	assert.True(t, IsAuthExchangeError(err))
	assert.ErrorIs(t, err, context.Canceled)

	// The detached exchange still completes and populates the cache.
	close(srv.release)
	require.Eventually(t, func() bool { return p.Store().Len() == 1 }, time.Second, 5*time.Millisecond)
}

func TestProvider_ConfigurationErrors(t *testing.T) {
	tests := []struct {
		name     string
		configs  []ProviderConfig
		provider string
		flow     AuthFlow
	}{
		{
			name:     "unknown provider",
			provider: "missing",
			flow:     AuthFlowM2M,
		},
		{
			name:     "missing client secret",
			configs:  []ProviderConfig{{Name: "p", ClientID: "id", TokenURL: "http://127.0.0.1/token"}},
			provider: "p",
			flow:     AuthFlowM2M,
		},
		{
			name:     "missing token endpoint and issuer",
			configs:  []ProviderConfig{{Name: "p", ClientID: "id", ClientSecret: NewRedactedToken("s")}},
			provider: "p",
			flow:     AuthFlowM2M,
		},
		{
			name:     "unsupported flow",
			configs:  []ProviderConfig{testProviderConfig("http://127.0.0.1/token")},
			provider: "agentcore-identity-for-gateway",
			flow:     AuthFlow("USER_FEDERATION"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewProvider(NewTokenStore(), tt.configs)
			_, err := p.Acquire(context.Background(), tt.provider, nil, tt.flow, false)
			assert.True(t, IsConfigurationError(err), "got %v", err)
		})
	}
}

func TestProvider_Validate(t *testing.T) {
	p := NewProvider(NewTokenStore(), []ProviderConfig{
		testProviderConfig("http://127.0.0.1/token"),
		{Name: "broken"},
	})

	err := p.Validate()
	require.Error(t, err)
	assert.True(t, IsConfigurationError(err))
	assert.Contains(t, err.Error(), "clientId")
	assert.Contains(t, err.Error(), "clientSecret")
	assert.NotContains(t, err.Error(), "agentcore-identity-for-gateway")
}

func TestProvider_UpdateClientSecretDropsTokens(t *testing.T) {
	srv := newTokenServer(t)
	p := NewProvider(NewTokenStore(), []ProviderConfig{testProviderConfig(srv.URL)})

	_, err := p.Acquire(context.Background(), "agentcore-identity-for-gateway", nil, AuthFlowM2M, false)
	require.NoError(t, err)
	require.Equal(t, 1, p.Store().Len())

	require.NoError(t, p.UpdateClientSecret("agentcore-identity-for-gateway", NewRedactedToken("rotated")))
	assert.Equal(t, 0, p.Store().Len())

	assert.True(t, IsConfigurationError(p.UpdateClientSecret("missing", NewRedactedToken("x"))))
}

func TestProvider_DiscoversTokenEndpoint(t *testing.T) {
	tokens := newTokenServer(t)

	var wellKnownHits atomic.Int32
	issuer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		wellKnownHits.Add(1)
		if r.URL.Path != "/.well-known/openid-configuration" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(Metadata{Issuer: "issuer", TokenEndpoint: tokens.URL})
	}))
	defer issuer.Close()

	cfg := testProviderConfig("")
	cfg.Issuer = issuer.URL
	p := NewProvider(NewTokenStore(), []ProviderConfig{cfg})

	_, err := p.Acquire(context.Background(), cfg.Name, []string{"a"}, AuthFlowM2M, false)
	require.NoError(t, err)
	_, err = p.Acquire(context.Background(), cfg.Name, []string{"b"}, AuthFlowM2M, false)
	require.NoError(t, err)

	assert.Equal(t, int32(2), tokens.calls.Load())
	assert.Equal(t, int32(2), wellKnownHits.Load(), "metadata should be fetched once and cached")
}

func TestQualifyScopes(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, qualifyScopes("", []string{"a", "b"}))
	assert.Equal(t, []string{"RS/a", "other/b"}, qualifyScopes("RS/", []string{"a", "other/b"}))
}
