package oauth

import (
	"context"
	"sync"
	"time"

	"github.com/giantswarm/toolgate/pkg/logging"
)

// TokenStore provides thread-safe in-memory storage for OAuth tokens.
// It holds at most one token per CacheKey and never touches the network.
type TokenStore struct {
	mu     sync.RWMutex
	tokens map[CacheKey]*Token
	now    func() time.Time
}

// StoreOption configures a TokenStore.
type StoreOption func(*TokenStore)

// WithStoreClock replaces time.Now for expiry checks.
func WithStoreClock(now func() time.Time) StoreOption {
	return func(ts *TokenStore) {
		ts.now = now
	}
}

// NewTokenStore creates an empty in-memory token store.
func NewTokenStore(opts ...StoreOption) *TokenStore {
	ts := &TokenStore{
		tokens: make(map[CacheKey]*Token),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(ts)
	}
	return ts
}

// Get returns the token for key if one exists and has not expired.
// An expired entry is removed on the way out.
func (ts *TokenStore) Get(key CacheKey) (*Token, bool) {
	ts.mu.RLock()
	token, exists := ts.tokens[key]
	ts.mu.RUnlock()

	if !exists {
		return nil, false
	}

	if !token.IsExpired(ts.now()) {
		return token, true
	}

	ts.mu.Lock()
	// Another writer may have replaced the entry since the read lock was dropped.
	if current, ok := ts.tokens[key]; ok && current == token {
		delete(ts.tokens, key)
		logging.Debug("OAuth", "Dropped expired token for provider=%s scopes=%q", key.Provider, key.Scopes)
	}
	ts.mu.Unlock()

	return nil, false
}

// Put stores token under key, replacing any previous entry.
func (ts *TokenStore) Put(key CacheKey, token *Token) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	ts.tokens[key] = token
	logging.Debug("OAuth", "Stored token for provider=%s scopes=%q (expires: %v)",
		key.Provider, key.Scopes, token.ExpiresAt)
}

// Invalidate removes the token for key.
func (ts *TokenStore) Invalidate(key CacheKey) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	delete(ts.tokens, key)
	logging.Debug("OAuth", "Invalidated token for provider=%s scopes=%q", key.Provider, key.Scopes)
}

// InvalidateProvider removes every token issued through the named provider.
func (ts *TokenStore) InvalidateProvider(provider string) int {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	count := 0
	for key := range ts.tokens {
		if key.Provider == provider {
			delete(ts.tokens, key)
			count++
		}
	}
	logging.Debug("OAuth", "Invalidated %d tokens for provider=%s", count, provider)
	return count
}

// Len returns the number of entries, including expired ones not yet removed.
func (ts *TokenStore) Len() int {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	return len(ts.tokens)
}

// Cleanup removes all expired tokens.
func (ts *TokenStore) Cleanup() int {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	now := ts.now()
	count := 0
	for key, token := range ts.tokens {
		if token.IsExpired(now) {
			delete(ts.tokens, key)
			count++
		}
	}

	if count > 0 {
		logging.Debug("OAuth", "Cleaned up %d expired tokens", count)
	}
	return count
}

// RunCleanup calls Cleanup every interval until ctx is done.
func (ts *TokenStore) RunCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ts.Cleanup()
		case <-ctx.Done():
			return
		}
	}
}
