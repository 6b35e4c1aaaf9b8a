package oauth

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is a manually advanced clock shared by store and provider tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestTokenStore_PutAndGet(t *testing.T) {
	clock := newFakeClock()
	ts := NewTokenStore(WithStoreClock(clock.Now))

	key := NewCacheKey("agentcore-identity-for-gateway", []string{"invoke"}, AuthFlowM2M)
	token := &Token{
		Value:     NewRedactedToken("access-token-abc"),
		TokenType: "Bearer",
		ExpiresAt: clock.Now().Add(time.Hour),
	}

	ts.Put(key, token)

	got, ok := ts.Get(key)
	require.True(t, ok)
	assert.Equal(t, "access-token-abc", got.Value.Value())
	assert.Equal(t, 1, ts.Len())
}

func TestTokenStore_GetNonExistent(t *testing.T) {
	ts := NewTokenStore()

	got, ok := ts.Get(NewCacheKey("missing", nil, AuthFlowM2M))
	assert.False(t, ok)
	assert.Nil(t, got)
}

func TestTokenStore_ExpiredTokenIsNeverReturned(t *testing.T) {
	clock := newFakeClock()
	ts := NewTokenStore(WithStoreClock(clock.Now))

	key := NewCacheKey("p", []string{"a"}, AuthFlowM2M)
	ts.Put(key, &Token{Value: NewRedactedToken("v"), ExpiresAt: clock.Now().Add(time.Minute)})

	_, ok := ts.Get(key)
	require.True(t, ok)

	clock.Advance(time.Minute)

	got, ok := ts.Get(key)
	assert.False(t, ok, "token at exactly ExpiresAt must be treated as absent")
	assert.Nil(t, got)
	assert.Equal(t, 0, ts.Len(), "expired entry should be removed lazily")
}

func TestTokenStore_HolderKeepsExpiredValue(t *testing.T) {
	clock := newFakeClock()
	ts := NewTokenStore(WithStoreClock(clock.Now))

	key := NewCacheKey("p", nil, AuthFlowM2M)
	ts.Put(key, &Token{Value: NewRedactedToken("held"), ExpiresAt: clock.Now().Add(time.Second)})

	held, ok := ts.Get(key)
	require.True(t, ok)

	clock.Advance(2 * time.Second)
	_, ok = ts.Get(key)
	assert.False(t, ok)
	assert.Equal(t, "held", held.Value.Value())
}

func TestTokenStore_Invalidate(t *testing.T) {
	ts := NewTokenStore()
	key := NewCacheKey("p", []string{"a"}, AuthFlowM2M)
	ts.Put(key, &Token{ExpiresAt: time.Now().Add(time.Hour)})

	ts.Invalidate(key)

	_, ok := ts.Get(key)
	assert.False(t, ok)
}

func TestTokenStore_InvalidateProvider(t *testing.T) {
	ts := NewTokenStore()
	future := time.Now().Add(time.Hour)

	ts.Put(NewCacheKey("a", []string{"x"}, AuthFlowM2M), &Token{ExpiresAt: future})
	ts.Put(NewCacheKey("a", []string{"y"}, AuthFlowM2M), &Token{ExpiresAt: future})
	ts.Put(NewCacheKey("b", []string{"x"}, AuthFlowM2M), &Token{ExpiresAt: future})

	assert.Equal(t, 2, ts.InvalidateProvider("a"))
	assert.Equal(t, 1, ts.Len())

	_, ok := ts.Get(NewCacheKey("b", []string{"x"}, AuthFlowM2M))
	assert.True(t, ok)
}

func TestTokenStore_Cleanup(t *testing.T) {
	clock := newFakeClock()
	ts := NewTokenStore(WithStoreClock(clock.Now))

	ts.Put(NewCacheKey("a", nil, AuthFlowM2M), &Token{ExpiresAt: clock.Now().Add(time.Minute)})
	ts.Put(NewCacheKey("b", nil, AuthFlowM2M), &Token{ExpiresAt: clock.Now().Add(time.Hour)})

	clock.Advance(2 * time.Minute)

	assert.Equal(t, 1, ts.Cleanup())
	assert.Equal(t, 1, ts.Len())
}

func TestTokenStore_RunCleanupStopsWithContext(t *testing.T) {
	ts := NewTokenStore()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		ts.RunCleanup(ctx, time.Millisecond)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("RunCleanup did not return after cancellation")
	}
}

func TestTokenStore_ConcurrentAccess(t *testing.T) {
	ts := NewTokenStore()
	key := NewCacheKey("p", []string{"a"}, AuthFlowM2M)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(3)
		go func() {
			defer wg.Done()
			ts.Put(key, &Token{ExpiresAt: time.Now().Add(time.Hour)})
		}()
		go func() {
			defer wg.Done()
			ts.Get(key)
		}()
		go func() {
			defer wg.Done()
			ts.Invalidate(key)
		}()
	}
	wg.Wait()
}

func TestNewCacheKey_Normalizes(t *testing.T) {
	a := NewCacheKey("p", []string{"b", "a", "b", " "}, "")
	b := NewCacheKey("p", []string{"a", "b"}, AuthFlowM2M)

	assert.Equal(t, a, b)
	assert.Equal(t, []string{"a", "b"}, a.ScopeList())
	assert.Equal(t, "p|a b|M2M", a.String())
	assert.Nil(t, NewCacheKey("p", nil, AuthFlowM2M).ScopeList())
}
