package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/giantswarm/toolgate/pkg/logging"
)

// metadataCacheTTL is how long discovered metadata is reused before the
// issuer is asked again.
const metadataCacheTTL = 30 * time.Minute

type metadataCacheEntry struct {
	metadata  *Metadata
	fetchedAt time.Time
}

// MetadataResolver discovers authorization server metadata for an issuer.
// Results are cached per issuer and concurrent lookups for the same issuer
// share one request.
type MetadataResolver struct {
	httpClient *http.Client

	mu    sync.RWMutex
	cache map[string]*metadataCacheEntry
	group singleflight.Group
}

// NewMetadataResolver creates a resolver that uses httpClient, or a client
// with a 30 second timeout when httpClient is nil.
func NewMetadataResolver(httpClient *http.Client) *MetadataResolver {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &MetadataResolver{
		httpClient: httpClient,
		cache:      make(map[string]*metadataCacheEntry),
	}
}

// Resolve returns the metadata for issuer.
func (r *MetadataResolver) Resolve(ctx context.Context, issuer string) (*Metadata, error) {
	if md, ok := r.cached(issuer); ok {
		return md, nil
	}

	result, err, _ := r.group.Do(issuer, func() (interface{}, error) {
		if md, ok := r.cached(issuer); ok {
			return md, nil
		}
		return r.fetch(ctx, issuer)
	})
	if err != nil {
		return nil, err
	}
	return result.(*Metadata), nil
}

func (r *MetadataResolver) cached(issuer string) (*Metadata, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.cache[issuer]
	if !ok {
		return nil, false
	}
	if time.Since(entry.fetchedAt) >= metadataCacheTTL {
		logging.Debug("OAuth", "Metadata cache expired for issuer=%s, refreshing", issuer)
		return nil, false
	}
	return entry.metadata, true
}

func (r *MetadataResolver) fetch(ctx context.Context, issuer string) (*Metadata, error) {
	base := strings.TrimSuffix(issuer, "/")

	var lastErr error
	for _, path := range []string{"/.well-known/oauth-authorization-server", "/.well-known/openid-configuration"} {
		md, err := r.fetchDocument(ctx, base+path)
		if err != nil {
			lastErr = err
			continue
		}
		if md.TokenEndpoint == "" {
			lastErr = fmt.Errorf("metadata at %s has no token_endpoint", base+path)
			continue
		}

		r.mu.Lock()
		r.cache[issuer] = &metadataCacheEntry{metadata: md, fetchedAt: time.Now()}
		r.mu.Unlock()

		logging.Debug("OAuth", "Fetched OAuth metadata for issuer=%s (token=%s)", issuer, md.TokenEndpoint)
		return md, nil
	}
	return nil, fmt.Errorf("failed to discover metadata for issuer %s: %w", issuer, lastErr)
}

func (r *MetadataResolver) fetchDocument(ctx context.Context, url string) (*Metadata, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: status=%d", url, resp.StatusCode)
	}

	var md Metadata
	if err := json.NewDecoder(resp.Body).Decode(&md); err != nil {
		return nil, fmt.Errorf("failed to parse OAuth metadata: %w", err)
	}
	return &md, nil
}
