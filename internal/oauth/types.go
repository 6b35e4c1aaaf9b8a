package oauth

import (
	"sort"
	"strings"
	"time"
)

// AuthFlow names the OAuth grant used to obtain a token.
type AuthFlow string

// AuthFlowM2M is the client-credentials grant, where a service authenticates
// as itself.
const AuthFlowM2M AuthFlow = "M2M"

// RedactedToken holds a credential string that must not leak into logs,
// error messages or serialized output.
//
// All formatting and marshaling paths print [REDACTED]. The raw value is only
// available through Value, which callers use when building an Authorization
// header.
type RedactedToken struct {
	value string
}

// NewRedactedToken wraps value.
func NewRedactedToken(value string) RedactedToken {
	return RedactedToken{value: value}
}

// Value returns the raw credential. Never log the result.
func (t RedactedToken) Value() string {
	return t.value
}

// IsEmpty reports whether no credential is held.
func (t RedactedToken) IsEmpty() bool {
	return t.value == ""
}

func (t RedactedToken) String() string {
	return "[REDACTED]"
}

func (t RedactedToken) GoString() string {
	return "oauth.RedactedToken{[REDACTED]}"
}

func (t RedactedToken) MarshalText() ([]byte, error) {
	return []byte("[REDACTED]"), nil
}

func (t RedactedToken) MarshalJSON() ([]byte, error) {
	return []byte(`"[REDACTED]"`), nil
}

// Token is a bearer credential obtained from an authorization server.
//
// ExpiresAt is absolute and already has the safety margin subtracted, so a
// token is usable exactly while now is before ExpiresAt.
type Token struct {
	Value       RedactedToken `json:"value"`
	TokenType   string        `json:"tokenType"`
	Scopes      []string      `json:"scopes"`
	ExpiresAt   time.Time     `json:"expiresAt"`
	ProviderKey string        `json:"providerKey"`
}

// IsExpired reports whether the token is no longer usable at now.
func (t *Token) IsExpired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// AuthorizationHeader renders the value for an HTTP Authorization header.
func (t *Token) AuthorizationHeader() string {
	return "Bearer " + t.Value.Value()
}

// CacheKey identifies tokens that are interchangeable: same provider, same
// scope set and same grant. It is comparable and used directly as a map key.
type CacheKey struct {
	Provider string
	Scopes   string
	Flow     AuthFlow
}

// NewCacheKey builds a key with the scopes sorted and deduplicated, so the
// order in which a caller lists scopes does not affect sharing.
func NewCacheKey(provider string, scopes []string, flow AuthFlow) CacheKey {
	if flow == "" {
		flow = AuthFlowM2M
	}
	return CacheKey{
		Provider: provider,
		Scopes:   strings.Join(normalizeScopes(scopes), " "),
		Flow:     flow,
	}
}

// ScopeList returns the normalized scopes held by the key.
func (k CacheKey) ScopeList() []string {
	if k.Scopes == "" {
		return nil
	}
	return strings.Split(k.Scopes, " ")
}

func (k CacheKey) String() string {
	return k.Provider + "|" + k.Scopes + "|" + string(k.Flow)
}

func normalizeScopes(scopes []string) []string {
	seen := make(map[string]struct{}, len(scopes))
	out := make([]string, 0, len(scopes))
	for _, s := range scopes {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Metadata is the subset of RFC 8414 authorization server metadata (or its
// OpenID Connect equivalent) needed for the client-credentials grant.
type Metadata struct {
	Issuer                            string   `json:"issuer"`
	TokenEndpoint                     string   `json:"token_endpoint"`
	JwksURI                           string   `json:"jwks_uri,omitempty"`
	ScopesSupported                   []string `json:"scopes_supported,omitempty"`
	GrantTypesSupported               []string `json:"grant_types_supported,omitempty"`
	TokenEndpointAuthMethodsSupported []string `json:"token_endpoint_auth_methods_supported,omitempty"`
}
