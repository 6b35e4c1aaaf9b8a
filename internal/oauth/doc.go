// Package oauth implements the machine-to-machine token lifecycle used by
// toolgate clients and by the runtime invoker.
//
// # Components
//
//   - TokenStore: in-memory cache holding at most one Token per CacheKey
//   - Provider: client-credentials exchange against a configured
//     authorization server, populating the TokenStore
//   - MetadataResolver: RFC 8414 / OpenID discovery of the token endpoint
//     when only an issuer is configured
//
// # Expiry
//
// Token.ExpiresAt is absolute and already has the safety margin (at least
// MinExpiryMargin) subtracted from the server-provided lifetime. TokenStore.Get
// never returns a token at or past ExpiresAt; such entries are removed lazily.
// A caller holding a token keeps using it, and the next Acquire exchanges
// again.
//
// # Concurrency
//
// Acquire calls that miss the cache for the same CacheKey collapse into a
// single exchange through golang.org/x/sync/singleflight. Distinct keys never
// wait on each other. The exchange has its own timeout and survives the
// cancellation of any individual waiter.
//
// # Security
//
// Tokens live only in process memory. Token values and client secrets are
// held in RedactedToken, which formats and marshals as [REDACTED].
package oauth
