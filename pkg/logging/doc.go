// Package logging provides subsystem-tagged structured logging for toolgate.
//
// The package is a thin layer over log/slog. Every entry carries a
// "subsystem" attribute so output can be filtered per component, and an
// optional "error" attribute.
//
// # Usage
//
//	logging.Init(logging.LevelInfo, os.Stderr)
//
//	logging.Info("Gateway", "Listening on %s", addr)
//	logging.Debug("OAuth", "Cache hit for provider=%s", name)
//	logging.Warn("Router", "Tool %q registered more than once", name)
//	logging.Error("Runtime", err, "Invocation of %s failed", target)
//
// # Subsystems
//
//   - OAuth: token acquisition, caching and discovery
//   - Gateway: HTTP and MCP entry points, dispatch outcomes
//   - Router: tool registration and resolution
//   - Runtime: outbound runtime invocations
//   - Client: caller-side sessions
//   - Config: configuration loading and credential watching
//   - App: process wiring and teardown
//
// # Secrets
//
// Bearer tokens must never be passed to these functions in plain form.
// oauth.RedactedToken prints as [REDACTED], and TruncateIdentifier shortens
// session identifiers before they reach the log.
//
// Logging before Init is a no-op.
package logging
