// Package gateway resolves composite tool identifiers and dispatches
// authenticated tool calls to runtimes.
//
// Identifiers have the form <target>___<tool> or just <tool>; the Router
// strips everything up to the last separator and looks the remainder up
// exactly. The Dispatcher turns every call, including failures and panics,
// into an InvocationResult:
//
//	401  missing or malformed bearer header
//	400  unknown tool, or required argument absent/null/empty
//	500  payload or runtime failure, body "Error: <message>"
//	200  runtime reply
//
// Server publishes the dispatcher over MCP streamable HTTP and a JSON
// /invoke endpoint, optionally behind an Authorizer that verifies JWTs
// against an OpenID provider.
package gateway
