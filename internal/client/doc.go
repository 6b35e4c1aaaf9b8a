// Package client is the calling side of the gateway: it opens an MCP session
// authenticated with a machine-to-machine token, discovers the gateway's
// tools and invokes them by name.
//
// # Usage
//
//	session, err := client.Open(ctx, client.Config{
//		GatewayURL: "https://gateway.example.com/mcp",
//		Provider:   "agentcore-identity-for-gateway",
//		Scopes:     []string{"invoke"},
//	}, provider)
//	if err != nil {
//		return err
//	}
//	defer session.Close()
//
//	result, err := session.Invoke(ctx, "aws_cost_estimation", map[string]any{
//		"architecture_description": "ALB + 2x EC2 t3.medium",
//	})
//
// # Tool matching
//
// Invoke looks the requested name up in the discovered tool list in three
// passes: an exact match, then a tool whose name after the last "___" is the
// requested name, then a single tool whose name contains it. Anything else is
// a ToolNotFoundError.
//
// # Token refresh
//
// A 401 from the gateway triggers exactly one forced token refresh and
// reconnect, after which the call is retried once. A second 401 surfaces as
// an UnauthenticatedError. Every other failure is returned unchanged so callers
// can apply their own retry policy.
package client
