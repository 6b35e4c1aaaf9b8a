package config

import (
	"encoding/json"
	"time"

	"github.com/giantswarm/toolgate/internal/runtime"
)

const (
	DefaultListenAddr      = ":8080"
	DefaultMCPPath         = "/mcp"
	DefaultInvokePath      = "/invoke"
	DefaultToolTimeout     = 120 * time.Second
	DefaultExpiryMargin    = 30 * time.Second
	DefaultLifetime        = time.Hour
	DefaultExchangeTimeout = 10 * time.Second
	DefaultCleanupInterval = 5 * time.Minute
	DefaultClientTimeout   = 2 * time.Minute

	// DefaultTargetName and DefaultToolName identify the built-in
	// registration used when no targets are configured.
	DefaultTargetName = "AWSCostEstimationLambdaTarget"
	DefaultToolName   = "aws_cost_estimation"
)

// defaultToolSchema is the input schema of the built-in cost estimation tool.
var defaultToolSchema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "architecture_description": {
      "type": "string",
      "description": "Description of the AWS architecture to estimate costs for"
    }
  },
  "required": ["architecture_description"]
}`)

// GetDefaultConfig returns the default configuration.
func GetDefaultConfig() Config {
	return Config{
		Gateway: GatewayConfig{
			Name:           "toolgate",
			ListenAddr:     DefaultListenAddr,
			MCPPath:        DefaultMCPPath,
			InvokePath:     DefaultInvokePath,
			DefaultTimeout: Duration(DefaultToolTimeout),
		},
		OAuth: OAuthConfig{
			ExpiryMargin:    Duration(DefaultExpiryMargin),
			DefaultLifetime: Duration(DefaultLifetime),
			ExchangeTimeout: Duration(DefaultExchangeTimeout),
			CleanupInterval: Duration(DefaultCleanupInterval),
		},
		Client: ClientConfig{
			AuthFlow: "M2M",
			Timeout:  Duration(DefaultClientTimeout),
		},
	}
}

// DefaultTargets is the registration used when the configuration names no
// targets: the cost estimation tool, with its runtime located through the
// environment.
func DefaultTargets() []TargetConfig {
	return []TargetConfig{{
		Name: DefaultTargetName,
		Runtime: RuntimeConfig{
			ARN:       "${TOOLGATE_RUNTIME_ARN}",
			Endpoint:  "${TOOLGATE_RUNTIME_ENDPOINT}",
			Qualifier: runtime.DefaultQualifier,
		},
		Tools: []ToolConfig{{
			Name:            DefaultToolName,
			Description:     "Estimate the monthly AWS cost of an architecture description",
			PayloadTemplate: runtime.DefaultPayloadTemplate,
			Schema:          append(json.RawMessage(nil), defaultToolSchema...),
		}},
	}}
}
