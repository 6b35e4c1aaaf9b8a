package config

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/giantswarm/toolgate/internal/oauth"
)

// Config is the top-level configuration structure for toolgate.
type Config struct {
	Gateway GatewayConfig `yaml:"gateway"`
	OAuth   OAuthConfig   `yaml:"oauth"`
	Client  ClientConfig  `yaml:"client"`
}

// GatewayConfig configures the serving side.
type GatewayConfig struct {
	Name           string           `yaml:"name,omitempty"`
	ListenAddr     string           `yaml:"listenAddr,omitempty"`
	MCPPath        string           `yaml:"mcpPath,omitempty"`
	InvokePath     string           `yaml:"invokePath,omitempty"`
	DefaultTimeout Duration         `yaml:"defaultTimeout,omitempty"`
	Authorizer     AuthorizerConfig `yaml:"authorizer,omitempty"`
	Targets        []TargetConfig   `yaml:"targets,omitempty"`
}

// AuthorizerConfig enables JWT verification of inbound requests. It is
// active when DiscoveryURL is set and Disabled is false.
type AuthorizerConfig struct {
	DiscoveryURL   string   `yaml:"discoveryUrl,omitempty"`
	AllowedClients []string `yaml:"allowedClients,omitempty"`
	RequiredScopes []string `yaml:"requiredScopes,omitempty"`
	Disabled       bool     `yaml:"disabled,omitempty"`
}

// Enabled reports whether inbound tokens are verified.
func (a AuthorizerConfig) Enabled() bool {
	return a.DiscoveryURL != "" && !a.Disabled
}

// TargetConfig groups the tools served by one runtime.
type TargetConfig struct {
	Name    string        `yaml:"name"`
	Runtime RuntimeConfig `yaml:"runtime"`
	Tools   []ToolConfig  `yaml:"tools"`
}

// RuntimeConfig locates the downstream runtime of a target.
type RuntimeConfig struct {
	ARN       string   `yaml:"arn"`
	Endpoint  string   `yaml:"endpoint"`
	Qualifier string   `yaml:"qualifier,omitempty"`
	Timeout   Duration `yaml:"timeout,omitempty"`
	// TokenProvider names the OAuth provider whose token authenticates
	// runtime calls. Empty sends no Authorization header.
	TokenProvider string   `yaml:"tokenProvider,omitempty"`
	TokenScopes   []string `yaml:"tokenScopes,omitempty"`
}

// ToolConfig registers one tool. The input schema comes from SchemaFile or
// the inline InputSchema; after loading it is available as Schema.
type ToolConfig struct {
	Name            string         `yaml:"name"`
	Description     string         `yaml:"description,omitempty"`
	SchemaFile      string         `yaml:"schemaFile,omitempty"`
	InputSchema     map[string]any `yaml:"inputSchema,omitempty"`
	PayloadTemplate string         `yaml:"payloadTemplate,omitempty"`
	Timeout         Duration       `yaml:"timeout,omitempty"`

	Schema json.RawMessage `yaml:"-"`
}

// OAuthConfig configures the token provider.
type OAuthConfig struct {
	ExpiryMargin    Duration         `yaml:"expiryMargin,omitempty"`
	DefaultLifetime Duration         `yaml:"defaultLifetime,omitempty"`
	ExchangeTimeout Duration         `yaml:"exchangeTimeout,omitempty"`
	CleanupInterval Duration         `yaml:"cleanupInterval,omitempty"`
	Providers       []ProviderConfig `yaml:"providers,omitempty"`
}

// Provider returns the provider called name.
func (o OAuthConfig) Provider(name string) (ProviderConfig, bool) {
	for _, p := range o.Providers {
		if p.Name == name {
			return p, true
		}
	}
	return ProviderConfig{}, false
}

// ProviderConfig is one OAuth client registration. ClientSecret may
// reference environment variables; ClientSecretFile takes precedence and is
// watched for rotation.
type ProviderConfig struct {
	Name             string            `yaml:"name"`
	Issuer           string            `yaml:"issuer,omitempty"`
	TokenURL         string            `yaml:"tokenUrl,omitempty"`
	ClientID         string            `yaml:"clientId"`
	ClientSecret     string            `yaml:"clientSecret,omitempty"`
	ClientSecretFile string            `yaml:"clientSecretFile,omitempty"`
	ScopePrefix      string            `yaml:"scopePrefix,omitempty"`
	AuthStyle        string            `yaml:"authStyle,omitempty"`
	EndpointParams   map[string]string `yaml:"endpointParams,omitempty"`

	// Secret is the resolved client secret. It is never marshalled.
	Secret oauth.RedactedToken `yaml:"-"`
}

// ClientConfig configures the calling side.
type ClientConfig struct {
	GatewayURL string   `yaml:"gatewayUrl,omitempty"`
	Provider   string   `yaml:"provider,omitempty"`
	Scopes     []string `yaml:"scopes,omitempty"`
	AuthFlow   string   `yaml:"authFlow,omitempty"`
	Timeout    Duration `yaml:"timeout,omitempty"`
}

// Duration is a time.Duration written as "30s" or "2m" in YAML.
type Duration time.Duration

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

func (d Duration) String() string {
	return time.Duration(d).String()
}

// UnmarshalYAML accepts duration strings and plain integers of seconds.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("invalid duration at line %d: expected a scalar", value.Line)
	}

	if seconds, err := strconv.ParseInt(value.Value, 10, 64); err == nil {
		*d = Duration(time.Duration(seconds) * time.Second)
		return nil
	}

	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q at line %d: %w", value.Value, value.Line, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML writes the duration in its string form.
func (d Duration) MarshalYAML() (any, error) {
	return d.String(), nil
}
