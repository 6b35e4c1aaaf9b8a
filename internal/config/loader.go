package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/giantswarm/toolgate/internal/oauth"
	"github.com/giantswarm/toolgate/pkg/logging"

	"gopkg.in/yaml.v3"
)

const (
	userConfigDir  = ".config/toolgate"
	configFileName = "config.yaml"
)

func GetDefaultConfigPathOrPanic() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		panic(fmt.Errorf("could not determine user config directory: %w", err))
	}

	return filepath.Join(homeDir, userConfigDir)
}

// LoadConfig loads config.yaml from configPath over the defaults, then
// resolves secrets, tool schemas and environment references. A missing file
// yields the defaults.
func LoadConfig(configPath string) (Config, error) {
	configFilePath := filepath.Join(configPath, configFileName)
	config := GetDefaultConfig()

	data, err := os.ReadFile(configFilePath)
	switch {
	case errors.Is(err, os.ErrNotExist):
		logging.Info("ConfigLoader", "No config.yaml found at %s, using defaults", configFilePath)
	case err != nil:
		return Config{}, newConfigurationError(configFilePath, ErrorTypeIO, "cannot read configuration", err)
	default:
		if err := yaml.Unmarshal(data, &config); err != nil {
			return Config{}, newConfigurationError(configFilePath, ErrorTypeParse, "malformed configuration", err,
				"Durations are written like 30s or 2m", "Check indentation of nested blocks")
		}
		logging.Info("ConfigLoader", "Loaded configuration from %s", configFilePath)
	}

	if err := resolve(&config, configPath); err != nil {
		return Config{}, err
	}
	return config, nil
}

// Parse decodes a configuration document and resolves it relative to
// baseDir, as LoadConfig does for files.
func Parse(data []byte, baseDir string) (Config, error) {
	config := GetDefaultConfig()
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Config{}, newConfigurationError("<inline>", ErrorTypeParse, "malformed configuration", err)
	}
	if err := resolve(&config, baseDir); err != nil {
		return Config{}, err
	}
	return config, nil
}

func resolve(config *Config, baseDir string) error {
	if len(config.Gateway.Targets) == 0 {
		config.Gateway.Targets = DefaultTargets()
	}

	for i := range config.OAuth.Providers {
		if err := resolveSecret(&config.OAuth.Providers[i], baseDir); err != nil {
			return err
		}
	}

	for ti := range config.Gateway.Targets {
		target := &config.Gateway.Targets[ti]
		target.Runtime.ARN = os.ExpandEnv(target.Runtime.ARN)
		target.Runtime.Endpoint = os.ExpandEnv(target.Runtime.Endpoint)

		for i := range target.Tools {
			if err := resolveSchema(&target.Tools[i], baseDir); err != nil {
				return err
			}
		}
	}

	config.Gateway.Authorizer.DiscoveryURL = os.ExpandEnv(config.Gateway.Authorizer.DiscoveryURL)
	config.Client.GatewayURL = os.ExpandEnv(config.Client.GatewayURL)
	return nil
}

// resolveSecret fills p.Secret from the secret file or the expanded inline
// value, then clears the inline value so it cannot be marshalled back out.
func resolveSecret(p *ProviderConfig, baseDir string) error {
	p.ClientID = os.ExpandEnv(p.ClientID)
	p.Issuer = os.ExpandEnv(p.Issuer)
	p.TokenURL = os.ExpandEnv(p.TokenURL)

	if p.ClientSecretFile != "" {
		p.ClientSecretFile = resolvePath(baseDir, os.ExpandEnv(p.ClientSecretFile))
		secret, err := ReadSecretFile(p.ClientSecretFile)
		if err != nil {
			return err
		}
		p.Secret = secret
	} else {
		p.Secret = oauth.NewRedactedToken(os.ExpandEnv(p.ClientSecret))
	}
	p.ClientSecret = ""
	return nil
}

// ReadSecretFile reads a secret stored alone in a file, ignoring
// surrounding whitespace.
func ReadSecretFile(path string) (oauth.RedactedToken, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return oauth.RedactedToken{}, newConfigurationError(path, ErrorTypeSecret, "cannot read client secret file", err)
	}
	return oauth.NewRedactedToken(strings.TrimSpace(string(data))), nil
}

func resolveSchema(tool *ToolConfig, baseDir string) error {
	switch {
	case tool.SchemaFile != "":
		tool.SchemaFile = resolvePath(baseDir, tool.SchemaFile)
		schema, err := LoadToolSchema(tool.SchemaFile)
		if err != nil {
			return err
		}
		tool.Schema = schema
	case tool.InputSchema != nil:
		data, err := json.Marshal(tool.InputSchema)
		if err != nil {
			return newConfigurationError(tool.Name, ErrorTypeSchema, "inline input schema cannot be encoded as JSON", err)
		}
		tool.Schema = data
	}
	return nil
}

func resolvePath(baseDir, path string) string {
	if path == "" || filepath.IsAbs(path) || baseDir == "" {
		return path
	}
	return filepath.Join(baseDir, path)
}
