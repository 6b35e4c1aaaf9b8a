package app

import (
	"github.com/giantswarm/toolgate/internal/config"
)

// Config holds the application configuration
type Config struct {
	// Debug settings
	Debug bool

	// Silent discards log output, for commands whose stdout is the result.
	Silent bool

	// Custom configuration path (optional)
	ConfigPath string

	// Version is reported by the gateway and the client handshake.
	Version string

	// Toolgate is the loaded configuration. NewApplication fills it when nil.
	Toolgate *config.Config
}

// NewConfig creates a new application configuration
func NewConfig(debug, silent bool, configPath string) *Config {
	return &Config{
		Debug:      debug,
		Silent:     silent,
		ConfigPath: configPath,
	}
}
