package app

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/giantswarm/toolgate/internal/client"
	"github.com/giantswarm/toolgate/internal/config"
	"github.com/giantswarm/toolgate/pkg/logging"
)

// LogLevelEnv overrides the default log level unless --debug is set.
const LogLevelEnv = "TOOLGATE_LOG_LEVEL"

// Application owns the process context for one command run.
//
// The Application follows a two-phase initialization pattern:
//  1. Bootstrap phase: initialize logging, load configuration, build services
//  2. Execution phase: serve, or hand the services to a calling command
//
// Example usage:
//
//	cfg := app.NewConfig(debug, false, configPath)
//	application, err := app.NewApplication(cfg, app.ModeServe)
//	if err != nil {
//	    return fmt.Errorf("failed to create application: %w", err)
//	}
//	defer application.Close()
//	return application.Run(ctx)
type Application struct {
	config   *Config
	mode     Mode
	services *Services
}

// NewApplication initializes logging, loads the configuration unless cfg
// already carries one, and builds the services mode needs.
func NewApplication(cfg *Config, mode Mode) (*Application, error) {
	appLogLevel := logging.LevelInfo
	if name := os.Getenv(LogLevelEnv); name != "" {
		level, ok := logging.ParseLevel(name)
		if !ok {
			fmt.Fprintf(os.Stderr, "Ignoring unknown %s %q\n", LogLevelEnv, name)
		}
		appLogLevel = level
	}
	if cfg.Debug {
		appLogLevel = logging.LevelDebug
	}

	var logOutput io.Writer = os.Stderr
	if cfg.Silent {
		logOutput = io.Discard
	}
	logging.InitForCLI(appLogLevel, logOutput)

	if cfg.Toolgate == nil {
		configPath := cfg.ConfigPath
		if configPath == "" {
			configPath = config.GetDefaultConfigPathOrPanic()
		}
		loaded, err := config.LoadConfig(configPath)
		if err != nil {
			logging.Error("Bootstrap", err, "Failed to load configuration from %s", configPath)
			return nil, fmt.Errorf("failed to load configuration from %s: %w", configPath, err)
		}
		cfg.Toolgate = &loaded
	}

	services, err := InitializeServices(cfg, mode)
	if err != nil {
		logging.Error("Bootstrap", err, "Failed to initialize services")
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	return &Application{
		config:   cfg,
		mode:     mode,
		services: services,
	}, nil
}

// Config returns the application configuration with the loaded toolgate
// configuration filled in.
func (a *Application) Config() *Config {
	return a.config
}

// Services returns the process context.
func (a *Application) Services() *Services {
	return a.services
}

// OpenSession opens a gateway session; see Services.OpenSession.
func (a *Application) OpenSession(ctx context.Context) (*client.Session, error) {
	return a.services.OpenSession(ctx)
}

// Run serves the gateway until ctx is cancelled or a termination signal
// arrives.
func (a *Application) Run(ctx context.Context) error {
	if a.mode != ModeServe {
		return fmt.Errorf("application was not initialized for serving")
	}
	return runServeMode(ctx, a.services)
}

// Close releases the services.
func (a *Application) Close() error {
	return a.services.Close()
}
