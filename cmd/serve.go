package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/giantswarm/toolgate/internal/app"
)

// serveCmd starts the gateway.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the toolgate MCP gateway",
	Long: `Starts the gateway and serves every configured tool over MCP
(streamable HTTP) and over the JSON invocation endpoint.

Configuration:
  toolgate loads config.yaml from ~/.config/toolgate unless --config-path
  names another directory. Without a config file the built-in cost
  estimation tool is served, located by TOOLGATE_RUNTIME_ARN and
  TOOLGATE_RUNTIME_ENDPOINT.

The process notifies systemd when it is ready and when it stops, and shuts
down gracefully on SIGINT or SIGTERM.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

// runServe is the main entry point for the serve command
func runServe(cmd *cobra.Command, args []string) error {
	application, err := newApplication(app.ModeServe)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	defer application.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return application.Run(ctx)
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
