package cmd

import (
	"errors"
	"os"

	"github.com/spf13/cobra"

	"github.com/giantswarm/toolgate/internal/app"
	"github.com/giantswarm/toolgate/internal/cli"
	"github.com/giantswarm/toolgate/internal/client"
	"github.com/giantswarm/toolgate/internal/config"
	"github.com/giantswarm/toolgate/internal/oauth"
)

// Exit codes for CLI commands.
const (
	// ExitCodeSuccess indicates successful execution.
	ExitCodeSuccess = 0
	// ExitCodeError indicates a general error (command failed, invalid arguments).
	ExitCodeError = 1
	// ExitCodeAuthRequired indicates the gateway rejected the client's token.
	ExitCodeAuthRequired = 2
	// ExitCodeAuthFailed indicates the client credentials exchange failed.
	ExitCodeAuthFailed = 3
	// ExitCodeToolFailed indicates the gateway returned an error result.
	ExitCodeToolFailed = 4
)

// globalFlags are the persistent flags shared by every command.
type globalFlags struct {
	ConfigPath   string
	Debug        bool
	OutputFormat string
	NoHeaders    bool
	Quiet        bool
}

var flags globalFlags

// rootCmd represents the base command for the toolgate application.
var rootCmd = &cobra.Command{
	Use:   "toolgate",
	Short: "Expose agent runtimes as MCP tools behind OAuth",
	Long: `toolgate fronts remote agent runtimes with an MCP gateway. Every
configured runtime becomes a tool that MCP clients can list and invoke,
authenticated with OAuth 2.0 client credentials.

Run 'toolgate serve' to start the gateway, and 'toolgate tools' or
'toolgate invoke' to use one as a client.`,
	// SilenceUsage prevents Cobra from printing the usage message on errors that are handled by the application.
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return cli.ValidateOutputFormat(flags.OutputFormat)
	},
}

// SetVersion sets the version for the root command.
// This function is typically called from the main package to inject the application version at build time.
func SetVersion(v string) {
	rootCmd.Version = v
}

// GetVersion returns the current version of the application.
func GetVersion() string {
	return rootCmd.Version
}

// Execute is the main entry point for the CLI application.
// This function is called by main.main().
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "toolgate version %s\n" .Version}}`)

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(getExitCode(err))
	}
}

// getExitCode determines the appropriate exit code based on the error type.
// This provides semantic exit codes for scripting and automation.
func getExitCode(err error) int {
	if client.IsUnauthenticated(err) {
		return ExitCodeAuthRequired
	}
	if oauth.IsAuthExchangeError(err) {
		return ExitCodeAuthFailed
	}

	var resultErr *cli.ResultError
	if errors.As(err, &resultErr) {
		return ExitCodeToolFailed
	}

	return ExitCodeError
}

// newApplication bootstraps the application for a command. Client commands
// only log when --debug is set, so their stdout and stderr stay clean.
func newApplication(mode app.Mode) (*app.Application, error) {
	silent := mode == app.ModeClient && !flags.Debug
	cfg := app.NewConfig(flags.Debug, silent, flags.ConfigPath)
	cfg.Version = rootCmd.Version
	return app.NewApplication(cfg, mode)
}

func executorOptions() cli.ExecutorOptions {
	return cli.ExecutorOptions{
		Format:    cli.OutputFormat(flags.OutputFormat),
		NoHeaders: flags.NoHeaders,
		Quiet:     flags.Quiet,
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flags.ConfigPath, "config-path", "", "Configuration directory (default "+config.GetDefaultConfigPathOrPanic()+")")
	rootCmd.PersistentFlags().BoolVar(&flags.Debug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&flags.OutputFormat, "output", "o", "table", "Output format (table, json, yaml)")
	rootCmd.PersistentFlags().BoolVar(&flags.NoHeaders, "no-headers", false, "Suppress header rows in table output")
	rootCmd.PersistentFlags().BoolVarP(&flags.Quiet, "quiet", "q", false, "Suppress progress indicators")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newSelfUpdateCmd())
}
