package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/giantswarm/toolgate/internal/app"
	"github.com/giantswarm/toolgate/internal/cli"
)

var toolsCmd = &cobra.Command{
	Use:     "tools",
	Aliases: []string{"list"},
	Short:   "List the tools a gateway exposes",
	Long: `Connects to the configured gateway with an M2M token and lists its
tools with their required arguments.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withExecutor(cmd, func(ctx context.Context, e *cli.ToolExecutor) error {
			return e.ListTools(ctx)
		})
	},
}

var describeCmd = &cobra.Command{
	Use:   "describe <tool>",
	Short: "Show a tool and its input schema",
	Long: `Shows one tool of the configured gateway. The name may be the full
exposed name, the bare tool name or any unique part of it.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withExecutor(cmd, func(ctx context.Context, e *cli.ToolExecutor) error {
			return e.DescribeTool(ctx, args[0])
		})
	},
}

// withExecutor opens a gateway session bounded by the configured client
// timeout and runs fn with an executor on top of it.
func withExecutor(cmd *cobra.Command, fn func(context.Context, *cli.ToolExecutor) error) error {
	application, err := newApplication(app.ModeClient)
	if err != nil {
		return err
	}
	defer application.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if timeout := application.Config().Toolgate.Client.Timeout.Std(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	session, err := application.OpenSession(ctx)
	if err != nil {
		return fmt.Errorf("failed to connect to gateway: %w", err)
	}
	defer session.Close()

	opts := executorOptions()
	opts.Out = cmd.OutOrStdout()
	opts.ErrOut = cmd.ErrOrStderr()
	return fn(ctx, cli.NewToolExecutor(session, opts))
}

func init() {
	rootCmd.AddCommand(toolsCmd)
	rootCmd.AddCommand(describeCmd)
}
