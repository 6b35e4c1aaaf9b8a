package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/giantswarm/toolgate/internal/app"
	"github.com/giantswarm/toolgate/internal/cli"
)

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Explore a gateway interactively",
	Long: `Opens an interactive session against the configured gateway. Tool names
complete with TAB and history persists between sessions.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := newApplication(app.ModeClient)
		if err != nil {
			return err
		}
		defer application.Close()

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		session, err := application.OpenSession(ctx)
		if err != nil {
			return err
		}
		defer session.Close()

		opts := executorOptions()
		opts.Out = cmd.OutOrStdout()
		opts.ErrOut = cmd.ErrOrStderr()
		return cli.NewREPL(cli.NewToolExecutor(session, opts)).Run(ctx)
	},
}

func init() {
	rootCmd.AddCommand(replCmd)
}
