package cmd

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/giantswarm/toolgate/internal/app"
	"github.com/giantswarm/toolgate/internal/cli"
	"github.com/giantswarm/toolgate/internal/oauth"
)

var (
	tokenProvider string
	tokenScopes   []string
	tokenForce    bool
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Acquire an M2M token and show its metadata",
	Long: `Runs the client credentials exchange for a configured provider and
prints the token's type, scopes and remaining lifetime. The token value is
never printed.

Without --provider and --scope the client section of the configuration is
used.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := newApplication(app.ModeClient)
		if err != nil {
			return err
		}
		defer application.Close()

		clientCfg := application.Config().Toolgate.Client
		provider := tokenProvider
		if provider == "" {
			provider = clientCfg.Provider
		}
		scopes := tokenScopes
		if len(scopes) == 0 {
			scopes = clientCfg.Scopes
		}

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		token, err := application.Services().Provider.Acquire(ctx, provider, scopes, oauth.AuthFlow(clientCfg.AuthFlow), tokenForce)
		if err != nil {
			return err
		}

		printer := cli.NewPrinter(cmd.OutOrStdout(), cli.OutputFormat(flags.OutputFormat), flags.NoHeaders)
		return printer.Token(cli.NewTokenInfo(provider, token, time.Now()))
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenProvider, "provider", "", "OAuth provider name")
	tokenCmd.Flags().StringSliceVar(&tokenScopes, "scope", nil, "Scope to request (repeatable)")
	tokenCmd.Flags().BoolVar(&tokenForce, "force", false, "Bypass the token cache")
	rootCmd.AddCommand(tokenCmd)
}
