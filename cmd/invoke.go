package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/giantswarm/toolgate/internal/cli"
)

var invokeJSON string

var invokeCmd = &cobra.Command{
	Use:     "invoke <tool> [key=value ...]",
	Aliases: []string{"call"},
	Short:   "Invoke a gateway tool",
	Long: `Invokes a tool of the configured gateway and prints the result.

Arguments are given as key=value pairs, as a JSON object with --json, or
both; pairs override keys of the JSON object. Values that parse as JSON keep
their type.

Examples:
  toolgate invoke aws_cost_estimation architecture_description="ALB + 2x EC2 t3.medium"
  toolgate invoke aws_cost_estimation --json '{"architecture_description": "ALB"}' -o json

The command exits with code 4 when the gateway returns an error result.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		toolArgs, err := cli.ParseArguments(invokeJSON, args[1:])
		if err != nil {
			return err
		}
		return withExecutor(cmd, func(ctx context.Context, e *cli.ToolExecutor) error {
			return e.Execute(ctx, args[0], toolArgs)
		})
	},
}

func init() {
	invokeCmd.Flags().StringVar(&invokeJSON, "json", "", "Tool arguments as a JSON object")
	rootCmd.AddCommand(invokeCmd)
}
