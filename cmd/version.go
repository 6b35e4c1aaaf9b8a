package cmd

import (
	goruntime "runtime"

	"github.com/spf13/cobra"

	"github.com/giantswarm/toolgate/internal/cli"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the toolgate version",
		Long:  `Prints the toolgate version with the Go toolchain and platform it was built for.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.NewPrinter(cmd.OutOrStdout(), cli.OutputFormat(flags.OutputFormat), flags.NoHeaders).Version(versionInfo())
		},
	}
}

func versionInfo() cli.VersionInfo {
	version := rootCmd.Version
	if version == "" {
		version = "dev"
	}
	return cli.VersionInfo{
		Version:   version,
		GoVersion: goruntime.Version(),
		Platform:  goruntime.GOOS + "/" + goruntime.GOARCH,
	}
}
