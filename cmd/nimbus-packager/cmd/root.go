package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/otterwire/nimbusupdate/internal/version"
	"github.com/otterwire/nimbusupdate/packager"
)

var (
	// configPath to the build settings YAML file.
	configPath string

	// rootCmd represents the base command for building a signed update
	// package.
	rootCmd = &cobra.Command{
		Use:   "nimbus-packager",
		Short: "Build a signed update package and manifest for distribution",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			options := &packager.Options{
				ConfigPath: configPath,
			}

			return packager.Run(ctx, options)
		},
	}
)

// Execute runs the nimbus-packager CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", packager.DefaultBuildConfigFilename, "path to build settings file")
}
