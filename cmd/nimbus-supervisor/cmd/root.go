package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/otterwire/nimbusupdate/internal/logger"
	"github.com/otterwire/nimbusupdate/internal/version"
	"github.com/otterwire/nimbusupdate/supervisor"
)

// defaultWorkload stands in for the real application an embedder would
// supply: it logs that it is running and blocks until told to stop. A
// concrete integration (see cmd/nimbus-workload) replaces this with its
// own opaque logic.
func defaultWorkload(ctx context.Context) int {
	logger.InfoKV(ctx, "workload running", "version", version.Short())

	<-ctx.Done()

	return 0
}

var (
	// configPath to the updater settings YAML file.
	configPath string

	// exitCode carries the supervisor's resolved process exit code out of
	// RunE, since it may be a wrapped workload's own code, not merely a
	// success/failure flag cobra's error return can express.
	exitCode int

	// rootCmd represents the base command for launching the most recent
	// installed version and keeping it updated.
	rootCmd = &cobra.Command{
		Use:   "nimbus-supervisor [-- workload-args...]",
		Short: "Launch the most recent installed version and keep it updated",
		Args:  cobra.ArbitraryArgs,
		RunE: func(_ *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			options := &supervisor.Options{
				ConfigPath: configPath,
				Args:       args,
				Workload:   defaultWorkload,
			}

			code, err := supervisor.Run(ctx, options)
			exitCode = code

			return err
		},
	}
)

// Execute runs the nimbus-supervisor CLI and exits with the supervised
// process's resolved exit code.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}

	os.Exit(exitCode)
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "path to configuration file")
}
