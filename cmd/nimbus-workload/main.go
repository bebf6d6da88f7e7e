// Command nimbus-workload is a minimal opaque application used to exercise
// cmd/nimbus-supervisor end to end: packaged into versioned release
// folders, it prints its own version on startup and exits with a
// configurable code, letting integration tests and operators drive every
// stage of the supervisor's launch and update loop without a real
// application in hand.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/otterwire/nimbusupdate/internal/config"
	"github.com/otterwire/nimbusupdate/internal/logger"
	"github.com/otterwire/nimbusupdate/internal/version"
	"github.com/otterwire/nimbusupdate/supervisor"
)

func main() {
	var (
		configPath string
		exitCode   int
	)

	flag.StringVar(&configPath, "config", "", "path to configuration file")
	flag.IntVar(&exitCode, "exit-code", 0, "exit code to report once the workload finishes")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if configPath == "" {
		configPath = config.DefaultConfigFilename
	}

	workload := func(workloadCtx context.Context) int {
		fmt.Println(version.Full()) //nolint:forbidigo // This is the demo workload's own stdout output, not a log line.
		logger.InfoKV(workloadCtx, "workload exiting", "exit_code", exitCode)

		return exitCode
	}

	code, err := supervisor.Run(ctx, &supervisor.Options{
		ConfigPath: configPath,
		Args:       os.Args[1:],
		Workload:   workload,
	})
	if err != nil {
		logger.Fatalf(ctx, "supervisor setup failed: %v", err)
	}

	os.Exit(code)
}
