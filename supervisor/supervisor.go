package supervisor

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/go-ps"

	"github.com/otterwire/nimbusupdate/internal/logger"
)

// RunFromMostRecent is the top-level launch entry point. It runs w either
// directly (update mechanism disabled, or this process is itself a
// re-launched child) or, as the original top-level process, loops spawning
// the executable from the best available version until the child stops
// requesting a relaunch (exit code 126).
func RunFromMostRecent(
	ctx context.Context,
	sctx *Context,
	w Workload,
	args []string,
	defaultStrategy Strategy,
) int {
	installRootEnv := EnvVarName(sctx.AppName, envSuffixInstallRoot)
	skipEnv := EnvVarName(sctx.AppName, envSuffixSkipUpdate)
	policyEnv := EnvVarName(sctx.AppName, envSuffixPolicy)
	sleepEnv := EnvVarName(sctx.AppName, envSuffixSleep)

	if isDebuggerAttached() || strings.EqualFold(os.Getenv(skipEnv), "true") {
		logger.Info(ctx, "update mechanism disabled, running workload directly")
		return runWorkload(ctx, sctx.InstalledBaseDir, w)
	}

	observeSleepFlag(ctx, sleepEnv)

	if _, isChild := os.LookupEnv(installRootEnv); isChild {
		strategy := defaultStrategy
		if name := os.Getenv(policyEnv); name != "" {
			if parsed, ok := ParseStrategy(name); ok {
				strategy = parsed
			} else {
				logger.Warnf(ctx, "unrecognized policy %q, using default %s", name, defaultStrategy)
			}
		}

		return RunWrapped(ctx, sctx, strategy, w)
	}

	for {
		sel, err := sctx.Catalog.GetBestVersion(false)
		if err != nil {
			sctx.reportError(err)
		}

		executablePath := filepath.Join(sel.Folder, filepath.Base(os.Args[0]))

		env := append(os.Environ(), installRootEnv+"="+sctx.InstalledBaseDir)

		logger.InfoKV(ctx, "launching", "version", sel.Version.String(), "folder", sel.Folder)

		exitCode, err := spawn(ctx, executablePath, args, env)
		if err != nil {
			sctx.reportError(err)
			return exitCode
		}

		if exitCode != magicExitCode {
			return exitCode
		}

		logger.Info(ctx, "child requested relaunch, re-evaluating best version")
		sctx.Catalog.Invalidate()
	}
}

// observeSleepFlag clears the re-spawn sleep flag and, if it was set,
// pauses startup briefly to give a freshly-replaced executable time to
// settle on disk.
func observeSleepFlag(ctx context.Context, sleepEnv string) {
	if os.Getenv(sleepEnv) == "" {
		return
	}

	_ = os.Unsetenv(sleepEnv)

	logger.Info(ctx, "observed re-spawn sleep flag, waiting before proceeding")
	sleepRespawn()
}

// isDebuggerAttached reports whether this process's parent looks like a Go
// debugger (delve), using the same process-table scan the installer's
// single-instance guard uses to inspect other processes.
func isDebuggerAttached() bool {
	proc, err := ps.FindProcess(os.Getppid())
	if err != nil || proc == nil {
		return false
	}

	return strings.Contains(strings.ToLower(proc.Executable()), "dlv")
}
