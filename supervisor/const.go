package supervisor

import "time"

const (
	// magicExitCode is the child exit status that asks the supervisor to
	// re-evaluate the best version and relaunch instead of propagating the
	// code to the supervisor's own caller.
	magicExitCode = 126

	// duringSleep is how long a CheckDuring/InstallDuring worker waits
	// before checking, so it doesn't race a workload that exits almost
	// immediately.
	duringSleep = 10 * time.Second

	// respawnSleep is how long startup waits after observing the SLEEP
	// env var, giving a freshly-replaced executable on disk time to settle.
	respawnSleep = 10 * time.Second

	// CrashLogFilename is where a recovered workload panic's details are
	// written before the panic is re-raised.
	CrashLogFilename = "crashlog.txt"
)

const envPrefix = "AUTOUPDATER_"

const (
	envSuffixInstallRoot = "INSTALL_ROOT"
	envSuffixUpdateRoot  = "UPDATE_ROOT"
	envSuffixSkipUpdate  = "SKIP_UPDATE"
	envSuffixPolicy      = "POLICY"
	envSuffixSleep       = "SLEEP"
)

// EnvLoadUpdate is the in-process slot a hosted workload can set to request
// a relaunch folder under the alternate (non-child-process) execution model.
// This core only implements the child-process model (see SPEC_FULL.md), so the
// constant is retained for host code that wants to probe for the convention
// without this package acting on it.
const EnvLoadUpdate = "AUTOUPDATER_LOAD_UPDATE"
