package supervisor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"time"

	"github.com/otterwire/nimbusupdate/internal/logger"
)

// Workload is the opaque unit of work the supervisor wraps. It receives the
// process context and returns the exit code the process should report to
// its own caller - unless that code is the magic relaunch value.
type Workload func(ctx context.Context) int

// runWorkload invokes the workload, recovering a panic into a crash log
// before re-raising it with the original value so the host can still
// observe the failure (and, if it wants, a non-zero process exit via the
// runtime's own unhandled-panic path).
func runWorkload(ctx context.Context, workloadDir string, w Workload) (exitCode int) {
	defer func() {
		if r := recover(); r != nil {
			writeCrashLog(workloadDir, r, debug.Stack())
			logger.ErrorKV(ctx, "workload panicked", "panic", r)
			panic(r)
		}
	}()

	return w(ctx)
}

func writeCrashLog(dir string, recovered any, stack []byte) {
	if dir == "" {
		dir = "."
	}

	path := filepath.Join(dir, CrashLogFilename)

	contents := fmt.Sprintf("workload panicked at %s\n\n%v\n\n%s\n",
		time.Now().Format(time.RFC3339), recovered, stack)

	_ = os.WriteFile(path, []byte(contents), 0o644)
}
