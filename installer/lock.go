package installer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/mitchellh/go-ps"

	"github.com/otterwire/nimbusupdate/internal/logger"
)

// LockFilename names the marker file that guards install_root against
// concurrent supervisor instances.
const LockFilename = ".nimbusupdate-lock"

// lockLifetime is the period after which a stale lock is considered
// abandoned and eligible for reclaiming.
const lockLifetime = 30 * time.Second

// Lock represents a held install_root lock. Release via Unlock.
type Lock struct {
	path string
}

// AcquireLock claims the install_root lock, reclaiming a stale one (whose
// holder process is confirmed gone via the process table) if necessary.
func AcquireLock(ctx context.Context, installRoot, ownExecutableName string) (*Lock, error) {
	lockPath := filepath.Join(installRoot, LockFilename)

	if isLocked(ctx, lockPath, ownExecutableName) {
		return nil, ErrAlreadyRunning
	}

	file, err := os.OpenFile(lockPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644) //nolint:gosec // lock marker, not secret.
	if err != nil {
		return nil, err
	}

	if err = file.Close(); err != nil {
		return nil, err
	}

	return &Lock{path: lockPath}, nil
}

// Unlock releases the lock.
func (l *Lock) Unlock() error {
	if err := os.Remove(l.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}

	return nil
}

// isLocked reports whether the lock file exists, is fresh, or — if stale —
// whether a process named ownExecutableName is still confirmed running.
func isLocked(ctx context.Context, lockPath, ownExecutableName string) bool {
	info, err := os.Stat(lockPath)
	if err != nil {
		return false
	}

	if time.Since(info.ModTime()) <= lockLifetime {
		return true
	}

	logger.Info(ctx, "install_root lock is stale, checking process table")

	if processRunning(ownExecutableName) {
		return true
	}

	_ = os.Remove(lockPath)

	return false
}

// processRunning reports whether any other process in the process table is
// named executableName.
func processRunning(executableName string) bool {
	processList, err := ps.Processes()
	if err != nil {
		return true // fail safe: assume held if the process table can't be read.
	}

	thisPID := os.Getpid()

	for _, process := range processList {
		if process.Pid() == thisPID {
			continue
		}

		if process.Executable() == executableName {
			return true
		}
	}

	return false
}
