package supervisor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/otterwire/nimbusupdate/catalog"
	"github.com/otterwire/nimbusupdate/fetcher"
	"github.com/otterwire/nimbusupdate/installer"
	"github.com/otterwire/nimbusupdate/installroot"
	"github.com/otterwire/nimbusupdate/internal/config"
	"github.com/otterwire/nimbusupdate/internal/logger"
	"github.com/otterwire/nimbusupdate/manifest"
)

// Options are inputs accepted by the supervisor entry point.
type Options struct {
	// ConfigPath is the optional path to the updater settings YAML file.
	ConfigPath string
	// Workload is the unit of work run in-process when updates are skipped
	// or when this process is itself a launched child. Otherwise Run spawns
	// this program's executable (same basename) from the best available
	// installed version, and re-launches it on the magic exit code.
	Workload Workload
	// Args are passed through to each spawn of the most recent install.
	Args []string
}

// Run loads settings, resolves install_root, wires the catalog/fetcher/
// installer collaborators, and runs the top-level launch loop.
//
// The returned int is the process exit code the caller should propagate
// (it may be the wrapped workload's own exit code, not a failure
// indicator); the returned error is set only for setup failures that
// never reached the launch loop.
func Run(ctx context.Context, opts *Options) (int, error) {
	ctx = logger.WithName(ctx, "nimbus-supervisor")

	configPath := opts.ConfigPath
	if configPath == "" {
		configPath = config.DefaultConfigFilename
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return 1, fmt.Errorf("load config: %w", err)
	}

	installedBaseDir, err := os.UserHomeDir()
	if err != nil {
		installedBaseDir = os.TempDir()
	}

	installRoot, err := installroot.Resolve(ctx, cfg.AppName, installedBaseDir)
	if err != nil {
		return 1, fmt.Errorf("resolve install root: %w", err)
	}

	// A re-launched child (spawned by RunFromMostRecent's outer loop, see
	// supervisor.go) shares install_root with the parent that is already
	// holding the lock for the tree's whole lifetime; only the top-level
	// invocation needs to acquire it.
	var lock *installer.Lock

	if _, isChild := os.LookupEnv(EnvVarName(cfg.AppName, envSuffixInstallRoot)); !isChild {
		lock, err = installer.AcquireLock(ctx, installRoot, filepath.Base(os.Args[0]))
		if err != nil {
			if errors.Is(err, installer.ErrAlreadyRunning) {
				return 1, fmt.Errorf("another supervisor instance holds install_root: %w", err)
			}

			return 1, fmt.Errorf("acquire install_root lock: %w", err)
		}
		defer func() {
			if unlockErr := lock.Unlock(); unlockErr != nil {
				logger.ErrorKV(ctx, "failed to release install_root lock", "error", unlockErr)
			}
		}()
	}

	installID := installroot.InstallID(installRoot)
	selfVersion := manifest.ParseVersion(cfg.SelfVersion)
	channel := manifest.ParseReleaseType(cfg.DefaultChannel)

	onError := func(reportErr error) {
		logger.ErrorKV(ctx, "update check/install failed", "error", reportErr)
	}

	f, err := fetcher.New(cfg, installID, selfVersion, channel, onError)
	if err != nil {
		return 1, fmt.Errorf("initialize fetcher: %w", err)
	}

	in, err := installer.New(cfg, installRoot)
	if err != nil {
		return 1, fmt.Errorf("initialize installer: %w", err)
	}

	publicKey, err := config.ParsePublicKey(cfg.PublicKeyPEM)
	if err != nil {
		return 1, fmt.Errorf("parse public key: %w", err)
	}

	cat := catalog.New(installRoot, installedBaseDir, selfVersion, publicKey)

	sctx, err := NewContext(cfg.AppName, installRoot, installedBaseDir, channel, cat, f, in, lock, onError)
	if err != nil {
		return 1, fmt.Errorf("initialize supervisor context: %w", err)
	}

	defaultStrategy, ok := ParseStrategy(cfg.DefaultStrategy)
	if !ok {
		defaultStrategy = CheckDuring
	}

	exitCode := RunFromMostRecent(ctx, sctx, opts.Workload, opts.Args, defaultStrategy)

	logger.InfoKV(ctx, "Supervisor completed", "exit_code", exitCode)

	return exitCode, nil
}
