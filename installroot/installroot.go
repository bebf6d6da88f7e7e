package installroot

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/otterwire/nimbusupdate/internal/logger"
)

const (
	// ReadmeFilename is written into install_root on first use.
	ReadmeFilename = "README.txt"
	// InstallationFilename carries the install_id on its first non-blank line.
	InstallationFilename = "installation.txt"

	readmeContents = "This directory is managed by the updater. Do not edit its contents.\n"

	filePermissions = 0o644
	dirPermissions  = 0o755
)

var errNoWritableCandidate = errors.New("installroot: no writable candidate directory found")

// EnvOverrideName returns the environment variable name that, if non-empty,
// overrides install_root probing entirely for appName.
func EnvOverrideName(appName string) string {
	return "AUTOUPDATER_" + strings.ToUpper(appName) + "_UPDATE_ROOT"
}

// Resolve determines install_root for appName, given the directory the
// application was originally installed into.
func Resolve(ctx context.Context, appName, installedBaseDir string) (string, error) {
	if override := os.ExpandEnv(os.Getenv(EnvOverrideName(appName))); override != "" {
		logger.InfoKV(ctx, "Using install_root override from environment", "path", override)
		return ensureInitialized(override, appName)
	}

	overrides := append([]string{filepath.Join(installedBaseDir, "updates")}, perUserOverrideDirs(appName)...)

	for _, candidate := range overrides {
		if dirExists(candidate) && isWritable(candidate) {
			return ensureInitialized(candidate, appName)
		}
	}

	for _, candidate := range legacyDirs(appName) {
		if dirExists(candidate) && dirHasAnyFile(candidate) && isWritable(candidate) {
			return ensureInitialized(candidate, appName)
		}
	}

	var attempts []string

	if !underProgramFiles(installedBaseDir) {
		attempts = append(attempts, filepath.Join(installedBaseDir, "updates"))
	}

	attempts = append(attempts, systemWideDir(appName))
	attempts = append(attempts, overrides...)

	for _, candidate := range attempts {
		if err := os.MkdirAll(candidate, dirPermissions); err != nil {
			logger.WarnKV(ctx, "Candidate install_root not usable", "path", candidate, "error", err)
			continue
		}

		if isWritable(candidate) {
			return ensureInitialized(candidate, appName)
		}
	}

	return "", errNoWritableCandidate
}

// isWritable probes dir by creating and removing a uniquely named subdirectory.
func isWritable(dir string) bool {
	probe := filepath.Join(dir, fmt.Sprintf("test-%d", time.Now().UTC().UnixNano()))

	if err := os.Mkdir(probe, dirPermissions); err != nil {
		return false
	}

	_ = os.Remove(probe)

	return true
}

func dirExists(dir string) bool {
	info, err := os.Stat(dir)
	return err == nil && info.IsDir()
}

func dirHasAnyFile(dir string) bool {
	entries, err := os.ReadDir(dir)
	return err == nil && len(entries) > 0
}

// ensureInitialized writes README.txt and installation.txt into root if
// missing and returns root itself.
func ensureInitialized(root, appName string) (string, error) {
	if err := os.MkdirAll(root, dirPermissions); err != nil {
		return "", fmt.Errorf("create install_root: %w", err)
	}

	readmePath := filepath.Join(root, ReadmeFilename)
	if _, err := os.Stat(readmePath); os.IsNotExist(err) {
		if err = os.WriteFile(readmePath, []byte(readmeContents), filePermissions); err != nil {
			return "", fmt.Errorf("write %s: %w", ReadmeFilename, err)
		}
	}

	installationPath := filepath.Join(root, InstallationFilename)
	if _, err := os.Stat(installationPath); os.IsNotExist(err) {
		id := newInstallID(appName)
		if err = os.WriteFile(installationPath, []byte(id+"\n"), filePermissions); err != nil {
			return "", fmt.Errorf("write %s: %w", InstallationFilename, err)
		}
	}

	return root, nil
}

// InstallID reads the install_id, the first non-blank line of
// installation.txt under root.
func InstallID(root string) string {
	data, err := os.ReadFile(filepath.Join(root, InstallationFilename))
	if err != nil {
		return ""
	}

	for _, line := range strings.Split(string(data), "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed != "" {
			return trimmed
		}
	}

	return ""
}

func newInstallID(appName string) string {
	hostname, _ := os.Hostname()
	return fmt.Sprintf("%s-%s-%d", appName, hostname, time.Now().UTC().UnixNano())
}
