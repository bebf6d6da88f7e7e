package installroot

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// perUserOverrideDirs returns the platform's per-user override candidates,
// in preference order, for the given app name.
func perUserOverrideDirs(appName string) []string {
	switch {
	case isWindows():
		return []string{
			filepath.Join(envOrHome("LOCALAPPDATA"), appName, "updates"),
			filepath.Join(envOrHome("APPDATA"), appName, "updates"),
		}
	case isDarwin():
		home, _ := os.UserHomeDir()

		return []string{
			filepath.Join(home, "Library", "Application Support", appName, "updates"),
			filepath.Join(envOrHome("APPDATA"), appName, "updates"),
		}
	default:
		return []string{
			filepath.Join(envOrHome("APPDATA"), appName, "updates"),
		}
	}
}

// legacyDirs returns prior well-known locations, honored only if they already
// exist and are non-empty.
func legacyDirs(appName string) []string {
	return []string{
		filepath.Join(envOr("PROGRAMFILES", `C:\Program Files`), appName, "updates"),
		filepath.Join(envOrHome("LOCALAPPDATA"), appName, "updates"),
	}
}

// systemWideDir returns the platform's system-wide install location.
func systemWideDir(appName string) string {
	if isDarwin() {
		return filepath.Join("/Library", "Application Support", appName, "updates")
	}

	return filepath.Join(envOr("PROGRAMDATA", `C:\ProgramData`), appName, "updates")
}

// underProgramFiles reports whether dir sits under the platform's Program
// Files-equivalent directory.
func underProgramFiles(dir string) bool {
	if !isWindows() {
		return false
	}

	programFiles := envOr("PROGRAMFILES", `C:\Program Files`)

	rel, err := filepath.Rel(programFiles, dir)

	return err == nil && !strings.HasPrefix(rel, "..")
}

func isWindows() bool {
	return strings.Contains(strings.ToLower(runtime.GOOS), "windows")
}

func isDarwin() bool {
	return strings.Contains(strings.ToLower(runtime.GOOS), "darwin")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}

func envOrHome(key string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	home, _ := os.UserHomeDir()

	return home
}
