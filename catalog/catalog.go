package catalog

import (
	"crypto/rsa"
	"os"
	"path/filepath"
	"strings"

	"github.com/otterwire/nimbusupdate/manifest"
)

// CurrentPointerFilename names the text file in install_root holding the
// current best version's folder name.
const CurrentPointerFilename = "current"

// Selection is the result of GetBestVersion: the folder to launch from, and
// its manifest (nil when the selection is the baseline in-place install).
type Selection struct {
	Folder   string
	Manifest *manifest.UpdateInfo
	Version  manifest.Version
}

// Catalog scans install_root for installed versions and selects the best
// one to run, relative to a fixed baseline.
type Catalog struct {
	installRoot      string
	installedBaseDir string
	baselineVersion  manifest.Version
	publicKey        *rsa.PublicKey

	cached *Selection
}

// New builds a Catalog. baselineVersion is this running binary's own
// version; installedBaseDir is the directory it was originally placed in.
func New(installRoot, installedBaseDir string, baselineVersion manifest.Version, publicKey *rsa.PublicKey) *Catalog {
	return &Catalog{
		installRoot:      installRoot,
		installedBaseDir: installedBaseDir,
		baselineVersion:  baselineVersion,
		publicKey:        publicKey,
	}
}

// GetBestVersion returns the newest verified candidate among the baseline
// in-place install, the highest verified installed update, and the current
// pointer's target. The result is cached until Invalidate is called or
// forceRecheck is set.
//
// The returned version is never older than the baseline: a candidate only
// replaces the running selection when it is strictly newer.
func (c *Catalog) GetBestVersion(forceRecheck bool) (Selection, error) {
	if !forceRecheck && c.cached != nil {
		return *c.cached, nil
	}

	best := Selection{
		Folder:  c.installedBaseDir,
		Version: c.baselineVersion,
	}

	entries, err := os.ReadDir(c.installRoot)
	if err != nil && !os.IsNotExist(err) {
		return best, err
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		v := manifest.ParseVersion(entry.Name())
		if v.IsZero() || !v.GreaterThan(best.Version) {
			continue
		}

		folder := filepath.Join(c.installRoot, entry.Name())

		info, readErr := manifest.ReadInstalled(folder, c.publicKey)
		if readErr != nil || info == nil {
			continue
		}

		best = Selection{Folder: folder, Manifest: info, Version: v}
	}

	if current := c.readCurrentTarget(); current != "" {
		folder := filepath.Join(c.installRoot, current)

		info, readErr := manifest.ReadInstalled(folder, c.publicKey)
		if readErr == nil && info != nil && info.Version.GreaterThan(best.Version) {
			best = Selection{Folder: folder, Manifest: info, Version: info.Version}
		}
	}

	c.cached = &best

	return best, nil
}

// Invalidate clears the cached selection, forcing the next GetBestVersion
// call to rescan.
func (c *Catalog) Invalidate() {
	c.cached = nil
}

func (c *Catalog) readCurrentTarget() string {
	data, err := os.ReadFile(filepath.Join(c.installRoot, CurrentPointerFilename))
	if err != nil {
		return ""
	}

	return strings.TrimSpace(string(data))
}
