package packager

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/otterwire/nimbusupdate/manifest"
)

// BuildConfig holds the inputs a packaging run needs: where the release
// lives on disk, where to write the package, the signing key, and the
// release metadata that seeds the unsigned local manifest.
//
// This is deliberately not internal/config.Config: a packaging run handles
// a private key, which an updater-side process must never load.
type BuildConfig struct {
	// InputFolder is the application tree to package.
	InputFolder string `yaml:"input_folder"`
	// OutputFolder receives package.zip and the signed remote manifest.
	OutputFolder string `yaml:"output_folder"`
	// PrivateKeyPath is a PEM-encoded RSA private key file used to sign
	// both manifests.
	PrivateKeyPath string `yaml:"private_key_path"`
	// DisplayName seeds UpdateInfo.DisplayName.
	DisplayName string `yaml:"display_name"`
	// Version is this build's dotted-numeric version string.
	Version string `yaml:"version"`
	// ReleaseType names the release track this build is published to.
	ReleaseType string `yaml:"release_type"`
	// ReleaseTime is the RFC3339 release instant to stamp the manifest
	// with. Left empty (or set to the Unix epoch), the builder stamps the
	// current time instead — see manifest.UpdateInfo.ReleaseTimeKnown.
	ReleaseTime string `yaml:"release_time"`
	// RemoteURLs lists candidate download URLs for the built package,
	// carried into the remote manifest (and cleared from the embedded copy).
	RemoteURLs []string `yaml:"remote_urls"`
	// IgnorePaths lists archive-relative paths or prefixes excluded from
	// hashing/packaging but still recorded as ignore entries in the
	// manifest's file list.
	IgnorePaths []string `yaml:"ignore_paths"`
}

// DefaultBuildConfigFilename is the default filename for packager settings.
const DefaultBuildConfigFilename = "nimbuspackager-settings.yaml"

// DefaultFilePermissions is the permission mode used when writing settings
// files that may embed a private key path.
const DefaultFilePermissions = 0o600

var (
	errInputFolderRequired     = errors.New("input folder must be provided")
	errOutputFolderRequired    = errors.New("output folder must be provided")
	errPrivateKeyPathRequired  = errors.New("private key path must be provided")
	errVersionRequired         = errors.New("version must be provided")
	errBuildConfigIsNotSet     = errors.New("build configuration is not set")
	errUnrecognizedReleaseType = errors.New("unrecognized release type")
	errPrivateKeyNotRSA        = errors.New("private key is not an RSA key")
)

// epochZero is the "unknown" release_time sentinel manifest.UpdateInfo.
// ReleaseTimeKnown tests against, not Go's zero time.Time.
var epochZero = time.Unix(0, 0).UTC()

// parseReleaseTime parses an RFC3339 release_time, treating an empty string
// as epoch-zero ("unknown") rather than Go's zero time.Time, so the result
// agrees with manifest.UpdateInfo.ReleaseTimeKnown.
func parseReleaseTime(s string) (time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return epochZero, nil
	}

	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse release_time: %w", err)
	}

	return t.UTC(), nil
}

// LoadBuildConfig reads packager settings from path and validates them.
func LoadBuildConfig(path string) (*BuildConfig, error) {
	if path == "" {
		path = DefaultBuildConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read build config: %w", err)
	}

	var cfg BuildConfig
	if err = yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal build config: %w", err)
	}

	if err = ValidateBuildConfig(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// SaveBuildConfig writes cfg to path.
func SaveBuildConfig(path string, cfg *BuildConfig) error {
	if cfg == nil {
		return errBuildConfigIsNotSet
	}

	if path == "" {
		path = DefaultBuildConfigFilename
	}

	if err := ValidateBuildConfig(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal build config: %w", err)
	}

	if err = os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write build config: %w", err)
	}

	return nil
}

// ValidateBuildConfig checks required fields (the private key is only
// checked for a non-empty path) and sanity-checks the release type,
// filling in the default display name and release type when unset.
func ValidateBuildConfig(cfg *BuildConfig) error {
	if strings.TrimSpace(cfg.InputFolder) == "" {
		return errInputFolderRequired
	}

	if strings.TrimSpace(cfg.OutputFolder) == "" {
		return errOutputFolderRequired
	}

	if strings.TrimSpace(cfg.PrivateKeyPath) == "" {
		return errPrivateKeyPathRequired
	}

	if strings.TrimSpace(cfg.Version) == "" {
		return errVersionRequired
	}

	if cfg.DisplayName == "" {
		cfg.DisplayName = filepath.Base(cfg.InputFolder)
	}

	if cfg.ReleaseType == "" {
		cfg.ReleaseType = "Stable"
	} else if manifest.ParseReleaseType(cfg.ReleaseType) == manifest.Unknown && !strings.EqualFold(cfg.ReleaseType, "Unknown") {
		return fmt.Errorf("%q: %w", cfg.ReleaseType, errUnrecognizedReleaseType)
	}

	return nil
}

// loadPrivateKey reads and parses a PEM-encoded PKCS#1 or PKCS#8 RSA
// private key file.
func loadPrivateKey(path string) (*rsa.PrivateKey, error) {
	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read private key: %w", err)
	}

	block, _ := pem.Decode(contents)
	if block == nil {
		return nil, errors.New("no PEM block found in private key file")
	}

	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}

	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}

	rsaKey, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, errPrivateKeyNotRSA
	}

	return rsaKey, nil
}
