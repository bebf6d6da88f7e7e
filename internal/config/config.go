package config

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the settings an updater-side binary (the supervisor or a
// diagnostic tool) needs to check for, fetch, and trust updates.
type Config struct {
	// AppName identifies the host application; it is uppercased to derive
	// the AUTOUPDATER_<APP>_* environment variable family and is used when
	// resolving platform-specific install directories.
	AppName string `yaml:"app_name"`
	// SelfVersion is this running binary's own version, used as the
	// baseline for update comparisons.
	SelfVersion string `yaml:"self_version"`
	// DefaultChannel is substituted for an unspecified (Unknown) requested
	// channel.
	DefaultChannel string `yaml:"default_channel"`
	// ManifestURLs is the ordered list of candidate manifest URLs to try.
	ManifestURLs []string `yaml:"manifest_urls"`
	// AlternateMirrors is an ordered list of alternate hosts that serve the
	// same package filenames as the primary remote URLs.
	AlternateMirrors []string `yaml:"alternate_mirrors,omitempty"`
	// PublicKeyPEM is the PEM-encoded RSA public key manifests must verify
	// against.
	PublicKeyPEM string `yaml:"public_key_pem"`
	// DefaultStrategy names the update strategy used when no environment
	// override is present.
	DefaultStrategy string `yaml:"default_strategy"`
	// IgnoreWebroot skips a top-level "webroot" directory during install
	// verification.
	IgnoreWebroot bool `yaml:"ignore_webroot"`
	// RequestTimeout bounds manifest and package HTTP requests.
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

const (
	// DefaultConfigFilename is the default filename for updater settings.
	DefaultConfigFilename = "nimbusupdate-settings.yaml"

	// DefaultFilePermissions is the permission mode used when writing
	// settings files.
	DefaultFilePermissions = 0o600

	// DefaultRequestTimeout bounds manifest and package HTTP requests when
	// the config does not specify one.
	DefaultRequestTimeout = 30 * time.Second
)

var (
	// errAppNameRequired is returned when AppName is missing.
	errAppNameRequired = errors.New("app name must be provided")
	// errManifestURLsRequired is returned when no manifest URLs are configured.
	errManifestURLsRequired = errors.New("at least one manifest url must be provided")
	// errPublicKeyRequired is returned when no public key is configured.
	errPublicKeyRequired = errors.New("public key pem must be provided")
	// errConfigIsNotSet is returned when a nil configuration is passed to Save.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errPublicKeyNotRSA is returned when the PEM block decodes to a non-RSA key.
	errPublicKeyNotRSA = errors.New("public key is not an RSA key")
)

// Load reads configuration from the provided path and validates essential fields.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	var cfg Config
	if err = yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err = Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes cfg to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	if err = os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate checks required fields, applies defaults, and sanity-checks the
// manifest URLs and public key.
func Validate(cfg *Config) error {
	if strings.TrimSpace(cfg.AppName) == "" {
		return errAppNameRequired
	}

	if len(cfg.ManifestURLs) == 0 {
		return errManifestURLsRequired
	}

	for _, u := range cfg.ManifestURLs {
		if _, err := url.ParseRequestURI(u); err != nil {
			return fmt.Errorf("invalid manifest url %q: %w", u, err)
		}
	}

	if strings.TrimSpace(cfg.PublicKeyPEM) == "" {
		return errPublicKeyRequired
	}

	if _, err := ParsePublicKey(cfg.PublicKeyPEM); err != nil {
		return fmt.Errorf("invalid public key: %w", err)
	}

	if cfg.DefaultChannel == "" {
		cfg.DefaultChannel = "Stable"
	}

	if cfg.DefaultStrategy == "" {
		cfg.DefaultStrategy = "CheckDuring"
	}

	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}

	return nil
}

// ParsePublicKey decodes a PEM-encoded PKIX RSA public key.
func ParsePublicKey(pemText string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(pemText))
	if block == nil {
		return nil, errors.New("no PEM block found")
	}

	parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}

	rsaKey, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return nil, errPublicKeyNotRSA
	}

	return rsaKey, nil
}
