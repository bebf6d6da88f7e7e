package packager

import (
	"archive/zip"
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/otterwire/nimbusupdate/internal/config"
	"github.com/otterwire/nimbusupdate/installer"
	"github.com/otterwire/nimbusupdate/manifest"
	"github.com/otterwire/nimbusupdate/signedstream"
	"github.com/otterwire/nimbusupdate/verify"
)

func writePrivateKeyPEM(t *testing.T, dir string) (*rsa.PrivateKey, string) {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	der := x509.MarshalPKCS1PrivateKey(key)
	path := filepath.Join(dir, "signing.pem")

	require.NoError(t, os.WriteFile(path, pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: der}), 0o600))

	return key, path
}

func publicKeyPEM(t *testing.T, key *rsa.PrivateKey) string {
	t.Helper()

	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)

	return string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}))
}

func buildSampleInput(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.bin"), []byte("binary contents"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "logs"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "logs", "run.log"), []byte("transient"), 0o644))

	return dir
}

func readSignedManifestFile(t *testing.T, path string, pub *rsa.PublicKey) *manifest.UpdateInfo {
	t.Helper()

	file, err := os.Open(filepath.Clean(path))
	require.NoError(t, err)
	defer func() { _ = file.Close() }()

	verifying, err := signedstream.OpenVerifying(file, pub)
	require.NoError(t, err)

	data, err := io.ReadAll(verifying)
	require.NoError(t, err)

	info, err := manifest.Decode(data)
	require.NoError(t, err)

	return info
}

// TestBuildProducesVerifiablePackage builds a package and confirms the
// unpacked tree (minus the ignored logs/ prefix) passes verify.VerifyUnpacked
// against the embedded manifest.
func TestBuildProducesVerifiablePackage(t *testing.T) {
	t.Parallel()

	outputDir := t.TempDir()
	key, keyPath := writePrivateKeyPEM(t, t.TempDir())

	cfg := &BuildConfig{
		InputFolder:    buildSampleInput(t),
		OutputFolder:   outputDir,
		PrivateKeyPath: keyPath,
		DisplayName:    "Nimbus",
		Version:        "2.0.0.0",
		ReleaseType:    "Stable",
		IgnorePaths:    []string{"logs"},
	}
	require.NoError(t, ValidateBuildConfig(cfg))

	b, err := New(cfg)
	require.NoError(t, err)
	require.NoError(t, b.Build(context.Background()))

	zipBytes, err := os.ReadFile(filepath.Join(outputDir, packageFilename))
	require.NoError(t, err)

	unpackDir := t.TempDir()
	zr, err := zip.NewReader(bytes.NewReader(zipBytes), int64(len(zipBytes)))
	require.NoError(t, err)

	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}

		rc, openErr := f.Open()
		require.NoError(t, openErr)

		data, readErr := io.ReadAll(rc)
		require.NoError(t, readErr)
		require.NoError(t, rc.Close())

		dest := filepath.Join(unpackDir, f.Name)
		require.NoError(t, os.MkdirAll(filepath.Dir(dest), 0o755))
		require.NoError(t, os.WriteFile(dest, data, 0o644))
	}

	info := readSignedManifestFile(t, filepath.Join(unpackDir, manifest.FileName), &key.PublicKey)
	require.Empty(t, info.RemoteURLs)

	require.True(t, verify.VerifyUnpacked(context.Background(), unpackDir, info, &key.PublicKey, false))
}

// TestBuildRoundTripsThroughInstaller exercises spec's round-trip property:
// build_package followed by download_and_unpack, pointed at the freshly
// built archive, yields a directory verify_unpacked accepts.
func TestBuildRoundTripsThroughInstaller(t *testing.T) {
	t.Parallel()

	outputDir := t.TempDir()
	key, keyPath := writePrivateKeyPEM(t, t.TempDir())

	cfg := &BuildConfig{
		InputFolder:    buildSampleInput(t),
		OutputFolder:   outputDir,
		PrivateKeyPath: keyPath,
		DisplayName:    "Nimbus",
		Version:        "2.0.0.0",
		ReleaseType:    "Stable",
	}
	require.NoError(t, ValidateBuildConfig(cfg))

	b, err := New(cfg)
	require.NoError(t, err)
	require.NoError(t, b.Build(context.Background()))

	zipBytes, err := os.ReadFile(filepath.Join(outputDir, packageFilename))
	require.NoError(t, err)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(zipBytes)
	}))
	defer server.Close()

	remote := readSignedManifestFile(t, filepath.Join(outputDir, manifest.FileName), &key.PublicKey)
	remote.RemoteURLs = []string{server.URL + "/package.zip"}

	installRoot := t.TempDir()
	pubPEM := publicKeyPEM(t, key)

	updaterCfg := &config.Config{AppName: "nimbus", ManifestURLs: []string{"https://example.com/m"}, PublicKeyPEM: pubPEM}
	require.NoError(t, config.Validate(updaterCfg))

	in, err := installer.New(updaterCfg, installRoot)
	require.NoError(t, err)

	ok, err := in.DownloadAndUnpack(context.Background(), remote)
	require.NoError(t, err)
	require.True(t, ok)

	installedDir := filepath.Join(installRoot, remote.Version.String())

	info := readSignedManifestFile(t, filepath.Join(installedDir, manifest.FileName), &key.PublicKey)

	require.True(t, verify.VerifyUnpacked(context.Background(), installedDir, info, &key.PublicKey, false))
}

// TestBuildStampsNowOnlyWhenReleaseTimeUnset confirms an explicit
// release_time survives into the manifest untouched, while an empty one is
// stamped with the current time at build time.
func TestBuildStampsNowOnlyWhenReleaseTimeUnset(t *testing.T) {
	t.Parallel()

	key, keyPath := writePrivateKeyPEM(t, t.TempDir())
	fixed := time.Date(2020, 6, 15, 12, 0, 0, 0, time.UTC)

	cfg := &BuildConfig{
		InputFolder:    buildSampleInput(t),
		OutputFolder:   t.TempDir(),
		PrivateKeyPath: keyPath,
		Version:        "1.0.0.0",
		ReleaseTime:    fixed.Format(time.RFC3339),
	}
	require.NoError(t, ValidateBuildConfig(cfg))

	b, err := New(cfg)
	require.NoError(t, err)
	require.NoError(t, b.Build(context.Background()))

	fixedInfo := readSignedManifestFile(t, filepath.Join(cfg.OutputFolder, manifest.FileName), &key.PublicKey)
	require.True(t, fixed.Equal(fixedInfo.ReleaseTime))

	cfg.OutputFolder = t.TempDir()
	cfg.ReleaseTime = ""

	b, err = New(cfg)
	require.NoError(t, err)

	before := time.Now().UTC()
	require.NoError(t, b.Build(context.Background()))

	stampedInfo := readSignedManifestFile(t, filepath.Join(cfg.OutputFolder, manifest.FileName), &key.PublicKey)
	require.True(t, stampedInfo.ReleaseTimeKnown())
	require.False(t, stampedInfo.ReleaseTime.Before(before))
}

// TestParseReleaseTime confirms the epoch-zero/Go-zero distinction: an
// empty string parses to the same "unknown" sentinel ReleaseTimeKnown tests
// for, not Go's zero time.Time.
func TestParseReleaseTime(t *testing.T) {
	t.Parallel()

	parsed, err := parseReleaseTime("")
	require.NoError(t, err)
	require.False(t, (&manifest.UpdateInfo{ReleaseTime: parsed}).ReleaseTimeKnown())

	parsed, err = parseReleaseTime("2020-06-15T12:00:00Z")
	require.NoError(t, err)
	require.True(t, (&manifest.UpdateInfo{ReleaseTime: parsed}).ReleaseTimeKnown())
	require.True(t, parsed.Equal(time.Date(2020, 6, 15, 12, 0, 0, 0, time.UTC)))

	_, err = parseReleaseTime("not-a-time")
	require.Error(t, err)
}
