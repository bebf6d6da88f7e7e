package supervisor

import (
	"archive/zip"
	"bytes"
	"context"
	"crypto/md5" //nolint:gosec // test fixture hashing, mirrors production algorithm.
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/otterwire/nimbusupdate/catalog"
	"github.com/otterwire/nimbusupdate/internal/config"
	"github.com/otterwire/nimbusupdate/fetcher"
	"github.com/otterwire/nimbusupdate/installer"
	"github.com/otterwire/nimbusupdate/manifest"
	"github.com/otterwire/nimbusupdate/signedstream"
)

func mustKeyPair(t *testing.T) (*rsa.PrivateKey, string) {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)

	return key, string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}))
}

// TestRunWrappedNeverRunsWorkloadDirectly ensures the Never strategy skips
// the background worker entirely.
func TestRunWrappedNeverRunsWorkloadDirectly(t *testing.T) {
	t.Parallel()

	sctx := &Context{InstalledBaseDir: t.TempDir()}

	ran := false
	code := RunWrapped(context.Background(), sctx, Never, func(context.Context) int {
		ran = true
		return 42
	})

	require.True(t, ran)
	require.Equal(t, 42, code)
}

// TestRunWrappedCheckBeforeJoinsBeforeWorkload ensures a CheckBefore
// strategy completes its check before the workload runs, and that finding
// no update leaves the workload's exit code untouched.
func TestRunWrappedCheckBeforeJoinsBeforeWorkload(t *testing.T) {
	t.Parallel()

	key, pemText := mustKeyPair(t)

	var checked atomic.Bool

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		checked.Store(true)

		data, err := manifest.Encode(&manifest.UpdateInfo{Version: manifest.ParseVersion("1.0.0.0"), ReleaseType: manifest.Stable})
		require.NoError(t, err)
		require.NoError(t, signedstream.CreateSigned(bytes.NewReader(data), w, key))
	}))
	defer server.Close()

	cfg := &config.Config{AppName: "nimbus", ManifestURLs: []string{server.URL}, PublicKeyPEM: pemText, DefaultChannel: "Stable"}
	require.NoError(t, config.Validate(cfg))

	f, err := fetcher.New(cfg, "install-1", manifest.ParseVersion("1.0.0.0"), manifest.Stable, nil)
	require.NoError(t, err)

	sctx := &Context{InstalledBaseDir: t.TempDir(), Channel: manifest.Stable, Fetcher: f}

	checkRanBeforeWorkload := false

	code := RunWrapped(context.Background(), sctx, CheckBefore, func(context.Context) int {
		checkRanBeforeWorkload = checked.Load()
		return 7
	})

	require.True(t, checkRanBeforeWorkload)
	require.Equal(t, 7, code)
}

// TestRunWrappedInstallAfterInstallsOnceWorkloadReturns exercises the full
// check+download+promote pipeline under the InstallAfter timing, confirming
// the install lands only after the workload has already returned.
func TestRunWrappedInstallAfterInstallsOnceWorkloadReturns(t *testing.T) {
	t.Parallel()

	key, pemText := mustKeyPair(t)

	payload := []byte("nimbus binary contents")
	sha := sha256.Sum256(payload)
	md := md5.Sum(payload) //nolint:gosec // see package-level note.

	embedded := &manifest.UpdateInfo{
		Version: manifest.ParseVersion("2.0.0.0"),
		Files: []manifest.FileEntry{
			{Path: "app.bin", SHA256: base64.StdEncoding.EncodeToString(sha[:]), MD5: base64.StdEncoding.EncodeToString(md[:])},
		},
	}

	embeddedData, err := manifest.Encode(embedded)
	require.NoError(t, err)

	var signedEmbedded bytes.Buffer
	require.NoError(t, signedstream.CreateSigned(bytes.NewReader(embeddedData), &signedEmbedded, key))

	var zipBuf bytes.Buffer
	zw := zip.NewWriter(&zipBuf)

	fw, err := zw.Create("app.bin")
	require.NoError(t, err)
	_, err = fw.Write(payload)
	require.NoError(t, err)

	mw, err := zw.Create(manifest.FileName)
	require.NoError(t, err)
	_, err = mw.Write(signedEmbedded.Bytes())
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	zipBytes := zipBuf.Bytes()
	zipSHA := sha256.Sum256(zipBytes)
	zipMD := md5.Sum(zipBytes) //nolint:gosec // see package-level note.

	archiveServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(zipBytes)
	}))
	defer archiveServer.Close()

	remote := &manifest.UpdateInfo{
		Version:        manifest.ParseVersion("2.0.0.0"),
		ReleaseType:    manifest.Stable,
		CompressedSize: int64(len(zipBytes)),
		SHA256:         base64.StdEncoding.EncodeToString(zipSHA[:]),
		MD5:            base64.StdEncoding.EncodeToString(zipMD[:]),
		RemoteURLs:     []string{archiveServer.URL + "/package.zip"},
	}

	manifestServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := manifest.Encode(remote)
		require.NoError(t, err)
		require.NoError(t, signedstream.CreateSigned(bytes.NewReader(data), w, key))
	}))
	defer manifestServer.Close()

	installRoot := t.TempDir()
	cfg := &config.Config{
		AppName:        "nimbus",
		ManifestURLs:   []string{manifestServer.URL},
		PublicKeyPEM:   pemText,
		DefaultChannel: "Stable",
	}
	require.NoError(t, config.Validate(cfg))

	f, err := fetcher.New(cfg, "install-1", manifest.ParseVersion("1.0.0.0"), manifest.Stable, nil)
	require.NoError(t, err)

	in, err := installer.New(cfg, installRoot)
	require.NoError(t, err)

	pub, err := config.ParsePublicKey(pemText)
	require.NoError(t, err)

	cat := catalog.New(installRoot, t.TempDir(), manifest.ParseVersion("1.0.0.0"), pub)

	sctx := &Context{InstalledBaseDir: cfg.AppName, Channel: manifest.Stable, Fetcher: f, Installer: in, Catalog: cat}

	workloadReturned := false

	code := RunWrapped(context.Background(), sctx, InstallAfter, func(context.Context) int {
		workloadReturned = true

		_, statErr := os.Stat(filepath.Join(installRoot, "2.0.0.0"))
		require.True(t, os.IsNotExist(statErr), "install must not have happened before the workload ran")

		return 0
	})

	require.True(t, workloadReturned)
	require.Equal(t, 0, code)

	_, err = os.Stat(filepath.Join(installRoot, "2.0.0.0", "app.bin"))
	require.NoError(t, err)

	sel, err := cat.GetBestVersion(false)
	require.NoError(t, err)
	require.Equal(t, "2.0.0.0", sel.Version.String())
}
