package verify

import (
	"bytes"
	"context"
	"crypto/md5" //nolint:gosec // test fixture hashing, mirrors production algorithm.
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/otterwire/nimbusupdate/manifest"
	"github.com/otterwire/nimbusupdate/signedstream"
)

func mustKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	return key
}

func digestsOf(t *testing.T, data []byte) (string, string) {
	t.Helper()

	sha := sha256.Sum256(data)
	md := md5.Sum(data) //nolint:gosec // see package-level note.

	return base64.StdEncoding.EncodeToString(sha[:]), base64.StdEncoding.EncodeToString(md[:])
}

// buildInstall writes a single payload file plus a signed embedded manifest
// describing it into a fresh directory.
func buildInstall(t *testing.T, key *rsa.PrivateKey) string {
	t.Helper()

	dir := t.TempDir()

	payload := []byte("hello world")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.bin"), payload, 0o644))

	sha, md := digestsOf(t, payload)

	info := &manifest.UpdateInfo{
		DisplayName: "Nimbus",
		Version:     manifest.ParseVersion("1.0.0.0"),
		Files: []manifest.FileEntry{
			{Path: "app.bin", SHA256: sha, MD5: md},
		},
	}

	data, err := manifest.Encode(info)
	require.NoError(t, err)

	manifestFile, err := os.Create(filepath.Join(dir, manifest.FileName))
	require.NoError(t, err)

	require.NoError(t, signedstream.CreateSigned(bytes.NewReader(data), manifestFile, key))
	require.NoError(t, manifestFile.Close())

	return dir
}

// TestVerifyUnpackedAcceptsMatchingTree ensures a correctly built install
// verifies.
func TestVerifyUnpackedAcceptsMatchingTree(t *testing.T) {
	t.Parallel()

	key := mustKey(t)
	dir := buildInstall(t, key)

	require.True(t, VerifyUnpacked(context.Background(), dir, nil, &key.PublicKey, false))
}

// TestVerifyUnpackedRejectsTamperedFile ensures a hash mismatch fails
// verification.
func TestVerifyUnpackedRejectsTamperedFile(t *testing.T) {
	t.Parallel()

	key := mustKey(t)
	dir := buildInstall(t, key)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.bin"), []byte("tampered"), 0o644))

	require.False(t, VerifyUnpacked(context.Background(), dir, nil, &key.PublicKey, false))
}

// TestVerifyUnpackedRejectsUnexpectedFile ensures an unlisted file fails
// verification.
func TestVerifyUnpackedRejectsUnexpectedFile(t *testing.T) {
	t.Parallel()

	key := mustKey(t)
	dir := buildInstall(t, key)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "extra.bin"), []byte("surprise"), 0o644))

	require.False(t, VerifyUnpacked(context.Background(), dir, nil, &key.PublicKey, false))
}

// TestVerifyUnpackedRejectsMissingFile ensures a missing listed file fails
// verification.
func TestVerifyUnpackedRejectsMissingFile(t *testing.T) {
	t.Parallel()

	key := mustKey(t)
	dir := buildInstall(t, key)

	require.NoError(t, os.Remove(filepath.Join(dir, "app.bin")))

	require.False(t, VerifyUnpacked(context.Background(), dir, nil, &key.PublicKey, false))
}
