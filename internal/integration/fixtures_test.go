// Package integration exercises manifest fetching, package installation,
// catalog selection, and the supervisor's launch loop together, against
// the concrete end-to-end scenarios spec.md §8 describes.
package integration

import (
	"archive/zip"
	"bytes"
	"crypto/md5" //nolint:gosec // test fixture hashing, mirrors production algorithm.
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/otterwire/nimbusupdate/manifest"
	"github.com/otterwire/nimbusupdate/signedstream"
)

// keyPair is a throwaway RSA key used to sign fixture manifests.
type keyPair struct {
	private *rsa.PrivateKey
	pemText string
}

func generateKeyPair(t *testing.T) keyPair {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)

	return keyPair{
		private: key,
		pemText: string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})),
	}
}

// signManifest encodes info and signs it, optionally corrupting a single
// byte of the resulting stream to simulate transport-level tampering.
func signManifest(t *testing.T, info *manifest.UpdateInfo, key *rsa.PrivateKey, corruptByte int) []byte {
	t.Helper()

	data, err := manifest.Encode(info)
	require.NoError(t, err)

	var signed bytes.Buffer
	require.NoError(t, signedstream.CreateSigned(bytes.NewReader(data), &signed, key))

	out := signed.Bytes()
	if corruptByte >= 0 && corruptByte < len(out) {
		out[corruptByte] ^= 0xFF
	}

	return out
}

// buildArchive produces a package.zip containing a single file named
// "app.bin" with the given payload, plus a signed embedded manifest
// describing it. It returns the zip bytes and the FileEntry table so the
// caller can build a matching remote manifest.
func buildArchive(t *testing.T, key *rsa.PrivateKey, payload []byte, version string) ([]byte, []manifest.FileEntry) {
	t.Helper()

	sha := sha256.Sum256(payload)
	md := md5.Sum(payload) //nolint:gosec // see package-level note.

	files := []manifest.FileEntry{{
		Path:   "app.bin",
		SHA256: base64.StdEncoding.EncodeToString(sha[:]),
		MD5:    base64.StdEncoding.EncodeToString(md[:]),
	}}

	embedded := &manifest.UpdateInfo{
		Version: manifest.ParseVersion(version),
		Files:   files,
	}

	var zipBuf bytes.Buffer
	zw := zip.NewWriter(&zipBuf)

	fw, err := zw.Create("app.bin")
	require.NoError(t, err)
	_, err = fw.Write(payload)
	require.NoError(t, err)

	signedEmbedded := signManifest(t, embedded, key, -1)

	mw, err := zw.Create(manifest.FileName)
	require.NoError(t, err)
	_, err = mw.Write(signedEmbedded)
	require.NoError(t, err)

	require.NoError(t, zw.Close())

	return zipBuf.Bytes(), files
}

// remoteManifestFor derives a remote manifest (files/uncompressed size
// cleared, hashes of the zip itself) describing a built archive, following
// the same derivation packager.Builder.Build performs.
func remoteManifestFor(zipBytes []byte, version string, releaseType manifest.ReleaseType, remoteURL string) *manifest.UpdateInfo {
	sha := sha256.Sum256(zipBytes)
	md := md5.Sum(zipBytes) //nolint:gosec // see package-level note.

	return &manifest.UpdateInfo{
		Version:        manifest.ParseVersion(version),
		ReleaseType:    releaseType,
		CompressedSize: int64(len(zipBytes)),
		SHA256:         base64.StdEncoding.EncodeToString(sha[:]),
		MD5:            base64.StdEncoding.EncodeToString(md[:]),
		RemoteURLs:     []string{remoteURL},
	}
}

// serveBytes starts an httptest server returning body for every request.
func serveBytes(t *testing.T, body []byte) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(body)
	}))
	t.Cleanup(server.Close)

	return server
}

// serveManifest starts an httptest server returning a freshly signed
// manifest for every request, so handlers can mutate info between requests
// if needed by capturing it by reference.
func serveManifest(t *testing.T, info *manifest.UpdateInfo, key *rsa.PrivateKey, corruptByte int) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(signManifest(t, info, key, corruptByte))
	}))
	t.Cleanup(server.Close)

	return server
}
