package verify

import (
	"context"
	"crypto/md5" //nolint:gosec // integrity check, not a security boundary; manifest format mandates MD5 alongside SHA-256.
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/otterwire/nimbusupdate/internal/logger"
	"github.com/otterwire/nimbusupdate/manifest"
)

// VerifyUnpacked validates folder against its own embedded signed manifest.
// If expected is non-nil, the embedded manifest's display name and release
// time must match it. ignoreWebroot skips any path rooted at "webroot".
//
// Any error is reported through the logger and folds into a false result:
// callers never need to distinguish "verification failed" from "could not
// even attempt verification".
func VerifyUnpacked(ctx context.Context, folder string, expected *manifest.UpdateInfo, publicKey *rsa.PublicKey, ignoreWebroot bool) bool {
	embedded, err := manifest.ReadInstalled(folder, publicKey)
	if err != nil || embedded == nil {
		logger.WarnKV(ctx, "No usable embedded manifest", "folder", folder, "error", err)
		return false
	}

	if expected != nil &&
		(embedded.DisplayName != expected.DisplayName || !embedded.ReleaseTime.Equal(expected.ReleaseTime)) {
		logger.WarnKV(ctx, "Embedded manifest identity mismatch", "folder", folder)
		return false
	}

	manifestEntry, err := synthesizeManifestEntry(folder)
	if err != nil {
		logger.WarnKV(ctx, "Could not hash manifest file", "folder", folder, "error", err)
		return false
	}

	expectedFiles := make(map[string]manifest.FileEntry, len(embedded.Files)+1)
	var ignorePrefixes []string

	for _, entry := range embedded.Files {
		key := normalize(entry.Path)

		if entry.Ignore {
			// An ignored directory admits anything beneath it; an ignored
			// file admits only itself.
			ignorePrefixes = append(ignorePrefixes, key+string(filepath.Separator))

			continue
		}

		expectedFiles[key] = entry
	}

	expectedFiles[normalize(manifest.FileName)] = manifestEntry

	ok, err := walkAndVerify(folder, expectedFiles, ignorePrefixes, ignoreWebroot)
	if err != nil {
		logger.WarnKV(ctx, "Unpacked tree verification failed", "folder", folder, "error", err)
		return false
	}

	return ok
}

func walkAndVerify(folder string, expected map[string]manifest.FileEntry, ignorePrefixes []string, ignoreWebroot bool) (bool, error) {
	err := filepath.WalkDir(folder, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}

		if d.IsDir() {
			return nil
		}

		rel, relErr := filepath.Rel(folder, path)
		if relErr != nil {
			return relErr
		}

		rel = normalize(rel)

		if ignoreWebroot && isUnderWebroot(rel) {
			return nil
		}

		entry, known := expected[rel]
		if !known {
			if underAnyPrefix(rel, ignorePrefixes) {
				return nil
			}

			return errUnexpectedFile(rel)
		}

		if entry.IsDirectory() {
			delete(expected, rel)
			return nil
		}

		sha256Digest, md5Digest, hashErr := hashFile(path)
		if hashErr != nil {
			return hashErr
		}

		if sha256Digest != entry.SHA256 || md5Digest != entry.MD5 {
			return errHashMismatch(rel)
		}

		delete(expected, rel)

		return nil
	})
	if err != nil {
		return false, err
	}

	for rel, entry := range expected {
		if entry.IsDirectory() {
			continue
		}

		if ignoreWebroot && isUnderWebroot(rel) {
			continue
		}

		return false, errMissingFiles(rel)
	}

	return true, nil
}

func synthesizeManifestEntry(folder string) (manifest.FileEntry, error) {
	path := filepath.Join(folder, manifest.FileName)

	sha256Digest, md5Digest, err := hashFile(path)
	if err != nil {
		return manifest.FileEntry{}, err
	}

	return manifest.FileEntry{
		Path:   manifest.FileName,
		SHA256: sha256Digest,
		MD5:    md5Digest,
	}, nil
}

func hashFile(path string) (sha256Base64, md5Base64 string, err error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return "", "", err
	}

	sha256Sum := sha256.Sum256(data)
	md5Sum := md5.Sum(data) //nolint:gosec // see package-level note.

	return base64.StdEncoding.EncodeToString(sha256Sum[:]), base64.StdEncoding.EncodeToString(md5Sum[:]), nil
}

func normalize(p string) string {
	return filepath.FromSlash(strings.TrimSuffix(p, "/"))
}

func isUnderWebroot(rel string) bool {
	return rel == "webroot" || strings.HasPrefix(rel, "webroot"+string(filepath.Separator))
}

func underAnyPrefix(rel string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if strings.HasPrefix(rel+string(filepath.Separator), prefix) {
			return true
		}
	}

	return false
}
