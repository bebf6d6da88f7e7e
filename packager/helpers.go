package packager

import (
	"crypto/md5" //nolint:gosec // matches the manifest's own dual-hash scheme; not used for security.
	"crypto/sha256"
	"encoding/base64"
	"path"
	"strings"
)

func digestsOf(data []byte) (sha256Base64, md5Base64 string) {
	sha := sha256.Sum256(data)
	md := md5.Sum(data) //nolint:gosec // see package-level note.

	return base64.StdEncoding.EncodeToString(sha[:]), base64.StdEncoding.EncodeToString(md[:])
}

// underAnyPrefix reports whether rel (forward-slash, archive-relative)
// equals or sits under any of the given prefixes.
func underAnyPrefix(rel string, prefixes []string) bool {
	for _, prefix := range prefixes {
		clean := path.Clean(strings.TrimPrefix(prefix, "/"))
		if rel == clean || strings.HasPrefix(rel, clean+"/") {
			return true
		}
	}

	return false
}

func toForwardSlash(p string) string {
	return strings.ReplaceAll(p, "\\", "/")
}
