package installer

import (
	"crypto/md5" //nolint:gosec // integrity check, not a security boundary; manifest format mandates MD5 alongside SHA-256.
	"encoding/base64"
)

func md5Base64OfBytes(data []byte) string {
	sum := md5.Sum(data) //nolint:gosec // see package-level note.
	return base64.StdEncoding.EncodeToString(sum[:])
}
