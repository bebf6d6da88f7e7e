package manifest

import (
	"crypto/rsa"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/otterwire/nimbusupdate/signedstream"
)

// ReadInstalled opens <folder>/autoupdate.manifest through SignedStream and
// decodes it. It returns (nil, nil) — not an error — when the file is
// missing, the signature is invalid, or the body fails to parse: all three
// are equally "no usable manifest here" from the caller's perspective.
func ReadInstalled(folder string, publicKey *rsa.PublicKey) (*UpdateInfo, error) {
	file, err := os.Open(filepath.Clean(filepath.Join(folder, FileName))) //nolint:gosec // folder is a resolved install_root subdirectory.
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("open %s: %w", FileName, err)
	}

	defer func() {
		_ = file.Close()
	}()

	verifying, err := signedstream.OpenVerifying(file, publicKey)
	if err != nil {
		return nil, nil //nolint:nilerr // malformed framing is "no usable manifest", not a caller-visible error.
	}

	data, err := io.ReadAll(verifying)
	if err != nil {
		return nil, nil //nolint:nilerr // signature/read failure is "no usable manifest".
	}

	info, err := Decode(data)
	if err != nil {
		return nil, nil //nolint:nilerr // malformed body is "no usable manifest".
	}

	return info, nil
}
