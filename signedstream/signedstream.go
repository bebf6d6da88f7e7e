package signedstream

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1" //nolint:gosec // load-bearing for interop with already-published manifests; see doc.go.
	"encoding/binary"
	"fmt"
	"io"
)

// CreateSigned reads the full payload from input and writes it to output as
// `[u32 signature length][signature][payload]`. The signature covers the
// SHA-1 hash of the payload using RSA PKCS#1 v1.5.
func CreateSigned(input io.Reader, output io.Writer, privateKey *rsa.PrivateKey) error {
	payload, err := io.ReadAll(input)
	if err != nil {
		return fmt.Errorf("read payload: %w", err)
	}

	hash := sha1.Sum(payload) //nolint:gosec // see doc.go.

	signature, err := rsa.SignPKCS1v15(rand.Reader, privateKey, crypto.SHA1, hash[:])
	if err != nil {
		return fmt.Errorf("sign payload: %w", err)
	}

	var lengthPrefix [4]byte
	binary.BigEndian.PutUint32(lengthPrefix[:], uint32(len(signature))) //nolint:gosec // signature length fits uint32.

	if _, err = output.Write(lengthPrefix[:]); err != nil {
		return fmt.Errorf("write signature length: %w", err)
	}

	if _, err = output.Write(signature); err != nil {
		return fmt.Errorf("write signature: %w", err)
	}

	if _, err = output.Write(payload); err != nil {
		return fmt.Errorf("write payload: %w", err)
	}

	return nil
}

// OpenVerifying reads the length-prefixed signature from input and returns a
// reader that streams the remainder of input while verifying it against
// publicKey. Verification happens as the final byte is consumed: a Read
// call that reaches end-of-stream returns ErrSignatureInvalid instead of
// io.EOF when the hash does not match, so no caller — streaming or
// read-to-completion — can observe a fully "clean" read of tampered bytes.
func OpenVerifying(input io.Reader, publicKey *rsa.PublicKey) (io.Reader, error) {
	var lengthPrefix [4]byte

	if _, err := io.ReadFull(input, lengthPrefix[:]); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFormat, err)
	}

	signatureLength := binary.BigEndian.Uint32(lengthPrefix[:])

	signature := make([]byte, signatureLength)
	if _, err := io.ReadFull(input, signature); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTruncated, err)
	}

	return &verifyingReader{
		source:    input,
		publicKey: publicKey,
		signature: signature,
		hasher:    sha1.New(), //nolint:gosec // see doc.go.
	}, nil
}

// verifyingReader streams the payload portion of a signed stream while
// feeding every byte into a running SHA-1 hash, verified against the
// declared signature once the underlying reader is exhausted.
type verifyingReader struct {
	source    io.Reader
	publicKey *rsa.PublicKey
	signature []byte
	hasher    hashWriter
	verified  bool
	failed    error
}

// hashWriter is the subset of hash.Hash this reader needs; kept narrow so
// tests can substitute a fake without importing crypto/sha1 directly.
type hashWriter interface {
	io.Writer
	Sum(b []byte) []byte
}

func (r *verifyingReader) Read(p []byte) (int, error) {
	if r.failed != nil {
		return 0, r.failed
	}

	n, err := r.source.Read(p)
	if n > 0 {
		_, _ = r.hasher.Write(p[:n])
	}

	if err == nil {
		return n, nil
	}

	if err != io.EOF {
		return n, err
	}

	if verifyErr := r.verifyOnce(); verifyErr != nil {
		r.failed = verifyErr

		if n > 0 {
			// Surface the failure on the next Read rather than this one.
			return n, nil
		}

		return 0, verifyErr
	}

	return n, io.EOF
}

// verifyOnce checks the accumulated hash against the declared signature,
// memoizing the result so repeated calls (e.g. Read then Close) agree.
func (r *verifyingReader) verifyOnce() error {
	if r.verified {
		return nil
	}

	sum := r.hasher.Sum(nil)
	if err := rsa.VerifyPKCS1v15(r.publicKey, crypto.SHA1, sum, r.signature); err != nil {
		return ErrSignatureInvalid
	}

	r.verified = true

	return nil
}

// Close re-validates the accumulated hash, for consumers that drained the
// reader via a path that doesn't surface the final Read's error (e.g. they
// stopped reading once they had "enough" bytes for their own parser).
func (r *verifyingReader) Close() error {
	return r.verifyOnce()
}
