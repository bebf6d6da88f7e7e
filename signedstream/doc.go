// Package signedstream wraps a byte stream with a prepended RSA signature.
//
// The wire format is `[u32 big-endian signature length][signature
// bytes][payload bytes]`. The signature covers the SHA-1 hash of the
// payload, produced with RSA PKCS#1 v1.5 — dictated by compatibility with
// already-published manifests; this is never silently upgraded to a
// stronger hash.
//
// Every manifest this project reads or writes goes through this package.
// A manifest that fails signature verification is indistinguishable from no
// manifest at all: callers see an error, never partially-trusted bytes.
package signedstream
