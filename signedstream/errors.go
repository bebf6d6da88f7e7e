package signedstream

import "errors"

var (
	// ErrFormat is returned when the length-prefix header is absent or
	// malformed.
	ErrFormat = errors.New("signedstream: malformed framing")
	// ErrTruncated is returned when the stream ends before the declared
	// number of signature bytes has been read.
	ErrTruncated = errors.New("signedstream: truncated signature")
	// ErrSignatureInvalid is returned when the accumulated payload hash
	// does not verify against the declared signature.
	ErrSignatureInvalid = errors.New("signedstream: signature invalid")
)
