// Package manifest defines the UpdateInfo record that describes a release:
// identity, release metadata, archive hashes/size, remote URLs, and the
// per-file table used to verify an unpacked installation.
//
// A manifest is only ever trusted after passing through signedstream.
// This package does not itself verify signatures; it only models the JSON
// body and the dotted-numeric version scheme used to order releases.
package manifest
