// Package verify implements VerifyUnpacked: validating an unpacked install
// directory against its own embedded signed manifest, checking per-file
// hashes, completeness, and absence of unexpected files modulo declared
// ignore-prefixes.
package verify
