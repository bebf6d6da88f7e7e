package installer

import "errors"

var (
	// ErrIntegrityMismatch is returned when a downloaded package's size or
	// hashes disagree with the manifest.
	ErrIntegrityMismatch = errors.New("installer: package integrity mismatch")
	// ErrPathUnsafe is returned when a ZIP member would escape the staging
	// directory.
	ErrPathUnsafe = errors.New("installer: unsafe archive member path")
	// ErrNoCandidateSucceeded is returned when an update offers no download
	// candidate URL at all; candidates that were all tried and failed are
	// reported as (false, nil) instead.
	ErrNoCandidateSucceeded = errors.New("installer: no download candidate succeeded")
	// ErrAlreadyRunning is returned when install_root is locked by another
	// supervisor instance.
	ErrAlreadyRunning = errors.New("installer: another supervisor instance holds install_root")
)
