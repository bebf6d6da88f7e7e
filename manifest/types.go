package manifest

import "time"

// FileEntry describes a single member of an unpacked installation, as
// carried by the embedded manifest's Files table.
type FileEntry struct {
	// Path is archive-relative and forward-slash separated. Directory
	// entries carry a trailing "/".
	Path string `json:"path"`
	// Ignore marks a file that may or may not be present (for a directory
	// entry, it marks an ignore-prefix: anything under that directory is
	// allowed to exist without being listed).
	Ignore bool `json:"ignore"`
	// LastWriteTime is informational; it is not used to gate verification.
	LastWriteTime time.Time `json:"last_write_time"`
	// SHA256 is the base64-encoded SHA-256 digest of the file's contents.
	// Empty for directory entries.
	SHA256 string `json:"sha256"`
	// MD5 is the base64-encoded MD5 digest of the file's contents. Empty
	// for directory entries.
	MD5 string `json:"md5"`
}

// IsDirectory reports whether the entry describes a directory rather than a
// file, per the trailing-slash convention.
func (f FileEntry) IsDirectory() bool {
	return len(f.Path) > 0 && f.Path[len(f.Path)-1] == '/'
}

// UpdateInfo is the central manifest record: the signed JSON document
// describing either a remote release (RemoteURLs populated, Files nil) or
// an embedded, in-archive release (Files populated, RemoteURLs nil).
type UpdateInfo struct {
	// DisplayName is a human-readable release name.
	DisplayName string `json:"displayname"`
	// Version is the dotted numeric release version.
	Version Version `json:"version"`
	// ReleaseTime is the UTC release instant. The epoch-zero value means
	// "unknown" — see ReleaseTimeKnown.
	ReleaseTime time.Time `json:"release_time"`
	// ReleaseType is the release track this build was published to.
	ReleaseType ReleaseType `json:"release_type"`

	// CompressedSize is the byte size of the package archive. Remote
	// manifest only.
	CompressedSize int64 `json:"compressed_size"`
	// MD5 is the base64-encoded MD5 digest of the package archive. Remote
	// manifest only.
	MD5 string `json:"md5"`
	// SHA256 is the base64-encoded SHA-256 digest of the package archive.
	// Remote manifest only.
	SHA256 string `json:"sha256"`
	// RemoteURLs lists candidate package download URLs, in preference
	// order. Remote manifest only.
	RemoteURLs []string `json:"remote_urls,omitempty"`

	// UncompressedSize is the sum of member sizes in the unpacked install.
	UncompressedSize int64 `json:"uncompressed_size"`
	// Files is the per-file table used to verify an unpacked install.
	// Embedded manifest only.
	Files []FileEntry `json:"files,omitempty"`
}

// ReleaseTimeKnown reports whether ReleaseTime carries a real value, as
// opposed to the epoch-zero "unknown" sentinel.
func (u *UpdateInfo) ReleaseTimeKnown() bool {
	return u.ReleaseTime.Unix() != 0
}

// IsRemote reports whether this manifest describes a downloadable remote
// release (RemoteURLs populated) rather than an embedded, in-archive one.
func (u *UpdateInfo) IsRemote() bool {
	return len(u.RemoteURLs) > 0
}
