// Package installer implements DownloadAndUnpack: fetching a package
// archive named by a manifest, verifying its integrity, unpacking it into a
// staging directory with path-escape defenses, and atomically promoting the
// verified staging tree into install_root. It also garbage-collects
// obsolete installed versions and guards install_root against concurrent
// supervisor instances.
package installer
