// Package catalog implements GetBestVersion: scanning install_root for
// verified installed versions and choosing the newest among the baseline
// in-place install, the highest verified installed update, and the version
// named by the current pointer.
package catalog
