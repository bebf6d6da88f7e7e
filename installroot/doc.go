// Package installroot resolves the single writable directory this process
// uses to stash unpacked update installations: the install_root.
//
// Resolution tries, in order, an explicit environment override, a set of
// pre-existing "override" locations, legacy locations (only if already
// populated), and finally a set of locations created on demand. The first
// candidate that proves writable wins.
package installroot
