// Package packager builds a signed, distributable update package from an
// input folder: a package.zip containing the application tree plus a
// signed embedded manifest, and a sibling signed remote manifest describing
// the zip itself. It is the inverse of package installer/unpacking.
package packager
