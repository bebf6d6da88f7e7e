// Package config defines the settings the updater-side binaries load: the
// host app's identity, its trusted public key, and the manifest URLs it
// checks against.
//
// Config is YAML-backed and provides Load/Save/Validate helpers following
// the same shape used throughout this codebase for on-disk settings.
package config
