// Package fetcher implements CheckForUpdate: downloading a signed manifest
// from one of several candidate URLs, verifying it, and applying the
// version/channel/release-type policy that decides whether it represents a
// real update.
package fetcher
