package manifest

import "strings"

// ReleaseType is a release track, ordered from the most conservative
// (Debug) to the most volatile (Nightly). Unknown sorts after Nightly: an
// unrecognized release type is treated as looser than anything named, so
// policy checks that compare against a specific channel fail closed.
type ReleaseType int

// Release types, in increasing order of volatility.
const (
	Debug ReleaseType = iota
	Stable
	Beta
	Experimental
	Canary
	Nightly
	Unknown
)

// releaseTypeNames is indexed by ReleaseType and also drives String().
var releaseTypeNames = [...]string{
	Debug:        "Debug",
	Stable:       "Stable",
	Beta:         "Beta",
	Experimental: "Experimental",
	Canary:       "Canary",
	Nightly:      "Nightly",
	Unknown:      "Unknown",
}

// String renders the canonical name of the release type.
func (r ReleaseType) String() string {
	if r < Debug || r > Unknown {
		return releaseTypeNames[Unknown]
	}

	return releaseTypeNames[r]
}

// ParseReleaseType parses a release type name case-insensitively, returning
// Unknown for anything unrecognized (including the empty string).
func ParseReleaseType(s string) ReleaseType {
	s = strings.TrimSpace(s)

	for rt, name := range releaseTypeNames {
		if strings.EqualFold(name, s) {
			return ReleaseType(rt)
		}
	}

	return Unknown
}

// MarshalJSON renders the release type as its canonical string name.
func (r ReleaseType) MarshalJSON() ([]byte, error) {
	return []byte(`"` + r.String() + `"`), nil
}

// UnmarshalJSON parses the release type from its string name, case-insensitively.
func (r *ReleaseType) UnmarshalJSON(data []byte) error {
	*r = ParseReleaseType(strings.Trim(string(data), `"`))

	return nil
}
