package manifest

import (
	"fmt"
	"strconv"
	"strings"
)

// maxVersionFields is the maximum number of dotted components a Version
// tracks (Major.Minor.Build.Revision, mirroring the four-field policy this
// format was designed to interoperate with).
const maxVersionFields = 4

// minVersionFields is the field count used for the "unparsable" sentinel.
const minVersionFields = 2

// Version is a dotted-numeric release version with up to four components.
// The zero value prints as "0.0" and compares lower than any version with a
// positive component.
type Version struct {
	fields []int
}

// ParseVersion parses a dotted numeric string such as "2.1.0.4" into a
// Version. Any component that fails to parse as a non-negative integer, or
// a string with more than four components, causes ParseVersion to return the
// "0.0" sentinel rather than an error — callers never need to special-case a
// malformed version string.
func ParseVersion(s string) Version {
	s = strings.TrimSpace(s)
	if s == "" {
		return Version{fields: []int{0, 0}}
	}

	parts := strings.Split(s, ".")
	if len(parts) > maxVersionFields {
		return Version{fields: []int{0, 0}}
	}

	fields := make([]int, 0, len(parts))

	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || n < 0 {
			return Version{fields: []int{0, 0}}
		}

		fields = append(fields, n)
	}

	if len(fields) < minVersionFields {
		return Version{fields: []int{0, 0}}
	}

	return Version{fields: fields}
}

// String renders the version using exactly the number of fields it was
// parsed with (or produced with), e.g. "2.1.0.0" stays four fields, "1.2"
// stays two.
func (v Version) String() string {
	fields := v.fields
	if len(fields) == 0 {
		fields = []int{0, 0}
	}

	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = strconv.Itoa(f)
	}

	return strings.Join(parts, ".")
}

// field returns the component at index i, or 0 if the version has fewer
// fields than that (so two versions with different field counts still
// compare correctly).
func (v Version) field(i int) int {
	if i < len(v.fields) {
		return v.fields[i]
	}

	return 0
}

// Compare returns -1, 0, or 1 if v is less than, equal to, or greater than
// other, comparing component-by-component and treating missing trailing
// components as zero.
func (v Version) Compare(other Version) int {
	for i := range maxVersionFields {
		a, b := v.field(i), other.field(i)

		switch {
		case a < b:
			return -1
		case a > b:
			return 1
		}
	}

	return 0
}

// LessThan reports whether v sorts strictly before other.
func (v Version) LessThan(other Version) bool {
	return v.Compare(other) < 0
}

// GreaterThan reports whether v sorts strictly after other.
func (v Version) GreaterThan(other Version) bool {
	return v.Compare(other) > 0
}

// IsZero reports whether v is the "0.0" unparsable/unset sentinel.
func (v Version) IsZero() bool {
	for _, f := range v.fields {
		if f != 0 {
			return false
		}
	}

	return true
}

// MarshalJSON renders the version as its dotted-numeric string form.
func (v Version) MarshalJSON() ([]byte, error) {
	return fmt.Appendf(nil, `"%s"`, v.String()), nil
}

// UnmarshalJSON parses the version from its dotted-numeric string form,
// falling back to the "0.0" sentinel for malformed input per ParseVersion.
func (v *Version) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	*v = ParseVersion(s)

	return nil
}
