package supervisor

import "strings"

// Strategy controls whether and when the supervisor checks for and installs
// an update relative to running the wrapped workload.
type Strategy int

const (
	CheckBefore Strategy = iota
	CheckDuring
	CheckAfter
	InstallBefore
	InstallDuring
	InstallAfter
	Never
)

var strategyNames = map[Strategy]string{
	CheckBefore:   "CheckBefore",
	CheckDuring:   "CheckDuring",
	CheckAfter:    "CheckAfter",
	InstallBefore: "InstallBefore",
	InstallDuring: "InstallDuring",
	InstallAfter:  "InstallAfter",
	Never:         "Never",
}

// String returns the strategy's canonical name.
func (s Strategy) String() string {
	if name, ok := strategyNames[s]; ok {
		return name
	}

	return "Unknown"
}

// ParseStrategy resolves a strategy name case-insensitively. ok is false for
// any unrecognized name, leaving the caller's default in place.
func ParseStrategy(name string) (Strategy, bool) {
	for strategy, known := range strategyNames {
		if strings.EqualFold(known, name) {
			return strategy, true
		}
	}

	return Never, false
}

// timing is when a strategy's background worker runs relative to the
// workload.
type timing int

const (
	timingNone timing = iota
	timingBefore
	timingDuring
	timingAfter
)

// decomposed is the three-boolean (well, two-boolean-and-an-enum) shape
// every one of the seven strategies reduces to, removing the combinatorial
// seven-cases-by-three-phases structure the enum would otherwise demand.
type decomposed struct {
	check    bool
	download bool
	timing   timing
}

func (s Strategy) decompose() decomposed {
	switch s {
	case CheckBefore:
		return decomposed{check: true, timing: timingBefore}
	case CheckDuring:
		return decomposed{check: true, timing: timingDuring}
	case CheckAfter:
		return decomposed{check: true, timing: timingAfter}
	case InstallBefore:
		return decomposed{check: true, download: true, timing: timingBefore}
	case InstallDuring:
		return decomposed{check: true, download: true, timing: timingDuring}
	case InstallAfter:
		return decomposed{check: true, download: true, timing: timingAfter}
	case Never:
		return decomposed{}
	default:
		return decomposed{}
	}
}
