// Package supervisor implements the update-strategy state machine that
// wraps a host's workload: deciding when (if at all) to check for and
// install an update relative to running the workload, and the top-level
// launch loop that re-execs the newest installed version until the child
// stops requesting a relaunch.
//
// A Strategy decomposes into three orthogonal facets - whether to check,
// whether to download on top of checking, and when the check/download
// happens relative to the workload - collapsing what would otherwise be
// seven independent cases into one small struct.
package supervisor
