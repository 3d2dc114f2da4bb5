// Package preflight provides readiness checks for the stores, paths, and
// inference provider teed depends on.
//
// `teed check` runs RunAll and prints one row per check. Checks that touch
// the network only run when Options.Network is set, so the default run is
// safe offline. Disabled features are skipped.
package preflight
