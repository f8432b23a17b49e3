// Package calcerr holds the errors an odds calculation can fail with.
// Callers match them with errors.Is; details are wrapped around them.
package calcerr

import "errors"

var (
	// ErrNotReady means an operation needs configuration that has not
	// happened yet.
	ErrNotReady = errors.New("calculator not ready")

	// ErrInvalidConfiguration means the caller referred to units, kinds,
	// players or territories the ruleset does not know, or supplied a
	// malformed order of loss.
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrConfiguration means an internal invariant broke, such as the
	// engine asking for a decision from a side nobody configured.
	ErrConfiguration = errors.New("configuration error")

	// ErrBusy is returned by setters while a run is in progress.
	ErrBusy = errors.New("calculation in progress")

	// ErrSimulationFailed means every attempted trial failed.
	ErrSimulationFailed = errors.New("simulation failed")
)
