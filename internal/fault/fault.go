// Package fault defines the sentinel error kinds used across the engine,
// following the same "wrap a shared sentinel with context" idiom as
// github.com/farcloser/primordium/fault: callers do
// fmt.Errorf("%w: %s", fault.ErrX, detail) and check with errors.Is.
package fault

import (
	"errors"

	primordium "github.com/farcloser/primordium/fault"
)

var (
	// ErrReadFailure is github.com/farcloser/primordium/fault's own sentinel,
	// reused as-is (not re-wrapped) rather than hand-rolled: the trend store
	// wraps it around a history-file read that fails for a reason other than
	// "file does not exist" before logging and falling back to an empty
	// baseline.
	ErrReadFailure = primordium.ErrReadFailure

	// ErrInvalidInput marks non-finite samples or mismatched channel lengths.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInsufficientData marks overlap below 5s or fewer than 3 PTT windows.
	// Pipeline stages handle this internally (producing an invalid result)
	// rather than returning it, but it is exported for callers that want to
	// distinguish the reason a ProcessedSeries came back invalid.
	ErrInsufficientData = errors.New("insufficient data")

	// ErrUnstableSignal marks a post-filter signal with std approximately 0.
	ErrUnstableSignal = errors.New("unstable signal")

	// ErrPersistenceFailure marks a trend store read/write failure. Treated
	// as best-effort: logged and swallowed, never surfaced to callers.
	ErrPersistenceFailure = errors.New("persistence failure")

	// ErrCancelled marks a context cancellation observed between pipeline
	// stages or realtime updates.
	ErrCancelled = errors.New("cancelled")
)
