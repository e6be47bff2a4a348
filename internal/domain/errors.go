package domain

import "errors"

// Domain errors returned by the scheduling engine. Every failing operation
// is all-or-nothing: the Program/Cycle values a caller holds are unchanged
// when one of these comes back.
var (
	// ErrCycleOverlap reports a cycle whose effective date range would
	// overlap an existing cycle of the same program.
	ErrCycleOverlap = errors.New("cycle date range overlaps an existing cycle")

	// ErrCycleCompleted reports an attempt to start a completed cycle.
	// Completion is terminal.
	ErrCycleCompleted = errors.New("cycle is already completed")

	// ErrDateOutOfRange reports an activation date outside the target
	// cycle's effective date range.
	ErrDateOutOfRange = errors.New("date is outside the cycle's effective range")

	ErrCycleNotFound   = errors.New("cycle not found in program")
	ErrSessionNotFound = errors.New("session not found in cycle")
)
