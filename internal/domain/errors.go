package domain

import "errors"

// Sentinel errors shared across the engine. Callers match with errors.Is.
var (
	// ErrInvalidInput marks a malformed event or build request: missing
	// timestamp, negative amount, end time before start time, or a batch
	// mixing user ids. Never coerced silently.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound is returned when a profile, assessment, or policy does
	// not exist. Absence is an expected condition, not a failure: callers
	// decide whether it means cold start.
	ErrNotFound = errors.New("not found")

	// ErrUnsupportedEvent is returned for an event variant unknown to the
	// engine. A known variant with no prior history is NOT an error; it
	// scores as maximal deviation instead.
	ErrUnsupportedEvent = errors.New("unsupported event type")
)
