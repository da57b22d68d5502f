package model

import "errors"

// Domain error kinds. Callers branch on these with errors.Is; nothing in the
// pipeline is allowed to swallow one of them and return a plausible-looking
// default prediction instead.
var (
	// ErrNoModelAvailable is returned when a prediction is requested before any
	// model has ever been trained and stored. Distinct from a transient store
	// failure: the store answered, and it is empty.
	ErrNoModelAvailable = errors.New("no trained model available")

	// ErrInsufficientData is returned when a training run has fewer completed
	// orders than the configured minimum. No artifact is written.
	ErrInsufficientData = errors.New("insufficient training data")

	// ErrOrderNotFound is returned when a prediction is requested for an order
	// the collaborator store does not have.
	ErrOrderNotFound = errors.New("order not found")

	// ErrUnauthorized is returned by the scheduled entry points on a
	// shared-secret mismatch.
	ErrUnauthorized = errors.New("unauthorized")
)
