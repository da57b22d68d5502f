// Package service provides the business-logic services of the prediction
// pipeline: training, prediction, snapshot recording, and performance
// evaluation.
package service

import (
	"errors"
	"fmt"

	"github.com/craftwell/turnaround/internal/domain/model"
)

// ErrRunInProgress is returned when a scheduled job's run lock is already
// held, i.e. the external scheduler double-fired.
var ErrRunInProgress = errors.New("scheduled run already in progress")

// ErrBatchTooLarge is returned when a batch prediction request exceeds the
// configured cap.
var ErrBatchTooLarge = errors.New("batch prediction request too large")

// ErrStoreUnavailable is returned when the model store cannot be reached.
// Distinct from model.ErrNoModelAvailable, which means the store answered
// and holds nothing.
var ErrStoreUnavailable = errors.New("model store unavailable")

// InsufficientDataError reports a training run aborted for lack of rows.
// It unwraps to model.ErrInsufficientData so callers can branch with
// errors.Is without string matching.
type InsufficientDataError struct {
	Rows    int
	MinRows int
}

// Error implements the error interface.
func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient training data: %d completed orders, need at least %d", e.Rows, e.MinRows)
}

// Unwrap exposes the domain sentinel for errors.Is checks.
func (e *InsufficientDataError) Unwrap() error {
	return model.ErrInsufficientData
}

// FeatureMismatchError reports a stored model whose feature list no longer
// matches the code serving it. Predicting through a mismatch would misread
// every feature, so this always surfaces as a hard error.
type FeatureMismatchError struct {
	ModelVersion string
	ModelWidth   int
	CodeWidth    int
}

// Error implements the error interface.
func (e *FeatureMismatchError) Error() string {
	return fmt.Sprintf("model %s expects %d features but this build engineers %d",
		e.ModelVersion, e.ModelWidth, e.CodeWidth)
}
