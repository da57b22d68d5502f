package model

import "time"

// ModelMetadata describes one stored model version. It is written atomically
// with its artifact and never edited afterwards; retraining supersedes it with
// a new version.
type ModelMetadata struct {
	Version      string    `json:"version"       db:"version"`
	Name         string    `json:"name"          db:"name"`
	Profile      string    `json:"profile"       db:"profile"`
	FeatureNames []string  `json:"feature_names" db:"feature_names"`
	MAE          float64   `json:"mae"           db:"mae"`
	TrainingRows int       `json:"training_rows" db:"training_rows"`
	TrainedAt    time.Time `json:"trained_at"    db:"trained_at"`
}

// AgeDays returns the model age in whole days as of now.
func (m *ModelMetadata) AgeDays(now time.Time) int {
	if m.TrainedAt.IsZero() || now.Before(m.TrainedAt) {
		return 0
	}
	return int(now.Sub(m.TrainedAt).Hours() / 24)
}

// Prediction is a point estimate with its confidence band, in days.
type Prediction struct {
	OrderID       string  `json:"order_id"`
	PredictedDays float64 `json:"predicted_days"`
	LowerDays     float64 `json:"lower_days"`
	UpperDays     float64 `json:"upper_days"`
	ModelVersion  string  `json:"model_version"`
}

// SnapshotRow is one prediction recorded for one open order on one scheduled
// day. Rows are append-only: a batch is written once and never mutated, so a
// re-run for the same day appends a second batch rather than touching the first.
type SnapshotRow struct {
	OrderID       string    `json:"order_id"       db:"order_id"`
	SnapshotDate  time.Time `json:"snapshot_date"  db:"snapshot_date"`
	PredictedDays float64   `json:"predicted_days" db:"predicted_days"`
	ModelVersion  string    `json:"model_version"  db:"model_version"`
	ModelMAE      float64   `json:"model_mae"      db:"model_mae"`
	ModelAgeDays  int       `json:"model_age_days" db:"model_age_days"`
}

// MaturedSnapshotRow is a snapshot row whose order has since completed, joined
// with the observed outcome for accuracy reporting.
type MaturedSnapshotRow struct {
	SnapshotRow
	ActualDays float64 `json:"actual_days" db:"actual_days"`
}
