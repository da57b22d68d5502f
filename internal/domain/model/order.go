// Package model defines the core data types used throughout the turnaround prediction pipeline.
package model

import (
	"errors"
	"time"
)

// Order represents one job record owned by the collaborator order store.
// The prediction core reads orders; it never creates or mutates them.
type Order struct {
	ID                  string     `json:"id"                             db:"id"`
	CustomerID          string     `json:"customer_id"                    db:"customer_id"`
	IntakeAt            time.Time  `json:"intake_at"                      db:"intake_at"`
	RequiredBy          *time.Time `json:"required_by,omitempty"          db:"required_by"`
	RushStandard        bool       `json:"rush_standard"                  db:"rush_standard"`
	RushFirm            bool       `json:"rush_firm"                      db:"rush_firm"`
	StorageDays         int        `json:"storage_days"                   db:"storage_days"`
	SpecialInstructions string     `json:"special_instructions,omitempty" db:"special_instructions"`
	RepairsNeeded       string     `json:"repairs_needed,omitempty"       db:"repairs_needed"`
	CleanedAt           *time.Time `json:"cleaned_at,omitempty"           db:"cleaned_at"`
	TreatedAt           *time.Time `json:"treated_at,omitempty"           db:"treated_at"`
	CompletedAt         *time.Time `json:"completed_at,omitempty"         db:"completed_at"`
}

// ErrOrderNotCompleted is returned when completion-days math is requested for an open order.
var ErrOrderNotCompleted = errors.New("order has no completion date")

// IsCompleted returns true once the order has a completion date.
func (o *Order) IsCompleted() bool {
	return o.CompletedAt != nil
}

// CompletionDays returns the elapsed days between intake and completion.
func (o *Order) CompletionDays() (float64, error) {
	if o.CompletedAt == nil {
		return 0, ErrOrderNotCompleted
	}
	return o.CompletedAt.Sub(o.IntakeAt).Hours() / 24, nil
}

// CompletedOrder is a historical order annotated with its observed completion days.
// Produced by the dataset loader after plausibility and outlier filtering.
type CompletedOrder struct {
	Order
	Days float64 `json:"days"`
}

// CustomerStats holds per-customer aggregates over the completion days of the
// rows assigned to a training run's training partition. Customers absent from
// the partition get the zero value, mirroring an unseen customer at serving time.
type CustomerStats struct {
	MeanDays       float64 `json:"mean_days"`
	StdDevDays     float64 `json:"std_dev_days"`
	CompletedCount int     `json:"completed_count"`
}
