package testutil

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/craftwell/turnaround/internal/domain/model"
)

// DatasetConfig tunes SyntheticHistory.
type DatasetConfig struct {
	Rows      int
	Customers int
	Start     time.Time
	Seed      int64
}

// SyntheticHistory generates a deterministic completed-order history with a
// learnable signal: a baseline around five days, firm rushes roughly three
// days faster, standard rushes faster still than plain orders, and repairs
// two days slower. Tests that train on it can assert the model recovers the
// rush effect.
func SyntheticHistory(cfg DatasetConfig) []model.CompletedOrder {
	if cfg.Rows <= 0 {
		cfg.Rows = 150
	}
	if cfg.Customers <= 0 {
		cfg.Customers = 12
	}
	if cfg.Start.IsZero() {
		cfg.Start = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	}
	rng := rand.New(rand.NewSource(cfg.Seed))

	out := make([]model.CompletedOrder, 0, cfg.Rows)
	for i := 0; i < cfg.Rows; i++ {
		intake := cfg.Start.AddDate(0, 0, i)
		b := NewOrder(fmt.Sprintf("ORD-%04d", i)).
			WithCustomer(fmt.Sprintf("CUST-%03d", rng.Intn(cfg.Customers))).
			WithIntake(intake)

		days := 5.0 + rng.NormFloat64()*0.8
		switch rng.Intn(10) {
		case 0:
			b.RushFirm().WithRequiredBy(intake.AddDate(0, 0, 3))
			days -= 3
		case 1, 2:
			b.RushStandard()
			days -= 1.5
		}
		if rng.Intn(5) == 0 {
			b.WithRepairs("seam repair")
			days += 2
		}
		if days < 0.5 {
			days = 0.5
		}
		out = append(out, b.CleanedAfter(days/2).CompletedAfter(days).BuildCompleted())
	}
	return out
}
