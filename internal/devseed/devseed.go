// Package devseed populates a local development database with a synthetic
// order history. Production never runs this: the orders table is owned by the
// collaborator web application, and this package exists only so a fresh dev
// environment has enough completed orders to train against.
package devseed

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/google/uuid"
)

const seedRNG = 42

// createOrdersTable mirrors the collaborator application's orders schema
// closely enough for the dataset loader. Dev only.
const createOrdersTable = `
CREATE TABLE IF NOT EXISTS orders (
	id                   TEXT PRIMARY KEY,
	customer_id          TEXT NOT NULL,
	intake_at            TIMESTAMPTZ NOT NULL,
	required_by          TIMESTAMPTZ,
	rush_standard        BOOLEAN NOT NULL DEFAULT FALSE,
	rush_firm            BOOLEAN NOT NULL DEFAULT FALSE,
	storage_days         INTEGER NOT NULL DEFAULT 0,
	special_instructions TEXT,
	repairs_needed       TEXT,
	cleaned_at           TIMESTAMPTZ,
	treated_at           TIMESTAMPTZ,
	completed_at         TIMESTAMPTZ
)`

// Config tunes the synthetic dataset.
type Config struct {
	CompletedOrders int
	OpenOrders      int
	Customers       int
	Logger          *slog.Logger
}

// Run seeds the orders table when it is empty. Idempotent: a database that
// already holds orders is left untouched.
func Run(ctx context.Context, db *sql.DB, cfg Config) error {
	if cfg.CompletedOrders <= 0 {
		cfg.CompletedOrders = 400
	}
	if cfg.OpenOrders <= 0 {
		cfg.OpenOrders = 25
	}
	if cfg.Customers <= 0 {
		cfg.Customers = 40
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	if _, err := db.ExecContext(ctx, createOrdersTable); err != nil {
		return fmt.Errorf("create dev orders table: %w", err)
	}

	var existing int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders`).Scan(&existing); err != nil {
		return fmt.Errorf("count existing orders: %w", err)
	}
	if existing > 0 {
		cfg.Logger.InfoContext(ctx, "dev seed skipped, orders table not empty", "existing", existing)
		return nil
	}

	rng := rand.New(rand.NewSource(seedRNG))
	now := time.Now().UTC()

	for i := 0; i < cfg.CompletedOrders; i++ {
		intake := now.AddDate(0, 0, -365+rng.Intn(350))
		if err := insertOrder(ctx, db, synthOrder(rng, cfg.Customers, intake, true)); err != nil {
			return err
		}
	}
	for i := 0; i < cfg.OpenOrders; i++ {
		intake := now.AddDate(0, 0, -rng.Intn(10))
		if err := insertOrder(ctx, db, synthOrder(rng, cfg.Customers, intake, false)); err != nil {
			return err
		}
	}

	cfg.Logger.InfoContext(ctx, "dev seed complete",
		"completed", cfg.CompletedOrders, "open", cfg.OpenOrders, "customers", cfg.Customers)
	return nil
}

type seedOrder struct {
	id           string
	customerID   string
	intakeAt     time.Time
	requiredBy   *time.Time
	rushStandard bool
	rushFirm     bool
	storageDays  int
	instructions string
	repairs      string
	cleanedAt    *time.Time
	treatedAt    *time.Time
	completedAt  *time.Time
}

// synthOrder draws one order with a learnable signal: rush orders finish
// faster, repairs add days, and a bit of per-customer spread keeps the
// statistics features non-trivial.
func synthOrder(rng *rand.Rand, customers int, intake time.Time, completed bool) seedOrder {
	o := seedOrder{
		id:         uuid.NewString(),
		customerID: fmt.Sprintf("CUST-%03d", rng.Intn(customers)),
		intakeAt:   intake,
	}

	switch rng.Intn(10) {
	case 0:
		o.rushFirm = true
		due := intake.AddDate(0, 0, 2+rng.Intn(3))
		o.requiredBy = &due
	case 1, 2:
		o.rushStandard = true
	}
	if rng.Intn(5) == 0 {
		o.repairs = "seam repair"
	}
	if rng.Intn(8) == 0 {
		o.instructions = "delicate fabric"
		o.storageDays = rng.Intn(20)
	}

	if !completed {
		return o
	}

	days := 5.0 + rng.NormFloat64()*1.5
	switch {
	case o.rushFirm:
		days -= 3
	case o.rushStandard:
		days -= 1.5
	}
	if o.repairs != "" {
		days += 2
	}
	if days < 0.5 {
		days = 0.5
	}

	done := intake.Add(time.Duration(days * 24 * float64(time.Hour)))
	cleaned := intake.Add(time.Duration(days * 12 * float64(time.Hour)))
	o.completedAt = &done
	o.cleanedAt = &cleaned
	if o.repairs != "" {
		treated := intake.Add(time.Duration(days * 18 * float64(time.Hour)))
		o.treatedAt = &treated
	}
	return o
}

func insertOrder(ctx context.Context, db *sql.DB, o seedOrder) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO orders (
			id, customer_id, intake_at, required_by, rush_standard, rush_firm,
			storage_days, special_instructions, repairs_needed,
			cleaned_at, treated_at, completed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		o.id, o.customerID, o.intakeAt, o.requiredBy, o.rushStandard, o.rushFirm,
		o.storageDays, o.instructions, o.repairs,
		o.cleanedAt, o.treatedAt, o.completedAt,
	)
	if err != nil {
		return fmt.Errorf("insert seed order %s: %w", o.id, err)
	}
	return nil
}
