// Package data provides the database access layer for the turnaround
// prediction pipeline: the order loader, the model store, the snapshot
// repository, and the Redis-backed scheduled-run locks.
package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/craftwell/turnaround/internal/domain/model"
)

const orderColumns = `
  id,
  customer_id,
  intake_at,
  required_by,
  rush_standard,
  rush_firm,
  storage_days,
  COALESCE(special_instructions, ''),
  COALESCE(repairs_needed, ''),
  cleaned_at,
  treated_at,
  completed_at
`

// OrderRepoConfig holds configuration options for the order repository.
type OrderRepoConfig struct {
	// QueryTimeout bounds every query so a slow collaborator store cannot
	// hang a worker.
	QueryTimeout time.Duration
	// MaxPlausibleDays and OutlierSigma parameterize training-row filtering.
	MaxPlausibleDays float64
	OutlierSigma     float64
	Logger           *slog.Logger
}

// OrderRepo reads the collaborator-owned orders table. Read-only: the
// prediction core never writes an order.
type OrderRepo struct {
	DB  *sql.DB
	cfg OrderRepoConfig
}

// NewOrderRepo creates a new OrderRepo instance with the given database
// connection and configuration.
func NewOrderRepo(db *sql.DB, cfg OrderRepoConfig) *OrderRepo {
	if cfg.QueryTimeout <= 0 {
		cfg.QueryTimeout = 10 * time.Second
	}
	if cfg.MaxPlausibleDays <= 0 {
		cfg.MaxPlausibleDays = 365
	}
	if cfg.OutlierSigma <= 0 {
		cfg.OutlierSigma = 3.0
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &OrderRepo{DB: db, cfg: cfg}
}

// CompletedOrders returns every completed order annotated with elapsed
// completion days, after dropping implausible rows and statistical outliers.
// This is the historical dataset loader: what it returns is exactly what a
// training run may see.
func (r *OrderRepo) CompletedOrders(ctx context.Context) ([]model.CompletedOrder, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.QueryTimeout)
	defer cancel()

	query := `SELECT ` + orderColumns + `
		FROM orders
		WHERE completed_at IS NOT NULL
		ORDER BY completed_at ASC`

	rows, err := r.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query completed orders: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var candidates []model.CompletedOrder
	for rows.Next() {
		order, scanErr := scanOrder(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		days, daysErr := order.CompletionDays()
		if daysErr != nil {
			continue // WHERE clause guarantees completed_at; skip anything malformed
		}
		candidates = append(candidates, model.CompletedOrder{Order: order, Days: days})
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate completed orders: %w", err)
	}

	filtered := FilterOutliers(candidates, OutlierFilter{
		MaxPlausibleDays: r.cfg.MaxPlausibleDays,
		Sigma:            r.cfg.OutlierSigma,
	})
	if dropped := len(candidates) - len(filtered); dropped > 0 {
		r.cfg.Logger.InfoContext(ctx, "dropped outlier rows from training candidates",
			"dropped", dropped, "kept", len(filtered))
	}
	return filtered, nil
}

// OpenOrders returns every order without a completion date, oldest first.
func (r *OrderRepo) OpenOrders(ctx context.Context) ([]model.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.QueryTimeout)
	defer cancel()

	query := `SELECT ` + orderColumns + `
		FROM orders
		WHERE completed_at IS NULL
		ORDER BY intake_at ASC`

	rows, err := r.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query open orders: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.Order
	for rows.Next() {
		order, scanErr := scanOrder(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		out = append(out, order)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate open orders: %w", err)
	}
	return out, nil
}

// GetByID returns a single order or model.ErrOrderNotFound.
func (r *OrderRepo) GetByID(ctx context.Context, orderID string) (*model.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.QueryTimeout)
	defer cancel()

	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	row := r.DB.QueryRowContext(ctx, query, orderID)
	order, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrOrderNotFound
		}
		return nil, err
	}
	return &order, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (model.Order, error) {
	var o model.Order
	err := row.Scan(
		&o.ID,
		&o.CustomerID,
		&o.IntakeAt,
		&o.RequiredBy,
		&o.RushStandard,
		&o.RushFirm,
		&o.StorageDays,
		&o.SpecialInstructions,
		&o.RepairsNeeded,
		&o.CleanedAt,
		&o.TreatedAt,
		&o.CompletedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return o, err
		}
		return o, fmt.Errorf("scan order: %w", err)
	}
	return o, nil
}

// OutlierFilter parameterizes training-row filtering.
type OutlierFilter struct {
	// MaxPlausibleDays drops rows with negative or absurd elapsed days before
	// any statistics are computed.
	MaxPlausibleDays float64
	// Sigma is the k in the mean+k*stddev cutoff over the plausible rows.
	Sigma float64
}

// FilterOutliers removes implausible rows and then rows beyond
// mean + Sigma*stddev of the plausible candidate set. Pure; exported so the
// cutoff behavior is testable without a database.
func FilterOutliers(rows []model.CompletedOrder, f OutlierFilter) []model.CompletedOrder {
	plausible := make([]model.CompletedOrder, 0, len(rows))
	days := make([]float64, 0, len(rows))
	for i := range rows {
		if rows[i].Days < 0 || rows[i].Days > f.MaxPlausibleDays {
			continue
		}
		plausible = append(plausible, rows[i])
		days = append(days, rows[i].Days)
	}
	if len(plausible) < 2 {
		return plausible
	}

	mean := stat.Mean(days, nil)
	stddev := stat.StdDev(days, nil)
	cutoff := mean + f.Sigma*stddev

	out := make([]model.CompletedOrder, 0, len(plausible))
	for i := range plausible {
		if plausible[i].Days > cutoff {
			continue
		}
		out = append(out, plausible[i])
	}
	return out
}
