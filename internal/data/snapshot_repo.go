package data

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/craftwell/turnaround/internal/data/pgxutil"
	"github.com/craftwell/turnaround/internal/domain/model"
)

// SnapshotRepoConfig holds configuration options for the snapshot repository.
type SnapshotRepoConfig struct {
	QueryTimeout time.Duration
	Logger       *slog.Logger
}

// SnapshotRepo persists daily prediction snapshots. The table is append-only:
// batches are inserted whole inside one transaction, tagged with a batch UUID,
// and never updated or deleted afterwards. Re-running a day appends a second
// batch; deduplication by date is the reader's concern.
type SnapshotRepo struct {
	DB  *sql.DB
	cfg SnapshotRepoConfig
}

// NewSnapshotRepo creates a new SnapshotRepo with the given database
// connection and configuration.
func NewSnapshotRepo(db *sql.DB, cfg SnapshotRepoConfig) *SnapshotRepo {
	if cfg.QueryTimeout <= 0 {
		cfg.QueryTimeout = 10 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &SnapshotRepo{DB: db, cfg: cfg}
}

// AppendBatch writes one day's snapshot rows as a single immutable batch.
// All rows land or none do.
func (r *SnapshotRepo) AppendBatch(ctx context.Context, rows []model.SnapshotRow) (string, error) {
	if len(rows) == 0 {
		return "", ErrEmptySnapshotBatch
	}

	ctx, cancel := context.WithTimeout(ctx, r.cfg.QueryTimeout)
	defer cancel()

	batchID := uuid.NewString()
	err := pgxutil.WithPgxTx(ctx, r.DB, pgxutil.TxConfig{
		Opts: &sql.TxOptions{Isolation: sql.LevelReadCommitted},
		Fn: func(tx pgx.Tx) error {
			batch := &pgx.Batch{}
			for i := range rows {
				batch.Queue(`
					INSERT INTO prediction_snapshots
						(batch_id, order_id, snapshot_date, predicted_days, model_version, model_mae, model_age_days)
					VALUES ($1, $2, $3, $4, $5, $6, $7)`,
					batchID, rows[i].OrderID, rows[i].SnapshotDate, rows[i].PredictedDays,
					rows[i].ModelVersion, rows[i].ModelMAE, rows[i].ModelAgeDays,
				)
			}
			results := tx.SendBatch(ctx, batch)
			defer func() { _ = results.Close() }()
			for range rows {
				if _, execErr := results.Exec(); execErr != nil {
					return fmt.Errorf("insert snapshot row: %w", execErr)
				}
			}
			return nil
		},
	})
	if err != nil {
		return "", err
	}

	r.cfg.Logger.InfoContext(ctx, "snapshot batch appended",
		"batch_id", batchID, "rows", len(rows), "date", rows[0].SnapshotDate.Format(time.DateOnly))
	return batchID, nil
}

// MaturedRows joins historical snapshot rows against orders that have since
// completed. Snapshot dates whose orders are all still open simply contribute
// no rows.
func (r *SnapshotRepo) MaturedRows(ctx context.Context) ([]model.MaturedSnapshotRow, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.QueryTimeout)
	defer cancel()

	rows, err := r.DB.QueryContext(ctx, `
		SELECT
			s.order_id,
			s.snapshot_date,
			s.predicted_days,
			s.model_version,
			s.model_mae,
			s.model_age_days,
			EXTRACT(EPOCH FROM (o.completed_at - o.intake_at)) / 86400.0 AS actual_days
		FROM prediction_snapshots s
		JOIN orders o ON o.id = s.order_id
		WHERE o.completed_at IS NOT NULL
		ORDER BY s.snapshot_date ASC`)
	if err != nil {
		return nil, fmt.Errorf("query matured snapshot rows: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.MaturedSnapshotRow
	for rows.Next() {
		var m model.MaturedSnapshotRow
		if err = rows.Scan(
			&m.OrderID, &m.SnapshotDate, &m.PredictedDays,
			&m.ModelVersion, &m.ModelMAE, &m.ModelAgeDays, &m.ActualDays,
		); err != nil {
			return nil, fmt.Errorf("scan matured snapshot row: %w", err)
		}
		out = append(out, m)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate matured snapshot rows: %w", err)
	}
	return out, nil
}
