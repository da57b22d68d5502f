package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/avast/retry-go"

	"github.com/craftwell/turnaround/config"
	"github.com/craftwell/turnaround/internal/core"
	"github.com/craftwell/turnaround/internal/data"
	"github.com/craftwell/turnaround/internal/domain/model"
)

// SnapshotServiceOptions bundles dependencies for NewSnapshotService.
type SnapshotServiceOptions struct {
	Orders       core.OrderRepository
	Snapshots    core.SnapshotRepository
	Predictions  *PredictionService
	Locker       core.RunLocker
	Cfg          config.SnapshotConfig
	TimeProvider data.TimeProvider
	Logger       *slog.Logger
}

// SnapshotService records the daily prediction snapshot: one row per open
// order, persisted as a single immutable batch. Accuracy tracking depends on
// these batches existing for every day, so one malformed order is skipped and
// logged rather than sinking the whole run.
type SnapshotService struct {
	orders      core.OrderRepository
	snapshots   core.SnapshotRepository
	predictions *PredictionService
	locker      core.RunLocker
	cfg         config.SnapshotConfig
	clock       data.TimeProvider
	logger      *slog.Logger
}

// NewSnapshotService creates a new SnapshotService.
func NewSnapshotService(opts SnapshotServiceOptions) *SnapshotService {
	if opts.TimeProvider == nil {
		opts.TimeProvider = &data.RealTimeProvider{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	// retry-go reads zero attempts as unlimited; a single attempt is the floor.
	if opts.Cfg.Retries < 1 {
		opts.Cfg.Retries = 1
	}
	return &SnapshotService{
		orders:      opts.Orders,
		snapshots:   opts.Snapshots,
		predictions: opts.Predictions,
		locker:      opts.Locker,
		cfg:         opts.Cfg,
		clock:       opts.TimeProvider,
		logger:      opts.Logger,
	}
}

// SnapshotResult reports one recorder run.
type SnapshotResult struct {
	BatchID      string    `json:"batch_id,omitempty"`
	SnapshotDate time.Time `json:"snapshot_date"`
	Recorded     int       `json:"recorded"`
	Skipped      int       `json:"skipped"`
}

// RecordDaily predicts for every currently open order and appends the rows as
// one batch dated today. Idempotence contract: re-running the same day
// appends a duplicate batch rather than corrupting the first; the run lock
// only shields against an accidental same-day double fire by the scheduler.
func (s *SnapshotService) RecordDaily(ctx context.Context) (*SnapshotResult, error) {
	today := s.clock.Today()
	lockName := "snapshot:" + today.Format(time.DateOnly)

	acquired, err := s.locker.Acquire(ctx, lockName, s.cfg.RunLockTTL)
	if err != nil {
		return nil, fmt.Errorf("acquire snapshot lock: %w", err)
	}
	if !acquired {
		return nil, ErrRunInProgress
	}
	defer func() {
		if relErr := s.locker.Release(context.WithoutCancel(ctx), lockName); relErr != nil {
			s.logger.WarnContext(ctx, "release snapshot lock failed", "error", relErr)
		}
	}()

	// Resolve the model once up front: if no model exists or the store is
	// unreachable, that is a run-level failure, not N identical per-order
	// skips. Every row of the batch is then predicted with this one entry, so
	// version, MAE and age always describe the same model even when the cache
	// TTL lapses mid-run.
	cached, err := s.predictions.resolveModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve model for snapshot: %w", err)
	}

	open, err := s.loadOpenOrders(ctx)
	if err != nil {
		return nil, fmt.Errorf("load open orders: %w", err)
	}

	result := &SnapshotResult{SnapshotDate: today}
	rows := make([]model.SnapshotRow, 0, len(open))
	for i := range open {
		pred, predErr := s.predictions.predictWith(cached, &open[i])
		if predErr != nil {
			result.Skipped++
			s.logger.WarnContext(ctx, "snapshot prediction failed, skipping order",
				"order_id", open[i].ID, "error", predErr)
			continue
		}

		rows = append(rows, model.SnapshotRow{
			OrderID:       open[i].ID,
			SnapshotDate:  today,
			PredictedDays: pred.PredictedDays,
			ModelVersion:  cached.Meta.Version,
			ModelMAE:      cached.Meta.MAE,
			ModelAgeDays:  cached.Meta.AgeDays(s.clock.Now()),
		})
	}

	if len(rows) == 0 {
		s.logger.InfoContext(ctx, "no snapshot rows to record",
			"open_orders", len(open), "skipped", result.Skipped)
		return result, nil
	}

	batchID, err := s.appendBatch(ctx, rows)
	if err != nil {
		return nil, fmt.Errorf("append snapshot batch: %w", err)
	}
	result.BatchID = batchID
	result.Recorded = len(rows)

	s.logger.InfoContext(ctx, "daily snapshot recorded",
		"batch_id", batchID, "recorded", result.Recorded, "skipped", result.Skipped)
	return result, nil
}

// loadOpenOrders reads the open-order set with bounded retry. The recorder is
// unattended: a transient read fault retried now beats a missing day of
// monitoring rows discovered next week.
func (s *SnapshotService) loadOpenOrders(ctx context.Context) ([]model.Order, error) {
	var open []model.Order
	err := retry.Do(
		func() error {
			var loadErr error
			open, loadErr = s.orders.OpenOrders(ctx)
			if loadErr != nil {
				s.logger.WarnContext(ctx, "open order load failed, retrying", "error", loadErr)
			}
			return loadErr
		},
		retry.Attempts(uint(s.cfg.Retries)),
		retry.Delay(500*time.Millisecond),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
	)
	return open, err
}

// appendBatch writes the batch with the same bounded retry as the load.
// AppendBatch is a single insert transaction, so a retried attempt never
// leaves a partial batch behind.
func (s *SnapshotService) appendBatch(ctx context.Context, rows []model.SnapshotRow) (string, error) {
	var batchID string
	err := retry.Do(
		func() error {
			var appendErr error
			batchID, appendErr = s.snapshots.AppendBatch(ctx, rows)
			if appendErr != nil {
				s.logger.WarnContext(ctx, "snapshot batch append failed, retrying",
					"rows", len(rows), "error", appendErr)
			}
			return appendErr
		},
		retry.Attempts(uint(s.cfg.Retries)),
		retry.Delay(500*time.Millisecond),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
	)
	return batchID, err
}
