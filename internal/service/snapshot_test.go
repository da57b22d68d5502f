package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/craftwell/turnaround/config"
	"github.com/craftwell/turnaround/internal/domain/model"
	"github.com/craftwell/turnaround/internal/service"
	"github.com/craftwell/turnaround/internal/testutil"
)

type snapshotDeps struct {
	preds     *predictionDeps
	snapshots *testutil.StubSnapshotRepo
	locker    *testutil.StubRunLocker
	svc       *service.SnapshotService
}

func newSnapshotDeps(t *testing.T, trained bool) *snapshotDeps {
	t.Helper()
	d := &snapshotDeps{
		preds:     newPredictionDeps(t, trained),
		snapshots: &testutil.StubSnapshotRepo{},
		locker:    &testutil.StubRunLocker{},
	}
	d.svc = service.NewSnapshotService(service.SnapshotServiceOptions{
		Orders:       d.preds.orders,
		Snapshots:    d.snapshots,
		Predictions:  d.preds.svc,
		Locker:       d.locker,
		Cfg:          config.SnapshotConfig{RunLockTTL: time.Hour, Retries: 3},
		TimeProvider: d.preds.clock,
	})
	return d
}

func TestRecordDailySkipsMalformedOrder(t *testing.T) {
	deps := newSnapshotDeps(t, true)
	intake := deps.preds.clock.Now().AddDate(0, 0, -2)
	broken := testutil.NewOrder("ORD-BROKEN").Build()
	broken.IntakeAt = time.Time{}
	deps.preds.orders.Open = []model.Order{
		testutil.NewOrder("ORD-1").WithIntake(intake).Build(),
		broken,
		testutil.NewOrder("ORD-2").WithIntake(intake).RushStandard().Build(),
	}

	result, err := deps.svc.RecordDaily(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, result.Recorded)
	assert.Equal(t, 1, result.Skipped)
	assert.NotEmpty(t, result.BatchID)

	require.Len(t, deps.snapshots.Batches, 1)
	for _, row := range deps.snapshots.Batches[0] {
		assert.Equal(t, deps.preds.clock.Today(), row.SnapshotDate)
		assert.NotEmpty(t, row.ModelVersion)
		assert.Greater(t, row.ModelMAE, 0.0)
	}
}

func TestRecordDailyNoOpenOrders(t *testing.T) {
	deps := newSnapshotDeps(t, true)

	result, err := deps.svc.RecordDaily(context.Background())
	require.NoError(t, err)

	assert.Zero(t, result.Recorded)
	assert.Empty(t, result.BatchID)
	assert.Empty(t, deps.snapshots.Batches, "an empty day writes no batch")
}

func TestRecordDailyNoModelIsRunFailure(t *testing.T) {
	deps := newSnapshotDeps(t, false)
	deps.preds.orders.Open = []model.Order{testutil.NewOrder("ORD-1").Build()}

	_, err := deps.svc.RecordDaily(context.Background())
	assert.ErrorIs(t, err, model.ErrNoModelAvailable)
	assert.Empty(t, deps.snapshots.Batches)
}

func TestRecordDailyRetriesTransientIO(t *testing.T) {
	deps := newSnapshotDeps(t, true)
	intake := deps.preds.clock.Now().AddDate(0, 0, -2)
	deps.preds.orders.Open = []model.Order{
		testutil.NewOrder("ORD-1").WithIntake(intake).Build(),
	}
	// One fault on each side of the run: the load and the append both recover.
	deps.preds.orders.OpenFailures = 1
	deps.snapshots.AppendFailures = 1

	result, err := deps.svc.RecordDaily(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, result.Recorded)
	require.Len(t, deps.snapshots.Batches, 1, "a retried append records exactly one batch")
}

func TestRecordDailyRowsCiteOneModel(t *testing.T) {
	deps := newSnapshotDeps(t, true)
	intake := deps.preds.clock.Now().AddDate(0, 0, -2)
	deps.preds.orders.Open = []model.Order{
		testutil.NewOrder("ORD-1").WithIntake(intake).Build(),
		testutil.NewOrder("ORD-2").WithIntake(intake).RushStandard().Build(),
	}

	// A newer version supersedes the cached one before the run. Every row must
	// pair that version with its own MAE, never with the predecessor's.
	raw, meta, err := deps.preds.store.LoadLatest(context.Background(), "completion-days")
	require.NoError(t, err)
	next := *meta
	next.Version = "completion-days-next"
	next.MAE = meta.MAE + 1
	require.NoError(t, deps.preds.store.Save(context.Background(), raw, &next))
	deps.preds.cache.Invalidate()

	_, err = deps.svc.RecordDaily(context.Background())
	require.NoError(t, err)

	require.Len(t, deps.snapshots.Batches, 1)
	for _, row := range deps.snapshots.Batches[0] {
		assert.Equal(t, next.Version, row.ModelVersion)
		assert.InDelta(t, next.MAE, row.ModelMAE, 1e-9)
	}
}

func TestRecordDailyHeldLock(t *testing.T) {
	deps := newSnapshotDeps(t, true)
	deps.locker.Held = []string{"snapshot:2026-03-01"}

	_, err := deps.svc.RecordDaily(context.Background())
	assert.ErrorIs(t, err, service.ErrRunInProgress)
}

func TestRecordDailyReleasesLock(t *testing.T) {
	deps := newSnapshotDeps(t, true)

	_, err := deps.svc.RecordDaily(context.Background())
	require.NoError(t, err)

	// A second run the same day must be able to reacquire.
	_, err = deps.svc.RecordDaily(context.Background())
	require.NoError(t, err)
	assert.Empty(t, deps.snapshots.Batches)
}
