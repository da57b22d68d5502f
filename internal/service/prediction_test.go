package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/craftwell/turnaround/config"
	"github.com/craftwell/turnaround/internal/core"
	"github.com/craftwell/turnaround/internal/data"
	"github.com/craftwell/turnaround/internal/domain/model"
	"github.com/craftwell/turnaround/internal/service"
	"github.com/craftwell/turnaround/internal/testutil"
)

type predictionDeps struct {
	orders *testutil.StubOrderRepo
	store  *testutil.StubModelStore
	locker *testutil.StubRunLocker
	clock  *data.FixedTimeProvider
	cache  *core.ModelCache
	svc    *service.PredictionService
}

func newPredictionDeps(t *testing.T, trained bool) *predictionDeps {
	t.Helper()
	d := &predictionDeps{
		orders: &testutil.StubOrderRepo{},
		store:  &testutil.StubModelStore{},
		locker: &testutil.StubRunLocker{},
		clock:  data.NewFixedTimeProvider(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)),
	}

	if trained {
		trainer := service.NewTrainingService(service.TrainingServiceOptions{
			Orders: &testutil.StubOrderRepo{
				Completed: testutil.SyntheticHistory(testutil.DatasetConfig{Rows: 150, Seed: 21}),
			},
			Store:        d.store,
			Locker:       d.locker,
			Cfg:          testTrainingConfig(),
			ModelCfg:     testModelConfig(),
			TimeProvider: d.clock,
		})
		_, err := trainer.Train(context.Background(), service.TrainRequest{
			Profile:  config.ProfileFast,
			Holdout:  true,
			AutoSave: true,
		})
		require.NoError(t, err)
	}

	d.cache = core.NewModelCache(core.ModelCacheOptions{
		Store:        d.store,
		Config:       core.ModelCacheConfig{ModelName: "completion-days", TTL: 5 * time.Minute},
		TimeProvider: d.clock,
	})
	d.svc = service.NewPredictionService(service.PredictionServiceOptions{
		Orders:       d.orders,
		Cache:        d.cache,
		Store:        d.store,
		Locker:       d.locker,
		Cfg:          config.PredictionConfig{IntervalHalfWidthDays: 1.5, MaxBatchSize: 2},
		ModelCfg:     testModelConfig(),
		TimeProvider: d.clock,
	})
	return d
}

func TestPredictOneReturnsBoundedInterval(t *testing.T) {
	deps := newPredictionDeps(t, true)
	deps.orders.Open = []model.Order{
		testutil.NewOrder("ORD-1").WithIntake(deps.clock.Now().AddDate(0, 0, -1)).Build(),
	}

	pred, err := deps.svc.PredictOne(context.Background(), "ORD-1")
	require.NoError(t, err)

	assert.Equal(t, "ORD-1", pred.OrderID)
	assert.GreaterOrEqual(t, pred.PredictedDays, 0.0)
	assert.GreaterOrEqual(t, pred.LowerDays, 0.0)
	assert.InDelta(t, pred.PredictedDays+1.5, pred.UpperDays, 1e-9)
	assert.NotEmpty(t, pred.ModelVersion)
}

func TestPredictRushOrdersFinishFaster(t *testing.T) {
	deps := newPredictionDeps(t, true)
	intake := deps.clock.Now().AddDate(0, 0, -1)
	plain := testutil.NewOrder("ORD-P").WithIntake(intake).Build()
	rush := testutil.NewOrder("ORD-R").WithIntake(intake).
		RushFirm().WithRequiredBy(intake.AddDate(0, 0, 3)).Build()

	plainPred, err := deps.svc.PredictOrder(context.Background(), &plain)
	require.NoError(t, err)
	rushPred, err := deps.svc.PredictOrder(context.Background(), &rush)
	require.NoError(t, err)

	assert.Less(t, rushPred.PredictedDays, plainPred.PredictedDays)
}

func TestPredictNoModelAvailable(t *testing.T) {
	deps := newPredictionDeps(t, false)
	deps.orders.Open = []model.Order{testutil.NewOrder("ORD-1").Build()}

	_, err := deps.svc.PredictOne(context.Background(), "ORD-1")
	assert.ErrorIs(t, err, model.ErrNoModelAvailable)
}

func TestPredictStoreUnavailable(t *testing.T) {
	deps := newPredictionDeps(t, false)
	deps.store.LoadErr = errors.New("connection refused")
	deps.orders.Open = []model.Order{testutil.NewOrder("ORD-1").Build()}

	_, err := deps.svc.PredictOne(context.Background(), "ORD-1")
	assert.ErrorIs(t, err, service.ErrStoreUnavailable)
}

func TestPredictUnknownOrder(t *testing.T) {
	deps := newPredictionDeps(t, true)

	_, err := deps.svc.PredictOne(context.Background(), "ORD-MISSING")
	assert.ErrorIs(t, err, model.ErrOrderNotFound)
}

func TestPredictBatchEnforcesCap(t *testing.T) {
	deps := newPredictionDeps(t, true)

	_, err := deps.svc.PredictBatch(context.Background(), []string{"a", "b", "c"})
	assert.ErrorIs(t, err, service.ErrBatchTooLarge)
}

func TestPredictBatchReturnsAllOrNothing(t *testing.T) {
	deps := newPredictionDeps(t, true)
	intake := deps.clock.Now().AddDate(0, 0, -1)
	deps.orders.Open = []model.Order{
		testutil.NewOrder("ORD-1").WithIntake(intake).Build(),
		testutil.NewOrder("ORD-2").WithIntake(intake).RushStandard().Build(),
	}

	preds, err := deps.svc.PredictBatch(context.Background(), []string{"ORD-1", "ORD-2"})
	require.NoError(t, err)
	require.Len(t, preds, 2)

	_, err = deps.svc.PredictBatch(context.Background(), []string{"ORD-1", "ORD-MISSING"})
	assert.ErrorIs(t, err, model.ErrOrderNotFound)
}

func TestPredictFeatureMismatchSurfaces(t *testing.T) {
	deps := newPredictionDeps(t, true)

	// Rewrite the stored metadata as if a narrower build had trained it.
	raw, meta, err := deps.store.LoadLatest(context.Background(), "completion-days")
	require.NoError(t, err)
	meta.Version = "v-narrow"
	meta.FeatureNames = []string{"only", "two"}
	require.NoError(t, deps.store.Save(context.Background(), raw, meta))
	deps.cache.Invalidate()

	order := testutil.NewOrder("ORD-1").Build()
	_, err = deps.svc.PredictOrder(context.Background(), &order)

	var mismatch *service.FeatureMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, "v-narrow", mismatch.ModelVersion)
	assert.Equal(t, model.FeatureCount, mismatch.CodeWidth)
}

func TestStatusReportsCachedAndStored(t *testing.T) {
	deps := newPredictionDeps(t, true)

	// Before any prediction the cache is cold.
	status, err := deps.svc.Status(context.Background())
	require.NoError(t, err)
	assert.Empty(t, status.CachedVersion)
	require.Len(t, status.Stored, 1)

	order := testutil.NewOrder("ORD-1").WithIntake(deps.clock.Now()).Build()
	_, err = deps.svc.PredictOrder(context.Background(), &order)
	require.NoError(t, err)

	status, err = deps.svc.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, status.Stored[0].Version, status.CachedVersion)
	require.NotNil(t, status.CachedLoadedAt)
}
