package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/craftwell/turnaround/config"
	"github.com/craftwell/turnaround/internal/core"
	"github.com/craftwell/turnaround/internal/data"
	"github.com/craftwell/turnaround/internal/domain/model"
	"github.com/craftwell/turnaround/internal/features"
	"github.com/craftwell/turnaround/internal/service"
	"github.com/craftwell/turnaround/internal/testutil"
)

func testTrainingConfig() config.TrainingConfig {
	cfg := config.TrainingConfig{
		DefaultProfile:  config.ProfileFast,
		MinRows:         50,
		RecencyScale:    2.0,
		HoldoutFraction: 0.2,
		CVFolds:         3,
		Budget:          time.Minute,
		Retries:         3,
	}
	cfg.Sanitize()
	return cfg
}

func testModelConfig() config.ModelConfig {
	return config.ModelConfig{Name: "completion-days", Keep: 5, CacheTTL: 5 * time.Minute}
}

type trainingDeps struct {
	orders *testutil.StubOrderRepo
	store  *testutil.StubModelStore
	locker *testutil.StubRunLocker
	clock  *data.FixedTimeProvider
	svc    *service.TrainingService
}

func newTrainingDeps(completed []model.CompletedOrder) *trainingDeps {
	d := &trainingDeps{
		orders: &testutil.StubOrderRepo{Completed: completed},
		store:  &testutil.StubModelStore{},
		locker: &testutil.StubRunLocker{},
		clock:  data.NewFixedTimeProvider(time.Date(2026, 3, 1, 6, 0, 0, 0, time.UTC)),
	}
	d.svc = service.NewTrainingService(service.TrainingServiceOptions{
		Orders:       d.orders,
		Store:        d.store,
		Locker:       d.locker,
		Cfg:          testTrainingConfig(),
		ModelCfg:     testModelConfig(),
		TimeProvider: d.clock,
	})
	return d
}

func TestTrainHoldoutLearnsRushSignal(t *testing.T) {
	history := testutil.SyntheticHistory(testutil.DatasetConfig{Rows: 150, Seed: 11})
	deps := newTrainingDeps(history)

	result, err := deps.svc.Train(context.Background(), service.TrainRequest{
		Profile:  config.ProfileBalanced,
		Holdout:  true,
		AutoSave: true,
	})
	require.NoError(t, err)

	assert.True(t, result.Saved)
	assert.Equal(t, 1, deps.store.Count())
	assert.Greater(t, result.EvalRows, 0)
	assert.Less(t, result.MAE, 1.5, "holdout MAE should beat the raw target spread")
	assert.Equal(t, model.FeatureNames(), result.Meta.FeatureNames)
	assert.Equal(t, len(history)-result.EvalRows, result.Meta.TrainingRows)

	// The generator's dominant signal is the rush flags; the fitted model's
	// gain should concentrate there rather than on calendar noise.
	rush := result.Importance["rush_standard"] + result.Importance["rush_firm"] +
		result.Importance["rush_intensity"] + result.Importance["any_rush"] +
		result.Importance["has_required_date"] + result.Importance["days_until_required"]
	assert.Greater(t, rush, 0.15)
	assert.Greater(t, rush, result.Importance["intake_day_of_week"])
}

func TestTrainWithoutAutoSaveLeavesStoreUntouched(t *testing.T) {
	deps := newTrainingDeps(testutil.SyntheticHistory(testutil.DatasetConfig{Rows: 120, Seed: 3}))

	result, err := deps.svc.Train(context.Background(), service.TrainRequest{
		Profile: config.ProfileFast,
		Holdout: true,
	})
	require.NoError(t, err)

	assert.False(t, result.Saved)
	assert.Zero(t, deps.store.Count())
}

func TestTrainInsufficientDataFailsFast(t *testing.T) {
	deps := newTrainingDeps(nil)

	_, err := deps.svc.Train(context.Background(), service.TrainRequest{
		Profile:  config.ProfileFast,
		Holdout:  true,
		AutoSave: true,
	})
	require.Error(t, err)

	var insufficient *service.InsufficientDataError
	require.ErrorAs(t, err, &insufficient)
	assert.ErrorIs(t, err, model.ErrInsufficientData)
	assert.Zero(t, insufficient.Rows)
	assert.Zero(t, deps.store.Count(), "a failed run must not write an artifact")
}

func TestTrainRejectsUnknownProfile(t *testing.T) {
	deps := newTrainingDeps(testutil.SyntheticHistory(testutil.DatasetConfig{Rows: 120, Seed: 3}))

	_, err := deps.svc.Train(context.Background(), service.TrainRequest{Profile: "turbo"})
	assert.Error(t, err)
	assert.Zero(t, deps.store.Count())
}

func TestTrainScheduledSavesAndPublishes(t *testing.T) {
	deps := newTrainingDeps(testutil.SyntheticHistory(testutil.DatasetConfig{Rows: 120, Seed: 5}))

	result, err := deps.svc.TrainScheduled(context.Background(), config.ProfileFast)
	require.NoError(t, err)

	assert.True(t, result.Saved)
	assert.Equal(t, 1, deps.store.Count())
	// Cross-validated runs fit on everything.
	assert.Equal(t, 120, result.Meta.TrainingRows)

	published, err := deps.locker.CurrentModelVersion(context.Background(), "completion-days")
	require.NoError(t, err)
	assert.Equal(t, result.Meta.Version, published)
}

func TestTrainScheduledHeldLock(t *testing.T) {
	deps := newTrainingDeps(testutil.SyntheticHistory(testutil.DatasetConfig{Rows: 120, Seed: 5}))
	deps.locker.Held = []string{"retrain:2026-03-01"}

	_, err := deps.svc.TrainScheduled(context.Background(), config.ProfileFast)
	assert.ErrorIs(t, err, service.ErrRunInProgress)
	assert.Zero(t, deps.store.Count())
}

func TestHoldoutOutcomeShiftLeavesFitUntouched(t *testing.T) {
	history := testutil.SyntheticHistory(testutil.DatasetConfig{Rows: 150, Seed: 11})
	shifted := testutil.SyntheticHistory(testutil.DatasetConfig{Rows: 150, Seed: 11})

	// Move the newest completion stamp six hours later. The row still sorts
	// last and lands in the evaluation split, so neither the customer
	// statistics nor the fitted ensemble may change: only training rows feed
	// them.
	newest := 0
	for i := range shifted {
		if shifted[i].CompletedAt.After(*shifted[newest].CompletedAt) {
			newest = i
		}
	}
	moved := shifted[newest].CompletedAt.Add(6 * time.Hour)
	shifted[newest].CompletedAt = &moved

	baseDeps := newTrainingDeps(history)
	shiftDeps := newTrainingDeps(shifted)
	req := service.TrainRequest{Profile: config.ProfileFast, Holdout: true, AutoSave: true}

	_, err := baseDeps.svc.Train(context.Background(), req)
	require.NoError(t, err)
	_, err = shiftDeps.svc.Train(context.Background(), req)
	require.NoError(t, err)

	baseRaw, _, err := baseDeps.store.LoadLatest(context.Background(), "completion-days")
	require.NoError(t, err)
	shiftRaw, _, err := shiftDeps.store.LoadLatest(context.Background(), "completion-days")
	require.NoError(t, err)

	baseArt, err := core.DecodeArtifact(baseRaw)
	require.NoError(t, err)
	shiftArt, err := core.DecodeArtifact(shiftRaw)
	require.NoError(t, err)

	assert.Equal(t, baseArt.CustomerStats, shiftArt.CustomerStats)

	// Fitting is deterministic for a fixed seed, so identical training
	// partitions must yield ensembles that agree everywhere they are queried.
	checks := []model.Order{
		testutil.NewOrder("ORD-A").WithCustomer("CUST-003").Build(),
		testutil.NewOrder("ORD-B").WithCustomer("CUST-007").RushStandard().Build(),
		testutil.NewOrder("ORD-C").RushFirm().
			WithRequiredBy(time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)).Build(),
	}
	for i := range checks {
		fv := features.Engineer(&checks[i], baseArt.CustomerStats)
		vec := fv.Values()
		assert.Equal(t, baseArt.Ensemble.Predict(vec), shiftArt.Ensemble.Predict(vec))
	}
}

func TestTrainScheduledRetriesTransientLoad(t *testing.T) {
	deps := newTrainingDeps(testutil.SyntheticHistory(testutil.DatasetConfig{Rows: 120, Seed: 5}))
	deps.orders.CompletedFailures = 1

	result, err := deps.svc.TrainScheduled(context.Background(), config.ProfileFast)
	require.NoError(t, err)
	assert.True(t, result.Saved)
	assert.Equal(t, 1, deps.store.Count())
}

func TestTrainScheduledRetriesTransientSave(t *testing.T) {
	deps := newTrainingDeps(testutil.SyntheticHistory(testutil.DatasetConfig{Rows: 120, Seed: 5}))
	deps.store.SaveFailures = 1

	result, err := deps.svc.TrainScheduled(context.Background(), config.ProfileFast)
	require.NoError(t, err)
	assert.True(t, result.Saved)
	assert.Equal(t, 1, deps.store.Count(), "the retried save persists exactly one version")
}

func TestTrainInteractiveSurfacesLoadFailure(t *testing.T) {
	deps := newTrainingDeps(testutil.SyntheticHistory(testutil.DatasetConfig{Rows: 120, Seed: 5}))
	// A single fault the scheduled path would absorb fails an interactive run.
	deps.orders.CompletedFailures = 1

	_, err := deps.svc.Train(context.Background(), service.TrainRequest{
		Profile: config.ProfileFast,
		Holdout: true,
	})
	require.Error(t, err)
	assert.Zero(t, deps.store.Count())
}

func TestTrainedModelServesHeldOutCustomers(t *testing.T) {
	history := testutil.SyntheticHistory(testutil.DatasetConfig{Rows: 150, Seed: 7})
	deps := newTrainingDeps(history)

	result, err := deps.svc.Train(context.Background(), service.TrainRequest{
		Profile:  config.ProfileFast,
		Holdout:  true,
		AutoSave: true,
	})
	require.NoError(t, err)

	// The stored artifact must carry the statistics table it trained with.
	raw, meta, err := deps.store.LoadLatest(context.Background(), "completion-days")
	require.NoError(t, err)
	assert.Equal(t, result.Meta.Version, meta.Version)

	artifact, err := core.DecodeArtifact(raw)
	require.NoError(t, err)
	assert.NotEmpty(t, artifact.CustomerStats)
}
