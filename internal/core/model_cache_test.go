package core_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/craftwell/turnaround/internal/boost"
	"github.com/craftwell/turnaround/internal/core"
	"github.com/craftwell/turnaround/internal/data"
	"github.com/craftwell/turnaround/internal/domain/model"
	"github.com/craftwell/turnaround/internal/testutil"
)

func tinyArtifact(t *testing.T) []byte {
	t.Helper()
	samples := []boost.Sample{
		{Features: []float64{1}, Target: 2},
		{Features: []float64{2}, Target: 4},
		{Features: []float64{3}, Target: 6},
		{Features: []float64{4}, Target: 8},
	}
	ens, err := boost.Train(samples, boost.Params{
		Trees: 5, MaxDepth: 2, MinLeafSize: 1,
		LearningRate: 0.3, L2: 1.0, SubsampleFrac: 1.0, Seed: 1,
	})
	require.NoError(t, err)

	raw, err := core.EncodeArtifact(&core.ModelArtifact{
		Ensemble:      ens,
		CustomerStats: map[string]model.CustomerStats{"CUST-A": {MeanDays: 3, CompletedCount: 2}},
	})
	require.NoError(t, err)
	return raw
}

func saveVersion(t *testing.T, store *testutil.StubModelStore, version string, trainedAt time.Time) {
	t.Helper()
	err := store.Save(context.Background(), tinyArtifact(t), &model.ModelMetadata{
		Version:      version,
		Name:         "completion-days",
		Profile:      "balanced",
		FeatureNames: model.FeatureNames(),
		MAE:          0.8,
		TrainedAt:    trainedAt,
	})
	require.NoError(t, err)
}

func newCache(store *testutil.StubModelStore, clock data.TimeProvider) *core.ModelCache {
	return core.NewModelCache(core.ModelCacheOptions{
		Store:        store,
		Config:       core.ModelCacheConfig{ModelName: "completion-days", TTL: 5 * time.Minute},
		TimeProvider: clock,
	})
}

func TestModelCacheServesWithinTTL(t *testing.T) {
	store := &testutil.StubModelStore{}
	clock := data.NewFixedTimeProvider(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	saveVersion(t, store, "v1", clock.Now())
	cache := newCache(store, clock)

	first, err := cache.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "v1", first.Meta.Version)

	// A newer version saved inside the TTL window stays invisible.
	saveVersion(t, store, "v2", clock.Now())
	clock.AddTime(4 * time.Minute)

	second, err := cache.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "v1", second.Meta.Version)
}

func TestModelCacheRefreshesAfterTTL(t *testing.T) {
	store := &testutil.StubModelStore{}
	clock := data.NewFixedTimeProvider(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	saveVersion(t, store, "v1", clock.Now())
	cache := newCache(store, clock)

	_, err := cache.Get(context.Background())
	require.NoError(t, err)

	saveVersion(t, store, "v2", clock.Now())
	clock.AddTime(6 * time.Minute)

	refreshed, err := cache.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "v2", refreshed.Meta.Version)
}

func TestModelCacheEmptyStorePassesSentinelThrough(t *testing.T) {
	store := &testutil.StubModelStore{}
	clock := data.NewFixedTimeProvider(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	cache := newCache(store, clock)

	_, err := cache.Get(context.Background())
	assert.ErrorIs(t, err, model.ErrNoModelAvailable)
	assert.Nil(t, cache.Peek())
}

func TestModelCachePeekNeverRefreshes(t *testing.T) {
	store := &testutil.StubModelStore{}
	clock := data.NewFixedTimeProvider(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	saveVersion(t, store, "v1", clock.Now())
	cache := newCache(store, clock)

	assert.Nil(t, cache.Peek())

	_, err := cache.Get(context.Background())
	require.NoError(t, err)
	require.NotNil(t, cache.Peek())

	cache.Invalidate()
	assert.Nil(t, cache.Peek())
}

func TestArtifactCodecRoundTrip(t *testing.T) {
	raw := tinyArtifact(t)

	artifact, err := core.DecodeArtifact(raw)
	require.NoError(t, err)
	require.NotNil(t, artifact.Ensemble)
	assert.InDelta(t, 3, artifact.CustomerStats["CUST-A"].MeanDays, 1e-9)
	assert.InDelta(t, artifact.Ensemble.Predict([]float64{2}), artifact.Ensemble.Predict([]float64{2}), 0)
}

func TestArtifactCodecRejectsMissingEnsemble(t *testing.T) {
	_, err := core.DecodeArtifact([]byte(`{"customer_stats":{}}`))
	assert.Error(t, err)

	_, err = core.EncodeArtifact(&core.ModelArtifact{})
	assert.Error(t, err)
}

func TestArtifactCodecNilStatsBecomesEmptyMap(t *testing.T) {
	samplesRaw := tinyArtifact(t)
	artifact, err := core.DecodeArtifact(samplesRaw)
	require.NoError(t, err)
	require.NotNil(t, artifact.CustomerStats)

	raw, err := core.EncodeArtifact(&core.ModelArtifact{Ensemble: artifact.Ensemble})
	require.NoError(t, err)
	decoded, err := core.DecodeArtifact(raw)
	require.NoError(t, err)
	assert.NotNil(t, decoded.CustomerStats)
	assert.Empty(t, decoded.CustomerStats)
}
