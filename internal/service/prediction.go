package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/craftwell/turnaround/config"
	"github.com/craftwell/turnaround/internal/core"
	"github.com/craftwell/turnaround/internal/data"
	"github.com/craftwell/turnaround/internal/domain/model"
	"github.com/craftwell/turnaround/internal/features"
)

// PredictionServiceOptions bundles dependencies for NewPredictionService.
type PredictionServiceOptions struct {
	Orders       core.OrderRepository
	Cache        *core.ModelCache
	Store        core.ModelRepository
	Locker       core.RunLocker
	Cfg          config.PredictionConfig
	ModelCfg     config.ModelConfig
	TimeProvider data.TimeProvider
	Logger       *slog.Logger
}

// PredictionService applies the cached model to open orders. The serving path
// is CPU-bound and short; the only I/O is the order lookup and, at most once
// per cache TTL, the model refresh.
type PredictionService struct {
	orders   core.OrderRepository
	cache    *core.ModelCache
	store    core.ModelRepository
	locker   core.RunLocker
	cfg      config.PredictionConfig
	modelCfg config.ModelConfig
	clock    data.TimeProvider
	logger   *slog.Logger
}

// NewPredictionService creates a new PredictionService.
func NewPredictionService(opts PredictionServiceOptions) *PredictionService {
	if opts.TimeProvider == nil {
		opts.TimeProvider = &data.RealTimeProvider{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &PredictionService{
		orders:   opts.Orders,
		cache:    opts.Cache,
		store:    opts.Store,
		locker:   opts.Locker,
		cfg:      opts.Cfg,
		modelCfg: opts.ModelCfg,
		clock:    opts.TimeProvider,
		logger:   opts.Logger,
	}
}

// PredictOne predicts completion days for a single order by ID.
func (s *PredictionService) PredictOne(ctx context.Context, orderID string) (*model.Prediction, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return s.PredictOrder(ctx, order)
}

// PredictOrder predicts completion days for an order already in hand.
// Fails with model.ErrNoModelAvailable when nothing has ever been trained,
// which is a different answer than a store that cannot be reached.
func (s *PredictionService) PredictOrder(ctx context.Context, order *model.Order) (*model.Prediction, error) {
	cached, err := s.resolveModel(ctx)
	if err != nil {
		return nil, err
	}
	return s.predictWith(cached, order)
}

// resolveModel fetches the cached model, mapping a store I/O failure onto
// ErrStoreUnavailable while letting the empty-store sentinel pass through.
func (s *PredictionService) resolveModel(ctx context.Context) (*core.CachedModel, error) {
	cached, err := s.cache.Get(ctx)
	if err != nil {
		if errors.Is(err, model.ErrNoModelAvailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return cached, nil
}

// predictWith applies one already-resolved model. Callers iterating many
// orders resolve once and pass the same entry here, so every result of the
// run is pinned to a single version and its metadata even if the cache TTL
// lapses mid-iteration.
func (s *PredictionService) predictWith(cached *core.CachedModel, order *model.Order) (*model.Prediction, error) {
	if order.IntakeAt.IsZero() {
		return nil, fmt.Errorf("order %s has no intake date", order.ID)
	}
	if len(cached.Meta.FeatureNames) != model.FeatureCount {
		return nil, &FeatureMismatchError{
			ModelVersion: cached.Meta.Version,
			ModelWidth:   len(cached.Meta.FeatureNames),
			CodeWidth:    model.FeatureCount,
		}
	}

	// Customer statistics come from the artifact itself: serving must join the
	// same table the model trained against, with the zero value for customers
	// it never saw.
	vec := features.Engineer(order, cached.Artifact.CustomerStats)
	point := cached.Artifact.Ensemble.Predict(vec.Values())
	if point < 0 {
		point = 0
	}

	lower := point - s.cfg.IntervalHalfWidthDays
	if lower < 0 {
		lower = 0
	}
	return &model.Prediction{
		OrderID:       order.ID,
		PredictedDays: point,
		LowerDays:     lower,
		UpperDays:     point + s.cfg.IntervalHalfWidthDays,
		ModelVersion:  cached.Meta.Version,
	}, nil
}

// PredictBatch predicts for up to the configured cap of orders per call.
func (s *PredictionService) PredictBatch(ctx context.Context, orderIDs []string) ([]model.Prediction, error) {
	if len(orderIDs) > s.cfg.MaxBatchSize {
		return nil, fmt.Errorf("%w: %d orders, cap is %d", ErrBatchTooLarge, len(orderIDs), s.cfg.MaxBatchSize)
	}

	out := make([]model.Prediction, 0, len(orderIDs))
	for _, id := range orderIDs {
		pred, err := s.PredictOne(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("predict order %s: %w", id, err)
		}
		out = append(out, *pred)
	}
	return out, nil
}

// ModelStatus reports what this worker currently serves and what the store holds.
type ModelStatus struct {
	CachedVersion    string               `json:"cached_version,omitempty"`
	CachedLoadedAt   *time.Time           `json:"cached_loaded_at,omitempty"`
	PublishedVersion string               `json:"published_version,omitempty"`
	Stored           []model.ModelMetadata `json:"stored"`
}

// Status returns current cached and stored model metadata without forcing a
// cache refresh.
func (s *PredictionService) Status(ctx context.Context) (*ModelStatus, error) {
	status := &ModelStatus{}

	if cached := s.cache.Peek(); cached != nil {
		status.CachedVersion = cached.Meta.Version
		loadedAt := cached.LoadedAt
		status.CachedLoadedAt = &loadedAt
	}

	stored, err := s.store.List(ctx, s.modelCfg.Name)
	if err != nil {
		return nil, fmt.Errorf("list stored models: %w", err)
	}
	status.Stored = stored

	if s.locker != nil {
		published, verErr := s.locker.CurrentModelVersion(ctx, s.modelCfg.Name)
		if verErr != nil {
			s.logger.WarnContext(ctx, "read published model version failed", "error", verErr)
		} else {
			status.PublishedVersion = published
		}
	}
	return status, nil
}
