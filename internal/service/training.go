package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/avast/retry-go"
	"github.com/google/uuid"

	"github.com/craftwell/turnaround/config"
	"github.com/craftwell/turnaround/internal/boost"
	"github.com/craftwell/turnaround/internal/core"
	"github.com/craftwell/turnaround/internal/data"
	"github.com/craftwell/turnaround/internal/domain/model"
	"github.com/craftwell/turnaround/internal/features"
)

// paramsForProfile maps each named preset onto fixed hyperparameters. The
// switch is exhaustive over config.TrainingProfile: an unknown name cannot
// fall through to a silent default.
func paramsForProfile(profile config.TrainingProfile) (boost.Params, error) {
	switch profile {
	case config.ProfileBalanced:
		return boost.Params{
			Trees: 150, MaxDepth: 4, MinLeafSize: 5,
			LearningRate: 0.1, L1: 0.0, L2: 1.0,
			SubsampleFrac: 0.8, Seed: 17,
		}, nil
	case config.ProfileDeep:
		return boost.Params{
			Trees: 400, MaxDepth: 6, MinLeafSize: 8,
			LearningRate: 0.05, L1: 0.5, L2: 2.0,
			SubsampleFrac: 0.7, Seed: 17,
		}, nil
	case config.ProfileFast:
		return boost.Params{
			Trees: 50, MaxDepth: 3, MinLeafSize: 5,
			LearningRate: 0.15, L1: 0.0, L2: 1.0,
			SubsampleFrac: 1.0, Seed: 17,
		}, nil
	default:
		return boost.Params{}, fmt.Errorf("invalid TrainingProfile: %q", profile)
	}
}

// TrainRequest describes one training run.
type TrainRequest struct {
	Profile config.TrainingProfile
	// Holdout selects the interactive mode: a chronological evaluation split
	// whose rows never feed customer statistics. Without it (unattended
	// retrains) statistics cover everything and MAE comes from
	// cross-validation.
	Holdout bool
	// AutoSave persists the artifact on success.
	AutoSave bool
	// Scheduled enables bounded retry with backoff around dataset loading.
	// Interactive runs surface load errors immediately instead.
	Scheduled bool
}

// TrainResult reports a finished run's metrics.
type TrainResult struct {
	Meta       model.ModelMetadata `json:"meta"`
	MAE        float64             `json:"mae"`
	EvalRows   int                 `json:"eval_rows"`
	Importance map[string]float64  `json:"importance"`
	Saved      bool                `json:"saved"`
}

// TrainingServiceOptions bundles dependencies for NewTrainingService.
type TrainingServiceOptions struct {
	Orders       core.OrderRepository
	Store        core.ModelRepository
	Locker       core.RunLocker
	Cfg          config.TrainingConfig
	ModelCfg     config.ModelConfig
	LockTTL      time.Duration
	TimeProvider data.TimeProvider
	Logger       *slog.Logger
}

// TrainingService owns the model trainer: dataset loading, leakage-safe
// feature assembly, recency weighting, fitting, error measurement, and the
// atomic save.
type TrainingService struct {
	orders   core.OrderRepository
	store    core.ModelRepository
	locker   core.RunLocker
	cfg      config.TrainingConfig
	modelCfg config.ModelConfig
	lockTTL  time.Duration
	clock    data.TimeProvider
	logger   *slog.Logger
}

// NewTrainingService creates a new TrainingService.
func NewTrainingService(opts TrainingServiceOptions) *TrainingService {
	if opts.TimeProvider == nil {
		opts.TimeProvider = &data.RealTimeProvider{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = time.Hour
	}
	// retry-go reads zero attempts as unlimited; a single attempt is the floor.
	if opts.Cfg.Retries < 1 {
		opts.Cfg.Retries = 1
	}
	return &TrainingService{
		orders:   opts.Orders,
		store:    opts.Store,
		locker:   opts.Locker,
		cfg:      opts.Cfg,
		modelCfg: opts.ModelCfg,
		lockTTL:  opts.LockTTL,
		clock:    opts.TimeProvider,
		logger:   opts.Logger,
	}
}

// Train runs one training pass under the configured wall-clock budget.
// Below the minimum viable row count it fails fast with an
// InsufficientDataError and the store is left untouched.
func (s *TrainingService) Train(ctx context.Context, req TrainRequest) (*TrainResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Budget)
	defer cancel()

	params, err := paramsForProfile(req.Profile)
	if err != nil {
		return nil, err
	}

	rows, err := s.loadRows(ctx, req.Scheduled)
	if err != nil {
		return nil, fmt.Errorf("load historical dataset: %w", err)
	}
	if len(rows) < s.cfg.MinRows {
		return nil, &InsufficientDataError{Rows: len(rows), MinRows: s.cfg.MinRows}
	}

	sort.Slice(rows, func(i, j int) bool {
		return rows[i].CompletedAt.Before(*rows[j].CompletedAt)
	})

	var (
		fit      *fittedModel
		evalRows int
		fitRows  int
	)
	if req.Holdout {
		fit, evalRows, err = s.trainWithHoldout(rows, params)
		fitRows = len(rows) - evalRows
	} else {
		fit, err = s.trainWithCV(ctx, rows, params)
		fitRows = len(rows)
	}
	if err != nil {
		return nil, err
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, fmt.Errorf("training budget exceeded: %w", ctxErr)
	}

	now := s.clock.Now().UTC()
	meta := model.ModelMetadata{
		Version:      fmt.Sprintf("%s-%s-%s", s.modelCfg.Name, now.Format("20060102T150405Z"), uuid.NewString()[:8]),
		Name:         s.modelCfg.Name,
		Profile:      string(req.Profile),
		FeatureNames: model.FeatureNames(),
		MAE:          fit.mae,
		TrainingRows: fitRows,
		TrainedAt:    now,
	}

	result := &TrainResult{
		Meta:       meta,
		MAE:        fit.mae,
		EvalRows:   evalRows,
		Importance: namedImportance(fit.ensemble),
	}

	if req.AutoSave {
		artifact, marshalErr := core.EncodeArtifact(&core.ModelArtifact{
			Ensemble:      fit.ensemble,
			CustomerStats: fit.stats,
		})
		if marshalErr != nil {
			return nil, marshalErr
		}
		if saveErr := s.saveArtifact(ctx, artifact, &meta, req.Scheduled); saveErr != nil {
			return nil, fmt.Errorf("save model artifact: %w", saveErr)
		}
		result.Saved = true
		s.publishVersion(ctx, meta.Version)
	}

	s.logger.InfoContext(ctx, "training run finished",
		"profile", req.Profile, "rows", len(rows), "fit_rows", fitRows,
		"eval_rows", evalRows, "mae", fit.mae, "saved", result.Saved)
	return result, nil
}

// fittedModel pairs a trained ensemble with the customer statistics it was
// fitted against; the two are stored and served together.
type fittedModel struct {
	ensemble *boost.Ensemble
	stats    map[string]model.CustomerStats
	mae      float64
}

// TrainScheduled is the unattended retrain entry: run-locked against double
// fire, full dataset statistics, cross-validated MAE, always saved.
func (s *TrainingService) TrainScheduled(ctx context.Context, profile config.TrainingProfile) (*TrainResult, error) {
	lockName := "retrain:" + s.clock.Today().Format(time.DateOnly)
	acquired, err := s.locker.Acquire(ctx, lockName, s.lockTTL)
	if err != nil {
		return nil, fmt.Errorf("acquire retrain lock: %w", err)
	}
	if !acquired {
		return nil, ErrRunInProgress
	}
	defer func() {
		if relErr := s.locker.Release(context.WithoutCancel(ctx), lockName); relErr != nil {
			s.logger.WarnContext(ctx, "release retrain lock failed", "error", relErr)
		}
	}()

	return s.Train(ctx, TrainRequest{
		Profile:   profile,
		Holdout:   false,
		AutoSave:  true,
		Scheduled: true,
	})
}

func (s *TrainingService) loadRows(ctx context.Context, scheduled bool) ([]model.CompletedOrder, error) {
	if !scheduled {
		return s.orders.CompletedOrders(ctx)
	}

	var rows []model.CompletedOrder
	err := retry.Do(
		func() error {
			var loadErr error
			rows, loadErr = s.orders.CompletedOrders(ctx)
			if loadErr != nil {
				s.logger.WarnContext(ctx, "dataset load failed, retrying", "error", loadErr)
			}
			return loadErr
		},
		retry.Attempts(uint(s.cfg.Retries)),
		retry.Delay(500*time.Millisecond),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
	)
	return rows, err
}

// saveArtifact persists the artifact, retrying transient store failures for
// scheduled runs so one blip cannot throw away a finished training pass. A
// version collision is permanent and never retried.
func (s *TrainingService) saveArtifact(
	ctx context.Context,
	artifact []byte,
	meta *model.ModelMetadata,
	scheduled bool,
) error {
	if !scheduled {
		return s.store.Save(ctx, artifact, meta)
	}

	return retry.Do(
		func() error {
			saveErr := s.store.Save(ctx, artifact, meta)
			if saveErr != nil {
				s.logger.WarnContext(ctx, "artifact save failed, retrying",
					"version", meta.Version, "error", saveErr)
			}
			return saveErr
		},
		retry.Attempts(uint(s.cfg.Retries)),
		retry.Delay(500*time.Millisecond),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return !errors.Is(err, data.ErrVersionExists)
		}),
	)
}

// trainWithHoldout fits on the chronologically older split and measures MAE
// on the newer one. Customer statistics come from the training split only, so
// a held-out row's own completion days can never reach its features.
func (s *TrainingService) trainWithHoldout(
	rows []model.CompletedOrder,
	params boost.Params,
) (*fittedModel, int, error) {
	cut := len(rows) - int(math.Round(s.cfg.HoldoutFraction*float64(len(rows))))
	if cut < 1 || cut >= len(rows) {
		cut = len(rows) - 1
	}
	trainRows, holdoutRows := rows[:cut], rows[cut:]

	stats := features.BuildCustomerStats(trainRows)
	trainSamples := s.buildSamples(trainRows, stats)
	holdoutSamples := s.buildSamples(holdoutRows, stats)

	ensemble, err := boost.Train(trainSamples, params)
	if err != nil {
		return nil, 0, fmt.Errorf("fit ensemble: %w", err)
	}
	fit := &fittedModel{
		ensemble: ensemble,
		stats:    stats,
		mae:      ensemble.MeanAbsoluteError(holdoutSamples),
	}
	return fit, len(holdoutRows), nil
}

// trainWithCV measures MAE by contiguous chronological k-fold
// cross-validation, then fits the returned ensemble on everything. Used by
// unattended retrains, which keep no holdout: with no held-out partition
// there is no leakage channel, so statistics may cover the entire dataset.
func (s *TrainingService) trainWithCV(
	ctx context.Context,
	rows []model.CompletedOrder,
	params boost.Params,
) (*fittedModel, error) {
	stats := features.BuildCustomerStats(rows)
	samples := s.buildSamples(rows, stats)

	folds := s.cfg.CVFolds
	if folds > len(rows) {
		folds = len(rows)
	}

	var absErrSum float64
	var evaluated int
	for f := 0; f < folds; f++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("training budget exceeded during cross-validation: %w", ctxErr)
		}
		lo := f * len(samples) / folds
		hi := (f + 1) * len(samples) / folds
		if lo >= hi {
			continue
		}
		trainFold := make([]boost.Sample, 0, len(samples)-(hi-lo))
		trainFold = append(trainFold, samples[:lo]...)
		trainFold = append(trainFold, samples[hi:]...)
		if len(trainFold) == 0 {
			continue
		}

		foldModel, err := boost.Train(trainFold, params)
		if err != nil {
			return nil, fmt.Errorf("fit cross-validation fold %d: %w", f, err)
		}
		for i := lo; i < hi; i++ {
			absErrSum += math.Abs(samples[i].Target - foldModel.Predict(samples[i].Features))
			evaluated++
		}
	}

	mae := 0.0
	if evaluated > 0 {
		mae = absErrSum / float64(evaluated)
	}

	ensemble, err := boost.Train(samples, params)
	if err != nil {
		return nil, fmt.Errorf("fit ensemble: %w", err)
	}
	return &fittedModel{ensemble: ensemble, stats: stats, mae: mae}, nil
}

// buildSamples engineers leakage-safe features and recency weights for
// completed rows. Intermediate stage dates are stripped first so training
// rows see exactly the field distribution open orders present at serving
// time.
func (s *TrainingService) buildSamples(
	rows []model.CompletedOrder,
	stats map[string]model.CustomerStats,
) []boost.Sample {
	weights := s.recencyWeights(rows)
	samples := make([]boost.Sample, len(rows))
	for i := range rows {
		order := features.ForTraining(rows[i].Order)
		vec := features.Engineer(&order, stats)
		samples[i] = boost.Sample{
			Features: vec.Values(),
			Target:   rows[i].Days,
			Weight:   weights[i],
		}
	}
	return samples
}

// recencyWeights computes exp(fraction * scale) per row, fraction being the
// completion date's relative position in the observed range: 0 for the
// oldest row, 1 for the newest. With the default scale the newest row weighs
// about 7.4x the oldest.
func (s *TrainingService) recencyWeights(rows []model.CompletedOrder) []float64 {
	weights := make([]float64, len(rows))
	if len(rows) == 0 {
		return weights
	}

	oldest, newest := *rows[0].CompletedAt, *rows[0].CompletedAt
	for i := range rows {
		c := *rows[i].CompletedAt
		if c.Before(oldest) {
			oldest = c
		}
		if c.After(newest) {
			newest = c
		}
	}

	span := newest.Sub(oldest)
	for i := range rows {
		fraction := 0.0
		if span > 0 {
			fraction = float64(rows[i].CompletedAt.Sub(oldest)) / float64(span)
		}
		weights[i] = math.Exp(fraction * s.cfg.RecencyScale)
	}
	return weights
}

func (s *TrainingService) publishVersion(ctx context.Context, version string) {
	if s.locker == nil {
		return
	}
	if err := s.locker.PublishModelVersion(ctx, s.modelCfg.Name, version); err != nil {
		s.logger.WarnContext(ctx, "publish model version hint failed", "error", err)
	}
}

func namedImportance(ensemble *boost.Ensemble) map[string]float64 {
	names := model.FeatureNames()
	importance := ensemble.FeatureImportance()
	out := make(map[string]float64, len(names))
	for i, name := range names {
		if i < len(importance) {
			out[name] = importance[i]
		}
	}
	return out
}
