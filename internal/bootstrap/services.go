package bootstrap

import (
	"database/sql"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/craftwell/turnaround/config"
	"github.com/craftwell/turnaround/internal/core"
	"github.com/craftwell/turnaround/internal/data"
	"github.com/craftwell/turnaround/internal/service"
)

// ServiceDeps contains the shared dependencies every service is built from.
type ServiceDeps struct {
	Config      *config.AppConfig
	DB          *sql.DB
	RedisClient redis.UniversalClient
	Logger      *slog.Logger
}

// ServiceContainer holds the constructed services and the repositories the
// entrypoint still needs direct access to.
type ServiceContainer struct {
	Training    *service.TrainingService
	Predictions *service.PredictionService
	Snapshots   *service.SnapshotService
	Evaluator   *service.EvaluationService
	ModelCache  *core.ModelCache
	Locker      *data.RunLockRepo
}

// NewServices constructs the repositories and services in dependency order.
func NewServices(deps *ServiceDeps) ServiceContainer {
	cfg := deps.Config
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	orders := data.NewOrderRepo(deps.DB, data.OrderRepoConfig{
		QueryTimeout:     cfg.Postgres.QueryTimeout,
		MaxPlausibleDays: cfg.Training.MaxPlausibleDays,
		OutlierSigma:     cfg.Training.OutlierSigma,
		Logger:           logger,
	})
	store := data.NewModelStore(deps.DB, data.ModelStoreConfig{
		Keep:         cfg.Model.Keep,
		QueryTimeout: cfg.Postgres.QueryTimeout,
		Logger:       logger,
	})
	snapshots := data.NewSnapshotRepo(deps.DB, data.SnapshotRepoConfig{
		QueryTimeout: cfg.Postgres.QueryTimeout,
		Logger:       logger,
	})
	locker := data.NewRunLockRepo(deps.RedisClient)

	cache := core.NewModelCache(core.ModelCacheOptions{
		Store: store,
		Config: core.ModelCacheConfig{
			ModelName: cfg.Model.Name,
			TTL:       cfg.Model.CacheTTL,
		},
		Logger: logger,
	})

	training := service.NewTrainingService(service.TrainingServiceOptions{
		Orders:   orders,
		Store:    store,
		Locker:   locker,
		Cfg:      cfg.Training,
		ModelCfg: cfg.Model,
		LockTTL:  cfg.Snapshot.RunLockTTL,
		Logger:   logger,
	})
	predictions := service.NewPredictionService(service.PredictionServiceOptions{
		Orders:   orders,
		Cache:    cache,
		Store:    store,
		Locker:   locker,
		Cfg:      cfg.Prediction,
		ModelCfg: cfg.Model,
		Logger:   logger,
	})
	snapshotSvc := service.NewSnapshotService(service.SnapshotServiceOptions{
		Orders:      orders,
		Snapshots:   snapshots,
		Predictions: predictions,
		Locker:      locker,
		Cfg:         cfg.Snapshot,
		Logger:      logger,
	})
	evaluator := service.NewEvaluationService(service.EvaluationServiceOptions{
		Snapshots: snapshots,
		Logger:    logger,
	})

	return ServiceContainer{
		Training:    training,
		Predictions: predictions,
		Snapshots:   snapshotSvc,
		Evaluator:   evaluator,
		ModelCache:  cache,
		Locker:      locker,
	}
}
