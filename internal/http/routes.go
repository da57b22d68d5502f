package httpx

import (
	"log/slog"
	"net/http"

	"github.com/craftwell/turnaround/config"
	"github.com/craftwell/turnaround/internal/service"
)

// RouterServices holds all the services needed by the HTTP router.
type RouterServices struct {
	Training    *service.TrainingService
	Predictions *service.PredictionService
	Snapshots   *service.SnapshotService
	Evaluator   *service.EvaluationService
	// Scheduler authenticates the retrain/snapshot trigger endpoints. When nil
	// those routes are not registered at all.
	Scheduler      Authenticator
	DefaultProfile config.TrainingProfile
	Logger         *slog.Logger
}

// NewRouter creates and configures the HTTP router.
func NewRouter(services RouterServices) http.Handler {
	if services.Logger == nil {
		services.Logger = slog.Default()
	}
	mux := http.NewServeMux()

	trainingHandlers := &TrainingHandlers{
		Svc:            services.Training,
		DefaultProfile: services.DefaultProfile,
	}
	predictionHandlers := &PredictionHandlers{Svc: services.Predictions}
	snapshotHandlers := &SnapshotHandlers{
		Recorder:  services.Snapshots,
		Evaluator: services.Evaluator,
	}

	registerTrainingRoutes(mux, trainingHandlers)
	registerPredictionRoutes(mux, predictionHandlers)
	registerReportRoutes(mux, snapshotHandlers)
	if services.Scheduler != nil {
		registerScheduledRoutes(mux, scheduledRoutes{
			Training:  trainingHandlers,
			Snapshots: snapshotHandlers,
			Auth:      services.Scheduler,
		})
	}
	mux.Handle("GET /healthz", http.HandlerFunc(healthHandler))
	mux.Handle("HEAD /healthz", http.HandlerFunc(healthHandler))

	return Logging(services.Logger)(Recover(services.Logger)(mux))
}

func registerTrainingRoutes(mux *http.ServeMux, h *TrainingHandlers) {
	mux.HandleFunc("POST /api/train", h.Train)
}

func registerPredictionRoutes(mux *http.ServeMux, h *PredictionHandlers) {
	mux.HandleFunc("POST /api/predictions", h.Predict)
	mux.HandleFunc("POST /api/predictions/batch", h.PredictBatch)
	mux.HandleFunc("GET /api/model/status", h.ModelStatus)
}

func registerReportRoutes(mux *http.ServeMux, h *SnapshotHandlers) {
	mux.HandleFunc("GET /api/reports/performance", h.PerformanceReport)
}

// scheduledRoutes groups the secret-gated scheduler trigger wiring.
type scheduledRoutes struct {
	Training  *TrainingHandlers
	Snapshots *SnapshotHandlers
	Auth      Authenticator
}

func registerScheduledRoutes(mux *http.ServeMux, cfg scheduledRoutes) {
	wrap := RequireSchedulerSecret(cfg.Auth)
	mux.Handle("POST /api/scheduled/retrain", wrap(http.HandlerFunc(cfg.Training.Retrain)))
	mux.Handle("POST /api/scheduled/snapshot", wrap(http.HandlerFunc(cfg.Snapshots.Record)))
}
