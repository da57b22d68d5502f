package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/craftwell/turnaround/config"
	httpx "github.com/craftwell/turnaround/internal/http"
)

// HTTPServerConfig contains configuration for the HTTP server.
type HTTPServerConfig struct {
	Config   *config.AppConfig
	Services ServiceContainer
	Logger   *slog.Logger
}

// NewHTTPServer builds the configured server around the API router.
func NewHTTPServer(cfg *HTTPServerConfig) *http.Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	appCfg := cfg.Config

	router := httpx.NewRouter(httpx.RouterServices{
		Training:       cfg.Services.Training,
		Predictions:    cfg.Services.Predictions,
		Snapshots:      cfg.Services.Snapshots,
		Evaluator:      cfg.Services.Evaluator,
		Scheduler:      httpx.SecretAuthenticator{Secret: appCfg.SchedulerSecret},
		DefaultProfile: appCfg.Training.DefaultProfile,
		Logger:         logger,
	})

	return &http.Server{
		Addr:         appCfg.HTTP.Addr,
		Handler:      router,
		ReadTimeout:  appCfg.HTTP.ReadTimeout,
		// Training runs synchronously inside its request, so the write timeout
		// must cover the training budget.
		WriteTimeout: appCfg.HTTP.WriteTimeout,
	}
}

// RunWithShutdown serves until SIGINT/SIGTERM, then drains in-flight requests
// within the configured shutdown timeout.
func RunWithShutdown(ctx context.Context, server *http.Server, cfg *HTTPServerConfig) error {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting HTTP server", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down HTTP server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Config.HTTP.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("HTTP server stopped")
	return nil
}
