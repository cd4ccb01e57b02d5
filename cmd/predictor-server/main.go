// cmd/predictor-server/main.go
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"college-predictor/internal/app"
	"college-predictor/internal/common/camunda"
	"college-predictor/internal/common/config"
	"college-predictor/internal/common/logger"
	"college-predictor/internal/common/observability"
	"college-predictor/internal/gateway"
	"college-predictor/internal/render"

	bex "college-predictor/internal/workers/offers/build-offer-export"
	rop "college-predictor/internal/workers/offers/resolve-offer-page"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		zap.NewExample().Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting college predictor...",
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
		zap.String("backend", cfg.Dataset.Backend),
	)

	obs, err := observability.New(cfg.App.Name, prometheus.DefaultRegisterer)
	if err != nil {
		zapLog.Warn("otel metrics exporter unavailable, tracing only", zap.Error(err))
	}
	defer obs.Shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg, log, app.WithObservability(obs))
	if err != nil {
		zapLog.Fatal("application init failed", zap.Error(err))
	}
	defer application.Close()

	var opts []gateway.Option
	for _, check := range application.Checks() {
		opts = append(opts, gateway.WithReadinessCheck(check.Name, gateway.PingFunc(check.Ping)))
	}

	// --- Zeebe job workers ---
	var pool *camunda.Pool
	if cfg.Camunda.Enabled {
		zeebe, err := camunda.NewClient(cfg.Camunda.BrokerAddress)
		if err != nil {
			zapLog.Fatal("zeebe client failed", zap.Error(err))
		}
		defer zeebe.Close()
		zapLog.Info("Zeebe client connected successfully")
		opts = append(opts, gateway.WithReadinessCheck("zeebe", zeebe))

		pool = camunda.NewPool(zeebe.GetClient(), log)
		startWorkers(pool, cfg, application, zapLog)
	}

	server := gateway.New(
		gateway.ConfigFromServer(cfg.Server),
		application.Service(),
		render.NewPDFRenderer(),
		log.WithFields(map[string]interface{}{"component": "gateway"}),
		opts...,
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	// --- Graceful Shutdown ---
	select {
	case <-ctx.Done():
		zapLog.Info("Shutdown signal received, stopping...")
	case err := <-errCh:
		if err != nil {
			zapLog.Error("HTTP server failed", zap.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout(cfg.Server))
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error shutting down HTTP server", zap.Error(err))
	}
	if pool != nil {
		pool.Close()
	}

	zapLog.Info("College predictor stopped gracefully")
}

func startWorkers(pool *camunda.Pool, cfg *config.Config, application *app.Application, zapLog *zap.Logger) {
	log := logger.NewZapAdapter(zapLog)

	pageHandler, err := rop.NewHandler(rop.ConfigFromApp(cfg), application.Service(), log)
	if err != nil {
		zapLog.Fatal("failed to create resolve-offer-page handler", zap.Error(err))
	}
	pool.Start(rop.TaskType, config.GetWorkerConfig(cfg, rop.TaskType), pageHandler)

	exportHandler, err := bex.NewHandler(bex.ConfigFromApp(cfg), application.Service(), log)
	if err != nil {
		zapLog.Fatal("failed to create build-offer-export handler", zap.Error(err))
	}
	pool.Start(bex.TaskType, config.GetWorkerConfig(cfg, bex.TaskType), exportHandler)

	zapLog.Info("Job workers registered", zap.Int("count", pool.Len()))
}

func shutdownTimeout(sc config.ServerConfig) time.Duration {
	if sc.ShutdownTimeout <= 0 {
		return 30 * time.Second
	}
	return config.GetDuration(sc.ShutdownTimeout)
}
