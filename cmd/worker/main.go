package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mewerton/universal-system/internal/bootstrap"
	"github.com/mewerton/universal-system/internal/config"
	"github.com/mewerton/universal-system/internal/observability/logging"
	"github.com/mewerton/universal-system/internal/observability/metrics"
)

const (
	serviceName    = "worker"
	processTimeout = 5 * time.Minute
)

func main() {
	cfg := config.Load()
	logger := logging.NewJSONLogger(serviceName, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	if app.Queue == nil {
		logger.Error("worker_requires_nats", "reason", "NATS_URL not set")
		os.Exit(1)
	}

	workerMetrics := metrics.NewWorkerMetrics(serviceName)
	metricsServer := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           workerMetrics.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("worker_metrics_server_failed", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	logger.Info("worker_subscribed", "subject", cfg.NATSIngestSubject)
	err = app.Queue.SubscribeIngestRequested(ctx, func(handlerCtx context.Context, documentID string) error {
		processCtx, cancel := context.WithTimeout(handlerCtx, processTimeout)
		defer cancel()

		if doc, err := app.Repo.GetByID(processCtx, documentID); err == nil {
			workerMetrics.ObserveQueueLag(serviceName, time.Since(doc.CreatedAt))
		}

		start := time.Now()
		workerMetrics.StartDocument()
		_, report, err := app.Orchestrator.Run(processCtx, documentID)
		status := ""
		if report != nil {
			status = string(report.Status())
		}
		workerMetrics.FinishDocument(serviceName, time.Since(start), status, err)
		return err
	})
	if err != nil {
		logger.Error("worker_subscribe_failed", "error", err)
		os.Exit(1)
	}
}
