package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpadapter "github.com/mewerton/universal-system/internal/adapters/http"
	"github.com/mewerton/universal-system/internal/bootstrap"
	"github.com/mewerton/universal-system/internal/config"
	"github.com/mewerton/universal-system/internal/observability/logging"
	"github.com/mewerton/universal-system/internal/observability/metrics"
)

func main() {
	cfg := config.Load()
	logger := logging.NewJSONLogger("api", cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	go app.Sessions.RunJanitor(ctx, 0)
	go func() {
		if err := app.WatchIndexEvents(ctx); err != nil {
			logger.Error("index_events_subscription_failed", "error", err)
		}
	}()

	router := httpadapter.NewRouter(cfg, httpadapter.Dependencies{
		Uploader:  app.UploadUC,
		Documents: app.Repo,
		Catalog:   app.Catalog,
		Exporter:  app.ExportUC,
		Sessions:  app.Sessions,
		Metrics:   metrics.NewHTTPServerMetrics("api"),
		Logger:    logger,
	}).Handler()
	server := &http.Server{
		Addr:              ":" + cfg.APIPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       2 * time.Minute,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("api_listening", "port", cfg.APIPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("api_server_failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("api_shutdown_failed", "error", err)
	}
}
