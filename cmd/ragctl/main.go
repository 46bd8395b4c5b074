package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mewerton/universal-system/internal/adapters/cli"
	"github.com/mewerton/universal-system/internal/bootstrap"
	"github.com/mewerton/universal-system/internal/config"
	"github.com/mewerton/universal-system/internal/observability/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	open := func(ctx context.Context) (*cli.Services, func(), error) {
		cfg := config.Load()
		logger := logging.NewJSONLoggerTo(os.Stderr, "ragctl", cfg.LogLevel)
		app, err := bootstrap.New(ctx, cfg, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("bootstrap: %w", err)
		}
		return &cli.Services{
			Catalog:  app.Catalog,
			Uploader: app.UploadUC,
			Exporter: app.ExportUC,
			Sessions: app.Sessions,
		}, app.Close, nil
	}

	root, closeFn := cli.NewRootCommand(open)
	err := root.ExecuteContext(ctx)
	closeFn()
	if err != nil {
		fmt.Fprintln(os.Stderr, "ragctl:", err)
		os.Exit(1)
	}
}
