package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kirillkom/homebuyer-advisor/internal/bootstrap"
	"github.com/kirillkom/homebuyer-advisor/internal/config"
	"github.com/kirillkom/homebuyer-advisor/internal/observability/logging"
)

func main() {
	cfg := config.Load()
	slog.SetDefault(logging.NewLogger(cfg.ServiceName+"-indexer", cfg.LogLevel, cfg.LogFormat, os.Stderr))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		slog.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	started := time.Now()
	indexed, err := app.IndexUC.Reindex(ctx)
	if err != nil {
		slog.Error("reindex_failed", "indexed", indexed, "error", err)
		app.Close()
		os.Exit(1)
	}
	slog.Info("reindex_completed",
		"indexed", indexed,
		"collection", cfg.QdrantCollection,
		"duration_ms", time.Since(started).Milliseconds(),
	)
}
