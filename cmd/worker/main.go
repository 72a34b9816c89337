package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kirillkom/homebuyer-advisor/internal/bootstrap"
	"github.com/kirillkom/homebuyer-advisor/internal/config"
	"github.com/kirillkom/homebuyer-advisor/internal/observability/logging"
	"github.com/kirillkom/homebuyer-advisor/internal/observability/metrics"
)

func main() {
	cfg := config.Load()
	slog.SetDefault(logging.NewLogger(cfg.ServiceName+"-worker", cfg.LogLevel, cfg.LogFormat, os.Stdout))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		slog.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	service := cfg.ServiceName + "-worker"
	workerMetrics := metrics.NewWorkerMetrics(service)
	metricsServer := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           workerMetrics.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("worker_metrics_server_failed", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	slog.Info("worker_subscribed", "subject", cfg.NATSHistorySubject, "metrics_port", cfg.WorkerMetricsPort)
	err = app.Queue.SubscribeHistory(ctx, func(handlerCtx context.Context, raw []byte) error {
		if recordedAt, ok := eventTimestamp(raw); ok {
			workerMetrics.ObserveQueueLag(service, time.Since(recordedAt))
		}
		workerMetrics.StartIngest()
		started := time.Now()
		err := app.HistoryIngestUC.Ingest(handlerCtx, raw)
		workerMetrics.FinishIngest(service, time.Since(started), err)
		return err
	})
	if err != nil {
		slog.Error("worker_subscribe_failed", "error", err)
	}
}

func eventTimestamp(raw []byte) (time.Time, bool) {
	var header struct {
		Timestamp time.Time `json:"timestamp"`
	}
	if err := json.Unmarshal(raw, &header); err != nil || header.Timestamp.IsZero() {
		return time.Time{}, false
	}
	return header.Timestamp, true
}
