package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirillkom/homebuyer-advisor/internal/config"
	"github.com/kirillkom/homebuyer-advisor/internal/core/policy"
	"github.com/kirillkom/homebuyer-advisor/internal/core/ports"
	"github.com/kirillkom/homebuyer-advisor/internal/core/usecase"
	"github.com/kirillkom/homebuyer-advisor/internal/infrastructure/contracts"
	"github.com/kirillkom/homebuyer-advisor/internal/infrastructure/export/xlsx"
	"github.com/kirillkom/homebuyer-advisor/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/homebuyer-advisor/internal/infrastructure/queue/nats"
	"github.com/kirillkom/homebuyer-advisor/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/homebuyer-advisor/internal/infrastructure/resilience"
	"github.com/kirillkom/homebuyer-advisor/internal/infrastructure/vector/qdrant"
	"github.com/kirillkom/homebuyer-advisor/internal/observability/metrics"
)

type App struct {
	Config config.Config
	Policy policy.Policy

	Queue    *nats.Queue
	Metrics  *metrics.HTTPServerMetrics
	Exporter ports.HistoryExporter
	Recorder *usecase.HistoryRecorder

	AdvisorUC       *usecase.AdvisorUseCase
	HistoryQueryUC  *usecase.HistoryQueryUseCase
	HistoryIngestUC *usecase.HistoryIngestUseCase
	IndexUC         *usecase.IndexListingsUseCase

	closeFn func()
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	p, err := loadPolicy(cfg)
	if err != nil {
		return nil, err
	}

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	warehouse := postgres.NewWarehouseRepository(db)
	historyRepo := postgres.NewHistoryRepository(db, cfg.HistoryRetention)

	registry, err := contracts.NewRegistry()
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("compile contracts: %w", err)
	}

	executor := resilience.NewExecutor(resilienceConfig(cfg))

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSHistorySubject, nats.Options{
		ResilienceExecutor: executor,
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	ollamaClient := ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel, executor)
	embedder := ollama.NewEmbedder(ollamaClient)
	generator := ollama.NewGenerator(ollamaClient)
	summarizer := ollama.NewSummarizer(generator)

	var notes ports.NoteWriter
	if cfg.LLMNotesEnabled {
		notes = ollama.NewNoteWriter(generator, registry)
	}

	vectorDB := qdrant.New(cfg.QdrantURL, cfg.QdrantCollection, executor)

	httpMetrics := metrics.NewHTTPServerMetrics(cfg.ServiceName)
	recorder := usecase.NewHistoryRecorder(queue, httpMetrics, cfg.HistoryPublishTimeout())

	analyzers := []usecase.ListingAnalyzer{
		usecase.NewLocalityAnalyzer(warehouse, notes, p),
		usecase.NewHazardAnalyzer(warehouse, notes, p),
		usecase.NewAffordabilityAnalyzer(warehouse, p),
	}
	advisorUC := usecase.NewAdvisorUseCase(
		usecase.NewNormalizer(),
		usecase.NewCandidateRetriever(embedder, vectorDB, p.Retrieval),
		usecase.NewCoordinator(analyzers, p.Coordinator, httpMetrics),
		usecase.NewRanker(p),
		summarizer,
		recorder,
		httpMetrics,
	)

	slog.Info("bootstrap_completed",
		"policy_file", cfg.PolicyFile,
		"qdrant_collection", cfg.QdrantCollection,
		"history_subject", cfg.NATSHistorySubject,
		"llm_notes", cfg.LLMNotesEnabled,
	)

	return &App{
		Config: cfg,
		Policy: p,

		Queue:    queue,
		Metrics:  httpMetrics,
		Exporter: xlsx.NewExporter(),
		Recorder: recorder,

		AdvisorUC:       advisorUC,
		HistoryQueryUC:  usecase.NewHistoryQueryUseCase(historyRepo),
		HistoryIngestUC: usecase.NewHistoryIngestUseCase(historyRepo, registry),
		IndexUC:         usecase.NewIndexListingsUseCase(warehouse, embedder, vectorDB, cfg.IndexBatchSize),

		closeFn: func() {
			recorder.Wait()
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

func loadPolicy(cfg config.Config) (policy.Policy, error) {
	if cfg.PolicyFile == "" {
		return policy.Default(), nil
	}
	p, err := policy.LoadFile(cfg.PolicyFile)
	if err != nil {
		return policy.Policy{}, fmt.Errorf("load policy: %w", err)
	}
	return p, nil
}

func resilienceConfig(cfg config.Config) resilience.Config {
	rc := resilience.DefaultConfig()
	if cfg.ResilienceMaxAttempts > 0 {
		rc.RetryMaxAttempts = cfg.ResilienceMaxAttempts
	}
	if cfg.ResilienceBackoffMS > 0 {
		rc.RetryInitialBackoff = time.Duration(cfg.ResilienceBackoffMS) * time.Millisecond
		rc.RetryMaxBackoff = 4 * rc.RetryInitialBackoff
	}
	if cfg.ResilienceAttemptMS > 0 {
		rc.AttemptTimeout = time.Duration(cfg.ResilienceAttemptMS) * time.Millisecond
	}
	rc.BreakerEnabled = cfg.ResilienceBreakerOn
	if cfg.ResilienceBreakerOpenS > 0 {
		rc.BreakerOpenTimeout = time.Duration(cfg.ResilienceBreakerOpenS) * time.Second
	}
	return rc
}
