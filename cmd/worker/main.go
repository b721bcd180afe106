package main

import (
	"context"
	"crypto/tls"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/robfig/cron/v3"

	pgRepo "threatfeed/internal/infra/adapter/persistence/postgres"
	"threatfeed/internal/infra/db"
	"threatfeed/internal/infra/feed"
	workerPkg "threatfeed/internal/infra/worker"

	"threatfeed/internal/dedup"
	"threatfeed/internal/domain/entity"
	"threatfeed/internal/enrich"
	"threatfeed/internal/filter"
	"threatfeed/internal/location"
	"threatfeed/internal/location/batchqueue"
	"threatfeed/internal/location/gazetteer"
	"threatfeed/internal/pipeline"
	"threatfeed/internal/pkg/config"
	"threatfeed/internal/resilience/circuitbreaker"
)

func waitForMigrations(logger *slog.Logger, db *sql.DB) {
	const probe = "SELECT 1 FROM sources LIMIT 1"
	for i := 0; i < 10; i++ {
		if _, err := db.Exec(probe); err == nil {
			return
		}
		logger.Info("waiting for migrations, retrying in 3s", slog.Int("attempt", i+1))
		time.Sleep(3 * time.Second)
	}
	logger.Error("migrations did not complete in time")
	os.Exit(1)
}

func main() {
	logger := initLogger()
	database := initDatabase(logger)
	defer func() {
		if err := database.Close(); err != nil {
			logger.Error("failed to close database", slog.Any("error", err))
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	workerMetrics := workerPkg.NewWorkerMetrics()
	workerMetrics.MustRegister()
	workerConfig, err := workerPkg.LoadConfigFromEnv(logger, workerMetrics)
	if err != nil {
		logger.Error("failed to load worker configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("worker configuration loaded",
		slog.String("cron_schedule", workerConfig.CronSchedule),
		slog.String("timezone", workerConfig.Timezone),
		slog.Duration("crawl_timeout", workerConfig.CrawlTimeout),
		slog.Int("health_port", workerConfig.HealthPort))

	settingsMetrics := config.NewConfigMetrics("pipeline")
	settings := pipeline.LoadSettingsFromEnv(logger, settingsMetrics)
	if err := settings.Validate(); err != nil {
		logger.Error("invalid pipeline settings after fallback", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("pipeline settings loaded",
		slog.Int("max_concurrency", settings.MaxConcurrency),
		slog.Int("batch_size_threshold", settings.BatchSizeThreshold),
		slog.Duration("batch_time_threshold", settings.BatchTimeThreshold),
		slog.Float64("dedup_semantic_threshold", settings.DedupSemanticThreshold))

	startMetricsServer(ctx, logger)

	healthAddr := fmt.Sprintf(":%d", workerConfig.HealthPort)
	healthServer := workerPkg.NewHealthServer(healthAddr, logger)
	go func() {
		if err := healthServer.Start(ctx); err != nil && err != http.ErrServerClosed {
			logger.Error("health server failed", slog.Any("error", err))
		}
	}()
	logger.Info("health check server started", slog.String("addr", healthAddr))

	components := buildOrchestrator(logger, database, settings)
	go components.queue.Run(ctx)
	healthServer.SetStatusProvider(components.detailStatus)

	startCronWorker(logger, components.orchestrator, workerConfig, workerMetrics, healthServer)
}

// initLogger initializes and returns a structured logger based on environment configuration.
func initLogger() *slog.Logger {
	logLevel := slog.LevelInfo
	if os.Getenv("LOG_LEVEL") == "debug" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)
	return logger
}

// initDatabase opens the database connection and waits for migrations to complete.
func initDatabase(logger *slog.Logger) *sql.DB {
	database := db.Open()
	waitForMigrations(logger, database)
	return database
}

// createHTTPClient creates an HTTP client with timeouts and connection pooling.
// TLS 1.2+ is enforced for security.
func createHTTPClient() *http.Client {
	return &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			TLSClientConfig: &tls.Config{
				MinVersion: tls.VersionTLS12, // Enforce TLS 1.2+
			},
		},
	}
}

// circuitStater is implemented by every enrich/location provider backed by
// a circuit breaker, so the health server's /health/detail endpoint can
// report their state without depending on each provider's concrete type.
type circuitStater interface {
	CircuitState() circuitbreaker.State
}

// pipelineComponents bundles the orchestrator with the long-lived pieces
// main needs to run and monitor independently: the Batch Queue's Run loop
// and the circuit-breaker-backed providers the health server polls.
type pipelineComponents struct {
	orchestrator *pipeline.Orchestrator
	queue        *batchqueue.Queue
	claude       circuitStater
	openaiEnrich circuitStater
	openaiLocate circuitStater
}

func (c *pipelineComponents) detailStatus() workerPkg.DetailStatus {
	status := workerPkg.DetailStatus{
		BatchQueueState: c.queue.State().String(),
		BatchQueueDepth: c.queue.Len(),
	}
	if c.claude != nil {
		status.ClaudeCircuitState = c.claude.CircuitState().String()
	}
	if c.openaiEnrich != nil {
		status.OpenAICircuitState = c.openaiEnrich.CircuitState().String()
	}
	if c.openaiLocate != nil {
		status.GeocoderCircuitState = c.openaiLocate.CircuitState().String()
	}
	return status
}

// buildOrchestrator wires the ten pipeline components from settings and
// database into a ready-to-run Orchestrator, plus the Batch Queue so the
// caller can start its long-lived Run loop separately from per-cycle Close.
func buildOrchestrator(logger *slog.Logger, database *sql.DB, settings pipeline.Settings) *pipelineComponents {
	sources := pgRepo.NewSourceRepo(database)
	rawItems := pgRepo.NewRawItemRepo(database)
	alerts := pgRepo.NewEnrichedAlertRepo(database)

	fetcher := feed.New(createHTTPClient(), feed.Config{
		MaxConcurrency:     settings.MaxConcurrency,
		PerHostConcurrency: settings.PerHostConcurrency,
		FetchTimeout:       settings.FetchTimeout,
		CutoffDays:         feed.DefaultConfig().CutoffDays,
	})

	filterCfg, err := filter.LoadDefaultConfig()
	if err != nil {
		logger.Error("failed to load content filter keyword table", slog.Any("error", err))
		os.Exit(1)
	}
	filterCfg.StrictMode = settings.FilterStrict
	filterCfg.WindowSize = settings.CooccurrenceWindowTokens
	contentFilter, err := filter.New(filterCfg)
	if err != nil {
		logger.Error("failed to compile content filter", slog.Any("error", err))
		os.Exit(1)
	}

	gaz, err := gazetteer.Load()
	if err != nil {
		logger.Error("failed to load gazetteer", slog.Any("error", err))
		os.Exit(1)
	}

	openaiKey := os.Getenv("OPENAI_API_KEY")
	var batchProvider location.BatchProvider
	var openaiLocate *location.OpenAILocationProvider
	if openaiKey != "" {
		openaiLocate = location.NewOpenAILocationProvider(openaiKey, os.Getenv("OPENAI_LOCATION_MODEL"))
		batchProvider = openaiLocate
	} else {
		logger.Warn("OPENAI_API_KEY not set, batch-queued entries will resolve to unknown on flush")
	}

	queue := batchqueue.New(batchqueue.Config{
		SizeThreshold: settings.BatchSizeThreshold,
		TimeThreshold: settings.BatchTimeThreshold,
		RetryCap:      settings.BatchRetryCap,
	}, locationFlushFunc(batchProvider))

	resolver := location.New(location.Config{
		TotalTimeout:     settings.LocationTotalTimeout,
		CacheTimeout:     settings.LocationCacheTimeout,
		DeterministicTTL: settings.LocationDetTimeout,
		ReverseTimeout:   settings.LocationReverseTimeout,
	}, location.NewMemoryCache(), gaz, queue)

	var embedder *enrich.OpenAIEmbedder
	if openaiKey != "" {
		embedder = enrich.NewOpenAIEmbedder(openaiKey)
	}
	deduplicator := dedup.New(alerts, rawItems, embedderOrNil(embedder), settings.DedupSemanticThreshold)

	var providers []enrich.Provider
	var claudeProvider *enrich.ClaudeProvider
	var openaiProvider *enrich.OpenAIProvider
	if openaiKey != "" {
		openaiProvider = enrich.NewOpenAIProvider(openaiKey, os.Getenv("OPENAI_MODEL"))
		providers = append(providers, openaiProvider)
	}
	if anthropicKey := os.Getenv("ANTHROPIC_API_KEY"); anthropicKey != "" {
		claudeProvider = enrich.NewClaudeProvider(anthropicKey, os.Getenv("CLAUDE_MODEL"))
		providers = append(providers, claudeProvider)
	}
	providers = append(providers, enrich.NewFallbackProvider())
	enricher := enrich.New(embedderOrNilEnrich(embedder), providers...)

	orchestrator := pipeline.New(pipeline.DefaultConfig(), sources, fetcher, contentFilter, resolver, queue, deduplicator, enricher, rawItems, alerts)

	components := &pipelineComponents{orchestrator: orchestrator, queue: queue}
	if claudeProvider != nil {
		components.claude = claudeProvider
	}
	if openaiProvider != nil {
		components.openaiEnrich = openaiProvider
	}
	if openaiLocate != nil {
		components.openaiLocate = openaiLocate
	}
	return components
}

// locationFlushFunc builds the Batch Queue's FlushFunc from an optional
// BatchProvider. A nil provider (no API key configured) still needs a
// FlushFunc that resolves entries to unknown rather than hanging forever.
func locationFlushFunc(provider location.BatchProvider) batchqueue.FlushFunc {
	if provider == nil {
		return func(ctx context.Context, entries []entity.Entry) ([]entity.Location, error) {
			return nil, fmt.Errorf("no LLM batch location provider configured")
		}
	}
	return location.NewLLMFlush(provider)
}

// embedderOrNil returns a nil dedup.Embedder interface value when e is nil,
// avoiding the classic non-nil-interface-wrapping-nil-pointer trap.
func embedderOrNil(e *enrich.OpenAIEmbedder) dedup.Embedder {
	if e == nil {
		return nil
	}
	return e
}

func embedderOrNilEnrich(e *enrich.OpenAIEmbedder) enrich.Embedder {
	if e == nil {
		return nil
	}
	return e
}

// startCronWorker starts the cron scheduler and runs the ingestion cycle periodically.
func startCronWorker(logger *slog.Logger, orchestrator *pipeline.Orchestrator, cfg *workerPkg.WorkerConfig, metrics *workerPkg.WorkerMetrics, healthServer *workerPkg.HealthServer) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		logger.Error("invalid timezone, using UTC", slog.String("timezone", cfg.Timezone), slog.Any("error", err))
		loc = time.UTC
	}
	c := cron.New(cron.WithLocation(loc))

	_, err = c.AddFunc(cfg.CronSchedule, func() {
		runCycle(logger, orchestrator, cfg, metrics)
	})
	if err != nil {
		logger.Error("failed to add cron job", slog.Any("error", err))
		os.Exit(1)
	}
	c.Start()

	healthServer.SetReady(true)
	logger.Info("worker marked as ready")

	logger.Info("worker started", slog.String("schedule", cfg.CronSchedule), slog.String("timezone", cfg.Timezone))
	select {}
}

// runCycle executes a single ingestion cycle with timeout and error handling.
func runCycle(logger *slog.Logger, orchestrator *pipeline.Orchestrator, cfg *workerPkg.WorkerConfig, metrics *workerPkg.WorkerMetrics) {
	startTime := time.Now()
	metrics.RecordJobRun("started")
	logger.Info("ingestion cycle started")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.CrawlTimeout)
	defer cancel()

	stats, err := orchestrator.RunCycle(ctx)
	if err != nil {
		logger.Error("ingestion cycle failed", slog.Any("error", err))
		metrics.RecordJobRun("failure")
		metrics.RecordJobDuration(time.Since(startTime).Seconds())
		return
	}

	metrics.RecordJobRun("success")
	metrics.RecordJobDuration(time.Since(startTime).Seconds())
	metrics.RecordFeedsProcessed(stats.SourcesActive)
	metrics.RecordLastSuccess()

	logger.Info("ingestion cycle completed",
		slog.Int("sources", stats.SourcesActive),
		slog.Int64("entries_fetched", stats.EntriesFetched),
		slog.Int64("filter_matched", stats.FilterMatched),
		slog.Int64("raw_inserted", stats.RawInserted),
		slog.Int64("dedup_exact", stats.DedupExact),
		slog.Int64("dedup_semantic", stats.DedupSemantic),
		slog.Int64("enriched", stats.Enriched),
		slog.Int64("enrich_errors", stats.EnrichErrors),
		slog.Int64("alerts_saved", stats.AlertsSaved),
		slog.Duration("duration", stats.Duration),
	)
}
