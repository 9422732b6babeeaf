package app

import (
	"context"
	"fmt"
	"time"

	"github.com/firebase/genkit/go/core/tracing"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"golang.org/x/time/rate"

	"github.com/Selleo/mentingo-sub006/db"
	"github.com/Selleo/mentingo-sub006/internal/config"
	"github.com/Selleo/mentingo-sub006/internal/document"
	"github.com/Selleo/mentingo-sub006/internal/log"
	"github.com/Selleo/mentingo-sub006/internal/mentor"
	"github.com/Selleo/mentingo-sub006/internal/prompt"
	"github.com/Selleo/mentingo-sub006/internal/retrieval"
	"github.com/Selleo/mentingo-sub006/internal/sqlc"
	"github.com/Selleo/mentingo-sub006/internal/summary"
	"github.com/Selleo/mentingo-sub006/internal/thread"
)

// Setup initializes the application. Call Close on the returned App to
// release everything; on a setup error all partially initialized
// components are cleaned up before returning.
func Setup(ctx context.Context, cfg *config.Config) (_ *App, retErr error) {
	logger := log.New(log.Config{Level: log.ParseLevel(cfg.LogLevel), JSON: cfg.LogJSON})
	a := &App{Config: cfg, Logger: logger}

	defer func() {
		if retErr != nil {
			if err := a.Close(); err != nil {
				logger.Warn("cleanup during setup failure", "error", err)
			}
		}
	}()

	a.otelCleanup = provideTracing(ctx, cfg, logger)

	pool, dbCleanup, err := provideDBPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.dbCleanup = dbCleanup
	a.DBPool = pool

	g := genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
	if g == nil {
		return nil, fmt.Errorf("initializing genkit")
	}
	a.Genkit = g

	embedder := googlegenai.GoogleAIEmbedder(g, cfg.EmbedderModel)
	if embedder == nil {
		return nil, fmt.Errorf("embedder %q not found", cfg.EmbedderModel)
	}
	a.Embedder = embedder

	queries := sqlc.New(pool)
	a.Threads = thread.New(queries, pool, logger)
	a.Documents = document.New(queries, pool, logger)

	retriever := retrieval.New(embedder, a.Documents, retrieval.Config{
		TopK:                int32(cfg.Pipeline.RetrievalTopK), // #nosec G115 -- validated range
		SimilarityThreshold: cfg.Pipeline.SimilarityThreshold,
		NeighbourCount:      cfg.Pipeline.ChunkNeighbours,
		EmbedTimeout:        cfg.EmbedTimeout(),
	}, logger)

	builder := prompt.NewBuilder(a.Threads, retriever, cfg.Pipeline.ChunkNeighbours, logger)

	limiter := rate.NewLimiter(rate.Limit(cfg.Pipeline.BackendRPS), backendBurst(cfg.Pipeline.BackendRPS))
	generator := mentor.NewGenerator(g, cfg.ModelName, cfg.Pipeline.MaxCompletionTokens, limiter, logger)

	summarizer := summary.New(generator, a.Threads, cfg.ModelName, cfg.Pipeline.SummaryThresholdTokens, logger)

	a.Mentor = mentor.NewService(generator, a.Threads, builder, summarizer, mentor.Config{
		ModelName:   cfg.ModelName,
		TurnTimeout: cfg.TurnTimeout(),
	}, logger)

	return a, nil
}

// provideTracing exports spans over OTLP HTTP when an endpoint is
// configured. The collector handles authentication and forwarding.
func provideTracing(ctx context.Context, cfg *config.Config, logger log.Logger) func() {
	if cfg.OTLPEndpoint == "" {
		return func() {}
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(cfg.OTLPEndpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		logger.Warn("creating trace exporter, tracing disabled", "error", err)
		return func() {}
	}

	processor := sdktrace.NewBatchSpanProcessor(exporter)
	tracing.TracerProvider().RegisterSpanProcessor(processor)
	logger.Debug("tracing enabled", "endpoint", cfg.OTLPEndpoint)

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := exporter.Shutdown(shutdownCtx); err != nil {
			logger.Warn("shutting down trace exporter", "error", err)
		}
	}
}

func provideDBPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, func(), error) {
	if err := db.Migrate(cfg.PostgresURL()); err != nil {
		return nil, nil, fmt.Errorf("running migrations: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.PostgresConnectionString())
	if err != nil {
		return nil, nil, fmt.Errorf("parsing connection config: %w", err)
	}

	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	defer pingCancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("pinging database: %w", err)
	}

	return pool, pool.Close, nil
}

// backendBurst allows a short spike above the sustained rate without
// letting a single thread starve others.
func backendBurst(rps float64) int {
	burst := int(rps * 2)
	if burst < 1 {
		burst = 1
	}
	return burst
}

var (
	_ summary.Completer   = (mentor.Generator)(nil)
	_ retrieval.Searcher  = (*document.Store)(nil)
	_ mentor.ThreadStore  = (*thread.Store)(nil)
	_ prompt.ThreadReader = (*thread.Store)(nil)
)
