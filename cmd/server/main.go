package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/charlaomota/V360/internal/aggregator"
	"github.com/charlaomota/V360/internal/cache/memory"
	"github.com/charlaomota/V360/internal/config"
	"github.com/charlaomota/V360/internal/extract"
	"github.com/charlaomota/V360/internal/httpserver"
	"github.com/charlaomota/V360/internal/metrics"
	"github.com/charlaomota/V360/internal/ratelimit"
	"github.com/charlaomota/V360/internal/rotation"
	"github.com/charlaomota/V360/internal/search"
	"github.com/charlaomota/V360/internal/search/exa"
	"github.com/charlaomota/V360/internal/search/serper"
	"github.com/charlaomota/V360/internal/search/tavily"
	"github.com/charlaomota/V360/internal/sink"
	filesink "github.com/charlaomota/V360/internal/sink/file"
	pgsink "github.com/charlaomota/V360/internal/sink/postgres"
)

func main() {
	loadEnvFile()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger, err := config.NewLogger(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	manager := rotation.NewManager(cfg.Credentials.Keys, rotation.Config{
		UnhealthyThreshold: cfg.Rotation.UnhealthyThreshold,
		RateLimitCooldown:  cfg.Rotation.RateLimitCooldown,
		QuotaCooldown:      cfg.Rotation.QuotaCooldown,
		GenericCooldown:    cfg.Rotation.GenericCooldown,
	}, logger)

	adapters := map[string]search.SearchClient{
		"tavily": tavily.New(tavily.Config{BaseURL: cfg.Tavily.BaseURL, Timeout: cfg.Tavily.Timeout}, logger),
		"exa":    exa.New(exa.Config{BaseURL: cfg.Exa.BaseURL, Timeout: cfg.Exa.Timeout}, logger),
		"serper": serper.New(serper.Config{BaseURL: cfg.Serper.BaseURL, Timeout: cfg.Serper.Timeout}, logger),
	}

	m := metrics.New()

	resultSink, cleanup, err := buildSink(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("sink init failed", zap.Error(err))
	}
	defer cleanup()

	cache := memory.NewWithContext(ctx)
	defer cache.Stop()

	// источник кандидатов для бюджетного сбора - tavily через ротацию
	source := &aggregator.RotatingSource{
		Provider: "tavily",
		Manager:  manager,
		Client:   adapters["tavily"],
		Logger:   logger,
	}
	collector := aggregator.NewCollector(source, extract.NewHTTP(extract.Config{}, logger), aggregator.CollectorConfig{
		TargetBytes:      cfg.Collector.TargetBytes,
		PageLimit:        cfg.Collector.PageLimit,
		PageSize:         cfg.Collector.PageSize,
		BatchConcurrency: cfg.Collector.BatchSize,
		PageDelay:        cfg.Collector.PageDelay,
	}, logger, m)

	orchestrator := aggregator.NewOrchestrator(aggregator.OrchestratorDeps{
		Manager:   manager,
		Adapters:  adapters,
		Collector: collector,
		Cache:     cache,
		Sink:      resultSink,
		Logger:    logger,
		Metrics:   m,
		Config: aggregator.OrchestratorConfig{
			CallTimeout:           cfg.Aggregation.CallTimeout,
			MaxResultsPerProvider: cfg.Aggregation.MaxResultsPerProvider,
			CacheTTL:              cfg.Cache.TTL,
		},
	})

	server := httpserver.New(httpserver.Deps{
		Orchestrator: orchestrator,
		Limiter:      ratelimit.New(ratelimit.Config{RequestsPerMinute: cfg.RateLimit.RequestsPerMinute}),
		Metrics:      m,
		Logger:       logger,
		Addr:         cfg.HTTP.Addr,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logger.Fatal("http server failed", zap.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}

	logger.Info("server stopped")
}

func buildSink(ctx context.Context, cfg *config.Config, logger *zap.Logger) (sink.ResultSink, func(), error) {
	switch cfg.Sink.Type {
	case "postgres":
		db, err := pgsink.New(ctx, cfg.Sink.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return nil, nil, err
		}
		return pgsink.NewStore(db, logger), db.Close, nil
	default:
		store, err := filesink.New(cfg.Sink.Path, logger)
		if err != nil {
			return nil, nil, err
		}
		return store, func() {}, nil
	}
}

func loadEnvFile() {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Overload(".env"); err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to load .env: %v\n", err)
		}
	}
}
