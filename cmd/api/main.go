package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"

	"github.com/user/discovery-service/internal/adapter/chromedp_page"
	"github.com/user/discovery-service/internal/adapter/duckduckgo"
	"github.com/user/discovery-service/internal/adapter/htmlpage"
	"github.com/user/discovery-service/internal/adapter/imageprobe"
	"github.com/user/discovery-service/internal/adapter/localfs"
	"github.com/user/discovery-service/internal/adapter/postgres"
	redis_adapter "github.com/user/discovery-service/internal/adapter/redis"
	"github.com/user/discovery-service/internal/adapter/robots"
	"github.com/user/discovery-service/internal/adapter/serp"
	"github.com/user/discovery-service/internal/delivery/http/handler"
	"github.com/user/discovery-service/internal/delivery/http/router"
	"github.com/user/discovery-service/internal/repository"
	"github.com/user/discovery-service/internal/usecase"
	"github.com/user/discovery-service/pkg/config"
	"github.com/user/discovery-service/pkg/logger"
	"github.com/user/discovery-service/pkg/metrics"
	"github.com/user/discovery-service/pkg/ratelimit"
	"github.com/user/discovery-service/pkg/retry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Unable to load configuration", "error", err)
		os.Exit(1)
	}

	logger.Init(os.Stdout, logger.ParseLevel(cfg.LogLevel))
	slog.Info("Logger initialized", "level", cfg.LogLevel)

	metrics.Init()
	slog.Info("Metrics initialized")

	ctx := context.Background()

	// Rate limiting: one bucket per provider, one shared bucket for page
	// and image fetches.
	limiter := ratelimit.NewRegistry(
		ratelimit.Setting{Rate: cfg.SearchRate, Burst: cfg.SearchBurst},
		cfg.RateWarnThreshold(),
	)
	limiter.Configure("fetch", ratelimit.Setting{Rate: cfg.FetchRate, Burst: cfg.FetchBurst})
	limiter.SetWaitObserver(func(d time.Duration) {
		metrics.RateLimitWaitTime.Observe(d.Seconds())
	})

	policy := retry.Policy{
		MaxAttempts: cfg.MaxRetries,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    10 * time.Second,
		Jitter:      0.2,
	}
	fetcher := htmlpage.NewFetcher(cfg.HTTPTimeout(), policy, cfg.UserAgent)
	fetcher.SetLimiter(limiter, "fetch")

	// Robots cache: Redis when configured, in-process otherwise.
	var robotsCache repository.RobotsCache = robots.NewMemCache()
	if cfg.RedisAddr != "" {
		rdb := goredis.NewClient(&goredis.Options{Addr: cfg.RedisAddr})
		if _, err := rdb.Ping(ctx).Result(); err != nil {
			slog.Error("Unable to connect to Redis", "error", err)
			os.Exit(1)
		}
		robotsCache = redis_adapter.NewRobotsCache(rdb)
		slog.Info("Redis robots cache enabled", "addr", cfg.RedisAddr)
	}
	gate := robots.NewGate(
		&http.Client{Timeout: cfg.HTTPTimeout()},
		cfg.UserAgent,
		cfg.RobotsFailOpen,
		policy,
		robotsCache,
		cfg.RobotsCacheTTL(),
	)

	// Optional Postgres provenance archive.
	var archive repository.ProvenanceArchive
	if cfg.PostgresURL != "" {
		dbpool, err := pgxpool.New(ctx, cfg.PostgresURL)
		if err != nil {
			slog.Error("Unable to connect to database", "error", err)
			os.Exit(1)
		}
		defer dbpool.Close()
		archive = postgres.NewArchive(dbpool)
		slog.Info("PostgreSQL provenance archive enabled")
	}

	var extractor repository.PageExtractor = htmlpage.NewExtractor(fetcher)
	if cfg.PageFetchMode == "browser" {
		extractor = chromedp_page.NewExtractor(cfg.PageWorkers, cfg.HTTPTimeout(), cfg.UserAgent)
		slog.Info("Browser page extraction enabled")
	}

	providers := buildProviders(cfg, fetcher, limiter)

	orchestrator := usecase.NewOrchestrator(usecase.OrchestratorDeps{
		Providers: providers,
		Robots:    gate,
		Extractor: extractor,
		Fetcher:   fetcher,
		Store:     localfs.NewStore(),
		QueryLog:  localfs.NewQueryLog(cfg.LogsDir),
		Archive:   archive,
		Recorder:  usecase.NewRecorder(usecase.NewScorer()),
		Dedup:     usecase.NewDeduplicator(),
		Filter:    usecase.NewFilterPipeline(imageprobe.NewProber(cfg.HTTPTimeout(), cfg.UserAgent)),

		TopicWorkers:    cfg.DiscoverWorkers,
		PageWorkers:     cfg.PageWorkers,
		DownloadWorkers: cfg.DownloadWorkers,
	})

	apiHandler := handler.NewHandler(orchestrator, archive)
	httpRouter := router.New(apiHandler)

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      httpRouter,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Minute, // discovery runs can be slow
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("Starting server", "port", cfg.ServerPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Could not listen on port", "port", cfg.ServerPort, "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server shutdown failed", "error", err)
	}
}

// buildProviders assembles the configured provider chain in order.
func buildProviders(cfg *config.Config, fetcher *htmlpage.Fetcher, limiter *ratelimit.Registry) []repository.SearchProvider {
	var providers []repository.SearchProvider
	for _, name := range cfg.ProviderChain() {
		switch name {
		case "duckduckgo":
			providers = append(providers, duckduckgo.NewProvider(fetcher, limiter))
		case "serp":
			providers = append(providers, serp.NewBingFallback(fetcher, limiter))
		default:
			slog.Warn("Unknown provider in chain, skipping", "provider", name)
		}
	}
	return providers
}
