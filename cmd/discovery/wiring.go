package main

import (
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/user/discovery-service/internal/adapter/duckduckgo"
	"github.com/user/discovery-service/internal/adapter/htmlpage"
	"github.com/user/discovery-service/internal/adapter/imageprobe"
	"github.com/user/discovery-service/internal/adapter/localfs"
	"github.com/user/discovery-service/internal/adapter/robots"
	"github.com/user/discovery-service/internal/adapter/serp"
	"github.com/user/discovery-service/internal/repository"
	"github.com/user/discovery-service/internal/usecase"
	"github.com/user/discovery-service/pkg/config"
	"github.com/user/discovery-service/pkg/logger"
	"github.com/user/discovery-service/pkg/metrics"
	"github.com/user/discovery-service/pkg/ratelimit"
	"github.com/user/discovery-service/pkg/retry"
)

// newOrchestrator builds a filesystem-only orchestrator for CLI use: no
// Postgres archive, in-process robots cache.
func newOrchestrator(cfg *config.Config, logsDir string) *usecase.Orchestrator {
	logger.Init(os.Stderr, logger.ParseLevel(cfg.LogLevel))
	metrics.Init()

	limiter := ratelimit.NewRegistry(
		ratelimit.Setting{Rate: cfg.SearchRate, Burst: cfg.SearchBurst},
		cfg.RateWarnThreshold(),
	)
	limiter.Configure("fetch", ratelimit.Setting{Rate: cfg.FetchRate, Burst: cfg.FetchBurst})

	policy := retry.Policy{
		MaxAttempts: cfg.MaxRetries,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    10 * time.Second,
		Jitter:      0.2,
	}
	fetcher := htmlpage.NewFetcher(cfg.HTTPTimeout(), policy, cfg.UserAgent)
	fetcher.SetLimiter(limiter, "fetch")

	gate := robots.NewGate(
		&http.Client{Timeout: cfg.HTTPTimeout()},
		cfg.UserAgent,
		cfg.RobotsFailOpen,
		policy,
		robots.NewMemCache(),
		cfg.RobotsCacheTTL(),
	)

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

	return usecase.NewOrchestrator(usecase.OrchestratorDeps{
		Providers: providers,
		Robots:    gate,
		Extractor: htmlpage.NewExtractor(fetcher),
		Fetcher:   fetcher,
		Store:     localfs.NewStore(),
		QueryLog:  localfs.NewQueryLog(logsDir),
		Recorder:  usecase.NewRecorder(usecase.NewScorer()),
		Dedup:     usecase.NewDeduplicator(),
		Filter:    usecase.NewFilterPipeline(imageprobe.NewProber(cfg.HTTPTimeout(), cfg.UserAgent)),

		TopicWorkers:    cfg.DiscoverWorkers,
		PageWorkers:     cfg.PageWorkers,
		DownloadWorkers: cfg.DownloadWorkers,
	})
}
