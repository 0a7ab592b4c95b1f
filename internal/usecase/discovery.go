package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/user/discovery-service/internal/entity"
	"github.com/user/discovery-service/internal/repository"
	"github.com/user/discovery-service/pkg/metrics"
	"github.com/user/discovery-service/pkg/urlutil"
)

var (
	// ErrEmptyTopic is the only hard failure of Discover: it is rejected
	// before any provider call. Everything downstream is absorbed and
	// logged.
	ErrEmptyTopic = errors.New("topic must not be empty")
)

// DiscoverOptions tunes one discovery run.
type DiscoverOptions struct {
	// Limit caps the number of provenance entries gathered per topic.
	Limit int
	// RespectRobots gates pages and images through robots.txt. The
	// explicit false is an operator override.
	RespectRobots bool
	// PagesPerTopic caps how many candidate pages a provider may return.
	PagesPerTopic int
}

// Orchestrator coordinates the full discovery flow: topic → rate-limited
// provider search → robots-gated extraction → scoring → provenance →
// cross-topic dedup, plus the subsequent select-and-download phase.
// All mutable shared state lives inside the injected collaborators.
type Orchestrator struct {
	providers []repository.SearchProvider // ordered fallback chain
	robots    repository.RobotsGate
	extractor repository.PageExtractor
	fetcher   repository.ImageFetcher
	store     repository.ImageStore
	queryLog  repository.QueryLog
	archive   repository.ProvenanceArchive // optional, may be nil

	recorder *Recorder
	dedup    *Deduplicator
	filter   *FilterPipeline

	topicWorkers    int
	pageWorkers     int
	downloadWorkers int
}

// OrchestratorDeps wires the orchestrator's collaborators.
type OrchestratorDeps struct {
	Providers []repository.SearchProvider
	Robots    repository.RobotsGate
	Extractor repository.PageExtractor
	Fetcher   repository.ImageFetcher
	Store     repository.ImageStore
	QueryLog  repository.QueryLog
	Archive   repository.ProvenanceArchive

	Recorder *Recorder
	Dedup    *Deduplicator
	Filter   *FilterPipeline

	TopicWorkers    int
	PageWorkers     int
	DownloadWorkers int
}

func NewOrchestrator(deps OrchestratorDeps) *Orchestrator {
	if deps.TopicWorkers < 1 {
		deps.TopicWorkers = 4
	}
	if deps.PageWorkers < 1 {
		deps.PageWorkers = 8
	}
	if deps.DownloadWorkers < 1 {
		deps.DownloadWorkers = 8
	}
	return &Orchestrator{
		providers:       deps.Providers,
		robots:          deps.Robots,
		extractor:       deps.Extractor,
		fetcher:         deps.Fetcher,
		store:           deps.Store,
		queryLog:        deps.QueryLog,
		archive:         deps.Archive,
		recorder:        deps.Recorder,
		dedup:           deps.Dedup,
		filter:          deps.Filter,
		topicWorkers:    deps.TopicWorkers,
		pageWorkers:     deps.PageWorkers,
		downloadWorkers: deps.DownloadWorkers,
	}
}

// topicResult carries one topic's outcome out of its worker.
type topicResult struct {
	entries []entity.ProvenanceEntry
	failed  bool
}

// Discover runs discovery for every topic and returns the merged,
// deduplicated preview. Topics are processed concurrently with per-topic
// failure isolation: one topic's provider outage never aborts siblings.
// On cancellation, completed topics' results are preserved and returned
// alongside the context error.
func (o *Orchestrator) Discover(ctx context.Context, topics []string, opts DiscoverOptions) (*entity.PreviewResult, error) {
	if len(topics) == 0 {
		return nil, ErrEmptyTopic
	}
	cleaned := make([]string, len(topics))
	for i, t := range topics {
		t = strings.TrimSpace(t)
		if t == "" {
			return nil, fmt.Errorf("topic %d: %w", i, ErrEmptyTopic)
		}
		cleaned[i] = t
	}
	if opts.Limit <= 0 {
		opts.Limit = 50
	}
	if opts.PagesPerTopic <= 0 {
		opts.PagesPerTopic = 20
	}

	runID := uuid.NewString()
	slog.Info("discovery run starting", "run_id", runID, "topics", cleaned, "limit", opts.Limit)

	results := make([]topicResult, len(cleaned))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.topicWorkers)

	for i, topic := range cleaned {
		g.Go(func() error {
			res := o.discoverTopic(gctx, runID, topic, opts)
			results[i] = res
			// Per-topic failures are absorbed; only cancellation
			// propagates so sibling workers stop starting new pages.
			return gctx.Err()
		})
	}
	waitErr := g.Wait()

	perTopic := make([][]entity.ProvenanceEntry, 0, len(cleaned))
	totalFound := 0
	var failedTopics []string
	for i, res := range results {
		perTopic = append(perTopic, res.entries)
		totalFound += len(res.entries)
		if res.failed {
			failedTopics = append(failedTopics, cleaned[i])
		}
	}

	merged := o.dedup.Merge(perTopic)
	preview := &entity.PreviewResult{
		Topics:          cleaned,
		RunID:           runID,
		Entries:         merged,
		TotalFound:      totalFound,
		TotalAfterDedup: len(merged),
		FailedTopics:    failedTopics,
	}

	if o.archive != nil && len(merged) > 0 {
		// Archive writes survive caller cancellation: the run's results
		// are already final at this point.
		actx := context.WithoutCancel(ctx)
		if err := o.archive.SaveEntries(actx, merged); err != nil {
			slog.Warn("provenance archive write failed", "run_id", runID, "error", err)
		}
	}

	slog.Info("discovery run finished",
		"run_id", runID,
		"total_found", totalFound,
		"total_after_dedup", len(merged),
		"failed_topics", failedTopics,
	)
	if errors.Is(waitErr, context.Canceled) || errors.Is(waitErr, context.DeadlineExceeded) {
		return preview, waitErr
	}
	return preview, nil
}

// discoverTopic runs the provider chain and extraction for one topic and
// writes its query log. Never returns an error: failures degrade to an
// empty result, recorded for audit.
func (o *Orchestrator) discoverTopic(ctx context.Context, runID, topic string, opts DiscoverOptions) topicResult {
	log := &entity.TopicLog{Topic: topic, RunID: runID}

	pages, provider := o.searchWithFallback(ctx, topic, opts, log)
	if provider == "" {
		// Every provider failed or returned nothing.
		o.writeTopicLog(ctx, log)
		return topicResult{failed: len(o.providers) > 0 && allAttemptsErrored(log.Queries)}
	}

	entries, skips := o.extractPages(ctx, topic, pages, opts)
	log.Skips = append(log.Skips, skips...)
	if err := ctx.Err(); err != nil {
		// Abandoned mid-topic: partial extractions are discarded, the log
		// notes the early termination.
		log.Skips = append(log.Skips, entity.SkipEvent{
			Reason:    "terminated",
			Timestamp: time.Now().UTC(),
		})
		log.Entries = nil
		o.writeTopicLog(ctx, log)
		return topicResult{}
	}

	if len(entries) > opts.Limit {
		entries = entries[:opts.Limit]
	}
	for _, e := range entries {
		metrics.ImagesDiscovered.WithLabelValues(string(e.RelevanceTier)).Inc()
	}

	// The successful provider attempt is logged with final counts so a
	// replay can verify the query sequence.
	log.Queries = append(log.Queries, o.recorder.RecordQuery(
		topic, provider, providerQuery(o.providers, provider, topic), len(pages), len(entries), ""))
	log.Entries = entries
	o.writeTopicLog(ctx, log)

	return topicResult{entries: entries}
}

// searchWithFallback tries each provider in order until one yields a
// non-empty, non-error result. Failed and empty attempts are recorded in
// the query log with an error class.
func (o *Orchestrator) searchWithFallback(ctx context.Context, topic string, opts DiscoverOptions, log *entity.TopicLog) ([]entity.CandidatePage, string) {
	for _, p := range o.providers {
		if ctx.Err() != nil {
			return nil, ""
		}
		start := time.Now()
		pages, err := p.Search(ctx, topic, opts.PagesPerTopic)
		metrics.DiscoveryDuration.WithLabelValues(p.Name()).Observe(time.Since(start).Seconds())

		if err != nil {
			slog.Warn("search provider failed, trying next in chain",
				"provider", p.Name(), "topic", topic, "error", err)
			metrics.DiscoveriesTotal.WithLabelValues(p.Name(), "failure").Inc()
			log.Queries = append(log.Queries, o.recorder.RecordQuery(
				topic, p.Name(), p.Query(topic), 0, 0, "provider_error"))
			continue
		}
		if len(pages) == 0 {
			metrics.DiscoveriesTotal.WithLabelValues(p.Name(), "empty").Inc()
			log.Queries = append(log.Queries, o.recorder.RecordQuery(
				topic, p.Name(), p.Query(topic), 0, 0, "empty_result"))
			continue
		}
		metrics.DiscoveriesTotal.WithLabelValues(p.Name(), "success").Inc()
		return pages, p.Name()
	}
	return nil, ""
}

// extractPages runs robots-gated extraction over candidate pages with a
// bounded worker pool, preserving provider rank order in the output.
func (o *Orchestrator) extractPages(ctx context.Context, topic string, pages []entity.CandidatePage, opts DiscoverOptions) ([]entity.ProvenanceEntry, []entity.SkipEvent) {
	perPage := make([][]entity.ProvenanceEntry, len(pages))
	skipPerPage := make([]*entity.SkipEvent, len(pages))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.pageWorkers)

	for i, page := range pages {
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			if opts.RespectRobots {
				if err := o.robots.AllowedForPage(gctx, page.URL); err != nil {
					reason := "robots_denied"
					if errors.Is(err, repository.ErrRobotsUnreachable) {
						reason = "robots_unreachable"
					}
					metrics.RobotsChecksTotal.WithLabelValues(reason).Inc()
					slog.Info("page skipped by robots gate", "page", page.URL, "reason", reason)
					skipPerPage[i] = &entity.SkipEvent{URL: page.URL, Reason: reason, Timestamp: time.Now().UTC()}
					return nil
				}
				metrics.RobotsChecksTotal.WithLabelValues("allowed").Inc()
			}

			cands, err := o.extractor.ExtractImages(gctx, page.URL)
			if err != nil {
				slog.Warn("page extraction failed, skipping page", "page", page.URL, "error", err)
				skipPerPage[i] = &entity.SkipEvent{URL: page.URL, Reason: "extraction_error", Timestamp: time.Now().UTC()}
				return nil
			}

			entries := make([]entity.ProvenanceEntry, 0, len(cands))
			for _, c := range cands {
				entries = append(entries, o.recorder.RecordImage(topic, page.URL, entity.MethodSERP, c))
			}
			perPage[i] = entries
			return nil
		})
	}
	_ = g.Wait()

	// Skip events are collected for every page, even past the entry limit:
	// the audit log must account for all candidate pages of the run.
	var skips []entity.SkipEvent
	for i := range pages {
		if skipPerPage[i] != nil {
			skips = append(skips, *skipPerPage[i])
		}
	}

	// The same image often appears on several of a topic's candidate
	// pages. Collapse to one entry per normalized URL, first rank wins, so
	// a topic's result set never counts an image twice.
	var entries []entity.ProvenanceEntry
	seen := make(map[string]struct{})
	for i := range pages {
		for _, e := range perPage[i] {
			key := urlutil.NormalizeImageURL(e.ImageURL)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			entries = append(entries, e)
		}
		if len(entries) >= opts.Limit {
			break
		}
	}
	return entries, skips
}

func (o *Orchestrator) writeTopicLog(ctx context.Context, log *entity.TopicLog) {
	// Log writes survive cancellation so terminated runs stay auditable.
	wctx := context.WithoutCancel(ctx)
	if path, err := o.queryLog.WriteTopicLog(wctx, log); err != nil {
		slog.Warn("query log write failed", "topic", log.Topic, "error", err)
	} else {
		slog.Debug("query log written", "topic", log.Topic, "path", path)
	}
	if o.archive != nil && len(log.Queries) > 0 {
		if err := o.archive.SaveQueries(context.WithoutCancel(ctx), log.RunID, log.Queries); err != nil {
			slog.Warn("query archive write failed", "topic", log.Topic, "error", err)
		}
	}
}

func providerQuery(providers []repository.SearchProvider, name, topic string) string {
	for _, p := range providers {
		if p.Name() == name {
			return p.Query(topic)
		}
	}
	return topic
}

func allAttemptsErrored(queries []entity.QueryLogEntry) bool {
	if len(queries) == 0 {
		return false
	}
	for _, q := range queries {
		if q.ErrorClass != "provider_error" {
			return false
		}
	}
	return true
}
