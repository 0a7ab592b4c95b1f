package usecase

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/discovery-service/internal/entity"
	"github.com/user/discovery-service/internal/repository"
	"github.com/user/discovery-service/pkg/metrics"
)

func TestMain(m *testing.M) {
	metrics.Init()
	os.Exit(m.Run())
}

// stubProvider serves canned pages per topic, or a fixed error.
type stubProvider struct {
	name  string
	pages map[string][]entity.CandidatePage
	err   error

	mu    sync.Mutex
	calls int
}

func (s *stubProvider) Name() string              { return s.name }
func (s *stubProvider) Query(topic string) string { return topic + " images" }

func (s *stubProvider) Search(_ context.Context, topic string, limit int) ([]entity.CandidatePage, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	pages := s.pages[topic]
	if len(pages) > limit {
		pages = pages[:limit]
	}
	return pages, nil
}

// stubRobots denies only the URLs it is told to deny.
type stubRobots struct {
	pageErrs     map[string]error
	resourceErrs map[string]error
}

func (s *stubRobots) AllowedForPage(_ context.Context, pageURL string) error {
	return s.pageErrs[pageURL]
}

func (s *stubRobots) AllowedForResource(_ context.Context, resourceURL string) error {
	return s.resourceErrs[resourceURL]
}

// stubExtractor serves canned candidates per page URL.
type stubExtractor struct {
	byPage map[string][]entity.ImageCandidate
	errs   map[string]error
}

func (s *stubExtractor) ExtractImages(_ context.Context, pageURL string) ([]entity.ImageCandidate, error) {
	if err := s.errs[pageURL]; err != nil {
		return nil, err
	}
	return s.byPage[pageURL], nil
}

// captureLog records every topic log written, keyed by topic.
type captureLog struct {
	mu   sync.Mutex
	logs map[string]*entity.TopicLog
}

func newCaptureLog() *captureLog {
	return &captureLog{logs: make(map[string]*entity.TopicLog)}
}

func (c *captureLog) WriteTopicLog(_ context.Context, log *entity.TopicLog) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.logs[log.Topic] = log
	return "/logs/" + log.Topic + ".json", nil
}

func (c *captureLog) get(topic string) *entity.TopicLog {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.logs[topic]
}

// stubFetcher serves canned bodies per image URL.
type stubFetcher struct {
	bodies map[string][]byte
	errs   map[string]error
}

func (s *stubFetcher) FetchImage(_ context.Context, imageURL string) ([]byte, string, error) {
	if err := s.errs[imageURL]; err != nil {
		return nil, "", err
	}
	body, ok := s.bodies[imageURL]
	if !ok {
		return nil, "", errors.New("no such image")
	}
	return body, "image/jpeg", nil
}

// captureStore records saved images and the index it was asked to write.
type captureStore struct {
	mu      sync.Mutex
	saved   []string
	indexed []entity.SavedImage
}

func (c *captureStore) SaveImage(_ context.Context, dir, imageURL, _ string, _ []byte) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	path := fmt.Sprintf("%s/%d.jpg", dir, len(c.saved))
	c.saved = append(c.saved, imageURL)
	return path, nil
}

func (c *captureStore) WriteProvenanceIndex(_ context.Context, dir string, saved []entity.SavedImage) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.indexed = saved
	return dir + "/provenance_index.json", nil
}

func newTestOrchestrator(deps OrchestratorDeps) *Orchestrator {
	if deps.Robots == nil {
		deps.Robots = &stubRobots{}
	}
	if deps.QueryLog == nil {
		deps.QueryLog = newCaptureLog()
	}
	if deps.Recorder == nil {
		deps.Recorder = NewRecorder(NewScorer())
	}
	if deps.Dedup == nil {
		deps.Dedup = NewDeduplicator()
	}
	if deps.Filter == nil {
		deps.Filter = NewFilterPipeline(nil)
	}
	return NewOrchestrator(deps)
}

func candidate(imageURL, alt string) entity.ImageCandidate {
	return entity.ImageCandidate{ImageURL: imageURL, AltText: alt}
}

func TestDiscoverRejectsEmptyTopics(t *testing.T) {
	o := newTestOrchestrator(OrchestratorDeps{})

	_, err := o.Discover(context.Background(), nil, DiscoverOptions{})
	assert.ErrorIs(t, err, ErrEmptyTopic)

	_, err = o.Discover(context.Background(), []string{"mount fuji", "   "}, DiscoverOptions{})
	assert.ErrorIs(t, err, ErrEmptyTopic)
}

func TestDiscoverSingleTopic(t *testing.T) {
	provider := &stubProvider{
		name: "duckduckgo",
		pages: map[string][]entity.CandidatePage{
			"mount fuji": {
				{URL: "https://travel.example/fuji", Topic: "mount fuji", Rank: 0},
			},
		},
	}
	extractor := &stubExtractor{byPage: map[string][]entity.ImageCandidate{
		"https://travel.example/fuji": {
			candidate("https://travel.example/img/mount-fuji.jpg", "Mount Fuji at dawn"),
			candidate("https://travel.example/img/lake.jpg", "the lake"),
		},
	}}
	logs := newCaptureLog()
	o := newTestOrchestrator(OrchestratorDeps{
		Providers: []repository.SearchProvider{provider},
		Extractor: extractor,
		QueryLog:  logs,
	})

	preview, err := o.Discover(context.Background(), []string{"mount fuji"}, DiscoverOptions{})
	require.NoError(t, err)
	require.NotNil(t, preview)
	assert.NotEmpty(t, preview.RunID)
	assert.Equal(t, 2, preview.TotalFound)
	assert.Equal(t, 2, preview.TotalAfterDedup)
	assert.Empty(t, preview.FailedTopics)

	require.Len(t, preview.Entries, 2)
	first := preview.Entries[0]
	assert.Equal(t, []string{"mount fuji"}, first.Topics)
	assert.Equal(t, "https://travel.example/fuji", first.SourcePageURL)
	assert.Equal(t, "https://travel.example/img/mount-fuji.jpg", first.ImageURL)
	assert.Equal(t, entity.MethodSERP, first.DiscoveryMethod)
	assert.Equal(t, "mount-fuji.jpg", first.Filename)
	assert.False(t, first.RetrievedAt.IsZero())
	assert.Greater(t, first.RelevanceScore, preview.Entries[1].RelevanceScore)

	log := logs.get("mount fuji")
	require.NotNil(t, log)
	assert.Equal(t, preview.RunID, log.RunID)
	require.Len(t, log.Queries, 1)
	assert.Equal(t, "duckduckgo", log.Queries[0].Provider)
	assert.Equal(t, "mount fuji images", log.Queries[0].Query)
	assert.Equal(t, 1, log.Queries[0].PageCount)
	assert.Equal(t, 2, log.Queries[0].ImageCount)
	assert.Empty(t, log.Queries[0].ErrorClass)
	assert.Len(t, log.Entries, 2)
}

func TestDiscoverRobotsGateSkipsPages(t *testing.T) {
	provider := &stubProvider{
		name: "duckduckgo",
		pages: map[string][]entity.CandidatePage{
			"mount fuji": {
				{URL: "https://open.example/fuji", Rank: 0},
				{URL: "https://closed.example/fuji", Rank: 1},
				{URL: "https://flaky.example/fuji", Rank: 2},
			},
		},
	}
	extractor := &stubExtractor{byPage: map[string][]entity.ImageCandidate{
		"https://open.example/fuji":   {candidate("https://open.example/a.jpg", "fuji")},
		"https://closed.example/fuji": {candidate("https://closed.example/b.jpg", "fuji")},
		"https://flaky.example/fuji":  {candidate("https://flaky.example/c.jpg", "fuji")},
	}}
	robots := &stubRobots{pageErrs: map[string]error{
		"https://closed.example/fuji": repository.ErrRobotsDenied,
		"https://flaky.example/fuji":  repository.ErrRobotsUnreachable,
	}}
	logs := newCaptureLog()
	o := newTestOrchestrator(OrchestratorDeps{
		Providers: []repository.SearchProvider{provider},
		Extractor: extractor,
		Robots:    robots,
		QueryLog:  logs,
	})

	preview, err := o.Discover(context.Background(), []string{"mount fuji"}, DiscoverOptions{RespectRobots: true})
	require.NoError(t, err)
	require.Len(t, preview.Entries, 1)
	assert.Equal(t, "https://open.example/a.jpg", preview.Entries[0].ImageURL)

	log := logs.get("mount fuji")
	require.NotNil(t, log)
	require.Len(t, log.Skips, 2)
	reasons := map[string]string{}
	for _, s := range log.Skips {
		reasons[s.URL] = s.Reason
		assert.False(t, s.Timestamp.IsZero())
	}
	assert.Equal(t, "robots_denied", reasons["https://closed.example/fuji"])
	assert.Equal(t, "robots_unreachable", reasons["https://flaky.example/fuji"])
}

func TestDiscoverRobotsOverrideBypassesGate(t *testing.T) {
	provider := &stubProvider{
		name: "duckduckgo",
		pages: map[string][]entity.CandidatePage{
			"mount fuji": {{URL: "https://closed.example/fuji", Rank: 0}},
		},
	}
	extractor := &stubExtractor{byPage: map[string][]entity.ImageCandidate{
		"https://closed.example/fuji": {candidate("https://closed.example/b.jpg", "fuji")},
	}}
	robots := &stubRobots{pageErrs: map[string]error{
		"https://closed.example/fuji": repository.ErrRobotsDenied,
	}}
	o := newTestOrchestrator(OrchestratorDeps{
		Providers: []repository.SearchProvider{provider},
		Extractor: extractor,
		Robots:    robots,
	})

	preview, err := o.Discover(context.Background(), []string{"mount fuji"}, DiscoverOptions{RespectRobots: false})
	require.NoError(t, err)
	assert.Len(t, preview.Entries, 1)
}

func TestDiscoverProviderFallback(t *testing.T) {
	broken := &stubProvider{name: "duckduckgo", err: repository.ErrProviderFailed}
	backup := &stubProvider{
		name: "serp",
		pages: map[string][]entity.CandidatePage{
			"mount fuji": {{URL: "https://travel.example/fuji", Rank: 0}},
		},
	}
	extractor := &stubExtractor{byPage: map[string][]entity.ImageCandidate{
		"https://travel.example/fuji": {candidate("https://travel.example/a.jpg", "fuji")},
	}}
	logs := newCaptureLog()
	o := newTestOrchestrator(OrchestratorDeps{
		Providers: []repository.SearchProvider{broken, backup},
		Extractor: extractor,
		QueryLog:  logs,
	})

	preview, err := o.Discover(context.Background(), []string{"mount fuji"}, DiscoverOptions{})
	require.NoError(t, err)
	assert.Len(t, preview.Entries, 1)
	assert.Empty(t, preview.FailedTopics)
	assert.Equal(t, 1, broken.calls)
	assert.Equal(t, 1, backup.calls)

	log := logs.get("mount fuji")
	require.NotNil(t, log)
	require.Len(t, log.Queries, 2)
	assert.Equal(t, "duckduckgo", log.Queries[0].Provider)
	assert.Equal(t, "provider_error", log.Queries[0].ErrorClass)
	assert.Equal(t, "serp", log.Queries[1].Provider)
	assert.Empty(t, log.Queries[1].ErrorClass)
}

func TestDiscoverAllProvidersFailMarksTopicFailed(t *testing.T) {
	first := &stubProvider{name: "duckduckgo", err: repository.ErrProviderFailed}
	second := &stubProvider{name: "serp", err: repository.ErrProviderFailed}
	logs := newCaptureLog()
	o := newTestOrchestrator(OrchestratorDeps{
		Providers: []repository.SearchProvider{first, second},
		QueryLog:  logs,
	})

	preview, err := o.Discover(context.Background(), []string{"mount fuji"}, DiscoverOptions{})
	require.NoError(t, err)
	assert.Empty(t, preview.Entries)
	assert.Equal(t, []string{"mount fuji"}, preview.FailedTopics)

	log := logs.get("mount fuji")
	require.NotNil(t, log)
	assert.Len(t, log.Queries, 2)
}

func TestDiscoverFailedTopicDoesNotAbortSiblings(t *testing.T) {
	provider := &stubProvider{
		name: "duckduckgo",
		pages: map[string][]entity.CandidatePage{
			"volcano": {{URL: "https://geo.example/volcano", Rank: 0}},
			// "mount fuji" has no pages: empty result, not an error.
		},
	}
	extractor := &stubExtractor{byPage: map[string][]entity.ImageCandidate{
		"https://geo.example/volcano": {candidate("https://geo.example/v.jpg", "volcano")},
	}}
	o := newTestOrchestrator(OrchestratorDeps{
		Providers: []repository.SearchProvider{provider},
		Extractor: extractor,
	})

	preview, err := o.Discover(context.Background(), []string{"mount fuji", "volcano"}, DiscoverOptions{})
	require.NoError(t, err)
	assert.Len(t, preview.Entries, 1)
	// Empty results are not provider failures.
	assert.Empty(t, preview.FailedTopics)
}

func TestDiscoverMergesSharedImageAcrossTopics(t *testing.T) {
	provider := &stubProvider{
		name: "duckduckgo",
		pages: map[string][]entity.CandidatePage{
			"mount fuji": {{URL: "https://a.example/fuji", Rank: 0}},
			"volcano":    {{URL: "https://b.example/volcano", Rank: 0}},
		},
	}
	extractor := &stubExtractor{byPage: map[string][]entity.ImageCandidate{
		"https://a.example/fuji": {
			candidate("https://cdn.example/shared.jpg", "fuji"),
			candidate("https://a.example/only-a.jpg", "fuji"),
		},
		"https://b.example/volcano": {
			candidate("https://cdn.example/shared.jpg", "volcano"),
		},
	}}
	o := newTestOrchestrator(OrchestratorDeps{
		Providers: []repository.SearchProvider{provider},
		Extractor: extractor,
	})

	preview, err := o.Discover(context.Background(), []string{"mount fuji", "volcano"}, DiscoverOptions{})
	require.NoError(t, err)
	assert.Equal(t, 3, preview.TotalFound)
	assert.Equal(t, 2, preview.TotalAfterDedup)
	require.Len(t, preview.Entries, 2)

	var shared *entity.ProvenanceEntry
	for i := range preview.Entries {
		if preview.Entries[i].ImageURL == "https://cdn.example/shared.jpg" {
			shared = &preview.Entries[i]
		}
	}
	require.NotNil(t, shared)
	assert.ElementsMatch(t, []string{"mount fuji", "volcano"}, shared.Topics)
}

func TestDiscoverDeduplicatesWithinTopicAcrossPages(t *testing.T) {
	provider := &stubProvider{
		name: "duckduckgo",
		pages: map[string][]entity.CandidatePage{
			"mount fuji": {
				{URL: "https://a.example/fuji", Rank: 0},
				{URL: "https://b.example/fuji", Rank: 1},
			},
		},
	}
	extractor := &stubExtractor{byPage: map[string][]entity.ImageCandidate{
		"https://a.example/fuji": {
			candidate("https://cdn.example/shared.jpg", "fuji"),
			candidate("https://a.example/only-a.jpg", "fuji"),
		},
		"https://b.example/fuji": {
			candidate("https://cdn.example/shared.jpg", "fuji from page b"),
		},
	}}
	logs := newCaptureLog()
	o := newTestOrchestrator(OrchestratorDeps{
		Providers: []repository.SearchProvider{provider},
		Extractor: extractor,
		QueryLog:  logs,
	})

	preview, err := o.Discover(context.Background(), []string{"mount fuji"}, DiscoverOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, preview.TotalFound)
	assert.Equal(t, 2, preview.TotalAfterDedup)

	// The topic log holds exactly one entry per image URL; the shared
	// image keeps its first-ranked page's provenance.
	log := logs.get("mount fuji")
	require.NotNil(t, log)
	require.Len(t, log.Entries, 2)
	perURL := map[string]int{}
	for _, e := range log.Entries {
		perURL[e.ImageURL]++
	}
	assert.Equal(t, 1, perURL["https://cdn.example/shared.jpg"])
	assert.Equal(t, 1, perURL["https://a.example/only-a.jpg"])
	for _, e := range log.Entries {
		if e.ImageURL == "https://cdn.example/shared.jpg" {
			assert.Equal(t, "https://a.example/fuji", e.SourcePageURL)
			assert.Equal(t, "fuji", e.AltText)
		}
	}
}

func TestDiscoverSkipsRecordedBeyondLimit(t *testing.T) {
	provider := &stubProvider{
		name: "duckduckgo",
		pages: map[string][]entity.CandidatePage{
			"mount fuji": {
				{URL: "https://open.example/fuji", Rank: 0},
				{URL: "https://closed.example/fuji", Rank: 1},
			},
		},
	}
	extractor := &stubExtractor{byPage: map[string][]entity.ImageCandidate{
		"https://open.example/fuji":   {candidate("https://open.example/a.jpg", "fuji")},
		"https://closed.example/fuji": {candidate("https://closed.example/b.jpg", "fuji")},
	}}
	robots := &stubRobots{pageErrs: map[string]error{
		"https://closed.example/fuji": repository.ErrRobotsDenied,
	}}
	logs := newCaptureLog()
	o := newTestOrchestrator(OrchestratorDeps{
		Providers: []repository.SearchProvider{provider},
		Extractor: extractor,
		Robots:    robots,
		QueryLog:  logs,
	})

	// The entry limit is already met by the first page; the later page's
	// robots skip must still land in the audit log.
	preview, err := o.Discover(context.Background(), []string{"mount fuji"}, DiscoverOptions{RespectRobots: true, Limit: 1})
	require.NoError(t, err)
	assert.Len(t, preview.Entries, 1)

	log := logs.get("mount fuji")
	require.NotNil(t, log)
	require.Len(t, log.Skips, 1)
	assert.Equal(t, "https://closed.example/fuji", log.Skips[0].URL)
	assert.Equal(t, "robots_denied", log.Skips[0].Reason)
}

func TestDiscoverLimitCapsEntries(t *testing.T) {
	provider := &stubProvider{
		name: "duckduckgo",
		pages: map[string][]entity.CandidatePage{
			"mount fuji": {{URL: "https://a.example/fuji", Rank: 0}},
		},
	}
	extractor := &stubExtractor{byPage: map[string][]entity.ImageCandidate{
		"https://a.example/fuji": {
			candidate("https://a.example/1.jpg", ""),
			candidate("https://a.example/2.jpg", ""),
			candidate("https://a.example/3.jpg", ""),
		},
	}}
	o := newTestOrchestrator(OrchestratorDeps{
		Providers: []repository.SearchProvider{provider},
		Extractor: extractor,
	})

	preview, err := o.Discover(context.Background(), []string{"mount fuji"}, DiscoverOptions{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, preview.Entries, 2)
}

func TestDiscoverExtractionErrorSkipsPage(t *testing.T) {
	provider := &stubProvider{
		name: "duckduckgo",
		pages: map[string][]entity.CandidatePage{
			"mount fuji": {
				{URL: "https://bad.example/fuji", Rank: 0},
				{URL: "https://good.example/fuji", Rank: 1},
			},
		},
	}
	extractor := &stubExtractor{
		byPage: map[string][]entity.ImageCandidate{
			"https://good.example/fuji": {candidate("https://good.example/a.jpg", "fuji")},
		},
		errs: map[string]error{
			"https://bad.example/fuji": repository.ErrExtractionFailed,
		},
	}
	logs := newCaptureLog()
	o := newTestOrchestrator(OrchestratorDeps{
		Providers: []repository.SearchProvider{provider},
		Extractor: extractor,
		QueryLog:  logs,
	})

	preview, err := o.Discover(context.Background(), []string{"mount fuji"}, DiscoverOptions{})
	require.NoError(t, err)
	require.Len(t, preview.Entries, 1)

	log := logs.get("mount fuji")
	require.NotNil(t, log)
	require.Len(t, log.Skips, 1)
	assert.Equal(t, "extraction_error", log.Skips[0].Reason)
}

func TestDiscoverCancelledContextReturnsPartialPreview(t *testing.T) {
	provider := &stubProvider{name: "duckduckgo"}
	logs := newCaptureLog()
	o := newTestOrchestrator(OrchestratorDeps{
		Providers: []repository.SearchProvider{provider},
		QueryLog:  logs,
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	preview, err := o.Discover(ctx, []string{"mount fuji"}, DiscoverOptions{})
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, preview)
	assert.Empty(t, preview.Entries)
}
