package usecase

import (
	"time"

	"github.com/user/discovery-service/internal/entity"
	"github.com/user/discovery-service/pkg/urlutil"
)

// Recorder builds immutable provenance entries and query log entries.
// Construction has no side effects; the caller decides what to keep and
// when to persist.
type Recorder struct {
	scorer *Scorer
	now    func() time.Time
}

func NewRecorder(scorer *Scorer) *Recorder {
	return &Recorder{scorer: scorer, now: time.Now}
}

// RecordImage constructs a scored provenance entry for one image candidate
// found on sourcePageURL while discovering topic.
func (r *Recorder) RecordImage(topic, sourcePageURL string, method entity.DiscoveryMethod, cand entity.ImageCandidate) entity.ProvenanceEntry {
	normalized := urlutil.NormalizeImageURL(cand.ImageURL)
	filename := urlutil.FilenameFromURL(normalized)
	domain := urlutil.HostOf(normalized)

	score := r.scorer.Score(topic, cand.AltText, filename, cand.ContextText, domain)

	return entity.ProvenanceEntry{
		Topics:          []string{topic},
		SourcePageURL:   sourcePageURL,
		ImageURL:        normalized,
		DiscoveryMethod: method,
		RetrievedAt:     r.now().UTC(),
		RelevanceScore:  score,
		RelevanceTier:   entity.TierForScore(score),
		AltText:         cand.AltText,
		Filename:        filename,
		ContextText:     cand.ContextText,
		WidthHint:       cand.WidthHint,
		HeightHint:      cand.HeightHint,
	}
}

// RecordQuery constructs a query log entry for one provider execution.
func (r *Recorder) RecordQuery(topic, provider, query string, pageCount, imageCount int, errorClass string) entity.QueryLogEntry {
	return entity.QueryLogEntry{
		Topic:      topic,
		Provider:   provider,
		Query:      query,
		Timestamp:  r.now().UTC(),
		PageCount:  pageCount,
		ImageCount: imageCount,
		ErrorClass: errorClass,
	}
}
