package entity

import "time"

// DiscoveryMethod records how an image URL was found.
type DiscoveryMethod string

const (
	MethodSERP      DiscoveryMethod = "SERP"
	MethodSitemap   DiscoveryMethod = "sitemap"
	MethodDirectURL DiscoveryMethod = "direct-url"
)

// RelevanceTier buckets a relevance score for display and filtering.
type RelevanceTier string

const (
	TierHigh   RelevanceTier = "high"
	TierMedium RelevanceTier = "medium"
	TierLow    RelevanceTier = "low"
)

// TierForScore derives the tier from a relevance score.
func TierForScore(score float64) RelevanceTier {
	switch {
	case score >= 0.6:
		return TierHigh
	case score >= 0.3:
		return TierMedium
	default:
		return TierLow
	}
}

// ProvenanceEntry is the immutable record of one discovered image: where it
// was found, how, when, and how relevant it looked. Every image that
// appears in a preview or download result has exactly one entry.
type ProvenanceEntry struct {
	// Topics lists every topic that surfaced this image. A single element
	// before cross-topic merge; the union of contributors after.
	Topics []string `json:"topics"`

	SourcePageURL   string          `json:"source_page_url"`
	ImageURL        string          `json:"image_url"` // normalized, absolute
	DiscoveryMethod DiscoveryMethod `json:"discovery_method"`
	RetrievedAt     time.Time       `json:"retrieved_at"`

	RelevanceScore float64       `json:"relevance_score"`
	RelevanceTier  RelevanceTier `json:"relevance_tier"`

	AltText     string `json:"alt_text,omitempty"`
	Filename    string `json:"filename,omitempty"`
	ContextText string `json:"context_text,omitempty"` // max 200 chars

	// Dimension hints from width/height attributes, 0 when absent.
	WidthHint  int `json:"width_hint,omitempty"`
	HeightHint int `json:"height_hint,omitempty"`
}

// Topic returns the first contributing topic.
func (p *ProvenanceEntry) Topic() string {
	if len(p.Topics) == 0 {
		return ""
	}
	return p.Topics[0]
}

// QueryLogEntry records one (topic, provider, query) execution. The ordered
// sequence of entries for a topic is replayable: re-running discovery for
// the same topic against a stable provider reproduces the query sequence.
type QueryLogEntry struct {
	Topic      string    `json:"topic"`
	Provider   string    `json:"provider"`
	Query      string    `json:"query"`
	Timestamp  time.Time `json:"timestamp"`
	PageCount  int       `json:"page_count"`
	ImageCount int       `json:"image_count"`

	// ErrorClass is set when the provider attempt failed ("provider_error",
	// "empty_result") so failed attempts are auditable.
	ErrorClass string `json:"error_class,omitempty"`
}

// SkipEvent records a page or image excluded by policy during discovery.
type SkipEvent struct {
	URL       string    `json:"url"`
	Reason    string    `json:"reason"` // robots_denied, robots_unreachable, extraction_error, terminated
	Timestamp time.Time `json:"timestamp"`
}

// TopicLog is the durable per-(date, topic) JSON document: the ordered
// query log plus every provenance entry gathered for the topic.
type TopicLog struct {
	Topic   string            `json:"topic"`
	RunID   string            `json:"run_id"`
	Queries []QueryLogEntry   `json:"queries"`
	Skips   []SkipEvent       `json:"skips,omitempty"`
	Entries []ProvenanceEntry `json:"entries"`
}
