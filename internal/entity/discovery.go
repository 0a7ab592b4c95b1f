package entity

// CandidatePage is one ranked search result for a topic. Ephemeral: created
// per search call, never persisted standalone.
type CandidatePage struct {
	URL   string `json:"url"`
	Topic string `json:"discovered_via_topic"`
	Rank  int    `json:"rank"`
}

// ImageCandidate is a raw extraction result from one page, before scoring.
type ImageCandidate struct {
	ImageURL    string `json:"image_url"` // absolute, normalized
	AltText     string `json:"alt_text,omitempty"`
	ContextText string `json:"context_text,omitempty"`
	WidthHint   int    `json:"width_hint,omitempty"`
	HeightHint  int    `json:"height_hint,omitempty"`
}

// PreviewResult is what Discover returns: the merged, ordered entry set for
// all requested topics. JSON-serializable for the CLI and API; not persisted
// beyond the query logs.
type PreviewResult struct {
	Topics          []string          `json:"topics"`
	RunID           string            `json:"run_id"`
	Entries         []ProvenanceEntry `json:"entries"`
	TotalFound      int               `json:"total_found"`
	TotalAfterDedup int               `json:"total_after_dedup"`

	// FailedTopics lists topics whose every provider attempt failed.
	FailedTopics []string `json:"failed_topics,omitempty"`
}

// DownloadFilter constrains which previewed images may be downloaded.
// Deny takes precedence over allow on conflict. Stateless, constructed per
// download request.
type DownloadFilter struct {
	MinWidth     int      `json:"min_width,omitempty"`
	MinHeight    int      `json:"min_height,omitempty"`
	AllowDomains []string `json:"allow_domains,omitempty"`
	DenyDomains  []string `json:"deny_domains,omitempty"`
}

// HasResolution reports whether a resolution constraint is active.
func (f DownloadFilter) HasResolution() bool {
	return f.MinWidth > 0 || f.MinHeight > 0
}

// SavedImage pairs a saved file with its provenance.
type SavedImage struct {
	ImageURL   string          `json:"image_url"`
	LocalPath  string          `json:"local_path"`
	Provenance ProvenanceEntry `json:"provenance"`
}

// FailedImage records a per-image download failure or policy exclusion.
type FailedImage struct {
	ImageURL string `json:"image_url"`
	Reason   string `json:"reason"`
}

// DownloadResult summarizes one select-and-download batch. Per-image
// failures never abort the batch.
type DownloadResult struct {
	Saved               []SavedImage  `json:"saved"`
	Failed              []FailedImage `json:"failed"`
	ProvenanceIndexPath string        `json:"provenance_index_path"`
}
