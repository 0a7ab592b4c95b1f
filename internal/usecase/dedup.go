package usecase

import (
	"github.com/user/discovery-service/internal/entity"
	"github.com/user/discovery-service/pkg/urlutil"
)

// Deduplicator merges per-topic result sets into one, keyed by normalized
// image URL. First-seen wins for provenance fields; the merged entry's
// topic list becomes the union of every contributing topic so no
// attribution is lost.
type Deduplicator struct{}

func NewDeduplicator() *Deduplicator { return &Deduplicator{} }

// Merge flattens the per-topic slices, in the order given, into a single
// deduplicated sequence. len(result) <= sum of input lengths, with equality
// iff no normalized URL overlap.
func (d *Deduplicator) Merge(perTopic [][]entity.ProvenanceEntry) []entity.ProvenanceEntry {
	merged := make([]entity.ProvenanceEntry, 0)
	index := make(map[string]int)

	for _, entries := range perTopic {
		for _, e := range entries {
			key := urlutil.NormalizeImageURL(e.ImageURL)
			at, seen := index[key]
			if !seen {
				index[key] = len(merged)
				merged = append(merged, e)
				continue
			}
			merged[at].Topics = unionTopics(merged[at].Topics, e.Topics)
		}
	}
	return merged
}

func unionTopics(existing, incoming []string) []string {
	seen := make(map[string]struct{}, len(existing))
	for _, t := range existing {
		seen[t] = struct{}{}
	}
	for _, t := range incoming {
		if _, ok := seen[t]; !ok {
			seen[t] = struct{}{}
			existing = append(existing, t)
		}
	}
	return existing
}
