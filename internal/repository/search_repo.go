package repository

import (
	"context"
	"errors"

	"github.com/user/discovery-service/internal/entity"
)

var (
	// ErrProviderFailed wraps a search provider failure (timeout, malformed
	// response). Recorded in the query log; never fatal for a topic when
	// other providers exist.
	ErrProviderFailed = errors.New("search provider call failed")
)

// SearchProvider translates a topic into an ordered list of candidate
// pages. Implementations funnel outbound calls through the shared rate
// limiter and must preserve the provider's ranked order.
type SearchProvider interface {
	// Name identifies the provider variant ("duckduckgo", "serp").
	Name() string
	// Query returns the exact query string the provider sends for a topic,
	// recorded verbatim in the query log for replayability.
	Query(topic string) string
	// Search returns up to limit candidate pages for the topic, in the
	// order received from the provider.
	Search(ctx context.Context, topic string, limit int) ([]entity.CandidatePage, error)
}
