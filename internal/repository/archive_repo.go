package repository

import (
	"context"

	"github.com/user/discovery-service/internal/entity"
)

// ProvenanceArchive is the optional Postgres-backed history of everything
// discovery has found, queryable by topic across runs. The filesystem query
// log stays the authoritative replay artifact; the archive serves the API's
// history endpoint.
type ProvenanceArchive interface {
	// SaveEntries upserts provenance entries keyed by normalized image URL.
	SaveEntries(ctx context.Context, entries []entity.ProvenanceEntry) error
	// SaveQueries appends query log entries for a run.
	SaveQueries(ctx context.Context, runID string, queries []entity.QueryLogEntry) error
	// FindByTopic returns archived entries whose topics include topic.
	FindByTopic(ctx context.Context, topic string, limit int) ([]entity.ProvenanceEntry, error)
}
