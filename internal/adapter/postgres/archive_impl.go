// Package postgres implements the optional provenance archive: a durable,
// queryable history of everything discovery has found across runs.
package postgres

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/user/discovery-service/internal/entity"
)

// ArchiveImpl implements repository.ProvenanceArchive using PostgreSQL.
//
// Schema:
//
//	CREATE TABLE provenance_entries (
//	    id               BIGSERIAL PRIMARY KEY,
//	    image_url        TEXT NOT NULL UNIQUE,
//	    source_page_url  TEXT NOT NULL,
//	    discovery_method TEXT NOT NULL,
//	    topics           JSONB NOT NULL,
//	    retrieved_at     TIMESTAMPTZ NOT NULL,
//	    relevance_score  DOUBLE PRECISION NOT NULL,
//	    relevance_tier   TEXT NOT NULL,
//	    alt_text         TEXT,
//	    filename         TEXT,
//	    context_text     TEXT
//	);
//
//	CREATE TABLE query_log (
//	    id          BIGSERIAL PRIMARY KEY,
//	    run_id      TEXT NOT NULL,
//	    topic       TEXT NOT NULL,
//	    provider    TEXT NOT NULL,
//	    query       TEXT NOT NULL,
//	    ts          TIMESTAMPTZ NOT NULL,
//	    page_count  INT NOT NULL,
//	    image_count INT NOT NULL,
//	    error_class TEXT
//	);
type ArchiveImpl struct {
	db *pgxpool.Pool
}

func NewArchive(db *pgxpool.Pool) *ArchiveImpl {
	return &ArchiveImpl{db: db}
}

// SaveEntries upserts provenance entries keyed by image URL. On conflict
// the topics list and relevance fields are refreshed; first-seen source
// page and retrieval time are kept, matching the dedup first-seen-wins
// rule.
func (a *ArchiveImpl) SaveEntries(ctx context.Context, entries []entity.ProvenanceEntry) error {
	query := `
		INSERT INTO provenance_entries
			(image_url, source_page_url, discovery_method, topics, retrieved_at,
			 relevance_score, relevance_tier, alt_text, filename, context_text)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (image_url) DO UPDATE SET
			topics = EXCLUDED.topics,
			relevance_score = EXCLUDED.relevance_score,
			relevance_tier = EXCLUDED.relevance_tier;
	`
	for _, e := range entries {
		topicsJSON, err := json.Marshal(e.Topics)
		if err != nil {
			return err
		}
		_, err = a.db.Exec(ctx, query,
			e.ImageURL,
			e.SourcePageURL,
			string(e.DiscoveryMethod),
			topicsJSON,
			e.RetrievedAt,
			e.RelevanceScore,
			string(e.RelevanceTier),
			e.AltText,
			e.Filename,
			e.ContextText,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

// SaveQueries appends query log entries for a run.
func (a *ArchiveImpl) SaveQueries(ctx context.Context, runID string, queries []entity.QueryLogEntry) error {
	query := `
		INSERT INTO query_log (run_id, topic, provider, query, ts, page_count, image_count, error_class)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8);
	`
	for _, q := range queries {
		_, err := a.db.Exec(ctx, query,
			runID, q.Topic, q.Provider, q.Query, q.Timestamp, q.PageCount, q.ImageCount, q.ErrorClass)
		if err != nil {
			return err
		}
	}
	return nil
}

// FindByTopic returns archived entries whose topics include topic, newest
// first.
func (a *ArchiveImpl) FindByTopic(ctx context.Context, topic string, limit int) ([]entity.ProvenanceEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT image_url, source_page_url, discovery_method, topics, retrieved_at,
		       relevance_score, relevance_tier, alt_text, filename, context_text
		FROM provenance_entries
		WHERE topics @> to_jsonb(ARRAY[$1]::text[])
		ORDER BY retrieved_at DESC
		LIMIT $2;
	`
	rows, err := a.db.Query(ctx, query, topic, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []entity.ProvenanceEntry
	for rows.Next() {
		var e entity.ProvenanceEntry
		var method, tier string
		var topicsJSON []byte
		err := rows.Scan(
			&e.ImageURL,
			&e.SourcePageURL,
			&method,
			&topicsJSON,
			&e.RetrievedAt,
			&e.RelevanceScore,
			&tier,
			&e.AltText,
			&e.Filename,
			&e.ContextText,
		)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(topicsJSON, &e.Topics); err != nil {
			return nil, err
		}
		e.DiscoveryMethod = entity.DiscoveryMethod(method)
		e.RelevanceTier = entity.RelevanceTier(tier)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
