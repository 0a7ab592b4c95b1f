package repository

import (
	"context"

	"github.com/user/discovery-service/internal/entity"
)

// QueryLog persists the per-topic discovery log. One JSON document per
// (date, topic); writes are atomic from the caller's perspective and
// concurrent writers for the same topic are serialized internally.
type QueryLog interface {
	// WriteTopicLog writes the full log document for a topic, replacing any
	// document from an earlier run on the same day.
	WriteTopicLog(ctx context.Context, log *entity.TopicLog) (path string, err error)
}
