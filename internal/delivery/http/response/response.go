package response

import "github.com/user/discovery-service/internal/entity"

// HistoryResponse is the payload of GET /api/history.
type HistoryResponse struct {
	Topic   string                   `json:"topic"`
	Entries []entity.ProvenanceEntry `json:"entries"`
}
