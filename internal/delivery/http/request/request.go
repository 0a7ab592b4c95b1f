package request

import "github.com/user/discovery-service/internal/entity"

// DiscoverRequest is the body of POST /api/discover.
type DiscoverRequest struct {
	Topics        []string `json:"topics"`
	Limit         int      `json:"limit"`
	RespectRobots *bool    `json:"respect_robots,omitempty"` // default true
}

// DownloadRequest is the body of POST /api/download.
type DownloadRequest struct {
	Preview       *entity.PreviewResult `json:"preview"`
	Selection     []string              `json:"selection,omitempty"`
	Filter        entity.DownloadFilter `json:"filter"`
	OutDir        string                `json:"out_dir"`
	RespectRobots *bool                 `json:"respect_robots,omitempty"`
}
