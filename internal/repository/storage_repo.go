package repository

import (
	"context"
	"errors"

	"github.com/user/discovery-service/internal/entity"
)

var (
	// ErrDimensionUnknown means an image's dimensions could not be probed.
	// Fail-closed when a resolution filter is active.
	ErrDimensionUnknown = errors.New("image dimensions could not be determined")
)

// ImageStore persists downloaded images and the provenance-index sidecar.
type ImageStore interface {
	// SaveImage writes image bytes into dir and returns the local path.
	// The filename is derived from the URL hash plus a content extension.
	SaveImage(ctx context.Context, dir, imageURL, contentType string, body []byte) (string, error)
	// WriteProvenanceIndex writes the provenance_index.json sidecar listing
	// every saved file with its provenance entry.
	WriteProvenanceIndex(ctx context.Context, dir string, saved []entity.SavedImage) (string, error)
}

// ImageProber determines an image's pixel dimensions without a full
// download, typically via a ranged fetch and a header-only decode.
type ImageProber interface {
	// Probe returns width and height, or ErrDimensionUnknown.
	Probe(ctx context.Context, imageURL string) (width, height int, err error)
}
