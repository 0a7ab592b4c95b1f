package localfs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/user/discovery-service/internal/entity"
	"github.com/user/discovery-service/pkg/urlutil"
)

// provenanceIndexName is the sidecar written next to saved files.
const provenanceIndexName = "provenance_index.json"

// StoreImpl implements repository.ImageStore on the local filesystem.
// Filenames are hash-derived from the image URL so concurrent downloads
// never collide and re-downloads overwrite in place.
type StoreImpl struct{}

func NewStore() *StoreImpl { return &StoreImpl{} }

// SaveImage writes the image body into dir under a hash-based filename.
func (s *StoreImpl) SaveImage(ctx context.Context, dir, imageURL, contentType string, body []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output dir: %w", err)
	}

	name := urlutil.HashURL(imageURL)[:16] + urlutil.ExtensionFor(contentType, imageURL)
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return "", fmt.Errorf("failed to write image %s: %w", name, err)
	}
	return path, nil
}

// WriteProvenanceIndex writes the provenance_index.json sidecar listing
// every saved file with its provenance entry and local filename.
func (s *StoreImpl) WriteProvenanceIndex(ctx context.Context, dir string, saved []entity.SavedImage) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output dir: %w", err)
	}

	type indexRow struct {
		LocalFilename string                 `json:"local_filename"`
		ImageURL      string                 `json:"image_url"`
		Provenance    entity.ProvenanceEntry `json:"provenance"`
	}
	rows := make([]indexRow, 0, len(saved))
	for _, s := range saved {
		rows = append(rows, indexRow{
			LocalFilename: filepath.Base(s.LocalPath),
			ImageURL:      s.ImageURL,
			Provenance:    s.Provenance,
		})
	}

	path := filepath.Join(dir, provenanceIndexName)
	if err := writeJSONAtomic(path, rows); err != nil {
		return "", err
	}
	return path, nil
}
