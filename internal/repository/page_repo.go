package repository

import (
	"context"
	"errors"

	"github.com/user/discovery-service/internal/entity"
)

var (
	// ErrExtractionFailed means a page could not be fetched or its HTML
	// could not be parsed. The page is skipped; the topic continues.
	ErrExtractionFailed = errors.New("page extraction failed")
)

// PageExtractor fetches a page and returns its raw image candidates with
// local context (alt text, surrounding text, dimension hints).
type PageExtractor interface {
	ExtractImages(ctx context.Context, pageURL string) ([]entity.ImageCandidate, error)
}

// ImageFetcher retrieves the bytes of a leaf image for download.
type ImageFetcher interface {
	// FetchImage returns the image body and its Content-Type.
	FetchImage(ctx context.Context, imageURL string) (body []byte, contentType string, err error)
}
