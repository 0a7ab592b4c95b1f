// Package imageprobe determines image dimensions via a ranged fetch and a
// header-only decode, avoiding full downloads during filtering.
package imageprobe

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"time"

	_ "golang.org/x/image/webp"

	"github.com/user/discovery-service/internal/repository"
)

// probeBytes is enough for the dimension headers of every supported
// format; JPEG SOF markers can sit late in heavily-annotated files, hence
// the generous window.
const probeBytes = 64 << 10

// Prober implements repository.ImageProber over HTTP range requests.
type Prober struct {
	client    *http.Client
	userAgent string
}

func NewProber(timeout time.Duration, userAgent string) *Prober {
	return &Prober{
		client:    &http.Client{Timeout: timeout},
		userAgent: userAgent,
	}
}

// Probe fetches the first probeBytes of the image and decodes its
// dimensions. Returns ErrDimensionUnknown whenever the fetch or decode
// fails; the filter pipeline treats that as fail-closed under an active
// resolution constraint.
func (p *Prober) Probe(ctx context.Context, imageURL string) (int, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %v", repository.ErrDimensionUnknown, err)
	}
	req.Header.Set("User-Agent", p.userAgent)
	req.Header.Set("Range", fmt.Sprintf("bytes=0-%d", probeBytes-1))

	resp, err := p.client.Do(req)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %v", repository.ErrDimensionUnknown, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		return 0, 0, fmt.Errorf("%w: status %d", repository.ErrDimensionUnknown, resp.StatusCode)
	}

	head, err := io.ReadAll(io.LimitReader(resp.Body, probeBytes))
	if err != nil && len(head) == 0 {
		return 0, 0, fmt.Errorf("%w: %v", repository.ErrDimensionUnknown, err)
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(head))
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %v", repository.ErrDimensionUnknown, err)
	}
	return cfg.Width, cfg.Height, nil
}
