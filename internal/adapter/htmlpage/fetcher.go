// Package htmlpage implements page fetching and image extraction over
// plain HTTP with goquery parsing.
package htmlpage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/user/discovery-service/pkg/ratelimit"
	"github.com/user/discovery-service/pkg/retry"
)

// maxImageBytes caps a single image download.
const maxImageBytes = 32 << 20

// Fetcher wraps an http.Client with the shared retry policy and a stable
// User-Agent. It is reused by the extractor, the SERP providers and image
// downloads so every outbound path retries identically.
type Fetcher struct {
	client    *http.Client
	policy    retry.Policy
	userAgent string

	limiter  *ratelimit.Registry
	limitKey string
}

func NewFetcher(timeout time.Duration, policy retry.Policy, userAgent string) *Fetcher {
	return &Fetcher{
		client:    &http.Client{Timeout: timeout},
		policy:    policy,
		userAgent: userAgent,
	}
}

// SetLimiter routes every fetch through the shared rate limiter under the
// given bucket key. Providers hold their own buckets on top of this one.
func (f *Fetcher) SetLimiter(limiter *ratelimit.Registry, key string) {
	f.limiter = limiter
	f.limitKey = key
}

// Get fetches a URL with retries. Transient failures (network errors, 5xx,
// 429) back off and retry; other 4xx statuses are permanent.
func (f *Fetcher) Get(ctx context.Context, url string) ([]byte, string, error) {
	if f.limiter != nil {
		if err := f.limiter.Acquire(ctx, f.limitKey); err != nil {
			return nil, "", err
		}
	}

	var body []byte
	var contentType string

	err := f.policy.Do(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return retry.Permanent(err)
		}
		req.Header.Set("User-Agent", f.userAgent)
		req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

		resp, err := f.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 400 {
			err := fmt.Errorf("unexpected status %d for %s", resp.StatusCode, url)
			if resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
				return retry.Permanent(err)
			}
			return err
		}

		body, err = io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
		if err != nil {
			return err
		}
		contentType = resp.Header.Get("Content-Type")
		return nil
	})
	if err != nil {
		return nil, "", err
	}
	return body, contentType, nil
}

// FetchImage implements repository.ImageFetcher.
func (f *Fetcher) FetchImage(ctx context.Context, imageURL string) ([]byte, string, error) {
	return f.Get(ctx, imageURL)
}
