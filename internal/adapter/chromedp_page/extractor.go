// Package chromedp_page extracts images via a headless browser for pages
// that only render their image grid from JavaScript.
package chromedp_page

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/user/discovery-service/internal/adapter/htmlpage"
	"github.com/user/discovery-service/internal/entity"
	"github.com/user/discovery-service/internal/repository"
)

// Extractor renders a page in headless Chrome, captures the settled HTML
// and feeds it through the same goquery parser as the HTTP extractor.
type Extractor struct {
	allocatorPool *sync.Pool
	timeout       time.Duration
}

// NewExtractor creates the browser-backed extractor. The allocator pool is
// pre-warmed to maxConcurrency so page workers never wait on browser
// startup mid-run.
func NewExtractor(maxConcurrency int, pageLoadTimeout time.Duration, userAgent string) *Extractor {
	pool := &sync.Pool{
		New: func() interface{} {
			opts := append(chromedp.DefaultExecAllocatorOptions[:],
				chromedp.Flag("headless", true),
				chromedp.Flag("disable-gpu", true),
				chromedp.Flag("no-sandbox", true),
				chromedp.Flag("disable-dev-shm-usage", true),
				chromedp.UserAgent(userAgent),
			)
			allocCtx, _ := chromedp.NewExecAllocator(context.Background(), opts...)
			return allocCtx
		},
	}
	for i := 0; i < maxConcurrency; i++ {
		allocCtx := pool.Get().(context.Context)
		pool.Put(allocCtx)
	}
	return &Extractor{allocatorPool: pool, timeout: pageLoadTimeout}
}

// ExtractImages implements repository.PageExtractor.
func (e *Extractor) ExtractImages(ctx context.Context, pageURL string) ([]entity.ImageCandidate, error) {
	allocCtx := e.allocatorPool.Get().(context.Context)
	defer e.allocatorPool.Put(allocCtx)

	taskCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()
	taskCtx, cancel = context.WithTimeout(taskCtx, e.timeout)
	defer cancel()

	// Propagate caller cancellation into the browser task.
	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-taskCtx.Done():
		}
	}()

	var html string
	err := chromedp.Run(taskCtx,
		chromedp.Navigate(pageURL),
		chromedp.OuterHTML("html", &html),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", repository.ErrExtractionFailed, err)
	}

	return htmlpage.ParseImages(html, pageURL)
}
