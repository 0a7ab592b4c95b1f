// Package serp implements a generic HTML SERP fallback provider: any
// search engine whose results page can be described by a URL template and
// a CSS selector for result anchors.
package serp

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/user/discovery-service/internal/adapter/htmlpage"
	"github.com/user/discovery-service/internal/entity"
	"github.com/user/discovery-service/internal/repository"
	"github.com/user/discovery-service/pkg/ratelimit"
	"github.com/user/discovery-service/pkg/urlutil"
)

// Provider scrapes a configurable HTML SERP. Used as the fallback in the
// provider chain when the primary provider errors or comes back empty.
type Provider struct {
	name        string
	urlTemplate string // %s is replaced with the escaped query
	selector    string // CSS selector matching result anchors
	fetcher     *htmlpage.Fetcher
	limiter     *ratelimit.Registry
}

func NewProvider(name, urlTemplate, selector string, fetcher *htmlpage.Fetcher, limiter *ratelimit.Registry) *Provider {
	return &Provider{
		name:        name,
		urlTemplate: urlTemplate,
		selector:    selector,
		fetcher:     fetcher,
		limiter:     limiter,
	}
}

// NewBingFallback returns the default fallback configuration.
func NewBingFallback(fetcher *htmlpage.Fetcher, limiter *ratelimit.Registry) *Provider {
	return NewProvider("serp", "https://www.bing.com/search?q=%s", "li.b_algo h2 a", fetcher, limiter)
}

func (p *Provider) Name() string { return p.name }

// Query returns the exact query string sent for a topic.
func (p *Provider) Query(topic string) string {
	return topic + " images"
}

// Search implements repository.SearchProvider.
func (p *Provider) Search(ctx context.Context, topic string, limit int) ([]entity.CandidatePage, error) {
	if err := p.limiter.Acquire(ctx, p.Name()); err != nil {
		return nil, err
	}

	searchURL := fmt.Sprintf(p.urlTemplate, url.QueryEscape(p.Query(topic)))
	body, _, err := p.fetcher.Get(ctx, searchURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", repository.ErrProviderFailed, p.name, err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: malformed response: %v", repository.ErrProviderFailed, p.name, err)
	}

	var pages []entity.CandidatePage
	seen := make(map[string]struct{})

	doc.Find(p.selector).EachWithBreak(func(i int, s *goquery.Selection) bool {
		href, ok := s.Attr("href")
		if !ok || !urlutil.IsValidHTTP(href) {
			return true
		}
		if _, dup := seen[href]; dup {
			return true
		}
		seen[href] = struct{}{}
		pages = append(pages, entity.CandidatePage{
			URL:   href,
			Topic: topic,
			Rank:  len(pages),
		})
		return len(pages) < limit
	})

	return pages, nil
}
