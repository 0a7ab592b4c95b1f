// Package duckduckgo implements the primary search provider against the
// DuckDuckGo HTML endpoint.
package duckduckgo

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

const defaultBaseURL = "https://html.duckduckgo.com/html/"

// Provider queries the DuckDuckGo HTML SERP and returns ranked candidate
// pages. All outbound calls go through the shared rate limiter keyed by
// the provider name.
type Provider struct {
	baseURL string
	fetcher *htmlpage.Fetcher
	limiter *ratelimit.Registry
}

func NewProvider(fetcher *htmlpage.Fetcher, limiter *ratelimit.Registry) *Provider {
	return &Provider{baseURL: defaultBaseURL, fetcher: fetcher, limiter: limiter}
}

// NewProviderWithBaseURL is used by tests to point at a fake endpoint.
func NewProviderWithBaseURL(baseURL string, fetcher *htmlpage.Fetcher, limiter *ratelimit.Registry) *Provider {
	return &Provider{baseURL: baseURL, fetcher: fetcher, limiter: limiter}
}

func (p *Provider) Name() string { return "duckduckgo" }

// Query returns the exact query string sent for a topic.
func (p *Provider) Query(topic string) string {
	return topic + " images"
}

// Search implements repository.SearchProvider. Result order follows the
// SERP's ranked order so a deterministic response yields a deterministic
// candidate sequence.
func (p *Provider) Search(ctx context.Context, topic string, limit int) ([]entity.CandidatePage, error) {
	if err := p.limiter.Acquire(ctx, p.Name()); err != nil {
		return nil, err
	}

	searchURL := p.baseURL + "?q=" + url.QueryEscape(p.Query(topic))
	body, _, err := p.fetcher.Get(ctx, searchURL)
	if err != nil {
		return nil, fmt.Errorf("%w: duckduckgo: %v", repository.ErrProviderFailed, err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return nil, fmt.Errorf("%w: duckduckgo: malformed response: %v", repository.ErrProviderFailed, err)
	}

	var pages []entity.CandidatePage
	seen := make(map[string]struct{})

	doc.Find("a.result__a").EachWithBreak(func(i int, s *goquery.Selection) bool {
		href, ok := s.Attr("href")
		if !ok {
			return true
		}
		target := unwrapRedirect(href)
		if !urlutil.IsValidHTTP(target) {
			return true
		}
		if _, dup := seen[target]; dup {
			return true
		}
		seen[target] = struct{}{}
		pages = append(pages, entity.CandidatePage{
			URL:   target,
			Topic: topic,
			Rank:  len(pages),
		})
		return len(pages) < limit
	})

	return pages, nil
}

// unwrapRedirect resolves DuckDuckGo's /l/?uddg= redirect links to the
// actual result URL. Plain absolute links pass through unchanged.
func unwrapRedirect(href string) string {
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	}
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if uddg := u.Query().Get("uddg"); uddg != "" {
		if target, err := url.QueryUnescape(uddg); err == nil {
			return target
		}
	}
	return href
}
