// Package robots implements the robots.txt policy gate with per-run
// caching and an optional cross-run cache backend.
package robots

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/temoto/robotstxt"

	"github.com/user/discovery-service/internal/repository"
	"github.com/user/discovery-service/pkg/retry"
)

// maxRobotsBytes caps a robots.txt body read.
const maxRobotsBytes = 512 << 10

// hostPolicy is the cached per-host outcome for one run.
type hostPolicy struct {
	data        *robotstxt.RobotsData
	unreachable bool
}

// Gate checks robots.txt for pages and images. Policies are fetched at
// most once per host per run; fetch failures deny conservatively for the
// rest of the run (fail-closed) unless the operator set FailOpen.
// Safe for concurrent use.
type Gate struct {
	client    *http.Client
	userAgent string
	failOpen  bool
	policy    retry.Policy

	cache    repository.RobotsCache // optional cross-run cache, may be nil
	cacheTTL time.Duration

	mu       sync.Mutex
	policies map[string]*hostPolicy
	inflight map[string]chan struct{}
}

func NewGate(client *http.Client, userAgent string, failOpen bool, policy retry.Policy, cache repository.RobotsCache, cacheTTL time.Duration) *Gate {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Gate{
		client:    client,
		userAgent: userAgent,
		failOpen:  failOpen,
		policy:    policy,
		cache:     cache,
		cacheTTL:  cacheTTL,
		policies:  make(map[string]*hostPolicy),
		inflight:  make(map[string]chan struct{}),
	}
}

// AllowedForPage implements repository.RobotsGate for source pages.
func (g *Gate) AllowedForPage(ctx context.Context, pageURL string) error {
	return g.allowed(ctx, pageURL)
}

// AllowedForResource implements repository.RobotsGate for leaf images.
// Separate from the page check because fetching a page and fetching an
// image it references may be independently disallowed.
func (g *Gate) AllowedForResource(ctx context.Context, resourceURL string) error {
	return g.allowed(ctx, resourceURL)
}

func (g *Gate) allowed(ctx context.Context, rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return fmt.Errorf("%w: unparsable url %q", repository.ErrRobotsDenied, rawURL)
	}

	policy, err := g.policyFor(ctx, u)
	if err != nil {
		return err
	}
	if policy.unreachable {
		if g.failOpen {
			return nil
		}
		return repository.ErrRobotsUnreachable
	}
	if policy.data.FindGroup(g.userAgent).Test(u.RequestURI()) {
		return nil
	}
	return repository.ErrRobotsDenied
}

// policyFor returns the cached policy for a host, fetching it once.
// Concurrent callers for the same host wait on a single fetch.
func (g *Gate) policyFor(ctx context.Context, u *url.URL) (*hostPolicy, error) {
	host := u.Scheme + "://" + u.Host

	for {
		g.mu.Lock()
		if p, ok := g.policies[host]; ok {
			g.mu.Unlock()
			return p, nil
		}
		if done, ok := g.inflight[host]; ok {
			g.mu.Unlock()
			select {
			case <-done:
				continue
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		done := make(chan struct{})
		g.inflight[host] = done
		g.mu.Unlock()

		p := g.fetchPolicy(ctx, u)

		g.mu.Lock()
		g.policies[host] = p
		delete(g.inflight, host)
		close(done)
		g.mu.Unlock()
		return p, nil
	}
}

func (g *Gate) fetchPolicy(ctx context.Context, u *url.URL) *hostPolicy {
	host := u.Hostname()

	if g.cache != nil {
		if body, ok, err := g.cache.Get(ctx, host); err == nil && ok {
			if data, perr := robotstxt.FromBytes(body); perr == nil {
				return &hostPolicy{data: data}
			}
		}
	}

	robotsURL := u.Scheme + "://" + u.Host + "/robots.txt"

	// Fetch under the shared retry policy: network errors and 5xx back off
	// and retry before a host is denied for the whole run.
	var body []byte
	var status int
	err := g.policy.Do(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
		if err != nil {
			return retry.Permanent(err)
		}
		req.Header.Set("User-Agent", g.userAgent)

		resp, err := g.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		status = resp.StatusCode
		if status >= 500 {
			return fmt.Errorf("robots.txt server error %d", status)
		}
		if status >= 400 {
			body = nil
			return nil
		}
		body, err = io.ReadAll(io.LimitReader(resp.Body, maxRobotsBytes))
		return err
	})
	if err != nil {
		slog.Warn("robots.txt fetch failed, denying host for this run", "host", host, "error", err)
		return &hostPolicy{unreachable: true}
	}

	if status >= 400 {
		// No robots.txt means everything is allowed.
		data, _ := robotstxt.FromBytes(nil)
		return &hostPolicy{data: data}
	}

	data, err := robotstxt.FromBytes(body)
	if err != nil {
		slog.Warn("robots.txt unparsable, denying host for this run", "host", host, "error", err)
		return &hostPolicy{unreachable: true}
	}

	if g.cache != nil {
		// Unreachable outcomes are never cached cross-run; the deny is a
		// per-run conservative stance, not a durable policy.
		if err := g.cache.Set(ctx, host, body, g.cacheTTL); err != nil {
			slog.Debug("robots cache write failed", "host", host, "error", err)
		}
	}
	return &hostPolicy{data: data}
}
