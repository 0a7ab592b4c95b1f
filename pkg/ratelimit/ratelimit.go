// Package ratelimit provides per-key token-bucket limiting for outbound
// requests. Each provider gets its own bucket; all workers calling out to
// a provider funnel through that bucket.
package ratelimit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Setting describes one bucket: sustained rate in tokens/second and burst
// capacity.
type Setting struct {
	Rate  float64
	Burst int
}

// Registry maps provider keys to token buckets. Buckets are created on
// first use. Safe for concurrent use.
type Registry struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	settings map[string]Setting
	fallback Setting

	warnThreshold time.Duration
	onWait        func(d time.Duration)
}

// NewRegistry creates a registry with a default setting for keys that have
// no explicit configuration. warnThreshold controls when a delayed caller
// is logged as throttled; zero disables the warning.
func NewRegistry(fallback Setting, warnThreshold time.Duration) *Registry {
	return &Registry{
		limiters:      make(map[string]*rate.Limiter),
		settings:      make(map[string]Setting),
		fallback:      fallback,
		warnThreshold: warnThreshold,
	}
}

// Configure sets the bucket parameters for a key. Must be called before
// the first Acquire for the key to take effect.
func (r *Registry) Configure(key string, s Setting) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.settings[key] = s
}

// SetWaitObserver installs a callback invoked with the measured wait time
// of every delayed acquisition, used to feed metrics.
func (r *Registry) SetWaitObserver(fn func(d time.Duration)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onWait = fn
}

func (r *Registry) limiter(key string) (*rate.Limiter, func(time.Duration)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	lim, ok := r.limiters[key]
	if !ok {
		s, ok := r.settings[key]
		if !ok {
			s = r.fallback
		}
		lim = rate.NewLimiter(rate.Limit(s.Rate), s.Burst)
		r.limiters[key] = lim
	}
	return lim, r.onWait
}

// Acquire blocks until a token is available for key or ctx is done.
// It never fails for rate reasons; the only error is ctx cancellation.
func (r *Registry) Acquire(ctx context.Context, key string) error {
	lim, onWait := r.limiter(key)

	start := time.Now()
	if err := lim.Wait(ctx); err != nil {
		return err
	}
	waited := time.Since(start)

	if onWait != nil && waited > 0 {
		onWait(waited)
	}
	if r.warnThreshold > 0 && waited >= r.warnThreshold {
		slog.Warn("rate limiter delayed caller, provider is being throttled",
			"provider", key,
			"waited_ms", waited.Milliseconds(),
		)
	}
	return nil
}
