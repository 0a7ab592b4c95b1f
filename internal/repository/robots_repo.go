package repository

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrRobotsDenied means the host's robots policy explicitly disallows
	// the URL. A skip reason, not an error condition.
	ErrRobotsDenied = errors.New("disallowed by robots.txt")

	// ErrRobotsUnreachable means the robots policy could not be fetched or
	// parsed and the gate fell back to deny. Flagged distinctly from an
	// explicit deny so operators can audit fail-closed decisions.
	ErrRobotsUnreachable = errors.New("robots.txt unreachable, denying conservatively")
)

// RobotsGate answers "may I fetch this URL". Page and resource checks are
// separate because fetching a page and fetching a leaf image may be
// independently disallowed. A nil return means allowed.
type RobotsGate interface {
	AllowedForPage(ctx context.Context, pageURL string) error
	AllowedForResource(ctx context.Context, resourceURL string) error
}

// RobotsCache stores raw robots.txt bodies per host so each host is fetched
// at most once per run. The Redis adapter adds a TTL so policies do not go
// stale across runs.
type RobotsCache interface {
	// Get returns the cached robots body for a host. ok is false on miss.
	Get(ctx context.Context, host string) (body []byte, ok bool, err error)
	// Set stores the robots body for a host with the given TTL.
	Set(ctx context.Context, host string, body []byte, ttl time.Duration) error
}
