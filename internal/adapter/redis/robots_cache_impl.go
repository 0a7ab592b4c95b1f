// Package redis provides the Redis-backed robots cache so robots policies
// carry a TTL across discovery runs instead of going stale.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const robotsKeyPrefix = "discovery:robots:"

// RobotsCacheImpl implements repository.RobotsCache on Redis.
type RobotsCacheImpl struct {
	client *redis.Client
}

func NewRobotsCache(client *redis.Client) *RobotsCacheImpl {
	return &RobotsCacheImpl{client: client}
}

func robotsKey(host string) string {
	return fmt.Sprintf("%s%s", robotsKeyPrefix, host)
}

// Get returns the cached robots.txt body for a host.
func (r *RobotsCacheImpl) Get(ctx context.Context, host string) ([]byte, bool, error) {
	body, err := r.client.Get(ctx, robotsKey(host)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return body, true, nil
}

// Set stores the robots.txt body for a host with a TTL.
func (r *RobotsCacheImpl) Set(ctx context.Context, host string, body []byte, ttl time.Duration) error {
	return r.client.Set(ctx, robotsKey(host), body, ttl).Err()
}
