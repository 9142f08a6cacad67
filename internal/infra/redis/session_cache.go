package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// SessionCache keeps token→username lookups in Redis so authentication does
// not take the document lock on every request. Writes are best-effort: the
// JSON document remains the source of truth and a miss falls through to it.
// Cached entries expire after ttl; document sessions do not.
type SessionCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewSessionCache(client *redis.Client, ttl time.Duration) *SessionCache {
	return &SessionCache{client: client, ttl: ttl}
}

func (c *SessionCache) Get(ctx context.Context, token string) (string, bool) {
	username, err := c.client.Get(ctx, c.key(token)).Result()
	if err != nil {
		return "", false
	}
	return username, true
}

func (c *SessionCache) Set(ctx context.Context, token, username string) {
	_ = c.client.Set(ctx, c.key(token), username, c.ttl).Err()
}

func (c *SessionCache) key(token string) string {
	return "session:" + token
}
