package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"time"

	"basegraph.app/insight/common/llm"
	"github.com/redis/go-redis/v9"
)

// fallbackCache keeps the last good response per prompt so opted-in
// calls can degrade gracefully when the provider is down.
type fallbackCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func newFallbackCache(rdb *redis.Client, ttl time.Duration) *fallbackCache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &fallbackCache{rdb: rdb, ttl: ttl}
}

// fallbackKey hashes the canonical message encoding. Role and content
// are length-framed by NUL separators so shifted boundaries cannot
// collide.
func fallbackKey(messages []llm.Message) string {
	h := sha256.New()
	for _, m := range messages {
		h.Write([]byte(m.Role))
		h.Write([]byte{0})
		h.Write([]byte(m.Content))
		h.Write([]byte{0})
	}
	return "llmcache:" + hex.EncodeToString(h.Sum(nil))
}

func (c *fallbackCache) Get(ctx context.Context, messages []llm.Message) (string, bool) {
	val, err := c.rdb.Get(ctx, fallbackKey(messages)).Result()
	if err != nil {
		return "", false
	}
	return val, true
}

// Put stores a successful response best-effort. Cache write failures
// are logged and swallowed.
func (c *fallbackCache) Put(ctx context.Context, messages []llm.Message, content string) {
	if err := c.rdb.Set(ctx, fallbackKey(messages), content, c.ttl).Err(); err != nil {
		slog.DebugContext(ctx, "fallback cache write failed", "error", err)
	}
}
