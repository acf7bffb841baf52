package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "campusledger:query:"

// RedisCache is a Redis-backed query cache. Results are stored as JSON
// under a namespaced key with a TTL. Known keys are tracked in-process so
// InvalidateAll only touches entries this application wrote.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration

	mu   sync.Mutex
	keys map[string]bool
}

// NewRedisCache connects to redisURL ("redis://host:port" or plain
// "host:port") and verifies the connection with a short ping. A nil error
// means the cache is usable.
func NewRedisCache(ctx context.Context, redisURL string, ttl time.Duration) (*RedisCache, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		// Fallback to a plain address
		opt = &redis.Options{Addr: redisURL}
	}

	client := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, err
	}

	return &RedisCache{
		client: client,
		ttl:    ttl,
		keys:   make(map[string]bool),
	}, nil
}

func (c *RedisCache) Get(ctx context.Context, key string) (Result, bool) {
	data, err := c.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if err != nil {
		return Result{}, false
	}
	var res Result
	if err := json.Unmarshal(data, &res); err != nil {
		slog.Warn("Dropping undecodable cache entry", "key", key, "error", err)
		c.client.Del(ctx, redisKeyPrefix+key)
		return Result{}, false
	}
	return res, true
}

func (c *RedisCache) Set(ctx context.Context, key string, res Result) {
	data, err := json.Marshal(res)
	if err != nil {
		return
	}
	if err := c.client.SetEx(ctx, redisKeyPrefix+key, data, c.ttl).Err(); err != nil {
		slog.Warn("Cache write failed", "key", key, "error", err)
		return
	}

	c.mu.Lock()
	c.keys[key] = true
	c.mu.Unlock()
}

func (c *RedisCache) Invalidate(ctx context.Context, key string) {
	c.client.Del(ctx, redisKeyPrefix+key)

	c.mu.Lock()
	delete(c.keys, key)
	c.mu.Unlock()
}

func (c *RedisCache) InvalidateAll(ctx context.Context) {
	c.mu.Lock()
	keys := make([]string, 0, len(c.keys))
	for k := range c.keys {
		keys = append(keys, redisKeyPrefix+k)
	}
	c.keys = make(map[string]bool)
	c.mu.Unlock()

	if len(keys) > 0 {
		c.client.Del(ctx, keys...)
	}
}

// Close releases the underlying connection.
func (c *RedisCache) Close() error {
	return c.client.Close()
}
