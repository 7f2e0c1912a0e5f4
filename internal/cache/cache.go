// Package cache is a fail-safe Redis wrapper. Every operation degrades
// to a cache miss when Redis is unreachable; callers never see an
// error from here.
package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const DefaultTTL = 5 * time.Minute

// Recorder counts cache outcomes. The metrics package satisfies it.
type Recorder interface {
	CacheHit()
	CacheMiss()
}

type Client struct {
	client   *redis.Client
	ttl      time.Duration
	logger   zerolog.Logger
	recorder Recorder
}

// New connects to Redis at addr. A failed ping is logged, not fatal;
// the client keeps retrying transparently on later calls.
func New(ctx context.Context, addr, password string, db int, ttl time.Duration, logger zerolog.Logger) *Client {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c := &Client{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       db,
		}),
		ttl:    ttl,
		logger: logger.With().Str("component", "cache").Logger(),
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := c.client.Ping(pingCtx).Err(); err != nil {
		c.logger.Warn().Err(err).Str("addr", addr).Msg("redis unreachable, caching degraded")
	}
	return c
}

// SetRecorder attaches hit and miss counters.
func (c *Client) SetRecorder(rec Recorder) {
	if c != nil {
		c.recorder = rec
	}
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

func (c *Client) Get(ctx context.Context, key string) ([]byte, bool) {
	if c == nil || c.client == nil {
		return nil, false
	}
	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Debug().Err(err).Str("key", key).Msg("cache get failed")
		}
		c.miss()
		return nil, false
	}
	c.hit()
	return raw, true
}

func (c *Client) Set(ctx context.Context, key string, value []byte) {
	if c == nil || c.client == nil {
		return
	}
	if err := c.client.Set(ctx, key, value, c.ttl).Err(); err != nil {
		c.logger.Debug().Err(err).Str("key", key).Msg("cache set failed")
	}
}

func (c *Client) Delete(ctx context.Context, keys ...string) {
	if c == nil || c.client == nil || len(keys) == 0 {
		return
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		c.logger.Debug().Err(err).Strs("keys", keys).Msg("cache delete failed")
	}
}

// DeletePrefix removes every key under prefix. It walks the key space
// with SCAN, never KEYS.
func (c *Client) DeletePrefix(ctx context.Context, prefix string) {
	if c == nil || c.client == nil {
		return
	}
	iter := c.client.Scan(ctx, 0, prefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		c.logger.Debug().Err(err).Str("prefix", prefix).Msg("cache scan failed")
		return
	}
	if len(keys) > 0 {
		c.Delete(ctx, keys...)
	}
}

func (c *Client) hit() {
	if c.recorder != nil {
		c.recorder.CacheHit()
	}
}

func (c *Client) miss() {
	if c.recorder != nil {
		c.recorder.CacheMiss()
	}
}
