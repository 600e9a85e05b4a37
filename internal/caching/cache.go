package caching

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/cache/v9"
	"github.com/redis/go-redis/v9"
)

// ErrCacheMiss is returned by Get when the key is not cached
var ErrCacheMiss = cache.ErrCacheMiss

type Cache interface {
	Get(ctx context.Context, key string, target any) error
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// UseCache returns the cached value for key, or loads it with callback and caches it.
// Read errors other than a miss fall through to the callback so a Redis outage
// degrades to the database instead of failing the caller.
func UseCache[T any](ctx context.Context, c Cache, key string, ttl time.Duration, callback func() (T, error)) (T, error) {
	var v T
	if c == nil {
		return callback()
	}

	err := c.Get(ctx, key, &v)
	if err == nil {
		return v, nil
	}

	v, err = callback()
	if err != nil {
		return v, err
	}

	// fire and forget
	//nolint:errcheck
	c.Set(ctx, key, v, ttl)
	return v, nil
}

// IsMiss reports whether err means the key was not cached
func IsMiss(err error) bool {
	return errors.Is(err, cache.ErrCacheMiss)
}

type CacheRedis struct {
	instance *cache.Cache
}

func (c *CacheRedis) Get(ctx context.Context, key string, target any) error {
	return c.instance.Get(ctx, key, target)
}

func (c *CacheRedis) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	return c.instance.Set(&cache.Item{
		Ctx:   ctx,
		Key:   key,
		Value: value,
		TTL:   ttl,
	})
}

func (c *CacheRedis) Delete(ctx context.Context, key string) error {
	return c.instance.Delete(ctx, key)
}

// NewCacheRedis builds a two-tier cache. client may be nil, in which case only
// the in-process TinyLFU tier is used.
func NewCacheRedis(client redis.UniversalClient, localSize int, localTTL time.Duration) *CacheRedis {
	opts := &cache.Options{}
	if client != nil {
		opts.Redis = client
	}
	if localSize > 0 {
		opts.LocalCache = cache.NewTinyLFU(localSize, localTTL)
	}
	return &CacheRedis{cache.New(opts)}
}
