package security

import (
	"container/list"
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-redis/redis_rate/v10"
	"github.com/redis/go-redis/v9"
)

// ErrRateLimited is returned by a Limiter when the key has used up its window
var ErrRateLimited = errors.New("rate limit exceeded")

// Limiter decides whether another request for key fits in the current window
type Limiter interface {
	Allow(ctx context.Context, key string) error
}

// RateLimiter is an in-process fixed window limiter. It tracks at most
// capacity keys; when full, the least recently seen key is evicted.
type RateLimiter struct {
	visitors map[string]*list.Element
	order    *list.List
	mu       sync.Mutex
	rate     int           // requests per window
	window   time.Duration // time window
	capacity int
	now      func() time.Time
}

type visitor struct {
	key         string
	count       int
	windowStart time.Time
}

// NewRateLimiter creates a new rate limiter
// rate: number of requests allowed per window
// window: time window for rate limiting
// capacity: maximum number of tracked keys
func NewRateLimiter(rate int, window time.Duration, capacity int) *RateLimiter {
	if capacity < 1 {
		capacity = 1
	}
	return &RateLimiter{
		visitors: make(map[string]*list.Element),
		order:    list.New(),
		rate:     rate,
		window:   window,
		capacity: capacity,
		now:      time.Now,
	}
}

// Allow records a request for key and returns ErrRateLimited once the window is used up
func (rl *RateLimiter) Allow(ctx context.Context, key string) error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	elem, exists := rl.visitors[key]
	if !exists {
		if rl.order.Len() >= rl.capacity {
			rl.evictOldest()
		}
		elem = rl.order.PushFront(&visitor{key: key, windowStart: now})
		rl.visitors[key] = elem
	} else {
		rl.order.MoveToFront(elem)
	}

	v := elem.Value.(*visitor)
	if now.Sub(v.windowStart) >= rl.window {
		v.count = 0
		v.windowStart = now
	}

	if v.count >= rl.rate {
		return ErrRateLimited
	}
	v.count++
	return nil
}

// Len returns the number of tracked keys
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return rl.order.Len()
}

func (rl *RateLimiter) evictOldest() {
	oldest := rl.order.Back()
	if oldest == nil {
		return
	}
	rl.order.Remove(oldest)
	delete(rl.visitors, oldest.Value.(*visitor).key)
}

// Cleanup drops keys whose window ended more than one window ago
func (rl *RateLimiter) Cleanup() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	removed := 0
	for e := rl.order.Back(); e != nil; {
		prev := e.Prev()
		v := e.Value.(*visitor)
		if now.Sub(v.windowStart) > rl.window*2 {
			rl.order.Remove(e)
			delete(rl.visitors, v.key)
			removed++
		}
		e = prev
	}
	return removed
}

// Run calls Cleanup every interval until ctx is done
func (rl *RateLimiter) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.Cleanup()
		}
	}
}

// RedisLimiter shares the limit across instances through Redis
type RedisLimiter struct {
	limiter *redis_rate.Limiter
	limit   redis_rate.Limit
	prefix  string
}

// NewRedisLimiter allows perMinute requests per key per minute
func NewRedisLimiter(client redis.UniversalClient, prefix string, perMinute int) *RedisLimiter {
	return &RedisLimiter{
		limiter: redis_rate.NewLimiter(client),
		limit:   redis_rate.PerMinute(perMinute),
		prefix:  prefix,
	}
}

func (rl *RedisLimiter) Allow(ctx context.Context, key string) error {
	res, err := rl.limiter.Allow(ctx, rl.prefix+key, rl.limit)
	if err != nil {
		return err
	}
	if res.Allowed == 0 {
		return ErrRateLimited
	}
	return nil
}

// GetClientIP extracts the client IP from the request
func GetClientIP(r *http.Request) string {
	// Check X-Forwarded-For header (when behind proxy)
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		return strings.TrimSpace(first)
	}

	// Check X-Real-IP header
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}

	// Fall back to RemoteAddr
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
