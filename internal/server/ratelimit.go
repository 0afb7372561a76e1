package server

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// RateLimitConfig tunes the global throughput cap and the per-caller
// mutation throttle. Zero values disable the corresponding limiter.
type RateLimitConfig struct {
	GlobalRPS      float64
	GlobalBurst    int
	MutationLimit  int
	MutationWindow time.Duration
	RedisAddr      string
	RedisUsername  string
	RedisPassword  string
	RedisTimeout   time.Duration
}

// counterStore shares fixed-window mutation counters between replicas.
type counterStore interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, time.Duration, error)
	Close() error
}

type rateLimiter struct {
	global         *tokenBucket
	mutationLimit  int
	mutationWindow time.Duration
	mu             sync.Mutex
	buckets        map[string]*callerLimiter
	store          counterStore
}

type callerLimiter struct {
	bucket   *tokenBucket
	lastSeen time.Time
}

func newRateLimiter(cfg RateLimitConfig) *rateLimiter {
	rl := &rateLimiter{
		mutationLimit:  cfg.MutationLimit,
		mutationWindow: cfg.MutationWindow,
		buckets:        make(map[string]*callerLimiter),
	}
	if cfg.GlobalRPS > 0 {
		burst := cfg.GlobalBurst
		if burst <= 0 {
			burst = int(cfg.GlobalRPS)
			if burst < 1 {
				burst = 1
			}
		}
		rl.global = newTokenBucket(cfg.GlobalRPS, burst)
	}
	if rl.mutationWindow <= 0 {
		rl.mutationWindow = time.Minute
	}
	if cfg.RedisAddr != "" && rl.mutationLimit > 0 {
		rl.store = newRedisCounterStore(cfg)
	}
	return rl
}

func (r *rateLimiter) Close() error {
	if r == nil || r.store == nil {
		return nil
	}
	return r.store.Close()
}

func (r *rateLimiter) AllowRequest() bool {
	if r == nil || r.global == nil {
		return true
	}
	return r.global.Allow()
}

// AllowMutation charges one write against the caller's window. The second
// return value reports how long the caller should wait before retrying.
func (r *rateLimiter) AllowMutation(ctx context.Context, key string) (bool, time.Duration, error) {
	if r == nil || r.mutationLimit <= 0 {
		return true, 0, nil
	}
	if key == "" {
		key = "unknown"
	}
	if r.store != nil {
		return r.store.Allow(ctx, fmt.Sprintf("cliptide:mutations:%s", key), r.mutationLimit, r.mutationWindow)
	}

	r.mu.Lock()
	caller, exists := r.buckets[key]
	if !exists {
		rate := float64(r.mutationLimit) / r.mutationWindow.Seconds()
		if rate <= 0 {
			rate = 1 / r.mutationWindow.Seconds()
		}
		caller = &callerLimiter{bucket: newTokenBucket(rate, r.mutationLimit)}
		r.buckets[key] = caller
	}
	caller.lastSeen = time.Now()
	r.cleanupLocked()
	r.mu.Unlock()

	if caller.bucket.Allow() {
		return true, 0, nil
	}
	return false, time.Second, nil
}

func (r *rateLimiter) cleanupLocked() {
	if len(r.buckets) == 0 {
		return
	}
	cutoff := time.Now().Add(-2 * r.mutationWindow)
	for key, caller := range r.buckets {
		if caller.lastSeen.Before(cutoff) {
			delete(r.buckets, key)
		}
	}
}

type tokenBucket struct {
	mu        sync.Mutex
	rate      float64
	capacity  float64
	tokens    float64
	lastCheck time.Time
}

func newTokenBucket(rate float64, burst int) *tokenBucket {
	if rate <= 0 {
		rate = 1
	}
	if burst <= 0 {
		burst = 1
	}
	return &tokenBucket{
		rate:      rate,
		capacity:  float64(burst),
		tokens:    float64(burst),
		lastCheck: time.Now(),
	}
}

func (tb *tokenBucket) Allow() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	now := time.Now()
	elapsed := now.Sub(tb.lastCheck).Seconds()
	tb.lastCheck = now
	tb.tokens += elapsed * tb.rate
	if tb.tokens > tb.capacity {
		tb.tokens = tb.capacity
	}
	if tb.tokens < 1 {
		return false
	}
	tb.tokens -= 1
	return true
}
