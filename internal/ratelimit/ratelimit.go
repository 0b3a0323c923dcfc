// Package ratelimit implements token-bucket rate limiting. ServerListener
// uses IPLimiter to bound the connection-attempt rate per IP;
// CommandLimiter is not used by the listener, so per-session control
// commands are not rate limited (spec §4.6, §5's backpressure discussion). It is
// hand-rolled rather than built on golang.org/x/time/rate because the
// teacher codebase already hand-rolls this exact token-bucket shape and
// nothing elsewhere in the corpus reaches for x/time.
package ratelimit

import (
	"sync"
	"time"
)

// TokenBucket allows bursts up to its capacity, refilling at rate tokens
// per second. A rate of 0 or less disables limiting entirely (Allow
// always true), matching the teacher's "0 = unlimited" config convention.
type TokenBucket struct {
	mu         sync.Mutex
	tokens     float64
	capacity   float64
	rate       float64
	lastRefill time.Time
}

// NewTokenBucket creates a bucket with capacity and refill both set to
// rate (one burst's worth of headroom, refilled over one second).
func NewTokenBucket(rate int) *TokenBucket {
	if rate <= 0 {
		return &TokenBucket{tokens: 1, capacity: 1, rate: 0, lastRefill: time.Now()}
	}
	return &TokenBucket{
		tokens:     float64(rate),
		capacity:   float64(rate),
		rate:       float64(rate),
		lastRefill: time.Now(),
	}
}

// Allow reports whether one unit of work may proceed now, consuming a
// token if so.
func (b *TokenBucket) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.rate == 0 {
		return true
	}

	now := time.Now()
	elapsed := now.Sub(b.lastRefill).Seconds()
	b.tokens += elapsed * b.rate
	if b.tokens > b.capacity {
		b.tokens = b.capacity
	}
	b.lastRefill = now

	if b.tokens >= 1.0 {
		b.tokens -= 1.0
		return true
	}
	return false
}

func (b *TokenBucket) idleSince() time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastRefill
}

// IPLimiter tracks one TokenBucket per source IP, for admission control
// at accept time (spec §4.6's per-IP connection throttling).
type IPLimiter struct {
	mu       sync.RWMutex
	buckets  map[string]*TokenBucket
	rate     int
}

// NewIPLimiter creates a limiter allowing rate connection attempts per
// second per source IP.
func NewIPLimiter(rate int) *IPLimiter {
	return &IPLimiter{buckets: make(map[string]*TokenBucket), rate: rate}
}

// Allow reports whether a new connection attempt from ip is admitted.
func (l *IPLimiter) Allow(ip string) bool {
	if l.rate <= 0 {
		return true
	}

	l.mu.Lock()
	b, ok := l.buckets[ip]
	if !ok {
		b = NewTokenBucket(l.rate)
		l.buckets[ip] = b
	}
	l.mu.Unlock()

	return b.Allow()
}

// Sweep drops buckets idle longer than maxIdle, bounding memory growth
// across long-running servers (spec §5's resource-bound requirement).
func (l *IPLimiter) Sweep(maxIdle time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	for ip, b := range l.buckets {
		if now.Sub(b.idleSince()) > maxIdle {
			delete(l.buckets, ip)
		}
	}
}

// Tracked reports how many distinct IPs currently have a bucket.
func (l *IPLimiter) Tracked() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.buckets)
}

// CommandLimiter bounds the rate of control-channel commands a single
// ClientSession may issue, separate from connection-attempt throttling.
type CommandLimiter struct {
	bucket *TokenBucket
}

// NewCommandLimiter builds a per-session command limiter at rate commands
// per second.
func NewCommandLimiter(rate int) *CommandLimiter {
	return &CommandLimiter{bucket: NewTokenBucket(rate)}
}

// Allow reports whether the session may issue another command now.
func (c *CommandLimiter) Allow() bool {
	return c.bucket.Allow()
}
