// Package ratelimit throttles how often a single client address may open
// relay sessions. State is in-process only.
package ratelimit

import (
	"math"
	"net"
	"sync"
	"time"
)

type Config struct {
	RPS   float64
	Burst int

	// Operational bounds for the in-memory map (single-process only).
	MaxEntries int
	EntryTTL   time.Duration
}

type Limiter struct {
	cfg Config

	mu sync.Mutex
	m  map[string]*clientLimiter
}

type clientLimiter struct {
	mu sync.Mutex

	tb tokenBucket

	lastSeen time.Time
}

type tokenBucket struct {
	rps      float64
	capacity float64

	tokens float64
	last   time.Time
}

func New(cfg Config) *Limiter {
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = 10_000
	}
	if cfg.EntryTTL <= 0 {
		cfg.EntryTTL = 30 * time.Minute
	}
	return &Limiter{
		cfg: cfg,
		m:   make(map[string]*clientLimiter),
	}
}

// ClientKey derives the limiter key from a request's remote address,
// stripping the ephemeral port so reconnects share one bucket.
func ClientKey(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil || host == "" {
		return remoteAddr
	}
	return host
}

type Decision struct {
	Allowed    bool
	RetryAfter int
}

func (l *Limiter) Allow(key string, now time.Time) Decision {
	if key == "" {
		key = "unknown"
	}

	cl := l.getOrCreate(key, now)

	// RPS/burst (token bucket).
	if l.cfg.RPS > 0 && l.cfg.Burst > 0 {
		ok, retryAfter := cl.allowToken(now, l.cfg.RPS, l.cfg.Burst)
		if !ok {
			return Decision{Allowed: false, RetryAfter: retryAfter}
		}
	}

	return Decision{Allowed: true}
}

func (l *Limiter) getOrCreate(key string, now time.Time) *clientLimiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.m) >= l.cfg.MaxEntries {
		l.gcLocked(now)
		// Still full after GC: evict one arbitrary entry to stay bounded.
		if len(l.m) >= l.cfg.MaxEntries {
			for k := range l.m {
				delete(l.m, k)
				break
			}
		}
	}

	if cl, ok := l.m[key]; ok {
		cl.lastSeen = now
		return cl
	}
	cl := &clientLimiter{lastSeen: now}
	l.m[key] = cl
	return cl
}

func (l *Limiter) gcLocked(now time.Time) {
	ttl := l.cfg.EntryTTL
	for k, v := range l.m {
		if now.Sub(v.lastSeen) > ttl {
			delete(l.m, k)
		}
	}
}

func (cl *clientLimiter) allowToken(now time.Time, rps float64, burst int) (bool, int) {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	if burst <= 0 || rps <= 0 {
		return true, 0
	}
	capacity := float64(burst)
	if cl.tb.capacity == 0 {
		cl.tb = tokenBucket{
			rps:      rps,
			capacity: capacity,
			tokens:   capacity,
			last:     now,
		}
	}

	// If config changes at runtime (rare), adapt.
	cl.tb.rps = rps
	cl.tb.capacity = capacity

	elapsed := now.Sub(cl.tb.last).Seconds()
	if elapsed > 0 {
		cl.tb.tokens = math.Min(cl.tb.capacity, cl.tb.tokens+(elapsed*cl.tb.rps))
		cl.tb.last = now
	}

	if cl.tb.tokens >= 1.0 {
		cl.tb.tokens -= 1.0
		return true, 0
	}

	needed := 1.0 - cl.tb.tokens
	seconds := needed / cl.tb.rps
	retryAfter := int(math.Ceil(seconds))
	if retryAfter < 1 {
		retryAfter = 1
	}
	return false, retryAfter
}
