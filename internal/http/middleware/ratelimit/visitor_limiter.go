package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Config stores VisitorLimiter settings.
type Config struct {
	Rate       float64       // requests per second
	Burst      int           // max requests at once
	TTL        time.Duration // delete idle visitors (0 disables)
	MaxBuckets int           // maximum number of tracked visitors
}

// VisitorLimiter keeps one rate.Limiter per key.
type VisitorLimiter struct {
	cfg         Config
	clock       Clock
	mu          sync.Mutex
	visitors    map[string]*visitor
	lastCleanup time.Time
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewVisitorLimiter creates limiter with explicit config and injected clock.
func NewVisitorLimiter(clock Clock, cfg Config) *VisitorLimiter {
	if clock == nil {
		clock = RealClock{}
	}
	if cfg.Rate <= 0 {
		cfg.Rate = 1
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	if cfg.MaxBuckets < 0 {
		cfg.MaxBuckets = 0
	}
	return &VisitorLimiter{
		cfg:      cfg,
		clock:    clock,
		visitors: make(map[string]*visitor),
	}
}

// NewPerWindow allows limit requests per window with a burst of limit.
func NewPerWindow(clock Clock, limit int, window time.Duration, ttl time.Duration, maxBuckets int) *VisitorLimiter {
	if window <= 0 {
		window = time.Second
	}
	if limit <= 0 {
		limit = 1
	}
	return NewVisitorLimiter(clock, Config{
		Rate:       float64(limit) / window.Seconds(),
		Burst:      limit,
		TTL:        ttl,
		MaxBuckets: maxBuckets,
	})
}

// Allow returns true if key is allowed to proceed.
func (l *VisitorLimiter) Allow(key string) bool {
	now := l.clock.Now()

	l.mu.Lock()
	l.maybeCleanup(now)
	v := l.visitors[key]
	if v == nil {
		if l.cfg.MaxBuckets > 0 && len(l.visitors) >= l.cfg.MaxBuckets {
			l.mu.Unlock()
			return false
		}
		v = &visitor{limiter: rate.NewLimiter(rate.Limit(l.cfg.Rate), l.cfg.Burst)}
		l.visitors[key] = v
	}
	v.lastSeen = now
	l.mu.Unlock()

	return v.limiter.AllowN(now, 1)
}

// caller holds l.mu
func (l *VisitorLimiter) maybeCleanup(now time.Time) {
	if l.cfg.TTL <= 0 {
		return
	}

	interval := time.Minute
	if half := l.cfg.TTL / 2; half > interval {
		interval = half
	}
	if !l.lastCleanup.IsZero() && now.Sub(l.lastCleanup) < interval {
		return
	}
	l.lastCleanup = now

	for k, v := range l.visitors {
		if now.Sub(v.lastSeen) > l.cfg.TTL {
			delete(l.visitors, k)
		}
	}
}
