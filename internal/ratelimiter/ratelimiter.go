// Package ratelimiter keeps a token bucket per client key.
package ratelimiter

import (
	"sync"
	"time"
)

// Config sets the bucket shape. Keys unseen for Idle are forgotten.
type Config struct {
	PerSecond float64
	Burst     int
	Idle      time.Duration
}

type bucket struct {
	tokens   float64
	lastSeen time.Time
}

// Limiter is safe for concurrent use. Stop ends its janitor goroutine.
type Limiter struct {
	cfg Config
	now func() time.Time

	mu      sync.Mutex
	buckets map[string]*bucket

	stopOnce sync.Once
	done     chan struct{}
}

func New(cfg Config) *Limiter {
	l := &Limiter{
		cfg:     cfg,
		now:     time.Now,
		buckets: make(map[string]*bucket),
		done:    make(chan struct{}),
	}
	go l.janitor()
	return l
}

// Allow takes one token from key's bucket. New keys start full.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{tokens: float64(l.cfg.Burst)}
		l.buckets[key] = b
	} else {
		b.tokens = min(float64(l.cfg.Burst), b.tokens+now.Sub(b.lastSeen).Seconds()*l.cfg.PerSecond)
	}
	b.lastSeen = now

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// Prune forgets keys idle for longer than cfg.Idle and returns how many.
func (l *Limiter) Prune() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-l.cfg.Idle)
	removed := 0
	for key, b := range l.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(l.buckets, key)
			removed++
		}
	}
	return removed
}

// Len is the number of tracked keys.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

func (l *Limiter) Stop() {
	l.stopOnce.Do(func() { close(l.done) })
}

func (l *Limiter) janitor() {
	interval := l.cfg.Idle
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-l.done:
			return
		case <-ticker.C:
			l.Prune()
		}
	}
}
