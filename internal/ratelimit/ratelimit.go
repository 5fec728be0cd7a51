package ratelimit

import (
	"sync"
	"time"
)

// Limiter is a simple fixed-window rate limiter for a single entity.
type Limiter struct {
	mu          sync.Mutex
	count       int
	windowStart time.Time
	rate        int
	window      time.Duration
}

// New creates a Limiter that allows rate requests per window.
func New(rate int, window time.Duration) *Limiter {
	return &Limiter{
		rate:        rate,
		window:      window,
		windowStart: time.Now(),
	}
}

// Allow returns true if the request is within the rate limit.
func (l *Limiter) Allow() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := time.Now()
	if now.Sub(l.windowStart) > l.window {
		l.count = 0
		l.windowStart = now
	}
	l.count++
	return l.count <= l.rate
}

// Table tracks one Limiter per key (e.g. per agent address).
type Table struct {
	mu       sync.Mutex
	limiters map[string]*Limiter
	rate     int
	window   time.Duration
}

// NewTable creates a Table whose per-key limiters allow rate requests per
// window.
func NewTable(rate int, window time.Duration) *Table {
	return &Table{
		limiters: make(map[string]*Limiter),
		rate:     rate,
		window:   window,
	}
}

// Allow returns true if the request for key is within that key's rate limit.
func (t *Table) Allow(key string) bool {
	t.mu.Lock()
	l, ok := t.limiters[key]
	if !ok {
		l = New(t.rate, t.window)
		t.limiters[key] = l
	}
	t.mu.Unlock()
	return l.Allow()
}
