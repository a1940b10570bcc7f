// Package ratelimit implements an in-memory sliding window limiter keyed by
// client.
package ratelimit

import (
	"sync"
	"time"
)

type Limiter struct {
	limit  int
	window time.Duration

	mu      sync.Mutex
	clients map[string][]time.Time
	swept   time.Time
}

// NewLimiter allows limit requests per client in any window. A limit of zero
// or less disables limiting.
func NewLimiter(limit int, window time.Duration) *Limiter {
	return &Limiter{
		limit:   limit,
		window:  window,
		clients: map[string][]time.Time{},
	}
}

type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RetryAfter is the whole number of seconds until the oldest request in the
// window expires, at least one.
func (r Result) RetryAfter(now time.Time) int {
	secs := int(r.ResetAt.Sub(now).Seconds())
	if secs < 1 {
		return 1
	}
	return secs
}

func (l *Limiter) Allow(client string, now time.Time) Result {
	if l.limit <= 0 {
		return Result{Allowed: true}
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.swept) > l.window {
		l.sweepLocked(now)
	}
	history := trim(l.clients[client], now.Add(-l.window))
	res := Result{Limit: l.limit}
	if len(history) >= l.limit {
		l.clients[client] = history
		res.ResetAt = history[0].Add(l.window)
		return res
	}

	history = append(history, now)
	l.clients[client] = history
	res.Allowed = true
	res.Remaining = l.limit - len(history)
	res.ResetAt = history[0].Add(l.window)
	return res
}

// Sweep forgets clients with no request inside the window. Allow sweeps on
// its own once per window.
func (l *Limiter) Sweep(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sweepLocked(now)
}

func (l *Limiter) sweepLocked(now time.Time) {
	l.swept = now
	cutoff := now.Add(-l.window)
	for client, history := range l.clients {
		if history = trim(history, cutoff); len(history) == 0 {
			delete(l.clients, client)
		} else {
			l.clients[client] = history
		}
	}
}

// Clients returns the number of clients being tracked.
func (l *Limiter) Clients() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}

func trim(history []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(history) && history[i].Before(cutoff) {
		i++
	}
	return history[i:]
}
