// Package ratelimit admits or denies requests per client key using fixed windows.
//
// A window opens on the first request from a key and expires a fixed timeout after
// the most recent admitted request. Denied requests do not extend the window.
package ratelimit

import (
	"sync"
	"time"

	"github.com/Lyall-A/Checkboxes/internal/domain"
	"github.com/Lyall-A/Checkboxes/internal/metrics"
	"github.com/jonboulle/clockwork"
)

type window struct {
	count     int
	expiresAt time.Time
	timer     clockwork.Timer
}

// Limiter tracks one window per key. Safe for concurrent use.
type Limiter struct {
	maxRequests int
	timeout     time.Duration
	clock       clockwork.Clock
	metrics     *metrics.RateLimitMetrics

	mu      sync.Mutex
	windows map[string]*window
}

// New creates a Limiter admitting maxRequests per key within timeout of the last admission.
// m may be nil.
func New(maxRequests int, timeout time.Duration, clock clockwork.Clock, m *metrics.RateLimitMetrics) *Limiter {
	return &Limiter{
		maxRequests: maxRequests,
		timeout:     timeout,
		clock:       clock,
		metrics:     m,
		windows:     make(map[string]*window),
	}
}

// Admit records a request for key and reports whether it is allowed.
func (l *Limiter) Admit(key string) domain.Admission {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	w, ok := l.windows[key]
	if !ok {
		w = &window{}
		l.windows[key] = w
		l.observeWindows()
	}

	if w.count >= l.maxRequests {
		l.observe("denied")
		return domain.Admission{
			Allowed:    false,
			Count:      w.count,
			RetryAfter: w.expiresAt.Sub(now),
		}
	}

	w.count++
	w.expiresAt = now.Add(l.timeout)
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = l.clock.AfterFunc(l.timeout, func() { l.expire(key, w) })

	l.observe("allowed")
	return domain.Admission{Allowed: true, Count: w.count}
}

// Len returns the number of open windows.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}

// Stop cancels all pending expiry timers and forgets every window.
func (l *Limiter) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, w := range l.windows {
		if w.timer != nil {
			w.timer.Stop()
		}
		delete(l.windows, key)
	}
	l.observeWindows()
}

// expire removes the window for key only if it is still the same window and
// its deadline has passed; a timer that lost a race with a renewal is a no-op.
func (l *Limiter) expire(key string, w *window) {
	l.mu.Lock()
	defer l.mu.Unlock()

	current, ok := l.windows[key]
	if !ok || current != w {
		return
	}
	if l.clock.Now().Before(w.expiresAt) {
		return
	}
	delete(l.windows, key)
	l.observeWindows()
}

func (l *Limiter) observe(result string) {
	if l.metrics == nil {
		return
	}
	l.metrics.Decisions.WithLabelValues(result).Inc()
}

func (l *Limiter) observeWindows() {
	if l.metrics == nil {
		return
	}
	l.metrics.ActiveWindows.Set(float64(len(l.windows)))
}
