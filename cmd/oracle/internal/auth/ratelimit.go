package auth

import (
	"sync"
	"time"
)

// Limiter enforces a fixed-size rolling window of accepted writes per
// principal. State lives only in memory; a restart resets every quota.
type Limiter struct {
	mu      sync.Mutex
	windows map[string]*window
	max     int
	span    time.Duration
	now     func() time.Time
}

type window struct {
	count int
	start time.Time
}

// NewLimiter allows max writes per minute for each subject.
func NewLimiter(max int) *Limiter {
	return &Limiter{
		windows: make(map[string]*window),
		max:     max,
		span:    time.Minute,
		now:     time.Now,
	}
}

// Allow reports whether the subject may perform another write in the
// current window, incrementing the counter when it may.
func (l *Limiter) Allow(subject string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.windows[subject]
	if !ok || now.Sub(w.start) >= l.span {
		w = &window{start: now}
		l.windows[subject] = w
	}
	if w.count >= l.max {
		return false
	}
	w.count++
	return true
}
