package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Result describes one counted hit.
type Result struct {
	Allowed bool
	Count   int64
	ResetAt time.Time
}

// Limiter counts hits per key in fixed windows and rejects once the count
// for the current window exceeds the limit.
type Limiter interface {
	Allow(ctx context.Context, key string) (Result, error)
}

type window struct {
	start time.Time
	count int64
}

// MemoryLimiter keeps one counter per key. Counters from past windows are
// reset on the next hit and swept in the background, so memory is bounded by
// the number of keys seen within one window.
type MemoryLimiter struct {
	limit  int64
	period time.Duration
	now    func() time.Time

	mu      sync.Mutex
	windows map[string]*window

	stop     chan struct{}
	stopOnce sync.Once
}

type Option func(*MemoryLimiter)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(l *MemoryLimiter) { l.now = now }
}

// NewMemoryLimiter starts a sweep every sweepInterval (no sweep if <= 0).
// Call Stop on shutdown.
func NewMemoryLimiter(limit int64, period, sweepInterval time.Duration, opts ...Option) *MemoryLimiter {
	if period <= 0 {
		period = time.Minute
	}
	l := &MemoryLimiter{
		limit:   limit,
		period:  period,
		now:     time.Now,
		windows: make(map[string]*window),
		stop:    make(chan struct{}),
	}
	for _, o := range opts {
		o(l)
	}
	if sweepInterval > 0 {
		go l.sweepLoop(sweepInterval)
	}
	return l
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (Result, error) {
	start := l.now().Truncate(l.period)

	l.mu.Lock()
	w, ok := l.windows[key]
	if !ok || !w.start.Equal(start) {
		w = &window{start: start}
		l.windows[key] = w
	}
	w.count++
	count := w.count
	l.mu.Unlock()

	return Result{
		Allowed: count <= l.limit,
		Count:   count,
		ResetAt: start.Add(l.period),
	}, nil
}

// Len reports how many keys are currently tracked.
func (l *MemoryLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}

// Sweep drops counters whose window has ended.
func (l *MemoryLimiter) Sweep() {
	current := l.now().Truncate(l.period)

	l.mu.Lock()
	defer l.mu.Unlock()
	for k, w := range l.windows {
		if w.start.Before(current) {
			delete(l.windows, k)
		}
	}
}

func (l *MemoryLimiter) Stop() {
	l.stopOnce.Do(func() { close(l.stop) })
}

func (l *MemoryLimiter) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			l.Sweep()
		}
	}
}
