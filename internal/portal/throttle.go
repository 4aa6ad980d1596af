package portal

import (
	"sync"
	"time"
)

// Throttle runs fn at most once per interval. The first call in a quiet period
// runs immediately; calls arriving inside the interval collapse into one
// trailing run with the latest value.
type Throttle[T any] struct {
	mu       sync.Mutex
	interval time.Duration
	fn       func(T)

	last       time.Time
	timer      *time.Timer
	pending    T
	hasPending bool
}

func NewThrottle[T any](interval time.Duration, fn func(T)) *Throttle[T] {
	return &Throttle[T]{
		interval: interval,
		fn:       fn,
	}
}

func (t *Throttle[T]) Call(v T) {
	t.mu.Lock()

	elapsed := time.Since(t.last)
	if t.timer == nil && elapsed >= t.interval {
		t.last = time.Now()
		t.mu.Unlock()
		t.fn(v)
		return
	}

	t.pending = v
	t.hasPending = true
	if t.timer == nil {
		t.timer = time.AfterFunc(t.interval-elapsed, t.flush)
	}
	t.mu.Unlock()
}

func (t *Throttle[T]) flush() {
	t.mu.Lock()
	t.timer = nil
	if !t.hasPending {
		t.mu.Unlock()
		return
	}

	v := t.pending
	var zero T
	t.pending = zero
	t.hasPending = false
	t.last = time.Now()
	t.mu.Unlock()

	t.fn(v)
}

// Stop drops any pending trailing run.
func (t *Throttle[T]) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	var zero T
	t.pending = zero
	t.hasPending = false
}
