// ABOUTME: Single-slot latest-value-wins mailbox
// ABOUTME: Lossy by design, carries the newest value across task boundaries
package speaker

import (
	"context"
	"sync"
)

// Signal is a one-element mailbox with wake-on-write. Signal overwrites
// any unread value; Wait suspends until a value is present. It is lossy
// by design: a reader that falls behind observes only the most recent
// value, which is the desired semantics for rate measurements.
type Signal[T any] struct {
	mu     sync.Mutex
	val    T
	set    bool
	notify chan struct{}
}

// NewSignal returns an empty signal.
func NewSignal[T any]() *Signal[T] {
	return &Signal[T]{notify: make(chan struct{}, 1)}
}

// Signal stores v, replacing any unread value, and wakes a waiter. It
// never blocks, so it is safe to call from a frame-pulse handler.
func (s *Signal[T]) Signal(v T) {
	s.mu.Lock()
	s.val = v
	s.set = true
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// Wait blocks until a value is available, then takes it.
func (s *Signal[T]) Wait(ctx context.Context) (T, error) {
	for {
		s.mu.Lock()
		if s.set {
			v := s.val
			s.set = false
			s.mu.Unlock()
			return v, nil
		}
		s.mu.Unlock()

		select {
		case <-s.notify:
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		}
	}
}

// TryTake returns the pending value without blocking.
func (s *Signal[T]) TryTake() (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.set {
		var zero T
		return zero, false
	}
	v := s.val
	s.set = false
	return v, true
}
