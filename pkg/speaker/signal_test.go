// ABOUTME: Tests for the latest-value-wins signal mailbox
// ABOUTME: Covers overwrite semantics, wake on write and cancellation
package speaker

import (
	"context"
	"testing"
	"time"
)

func TestSignalLatestWins(t *testing.T) {
	s := NewSignal[uint32]()

	s.Signal(1)
	s.Signal(2)
	s.Signal(3)

	v, err := s.Wait(context.Background())
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if v != 3 {
		t.Errorf("Wait = %d, want 3 (latest value)", v)
	}

	// The slot is empty again after the take.
	if _, ok := s.TryTake(); ok {
		t.Errorf("TryTake after Wait should find nothing")
	}
}

func TestSignalWakesWaiter(t *testing.T) {
	s := NewSignal[int]()

	got := make(chan int, 1)
	go func() {
		v, err := s.Wait(context.Background())
		if err != nil {
			t.Errorf("Wait: %v", err)
		}
		got <- v
	}()

	// Give the waiter time to park before signalling.
	time.Sleep(10 * time.Millisecond)
	s.Signal(99)

	select {
	case v := <-got:
		if v != 99 {
			t.Errorf("waiter got %d, want 99", v)
		}
	case <-time.After(time.Second):
		t.Fatalf("Signal did not wake the waiter")
	}
}

func TestSignalWaitCancel(t *testing.T) {
	s := NewSignal[int]()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		_, err := s.Wait(ctx)
		done <- err
	}()

	cancel()

	select {
	case err := <-done:
		if err == nil {
			t.Errorf("expected context error")
		}
	case <-time.After(time.Second):
		t.Fatalf("Wait did not observe cancellation")
	}
}

func TestSignalTryTake(t *testing.T) {
	s := NewSignal[string]()

	if _, ok := s.TryTake(); ok {
		t.Errorf("TryTake on empty signal should report false")
	}

	s.Signal("a")
	v, ok := s.TryTake()
	if !ok || v != "a" {
		t.Errorf("TryTake = %q, %v, want \"a\", true", v, ok)
	}
	if _, ok := s.TryTake(); ok {
		t.Errorf("second TryTake should find nothing")
	}
}

func TestSignalManyWritesOneReader(t *testing.T) {
	s := NewSignal[uint32]()

	// The reader may miss intermediate values but must observe them in
	// order and always end on the final one: the last write survives in
	// the slot no matter how far behind the reader falls.
	const writes = 1000
	done := make(chan uint32, 1)
	go func() {
		var last uint32
		for last != writes {
			v, err := s.Wait(context.Background())
			if err != nil {
				return
			}
			if v < last {
				t.Errorf("observed %d after %d, values should be monotonic", v, last)
			}
			last = v
		}
		done <- last
	}()

	for i := uint32(1); i <= writes; i++ {
		s.Signal(i)
	}

	select {
	case last := <-done:
		if last != writes {
			t.Errorf("final observed value = %d, want %d", last, writes)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("reader never observed the final value")
	}
}
