// ABOUTME: Tests for the tick counter implementations
// ABOUTME: Checks monotonic progression and the function adapter
package bus

import (
	"testing"
	"time"
)

func TestClockCounterAdvances(t *testing.T) {
	c := NewClockCounter(42_000_000)

	first := c.Ticks()
	time.Sleep(5 * time.Millisecond)
	second := c.Ticks()

	delta := second - first
	// 5 ms at 42 MHz is 210000 ticks; allow generous scheduling slack.
	if delta < 100_000 {
		t.Errorf("counter advanced only %d ticks over 5ms", delta)
	}
	if delta > 42_000_000 {
		t.Errorf("counter advanced %d ticks over 5ms, rate is off", delta)
	}
}

func TestCounterFunc(t *testing.T) {
	var n uint32
	c := CounterFunc(func() uint32 {
		n += 875
		return n
	})

	if got := c.Ticks(); got != 875 {
		t.Errorf("first read = %d, want 875", got)
	}
	if got := c.Ticks(); got != 1750 {
		t.Errorf("second read = %d, want 1750", got)
	}
}
