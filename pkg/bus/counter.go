// ABOUTME: Free-running tick counter backing the feedback measurement
// ABOUTME: Monotonic-clock implementation plus a function adapter for tests
package bus

import "time"

// Counter is a free-running tick counter that wraps at 32 bits, read
// from the frame-sync handler to measure elapsed time between refresh
// boundaries.
type Counter interface {
	Ticks() uint32
}

// ClockCounter derives ticks from the monotonic clock at a fixed rate,
// standing in for the hardware timer that counts between frame pulses.
type ClockCounter struct {
	rateHz int64
	start  time.Time
}

// NewClockCounter returns a counter running at rateHz since now.
func NewClockCounter(rateHz int) *ClockCounter {
	return &ClockCounter{rateHz: int64(rateHz), start: time.Now()}
}

// Ticks returns the current counter value. The value wraps naturally at
// 2^32; consumers subtract readings with wrapping arithmetic.
func (c *ClockCounter) Ticks() uint32 {
	ns := time.Since(c.start).Nanoseconds()
	// Split to keep sec*rate + rem*rate within uint64 for any uptime.
	sec := uint64(ns / 1e9)
	rem := uint64(ns % 1e9)
	return uint32(sec*uint64(c.rateHz) + rem*uint64(c.rateHz)/1e9)
}

// CounterFunc adapts a function to the Counter interface.
type CounterFunc func() uint32

func (f CounterFunc) Ticks() uint32 { return f() }
