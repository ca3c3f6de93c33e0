// ABOUTME: Playback sink abstraction consumed by the audio output task
// ABOUTME: Defines the period exchange contract, gain helpers and the null backend
package sink

import (
	"fmt"
	"sync/atomic"
	"time"
)

// Config describes the fixed playback format of a sink.
type Config struct {
	SampleRateHz int
	Channels     int

	// Bits is the sink word width: 16, 24 or 32. Incoming words are
	// already reduced to this width.
	Bits int

	// PeriodWords is the half-buffer size in sample words.
	PeriodWords int
}

func (c Config) Validate() error {
	if c.SampleRateHz <= 0 {
		return fmt.Errorf("sink: invalid sample rate %d", c.SampleRateHz)
	}
	if c.Channels <= 0 {
		return fmt.Errorf("sink: invalid channel count %d", c.Channels)
	}
	switch c.Bits {
	case 16, 24, 32:
	default:
		return fmt.Errorf("sink: unsupported word width %d bits", c.Bits)
	}
	if c.PeriodWords <= 0 || c.PeriodWords%c.Channels != 0 {
		return fmt.Errorf("sink: invalid period of %d words for %d channels", c.PeriodWords, c.Channels)
	}
	return nil
}

// Period returns the wall-clock duration of one half-buffer.
func (c Config) Period() time.Duration {
	frames := c.PeriodWords / c.Channels
	return time.Duration(frames) * time.Second / time.Duration(c.SampleRateHz)
}

// Sink is one playback path. The caller alternates ReadFrame and
// WriteFrame with period-sized buffers; together one pair advances one
// half-buffer period. Capture-less backends zero-fill ReadFrame and may
// return from it immediately, leaving the pacing to WriteFrame's
// backpressure.
type Sink interface {
	Start() error

	// ReadFrame completes the running period and fills buf with
	// captured input.
	ReadFrame(buf []int32) error

	// WriteFrame queues one period of samples. The sink must not
	// retain or modify buf.
	WriteFrame(buf []int32) error

	// SetVolume sets the playback volume as a 0-100 percentage.
	SetVolume(volume int)

	SetMuted(muted bool)

	Close() error
}

// gain snapshots volume and mute into a multiplier. Both fields are
// set from the control path while the audio goroutine reads them.
type gain struct {
	volume atomic.Int32
	muted  atomic.Bool
}

func (g *gain) init() { g.volume.Store(100) }

func (g *gain) setVolume(volume int) {
	if volume < 0 {
		volume = 0
	}
	if volume > 100 {
		volume = 100
	}
	g.volume.Store(int32(volume))
}

func (g *gain) setMuted(muted bool) { g.muted.Store(muted) }

func (g *gain) multiplier() float64 {
	if g.muted.Load() {
		return 0
	}
	return float64(g.volume.Load()) / 100
}

// scaleWord applies a gain multiplier with clipping at the given word
// width.
func scaleWord(w int32, mult float64, bits int) int32 {
	if mult == 1 {
		return w
	}
	scaled := int64(float64(w) * mult)
	max := int64(1)<<(bits-1) - 1
	min := -(int64(1) << (bits - 1))
	if scaled > max {
		scaled = max
	} else if scaled < min {
		scaled = min
	}
	return int32(scaled)
}

// Null discards every period at the configured rate. It paces the
// exchange with a wall-clock deadline so the output task runs at the
// same cadence it would against real hardware.
type Null struct {
	cfg    Config
	period time.Duration
	next   time.Time
	gain   gain

	frames atomic.Uint64
}

// NewNull returns a silent sink for tests and headless runs.
func NewNull(cfg Config) (*Null, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	n := &Null{cfg: cfg, period: cfg.Period()}
	n.gain.init()
	return n, nil
}

func (n *Null) Start() error {
	n.next = time.Now().Add(n.period)
	return nil
}

// ReadFrame sleeps out the remainder of the period and zero-fills buf.
// A late caller resynchronizes instead of accumulating debt.
func (n *Null) ReadFrame(buf []int32) error {
	for i := range buf {
		buf[i] = 0
	}
	now := time.Now()
	if d := n.next.Sub(now); d > 0 {
		time.Sleep(d)
		n.next = n.next.Add(n.period)
	} else if -d > n.period {
		n.next = now.Add(n.period)
	} else {
		n.next = n.next.Add(n.period)
	}
	return nil
}

func (n *Null) WriteFrame(buf []int32) error {
	n.frames.Add(1)
	return nil
}

func (n *Null) SetVolume(volume int) { n.gain.setVolume(volume) }
func (n *Null) SetMuted(muted bool)  { n.gain.setMuted(muted) }
func (n *Null) Close() error         { return nil }

// Periods reports how many periods have been written.
func (n *Null) Periods() uint64 { return n.frames.Load() }
