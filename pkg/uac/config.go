// ABOUTME: Stream configuration and derived transfer sizes
// ABOUTME: Validates the fixed format and computes packet and block bounds
package uac

import "fmt"

// Defaults of the reference configuration: stereo 48 kHz with 32-bit
// samples and a 42 MHz feedback counter.
const (
	DefaultSampleRateHz = 48_000
	DefaultTickRateHz   = 42_000_000
)

// StreamConfig is the fixed format of one speaker stream. The format is
// negotiated once at descriptor level; the core never renegotiates it.
type StreamConfig struct {
	SampleRateHz int
	Channels     int
	Width        SampleWidth
	Refresh      FeedbackRefresh
	TickRateHz   int
}

// DefaultStreamConfig returns the stereo 48 kHz 32-bit configuration
// with an 8-frame feedback refresh.
func DefaultStreamConfig() StreamConfig {
	return StreamConfig{
		SampleRateHz: DefaultSampleRateHz,
		Channels:     2,
		Width:        Width4Byte,
		Refresh:      Refresh8Frames,
		TickRateHz:   DefaultTickRateHz,
	}
}

// Validate checks the configuration invariants.
func (c StreamConfig) Validate() error {
	if c.SampleRateHz <= 0 {
		return fmt.Errorf("uac: invalid sample rate %d", c.SampleRateHz)
	}
	if c.Channels <= 0 {
		return fmt.Errorf("uac: invalid channel count %d", c.Channels)
	}
	switch c.Width {
	case Width1Byte, Width2Byte, Width3Byte, Width4Byte:
	default:
		return fmt.Errorf("uac: invalid sample width %d", int(c.Width))
	}
	if c.Refresh > Refresh256Frames {
		return fmt.Errorf("uac: invalid feedback refresh exponent %d", c.Refresh)
	}
	if c.TickRateHz <= 0 {
		return fmt.Errorf("uac: invalid tick rate %d", c.TickRateHz)
	}
	return nil
}

// BytesPerSecond returns the nominal stream data rate.
func (c StreamConfig) BytesPerSecond() int {
	return c.SampleRateHz * c.Channels * int(c.Width)
}

// FrameBytes returns the nominal payload of one full-speed USB frame (1 ms),
// rounded up for rates that do not divide evenly.
func (c StreamConfig) FrameBytes() int {
	return (c.BytesPerSecond() + 999) / 1000
}

// MaxPacketBytes returns the negotiated packet bound: twice the nominal
// frame payload, as margin for feedback-driven rate swings.
func (c StreamConfig) MaxPacketBytes() int {
	return 2 * c.FrameBytes()
}

// MaxPacketSamples returns the sample word capacity of one packet, which
// is also the capacity of one sample block.
func (c StreamConfig) MaxPacketSamples() int {
	return c.MaxPacketBytes() / int(c.Width)
}

// TicksPerSample returns feedback counter ticks per audio sample.
func (c StreamConfig) TicksPerSample() float64 {
	return float64(c.TickRateHz) / float64(c.SampleRateHz)
}

// FeedbackScale returns the factor that converts a tick delta measured
// over one refresh period into a 10.14 samples-per-frame value. It is
// computed once at startup; for the default configuration it is
// 16384/875/8.
func (c StreamConfig) FeedbackScale() float64 {
	return (float64(uint32(1)<<FeedbackShift) / c.TicksPerSample()) / float64(c.Refresh.Frames())
}
