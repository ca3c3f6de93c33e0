// ABOUTME: Tests for stream configuration validation and derived sizes
// ABOUTME: Covers the reference 48 kHz stereo 32-bit configuration
package uac

import (
	"math"
	"testing"
)

func TestDefaultStreamConfig(t *testing.T) {
	cfg := DefaultStreamConfig()

	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config failed validation: %v", err)
	}

	if got := cfg.BytesPerSecond(); got != 384000 {
		t.Errorf("BytesPerSecond = %d, want 384000", got)
	}
	if got := cfg.FrameBytes(); got != 384 {
		t.Errorf("FrameBytes = %d, want 384", got)
	}
	if got := cfg.MaxPacketBytes(); got != 768 {
		t.Errorf("MaxPacketBytes = %d, want 768", got)
	}
	if got := cfg.MaxPacketSamples(); got != 192 {
		t.Errorf("MaxPacketSamples = %d, want 192", got)
	}
	if got := cfg.TicksPerSample(); got != 875.0 {
		t.Errorf("TicksPerSample = %v, want 875", got)
	}
}

func TestFeedbackScale(t *testing.T) {
	cfg := DefaultStreamConfig()

	// 16384 / 875 / 8
	want := 2.3405714285714284
	if got := cfg.FeedbackScale(); math.Abs(got-want) > 1e-12 {
		t.Errorf("FeedbackScale = %v, want %v", got, want)
	}

	// The nominal tick delta over 8 frames at 42 MHz scales to exactly
	// 48 samples per frame in 10.14 format.
	value := uint32(math.Round(336000 * cfg.FeedbackScale()))
	if value != 48<<FeedbackShift {
		t.Errorf("nominal delta scaled to %d, want %d", value, 48<<FeedbackShift)
	}
}

func TestFrameBytesRoundsUp(t *testing.T) {
	cfg := StreamConfig{
		SampleRateHz: 44100,
		Channels:     2,
		Width:        Width2Byte,
		Refresh:      Refresh8Frames,
		TickRateHz:   DefaultTickRateHz,
	}

	// 176400 bytes/s does not divide into 1 ms frames evenly.
	if got := cfg.FrameBytes(); got != 177 {
		t.Errorf("FrameBytes = %d, want 177", got)
	}
}

func TestStreamConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*StreamConfig)
	}{
		{"zero sample rate", func(c *StreamConfig) { c.SampleRateHz = 0 }},
		{"negative sample rate", func(c *StreamConfig) { c.SampleRateHz = -48000 }},
		{"zero channels", func(c *StreamConfig) { c.Channels = 0 }},
		{"bad width", func(c *StreamConfig) { c.Width = 5 }},
		{"bad refresh", func(c *StreamConfig) { c.Refresh = 9 }},
		{"zero tick rate", func(c *StreamConfig) { c.TickRateHz = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultStreamConfig()
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Errorf("expected validation error")
			}
		})
	}
}

func TestFeedbackRefreshFrames(t *testing.T) {
	tests := []struct {
		refresh FeedbackRefresh
		frames  int
	}{
		{Refresh1Frame, 1},
		{Refresh2Frames, 2},
		{Refresh8Frames, 8},
		{Refresh256Frames, 256},
	}

	for _, tt := range tests {
		if got := tt.refresh.Frames(); got != tt.frames {
			t.Errorf("Refresh(%d).Frames() = %d, want %d", tt.refresh, got, tt.frames)
		}
	}
}

func TestChannelString(t *testing.T) {
	if got := ChannelLeftFront.String(); got != "left-front" {
		t.Errorf("ChannelLeftFront.String() = %q", got)
	}
	if got := Channel(99).String(); got != "channel(99)" {
		t.Errorf("unknown channel String() = %q", got)
	}
}

func TestVolumeConversions(t *testing.T) {
	if got := VolumeDB(-2560); got != -10.0 {
		t.Errorf("VolumeDB(-2560) = %v, want -10", got)
	}
	if got := VolumeDB(0); got != 0.0 {
		t.Errorf("VolumeDB(0) = %v, want 0", got)
	}

	if got := VolumeAmplitude(VolumeSilence); got != 0 {
		t.Errorf("VolumeAmplitude(silence) = %v, want 0", got)
	}
	if got := VolumeAmplitude(0); got != 1 {
		t.Errorf("VolumeAmplitude(0 dB) = %v, want 1", got)
	}
	// Positive control values would boost; amplitude clamps at unity.
	if got := VolumeAmplitude(VolumeMax); got != 1 {
		t.Errorf("VolumeAmplitude(max) = %v, want clamp to 1", got)
	}
	// -20 dB is a factor of 10.
	if got := VolumeAmplitude(-5120); math.Abs(got-0.1) > 1e-12 {
		t.Errorf("VolumeAmplitude(-20 dB) = %v, want 0.1", got)
	}
}
