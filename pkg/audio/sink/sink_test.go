// ABOUTME: Tests for the sink contract helpers and null backend
// ABOUTME: Covers config validation, gain scaling and wall-clock pacing
package sink

import (
	"testing"
	"time"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"valid", Config{SampleRateHz: 48000, Channels: 2, Bits: 24, PeriodWords: 96}, false},
		{"zero rate", Config{Channels: 2, Bits: 24, PeriodWords: 96}, true},
		{"zero channels", Config{SampleRateHz: 48000, Bits: 24, PeriodWords: 96}, true},
		{"odd word width", Config{SampleRateHz: 48000, Channels: 2, Bits: 20, PeriodWords: 96}, true},
		{"zero period", Config{SampleRateHz: 48000, Channels: 2, Bits: 24}, true},
		{"ragged period", Config{SampleRateHz: 48000, Channels: 2, Bits: 24, PeriodWords: 97}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfigPeriod(t *testing.T) {
	cfg := Config{SampleRateHz: 48000, Channels: 2, Bits: 24, PeriodWords: 96}
	if got := cfg.Period(); got != time.Millisecond {
		t.Errorf("Period() = %v, want 1ms", got)
	}
	cfg.PeriodWords = 48
	if got := cfg.Period(); got != 500*time.Microsecond {
		t.Errorf("Period() = %v, want 500us", got)
	}
}

func TestScaleWordPassthrough(t *testing.T) {
	// Unity gain must not round-trip through float math.
	for _, w := range []int32{0, 1, -1, 8388607, -8388608} {
		if got := scaleWord(w, 1, 24); got != w {
			t.Errorf("scaleWord(%d, 1, 24) = %d, want unchanged", w, got)
		}
	}
}

func TestScaleWordScalesAndClips(t *testing.T) {
	tests := []struct {
		w    int32
		mult float64
		bits int
		want int32
	}{
		{1000, 0.5, 24, 500},
		{1000, 0, 24, 0},
		{-1000, 0.5, 24, -500},
		{40000, 0.9, 16, 32767},
		{-40000, 0.9, 16, -32768},
	}
	for _, tt := range tests {
		if got := scaleWord(tt.w, tt.mult, tt.bits); got != tt.want {
			t.Errorf("scaleWord(%d, %v, %d) = %d, want %d", tt.w, tt.mult, tt.bits, got, tt.want)
		}
	}
}

func TestGainMultiplier(t *testing.T) {
	var g gain
	g.init()
	if got := g.multiplier(); got != 1 {
		t.Errorf("default multiplier = %v, want 1", got)
	}

	g.setVolume(50)
	if got := g.multiplier(); got != 0.5 {
		t.Errorf("multiplier at 50%% = %v, want 0.5", got)
	}

	g.setVolume(150)
	if got := g.multiplier(); got != 1 {
		t.Errorf("multiplier above range = %v, want clamp to 1", got)
	}

	g.setVolume(-5)
	if got := g.multiplier(); got != 0 {
		t.Errorf("multiplier below range = %v, want clamp to 0", got)
	}

	g.setVolume(80)
	g.setMuted(true)
	if got := g.multiplier(); got != 0 {
		t.Errorf("muted multiplier = %v, want 0", got)
	}
	g.setMuted(false)
	if got := g.multiplier(); got != 0.8 {
		t.Errorf("unmuted multiplier = %v, want 0.8", got)
	}
}

func TestNewNullRejectsInvalidConfig(t *testing.T) {
	if _, err := NewNull(Config{}); err == nil {
		t.Errorf("NewNull with zero config should fail")
	}
}

func TestNullPacesPeriods(t *testing.T) {
	n, err := NewNull(Config{SampleRateHz: 48000, Channels: 2, Bits: 16, PeriodWords: 96})
	if err != nil {
		t.Fatalf("NewNull: %v", err)
	}
	if err := n.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	buf := make([]int32, 96)
	start := time.Now()
	for i := 0; i < 10; i++ {
		for j := range buf {
			buf[j] = 7
		}
		if err := n.ReadFrame(buf); err != nil {
			t.Fatalf("ReadFrame %d: %v", i, err)
		}
		for j, w := range buf {
			if w != 0 {
				t.Fatalf("ReadFrame left word %d = %d, want 0", j, w)
			}
		}
		if err := n.WriteFrame(buf); err != nil {
			t.Fatalf("WriteFrame %d: %v", i, err)
		}
	}
	elapsed := time.Since(start)

	// Ten 1ms periods; generous upper bound for loaded CI machines.
	if elapsed < 8*time.Millisecond {
		t.Errorf("10 periods took %v, want at least 8ms", elapsed)
	}
	if elapsed > 200*time.Millisecond {
		t.Errorf("10 periods took %v, want well under 200ms", elapsed)
	}
	if got := n.Periods(); got != 10 {
		t.Errorf("Periods = %d, want 10", got)
	}
}
