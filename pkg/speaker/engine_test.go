// ABOUTME: Tests for the engine assembly
// ABOUTME: Covers construction validation and the full data path over an in-memory bus
package speaker

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/uaclink/uaclink-go/pkg/audio"
	"github.com/uaclink/uaclink-go/pkg/bus"
	"github.com/uaclink/uaclink-go/pkg/bus/membus"
	"github.com/uaclink/uaclink-go/pkg/uac"
)

// freerunSink completes periods as fast as the output task asks,
// recording how many were written.
type freerunSink struct {
	periods atomic.Uint64
	started atomic.Bool
	closed  atomic.Bool
}

func (s *freerunSink) Start() error { s.started.Store(true); return nil }

func (s *freerunSink) ReadFrame(buf []int32) error {
	for i := range buf {
		buf[i] = 0
	}
	time.Sleep(100 * time.Microsecond)
	return nil
}

func (s *freerunSink) WriteFrame(buf []int32) error {
	s.periods.Add(1)
	return nil
}

func (s *freerunSink) SetVolume(volume int) {}
func (s *freerunSink) SetMuted(muted bool)  {}
func (s *freerunSink) Close() error         { s.closed.Store(true); return nil }

func TestNewEngineValidation(t *testing.T) {
	b := membus.New()
	good := Config{Stream: uac.DefaultStreamConfig(), Sink: &freerunSink{}}

	if _, err := NewEngine(b.Device(), good); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	if _, err := NewEngine(bus.Speaker{}, good); err == nil {
		t.Errorf("incomplete endpoint bundle should fail")
	}

	noSink := good
	noSink.Sink = nil
	if _, err := NewEngine(b.Device(), noSink); err == nil {
		t.Errorf("missing sink should fail")
	}

	badBits := good
	badBits.SinkBits = 20
	if _, err := NewEngine(b.Device(), badBits); err == nil {
		t.Errorf("unsupported sink width should fail")
	}

	badStream := good
	badStream.Stream.Channels = 0
	if _, err := NewEngine(b.Device(), badStream); err == nil {
		t.Errorf("invalid stream config should fail")
	}
}

func TestEngineStartTwice(t *testing.T) {
	b := membus.New()
	e, err := NewEngine(b.Device(), Config{Stream: uac.DefaultStreamConfig(), Sink: &freerunSink{}})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer e.Stop()

	if err := e.Start(context.Background()); err == nil {
		t.Errorf("second Start should fail")
	}
}

func TestEngineStopBeforeStart(t *testing.T) {
	b := membus.New()
	e, err := NewEngine(b.Device(), Config{Stream: uac.DefaultStreamConfig(), Sink: &freerunSink{}})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	if err := e.Stop(); err != nil {
		t.Errorf("Stop before Start: %v", err)
	}
}

func TestEngineEndToEnd(t *testing.T) {
	cfg := uac.DefaultStreamConfig()
	b := membus.New()
	snk := &freerunSink{}

	e, err := NewEngine(b.Device(), Config{Stream: cfg, Sink: snk})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	port := b.Host()
	port.SetStreamAlt(1)
	port.SetFeedbackAlt(1)
	port.SetControl(uac.ChannelMaster, -5120, false)

	// Pump 100 frames of nominal packets at roughly the USB cadence.
	width := int(cfg.Width)
	frames := cfg.SampleRateHz / 1000
	pcm := make([]byte, frames*cfg.Channels*width)
	for i := 0; i < frames*cfg.Channels; i++ {
		audio.PutSampleLE(pcm[i*width:], int32(i)<<8, width)
	}

	ctx := context.Background()
	for i := 0; i < 100; i++ {
		port.PulseFrame()
		if err := port.WriteStream(ctx, pcm); err != nil {
			t.Fatalf("WriteStream frame %d: %v", i, err)
		}
		time.Sleep(time.Millisecond)
	}

	// The feedback path publishes one value per 8-frame window; with a
	// real-time counter behind the pulses it lands near 48 samples/frame.
	var value uint32
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if data, ok := port.TryReadFeedback(); ok {
			if value, err = uac.ParseFeedback(data); err != nil {
				t.Fatalf("ParseFeedback: %v", err)
			}
			break
		}
		time.Sleep(time.Millisecond)
	}
	if value == 0 {
		t.Fatalf("no feedback value published")
	}
	if spf := uac.FeedbackSamplesPerFrame(value); spf < 30 || spf > 70 {
		t.Errorf("feedback %.2f samples/frame, want near 48", spf)
	}

	// The control write surfaces in the engine snapshot.
	ctlDeadline := time.Now().Add(time.Second)
	for time.Now().Before(ctlDeadline) {
		if c, ok := e.ControlState().Get(uac.ChannelMaster); ok && c.Volume == -5120 {
			break
		}
		time.Sleep(time.Millisecond)
	}
	if c, _ := e.ControlState().Get(uac.ChannelMaster); c.Volume != -5120 {
		t.Errorf("master Volume = %d, want -5120", c.Volume)
	}

	st := e.Stats()
	if st.Receiver.Packets != 100 {
		t.Errorf("Receiver.Packets = %d, want 100", st.Receiver.Packets)
	}
	if st.Receiver.Invalid != 0 {
		t.Errorf("Receiver.Invalid = %d, want 0", st.Receiver.Invalid)
	}
	if st.Receiver.Blocks != 100 {
		t.Errorf("Receiver.Blocks = %d, want 100", st.Receiver.Blocks)
	}
	if st.Output.Periods == 0 {
		t.Errorf("Output.Periods = 0, want some")
	}
	if st.FeedbackWindows < 10 {
		t.Errorf("FeedbackWindows = %d, want at least 10", st.FeedbackWindows)
	}
	if st.Feedback.Sent == 0 {
		t.Errorf("Feedback.Sent = 0, want some")
	}
	if st.ControlChanges == 0 {
		t.Errorf("ControlChanges = 0, want some")
	}

	if err := e.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if !snk.started.Load() || !snk.closed.Load() {
		t.Errorf("sink lifecycle: started %v, closed %v", snk.started.Load(), snk.closed.Load())
	}
}
