// ABOUTME: Feedback measurement and reporting for the rate control loop
// ABOUTME: Frame-hook meter counts clock ticks per window, sender encodes deltas into 10.14 packets
package speaker

import (
	"context"
	"errors"
	"log"
	"math"
	"sync/atomic"

	"github.com/uaclink/uaclink-go/pkg/bus"
	"github.com/uaclink/uaclink-go/pkg/uac"
)

// FeedbackMeter samples a free-running tick counter from the bus frame
// hook and publishes the tick delta across each refresh window.
//
// HandleFrame runs in the frame callback and must stay short. The
// published delta crosses to the sender through a latest-wins signal,
// so a slow sender observes the newest measurement rather than a
// backlog.
type FeedbackMeter struct {
	counter       bus.Counter
	refreshFrames uint32

	frameCount uint32
	lastTicks  uint32

	deltas  *Signal[uint32]
	windows atomic.Uint64
}

// NewFeedbackMeter returns a meter publishing one delta per refresh
// window. The counter's current value is taken as the baseline for the
// first window.
func NewFeedbackMeter(counter bus.Counter, cfg uac.StreamConfig) *FeedbackMeter {
	return &FeedbackMeter{
		counter:       counter,
		refreshFrames: uint32(cfg.Refresh.Frames()),
		lastTicks:     counter.Ticks(),
		deltas:        NewSignal[uint32](),
	}
}

// HandleFrame advances the frame count and closes out the window when
// it fills. Tick arithmetic wraps modulo 2^32, so deltas stay correct
// across counter rollover.
func (m *FeedbackMeter) HandleFrame() {
	m.frameCount++
	if m.frameCount < m.refreshFrames {
		return
	}
	m.frameCount = 0
	ticks := m.counter.Ticks()
	m.deltas.Signal(ticks - m.lastTicks)
	m.lastTicks = ticks
	m.windows.Add(1)
}

// Deltas exposes the window measurements for the sender.
func (m *FeedbackMeter) Deltas() *Signal[uint32] { return m.deltas }

// Windows reports how many refresh windows have completed.
func (m *FeedbackMeter) Windows() uint64 { return m.windows.Load() }

// FeedbackStats holds feedback path counters.
type FeedbackStats struct {
	Sent     uint64
	Dropped  uint64
	Connects uint64

	// LastValue is the most recent 10.14 rate value sent.
	LastValue uint32
}

// FeedbackSender converts measured deltas into 10.14 samples-per-frame
// values and writes them to the feedback endpoint whenever a host is
// listening.
type FeedbackSender struct {
	fb     bus.Feedback
	deltas *Signal[uint32]
	scale  float64

	sent     atomic.Uint64
	dropped  atomic.Uint64
	connects atomic.Uint64
	last     atomic.Uint32
}

// NewFeedbackSender returns a sender for one feedback endpoint.
func NewFeedbackSender(fb bus.Feedback, deltas *Signal[uint32], cfg uac.StreamConfig) *FeedbackSender {
	return &FeedbackSender{
		fb:     fb,
		deltas: deltas,
		scale:  cfg.FeedbackScale(),
	}
}

// Run waits for the endpoint, then forwards one packet per measured
// window until the host detaches, and goes back to waiting.
func (s *FeedbackSender) Run(ctx context.Context) {
	for {
		if err := s.fb.WaitConnection(ctx); err != nil {
			return
		}
		s.connects.Add(1)
		log.Printf("Feedback endpoint enabled")

		// A measurement taken while detached describes a stale window.
		s.deltas.TryTake()

		err := s.send(ctx)
		if err == nil {
			return
		}
		if errors.Is(err, bus.ErrDisconnected) {
			log.Printf("Feedback endpoint disabled")
			continue
		}
		log.Printf("Feedback send error: %v", err)
	}
}

func (s *FeedbackSender) send(ctx context.Context) error {
	var packet [uac.FeedbackPacketSize]byte
	for {
		delta, err := s.deltas.Wait(ctx)
		if err != nil {
			return nil
		}

		value := uint32(math.Round(float64(delta) * s.scale))
		uac.PutFeedback(packet[:], value)
		if err := s.fb.WritePacket(ctx, packet[:]); err != nil {
			s.dropped.Add(1)
			return err
		}
		s.sent.Add(1)
		s.last.Store(value)
	}
}

// Stats returns the feedback counters.
func (s *FeedbackSender) Stats() FeedbackStats {
	return FeedbackStats{
		Sent:      s.sent.Load(),
		Dropped:   s.dropped.Load(),
		Connects:  s.connects.Load(),
		LastValue: s.last.Load(),
	}
}
