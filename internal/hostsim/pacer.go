// ABOUTME: Frame pacer emitting audio packets at the 1 ms bus cadence
// ABOUTME: Sizes each packet from the nominal rate or the device's feedback
package hostsim

import (
	"context"
	"fmt"
	"log"
	"math"
	"sync/atomic"
	"time"

	"github.com/uaclink/uaclink-go/pkg/audio"
	"github.com/uaclink/uaclink-go/pkg/uac"
)

// Link is the bus side the pacer drives once per frame.
type Link interface {
	// PulseSOF marks a frame boundary and returns the frame number.
	PulseSOF() (uint32, error)

	// WriteAudio sends one audio packet of encoded sample words.
	WriteAudio(pcm []byte) error

	// TakeFeedback returns the most recent unread feedback value.
	TakeFeedback() (uint32, bool)
}

// PacerConfig describes the stream the pacer feeds.
type PacerConfig struct {
	Stream uac.StreamConfig

	// DriftPPM skews the local sample clock in parts per million,
	// simulating source clock error.
	DriftPPM float64

	// UseFeedback makes the pacer track the device's explicit feedback
	// instead of running open loop.
	UseFeedback bool

	Debug bool
}

// PacerStats is a snapshot of pacer counters.
type PacerStats struct {
	Frames          uint64
	Packets         uint64
	Starved         uint64
	FeedbackApplied uint64

	// Target is the samples-per-frame value currently in effect.
	Target float64
}

// Pacer runs the host side of the stream: one frame pulse per
// millisecond, with an audio packet whose size follows a fractional
// accumulator so the long-run rate matches the target.
type Pacer struct {
	src  Source
	link Link

	channels  int
	width     int
	nominal   float64
	maxFrames int
	useFB     bool
	debug     bool

	targetBits atomic.Uint64
	frames     atomic.Uint64
	packets    atomic.Uint64
	starved    atomic.Uint64
	fbApplied  atomic.Uint64

	readBuf []int32
	wireBuf []byte
}

// NewPacer returns a pacer sending src over link.
func NewPacer(src Source, link Link, cfg PacerConfig) *Pacer {
	stream := cfg.Stream
	nominal := float64(stream.SampleRateHz) / 1000 * (1 + cfg.DriftPPM/1e6)
	maxWords := stream.MaxPacketSamples()

	p := &Pacer{
		src:       src,
		link:      link,
		channels:  stream.Channels,
		width:     int(stream.Width),
		nominal:   nominal,
		maxFrames: maxWords / stream.Channels,
		useFB:     cfg.UseFeedback,
		debug:     cfg.Debug,
		readBuf:   make([]int32, maxWords),
		wireBuf:   make([]byte, maxWords*int(stream.Width)),
	}
	p.targetBits.Store(math.Float64bits(nominal))
	return p
}

// Run drives the link until the context is cancelled or the link
// fails. It returns the first error it hits.
func (p *Pacer) Run(ctx context.Context) error {
	ticker := time.NewTicker(time.Millisecond)
	defer ticker.Stop()

	acc := 0.0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		if _, err := p.link.PulseSOF(); err != nil {
			return fmt.Errorf("frame pulse: %w", err)
		}
		p.frames.Add(1)

		if p.useFB {
			if value, ok := p.link.TakeFeedback(); ok {
				p.applyFeedback(value)
			}
		}

		acc += p.Target()
		n := int(acc)
		acc -= float64(n)
		if n > p.maxFrames {
			n = p.maxFrames
		}
		if n == 0 {
			continue
		}

		want := n * p.channels
		got, err := p.src.Read(p.readBuf[:want])
		if err != nil {
			return fmt.Errorf("source read: %w", err)
		}
		got -= got % p.channels
		if got < want {
			p.starved.Add(1)
		}
		if got == 0 {
			continue
		}

		p.encode(p.readBuf[:got])
		if err := p.link.WriteAudio(p.wireBuf[:got*p.width]); err != nil {
			return fmt.Errorf("audio write: %w", err)
		}
		p.packets.Add(1)
	}
}

// applyFeedback converts a 10.14 feedback value into the new target,
// clamped to 10% around nominal so a corrupt value cannot run the
// stream away.
func (p *Pacer) applyFeedback(value uint32) {
	samples := uac.FeedbackSamplesPerFrame(value)
	low, high := p.nominal*0.9, p.nominal*1.1
	if samples < low {
		samples = low
	} else if samples > high {
		samples = high
	}
	p.targetBits.Store(math.Float64bits(samples))
	p.fbApplied.Add(1)
	if p.debug {
		log.Printf("Feedback %d -> %.4f samples/frame", value, samples)
	}
}

// encode packs 24-bit range words into wire words of the stream width.
func (p *Pacer) encode(words []int32) {
	shift := p.width*8 - 24
	for i, w := range words {
		if shift > 0 {
			w <<= uint(shift)
		} else if shift < 0 {
			w >>= uint(-shift)
		}
		audio.PutSampleLE(p.wireBuf[i*p.width:], w, p.width)
	}
}

// Target returns the samples-per-frame value currently in effect.
func (p *Pacer) Target() float64 {
	return math.Float64frombits(p.targetBits.Load())
}

// Stats returns a snapshot of the counters.
func (p *Pacer) Stats() PacerStats {
	return PacerStats{
		Frames:          p.frames.Load(),
		Packets:         p.packets.Load(),
		Starved:         p.starved.Load(),
		FeedbackApplied: p.fbApplied.Load(),
		Target:          p.Target(),
	}
}
