// ABOUTME: PCM sources feeding the host simulator
// ABOUTME: Tone generator plus an adapter shaping any source to the device stream format
package hostsim

import (
	"fmt"
	"log"
	"math"

	"github.com/uaclink/uaclink-go/pkg/audio"
)

// Source provides interleaved PCM words scaled to the 24-bit range.
type Source interface {
	// Read fills words with interleaved samples and returns how many
	// it wrote, always a whole number of frames.
	Read(words []int32) (int, error)

	SampleRate() int
	Channels() int

	// Describe returns a short label for logs and the TUI.
	Describe() string

	Close() error
}

// ToneSource generates a stereo sine tone.
type ToneSource struct {
	rate      int
	frequency float64
	amplitude float64
	index     uint64
}

// NewToneSource returns a tone source. Amplitude is a 0-1 fraction of
// full scale; out-of-range values fall back to 0.5.
func NewToneSource(rate int, frequency, amplitude float64) *ToneSource {
	if frequency <= 0 {
		frequency = 440
	}
	if amplitude <= 0 || amplitude > 1 {
		amplitude = 0.5
	}
	return &ToneSource{rate: rate, frequency: frequency, amplitude: amplitude}
}

func (s *ToneSource) Read(words []int32) (int, error) {
	frames := len(words) / 2
	for i := 0; i < frames; i++ {
		t := float64(s.index+uint64(i)) / float64(s.rate)
		v := int32(math.Sin(2*math.Pi*s.frequency*t) * s.amplitude * float64(audio.Max24Bit))
		words[i*2] = v
		words[i*2+1] = v
	}
	s.index += uint64(frames)
	return frames * 2, nil
}

func (s *ToneSource) SampleRate() int { return s.rate }
func (s *ToneSource) Channels() int   { return 2 }

func (s *ToneSource) Describe() string {
	return fmt.Sprintf("%.0f Hz tone", s.frequency)
}

func (s *ToneSource) Close() error { return nil }

// StreamSource shapes an arbitrary source to the stream's rate and
// channel count. Mono fans out to every channel, surplus source
// channels are dropped, and a linear resampler covers rate mismatches.
type StreamSource struct {
	src      Source
	rate     int
	channels int

	resampler *Resampler
	srcBuf    []int32
	mixBuf    []int32
}

// NewStreamSource wraps src for a stream at rate/channels.
func NewStreamSource(src Source, rate, channels int) *StreamSource {
	ss := &StreamSource{src: src, rate: rate, channels: channels}
	if src.SampleRate() != rate {
		ss.resampler = NewResampler(src.SampleRate(), rate, channels)
		log.Printf("Resampling %s: %d Hz -> %d Hz", src.Describe(), src.SampleRate(), rate)
	}
	return ss
}

func (ss *StreamSource) Read(words []int32) (int, error) {
	if ss.resampler == nil {
		return ss.readMapped(words)
	}

	needed := ss.resampler.InputWordsNeeded(len(words))
	if cap(ss.mixBuf) < needed {
		ss.mixBuf = make([]int32, needed)
	}
	n, err := ss.readMapped(ss.mixBuf[:needed])
	if err != nil {
		return 0, err
	}
	return ss.resampler.Resample(ss.mixBuf[:n], words), nil
}

// readMapped reads one chunk at the source rate with the target
// channel count.
func (ss *StreamSource) readMapped(words []int32) (int, error) {
	srcCh := ss.src.Channels()
	if srcCh == ss.channels {
		return ss.src.Read(words)
	}

	frames := len(words) / ss.channels
	need := frames * srcCh
	if cap(ss.srcBuf) < need {
		ss.srcBuf = make([]int32, need)
	}
	n, err := ss.src.Read(ss.srcBuf[:need])
	if err != nil {
		return 0, err
	}

	got := n / srcCh
	for f := 0; f < got; f++ {
		for ch := 0; ch < ss.channels; ch++ {
			from := ch
			if from >= srcCh {
				from = srcCh - 1
			}
			words[f*ss.channels+ch] = ss.srcBuf[f*srcCh+from]
		}
	}
	return got * ss.channels, nil
}

func (ss *StreamSource) SampleRate() int { return ss.rate }
func (ss *StreamSource) Channels() int   { return ss.channels }

func (ss *StreamSource) Describe() string { return ss.src.Describe() }

func (ss *StreamSource) Close() error { return ss.src.Close() }
