// ABOUTME: Malgo-backed playback sink with native 16/24/32-bit output
// ABOUTME: Device callback drains a ring buffer, WriteFrame blocks while the ring is full
package sink

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"

	"github.com/gen2brain/malgo"
)

var errSinkClosed = errors.New("sink: closed")

// Malgo plays through miniaudio at the configured word width. The
// device pulls from a ring buffer on its own thread; WriteFrame blocks
// while the ring lacks room for a full period, which paces the caller
// at the device's consumption rate.
type Malgo struct {
	cfg      Config
	malgoCtx *malgo.AllocatedContext
	device   *malgo.Device
	gain     gain

	mu     sync.Mutex
	space  *sync.Cond
	ring   []int32
	head   int
	tail   int
	count  int
	closed bool

	underruns atomic.Uint64
}

// NewMalgo returns a malgo sink. The device opens on Start.
func NewMalgo(cfg Config) (*Malgo, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	m := &Malgo{cfg: cfg, ring: make([]int32, 8*cfg.PeriodWords)}
	m.space = sync.NewCond(&m.mu)
	m.gain.init()
	return m, nil
}

func (m *Malgo) Start() error {
	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return fmt.Errorf("sink: malgo context: %w", err)
	}
	m.malgoCtx = mctx

	var format malgo.FormatType
	switch m.cfg.Bits {
	case 16:
		format = malgo.FormatS16
	case 24:
		format = malgo.FormatS24
	case 32:
		format = malgo.FormatS32
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = format
	deviceConfig.Playback.Channels = uint32(m.cfg.Channels)
	deviceConfig.SampleRate = uint32(m.cfg.SampleRateHz)
	deviceConfig.PeriodSizeInFrames = uint32(m.cfg.PeriodWords / m.cfg.Channels)
	deviceConfig.Alsa.NoMMap = 1

	callbacks := malgo.DeviceCallbacks{
		Data: func(pOutput, pInput []byte, frameCount uint32) {
			m.fill(pOutput, frameCount)
		},
	}

	device, err := malgo.InitDevice(mctx.Context, deviceConfig, callbacks)
	if err != nil {
		return fmt.Errorf("sink: malgo device: %w", err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		return fmt.Errorf("sink: malgo start: %w", err)
	}
	m.device = device

	log.Printf("Audio output started: %dHz, %d channels, %d-bit (malgo)",
		m.cfg.SampleRateHz, m.cfg.Channels, m.cfg.Bits)
	return nil
}

// fill runs on the device thread. It drains the ring into the output
// buffer at the device word width and zero-fills any shortfall.
func (m *Malgo) fill(out []byte, frameCount uint32) {
	words := int(frameCount) * m.cfg.Channels
	bytesPer := m.cfg.Bits / 8

	m.mu.Lock()
	n := 0
	for n < words && m.count > 0 {
		putWordLE(out[n*bytesPer:], m.ring[m.head], bytesPer)
		m.head = (m.head + 1) % len(m.ring)
		m.count--
		n++
	}
	closed := m.closed
	m.mu.Unlock()
	m.space.Broadcast()

	if n < words {
		for i := n * bytesPer; i < words*bytesPer; i++ {
			out[i] = 0
		}
		if !closed {
			m.underruns.Add(1)
		}
	}
}

// putWordLE packs the low bytes of w little-endian.
func putWordLE(dst []byte, w int32, bytes int) {
	dst[0] = byte(w)
	dst[1] = byte(w >> 8)
	if bytes >= 3 {
		dst[2] = byte(w >> 16)
	}
	if bytes == 4 {
		dst[3] = byte(w >> 24)
	}
}

// ReadFrame zero-fills buf; the playback device has no capture path.
func (m *Malgo) ReadFrame(buf []int32) error {
	for i := range buf {
		buf[i] = 0
	}
	return nil
}

// WriteFrame scales buf into the ring, waiting until the device has
// made room for all of it.
func (m *Malgo) WriteFrame(buf []int32) error {
	mult := m.gain.multiplier()

	m.mu.Lock()
	defer m.mu.Unlock()
	for len(m.ring)-m.count < len(buf) {
		if m.closed {
			return errSinkClosed
		}
		m.space.Wait()
	}
	if m.closed {
		return errSinkClosed
	}
	for _, w := range buf {
		m.ring[m.tail] = scaleWord(w, mult, m.cfg.Bits)
		m.tail = (m.tail + 1) % len(m.ring)
		m.count++
	}
	return nil
}

func (m *Malgo) SetVolume(volume int) {
	m.gain.setVolume(volume)
	log.Printf("Sink volume set to %d", volume)
}

func (m *Malgo) SetMuted(muted bool) {
	m.gain.setMuted(muted)
	log.Printf("Sink muted: %v", muted)
}

// Underruns reports device-level ring shortfalls.
func (m *Malgo) Underruns() uint64 { return m.underruns.Load() }

// Close wakes any blocked writer, stops the device and releases the
// context.
func (m *Malgo) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	m.space.Broadcast()

	if m.device != nil {
		if err := m.device.Stop(); err != nil {
			log.Printf("Warning: malgo device stop: %v", err)
		}
		m.device.Uninit()
		m.device = nil
	}
	if m.malgoCtx != nil {
		if err := m.malgoCtx.Uninit(); err != nil {
			log.Printf("Warning: malgo context uninit: %v", err)
		}
		m.malgoCtx.Free()
		m.malgoCtx = nil
	}
	return nil
}
