// ABOUTME: In-memory host/device transport pair with manual frame pulsing
// ABOUTME: Deterministic bus for tests and the in-process loopback example
package membus

import (
	"context"
	"io"
	"sync"
	"sync/atomic"

	"github.com/uaclink/uaclink-go/pkg/bus"
	"github.com/uaclink/uaclink-go/pkg/uac"
)

// packetBacklog bounds in-flight stream packets between the host
// goroutine and the device receiver.
const packetBacklog = 64

// Bus is one in-memory host/device pair. The device side satisfies the
// endpoint contracts; the host side is driven directly by tests, the
// loopback example or a simulator.
type Bus struct {
	stream   *streamPort
	feedback *feedbackPort
	control  *controlPort
	sync     *frameSync
}

// New returns a bus whose control interface carries the given channel
// set, defaulting to master plus the stereo pair. Both sub-interfaces
// start at their zero-bandwidth setting.
func New(channels ...uac.Channel) *Bus {
	if len(channels) == 0 {
		channels = append([]uac.Channel{uac.ChannelMaster}, uac.StereoChannels...)
	}
	entries := make(map[uac.Channel]controlEntry, len(channels))
	for _, ch := range channels {
		entries[ch] = controlEntry{}
	}
	return &Bus{
		stream:   &streamPort{gate: bus.NewGate(), packets: make(chan []byte, packetBacklog)},
		feedback: &feedbackPort{gate: bus.NewGate(), notify: make(chan struct{}, 1)},
		control:  &controlPort{entries: entries, notify: make(chan struct{}, 1)},
		sync:     &frameSync{},
	}
}

// Device returns the endpoint bundle for the speaker core.
func (b *Bus) Device() bus.Speaker {
	return bus.Speaker{
		Stream:   b.stream,
		Feedback: b.feedback,
		Control:  b.control,
		Sync:     b.sync,
	}
}

// Host returns the host-side port.
func (b *Bus) Host() *HostPort {
	return &HostPort{bus: b}
}

type streamPort struct {
	gate    *bus.Gate
	packets chan []byte
}

func (s *streamPort) WaitConnection(ctx context.Context) error {
	return s.gate.WaitConnection(ctx)
}

func (s *streamPort) ReadPacket(ctx context.Context, buf []byte) (int, error) {
	select {
	case p := <-s.packets:
		if len(p) > len(buf) {
			return 0, io.ErrShortBuffer
		}
		return copy(buf, p), nil
	case <-s.gate.Disconnected():
		return 0, bus.ErrDisconnected
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

type feedbackPort struct {
	gate *bus.Gate

	mu     sync.Mutex
	value  []byte
	filled bool
	notify chan struct{}
}

func (f *feedbackPort) WaitConnection(ctx context.Context) error {
	return f.gate.WaitConnection(ctx)
}

func (f *feedbackPort) WritePacket(ctx context.Context, data []byte) error {
	if !f.gate.IsConnected() {
		return bus.ErrDisconnected
	}
	f.mu.Lock()
	f.value = append(f.value[:0], data...)
	f.filled = true
	f.mu.Unlock()
	select {
	case f.notify <- struct{}{}:
	default:
	}
	return nil
}

func (f *feedbackPort) take() ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.filled {
		return nil, false
	}
	out := append([]byte(nil), f.value...)
	f.filled = false
	return out, true
}

type controlEntry struct {
	volume int16
	muted  bool
}

type controlPort struct {
	mu      sync.Mutex
	entries map[uac.Channel]controlEntry
	notify  chan struct{}
}

func (c *controlPort) Changed(ctx context.Context) error {
	select {
	case <-c.notify:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *controlPort) Volume(ch uac.Channel) (int16, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[ch]
	if !ok {
		return 0, bus.ErrUnknownChannel
	}
	return e.volume, nil
}

func (c *controlPort) Muted(ch uac.Channel) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[ch]
	if !ok {
		return false, bus.ErrUnknownChannel
	}
	return e.muted, nil
}

func (c *controlPort) set(ch uac.Channel, volume int16, muted bool) {
	c.mu.Lock()
	c.entries[ch] = controlEntry{volume: volume, muted: muted}
	c.mu.Unlock()
	select {
	case c.notify <- struct{}{}:
	default:
	}
}

type frameSync struct {
	mu       sync.Mutex
	handlers []func()
	frames   atomic.Uint64
}

func (s *frameSync) OnFrame(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers = append(s.handlers, fn)
}

func (s *frameSync) pulse() uint64 {
	s.mu.Lock()
	handlers := s.handlers
	s.mu.Unlock()
	for _, fn := range handlers {
		fn()
	}
	return s.frames.Add(1)
}

// HostPort drives the device the way a USB host would: alternate
// setting selection, iso OUT packets, feedback polls, frame pulses and
// control writes.
type HostPort struct {
	bus *Bus
}

// SetStreamAlt selects the streaming sub-interface setting. Alt 0
// drops any in-flight packets.
func (h *HostPort) SetStreamAlt(alt int) {
	s := h.bus.stream
	if alt > 0 {
		s.gate.Set(true)
		return
	}
	s.gate.Set(false)
	for {
		select {
		case <-s.packets:
		default:
			return
		}
	}
}

// SetFeedbackAlt selects the feedback sub-interface setting. Alt 0
// discards any unread value.
func (h *HostPort) SetFeedbackAlt(alt int) {
	f := h.bus.feedback
	if alt > 0 {
		f.gate.Set(true)
		return
	}
	f.gate.Set(false)
	f.mu.Lock()
	f.filled = false
	f.mu.Unlock()
}

// Disconnect models transport loss: both sub-interfaces drop at once.
func (h *HostPort) Disconnect() {
	h.SetStreamAlt(0)
	h.SetFeedbackAlt(0)
}

// WriteStream delivers one iso OUT packet. Zero-length packets are
// valid.
func (h *HostPort) WriteStream(ctx context.Context, data []byte) error {
	s := h.bus.stream
	if !s.gate.IsConnected() {
		return bus.ErrDisconnected
	}
	cp := append([]byte(nil), data...)
	select {
	case s.packets <- cp:
		return nil
	case <-s.gate.Disconnected():
		return bus.ErrDisconnected
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ReadFeedback blocks until the device publishes a feedback packet and
// consumes it. An unread value survives until overwritten or alt 0.
func (h *HostPort) ReadFeedback(ctx context.Context) ([]byte, error) {
	f := h.bus.feedback
	for {
		if out, ok := f.take(); ok {
			return out, nil
		}
		select {
		case <-f.notify:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// TryReadFeedback consumes the pending feedback packet without
// blocking.
func (h *HostPort) TryReadFeedback() ([]byte, bool) {
	return h.bus.feedback.take()
}

// PulseFrame runs the registered frame handlers on the calling
// goroutine and returns the new frame count.
func (h *HostPort) PulseFrame() uint64 {
	return h.bus.sync.pulse()
}

// Frames reports how many pulses have been delivered.
func (h *HostPort) Frames() uint64 {
	return h.bus.sync.frames.Load()
}

// SetControl writes one channel's volume and mute and raises the
// change notification.
func (h *HostPort) SetControl(ch uac.Channel, volume int16, muted bool) {
	h.bus.control.set(ch, volume, muted)
}

// StreamConnected reports whether the streaming sub-interface is
// operational.
func (h *HostPort) StreamConnected() bool {
	return h.bus.stream.gate.IsConnected()
}

// FeedbackConnected reports whether the feedback sub-interface is
// operational.
func (h *HostPort) FeedbackConnected() bool {
	return h.bus.feedback.gate.IsConnected()
}
