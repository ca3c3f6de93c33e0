// ABOUTME: Host side of the WebSocket virtual bus
// ABOUTME: Dials a device, runs the hello exchange and drives the stream at the host's pace
package wsbus

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/uaclink/uaclink-go/pkg/uac"
)

// HostConfig holds the bus client configuration.
type HostConfig struct {
	// DeviceAddr is the device's host:port.
	DeviceAddr string

	Name  string
	Debug bool
}

// Host is the bus client. It owns the connection and serializes all
// writes; feedback values arriving from the device land in a
// latest-wins mailbox for the pacer to poll.
type Host struct {
	cfg    HostConfig
	hostID string
	conn   *websocket.Conn
	device DeviceHello

	writeMu      sync.Mutex
	audioScratch []byte

	fbMu     sync.Mutex
	fbValue  uint32
	fbFilled bool
	fbCount  atomic.Uint64

	frame atomic.Uint32

	closed    chan struct{}
	closeOnce sync.Once
}

// NewHost returns an unconnected host.
func NewHost(cfg HostConfig) *Host {
	if cfg.Name == "" {
		cfg.Name = "uaclink-host"
	}
	return &Host{
		cfg:    cfg,
		hostID: uuid.New().String(),
		closed: make(chan struct{}),
	}
}

// Connect dials the device and performs the hello exchange.
func (h *Host) Connect() error {
	u := url.URL{Scheme: "ws", Host: h.cfg.DeviceAddr, Path: BusPath}
	log.Printf("Connecting to %s", u.String())

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return fmt.Errorf("wsbus: dial: %w", err)
	}
	h.conn = conn

	if err := h.handshake(); err != nil {
		conn.Close()
		return fmt.Errorf("wsbus: handshake: %w", err)
	}

	go h.readMessages()
	return nil
}

func (h *Host) handshake() error {
	hello := Message{Type: "host/hello", Payload: HostHello{
		HostID:  h.hostID,
		Name:    h.cfg.Name,
		Version: ProtocolVersion,
	}}
	if err := h.writeJSON(hello); err != nil {
		return fmt.Errorf("send host/hello: %w", err)
	}

	h.conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, data, err := h.conn.ReadMessage()
	if err != nil {
		return fmt.Errorf("read device/hello: %w", err)
	}
	h.conn.SetReadDeadline(time.Time{})

	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return fmt.Errorf("parse device/hello: %w", err)
	}

	payload, _ := json.Marshal(msg.Payload)
	switch msg.Type {
	case "device/hello":
		if err := json.Unmarshal(payload, &h.device); err != nil {
			return fmt.Errorf("parse device/hello payload: %w", err)
		}
	case "device/error":
		var info ErrorInfo
		json.Unmarshal(payload, &info)
		return fmt.Errorf("device refused: %s", info.Message)
	default:
		return fmt.Errorf("expected device/hello, got %s", msg.Type)
	}

	log.Printf("Attached to device %s (%dHz, %d channels, %d-bit, refresh %d frames)",
		h.device.Name, h.device.SampleRateHz, h.device.Channels,
		h.device.SampleBits, h.device.RefreshFrames)
	return nil
}

// Device returns the hello the device answered with.
func (h *Host) Device() DeviceHello {
	return h.device
}

// SetStreamAlt selects the streaming sub-interface setting.
func (h *Host) SetStreamAlt(alt int) error {
	return h.writeJSON(Message{Type: "host/alt", Payload: AltSetting{Interface: InterfaceStream, Alt: alt}})
}

// SetFeedbackAlt selects the feedback sub-interface setting.
func (h *Host) SetFeedbackAlt(alt int) error {
	return h.writeJSON(Message{Type: "host/alt", Payload: AltSetting{Interface: InterfaceFeedback, Alt: alt}})
}

// SetControl sends one channel's volume and mute state.
func (h *Host) SetControl(ch uac.Channel, volume int16, muted bool) error {
	return h.writeJSON(Message{Type: "host/control", Payload: ControlSet{
		Channel: int(ch),
		Volume:  volume,
		Muted:   muted,
	}})
}

// WriteAudio sends one iso OUT packet of raw PCM bytes.
func (h *Host) WriteAudio(pcm []byte) error {
	h.writeMu.Lock()
	defer h.writeMu.Unlock()

	if 1+len(pcm) > cap(h.audioScratch) {
		h.audioScratch = make([]byte, 1+len(pcm))
	}
	frame := h.audioScratch[:1+len(pcm)]
	frame[0] = frameAudio
	copy(frame[1:], pcm)
	return h.conn.WriteMessage(websocket.BinaryMessage, frame)
}

// PulseSOF sends the next start-of-frame pulse and returns its frame
// number.
func (h *Host) PulseSOF() (uint32, error) {
	num := h.frame.Add(1)
	var frame [5]byte
	frame[0] = frameSOF
	binary.LittleEndian.PutUint32(frame[1:], num)

	h.writeMu.Lock()
	defer h.writeMu.Unlock()
	return num, h.conn.WriteMessage(websocket.BinaryMessage, frame[:])
}

func (h *Host) writeJSON(msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	h.writeMu.Lock()
	defer h.writeMu.Unlock()
	return h.conn.WriteMessage(websocket.TextMessage, data)
}

// readMessages routes feedback frames into the mailbox.
func (h *Host) readMessages() {
	defer h.Close()

	for {
		messageType, data, err := h.conn.ReadMessage()
		if err != nil {
			select {
			case <-h.closed:
			default:
				log.Printf("Read error: %v", err)
			}
			return
		}

		if messageType != websocket.BinaryMessage {
			if h.cfg.Debug {
				log.Printf("[DEBUG] Device message: %s", data)
			}
			continue
		}
		if len(data) == 0 || data[0] != frameFeedback {
			log.Printf("Unknown binary frame from device")
			continue
		}

		value, err := uac.ParseFeedback(data[1:])
		if err != nil {
			log.Printf("Invalid feedback packet: %v", err)
			continue
		}
		if h.cfg.Debug {
			log.Printf("[DEBUG] Feedback: %d (%.4f samples/frame)", value, uac.FeedbackSamplesPerFrame(value))
		}

		h.fbMu.Lock()
		h.fbValue = value
		h.fbFilled = true
		h.fbMu.Unlock()
		h.fbCount.Add(1)
	}
}

// TakeFeedback consumes the latest unread feedback value.
func (h *Host) TakeFeedback() (uint32, bool) {
	h.fbMu.Lock()
	defer h.fbMu.Unlock()
	if !h.fbFilled {
		return 0, false
	}
	h.fbFilled = false
	return h.fbValue, true
}

// FeedbackCount reports how many feedback packets have arrived.
func (h *Host) FeedbackCount() uint64 {
	return h.fbCount.Load()
}

// Frames reports how many SOF pulses have been sent.
func (h *Host) Frames() uint32 {
	return h.frame.Load()
}

// Closed is closed once the connection is gone.
func (h *Host) Closed() <-chan struct{} {
	return h.closed
}

// Close tears the connection down.
func (h *Host) Close() error {
	h.closeOnce.Do(func() {
		close(h.closed)
		if h.conn != nil {
			h.conn.Close()
		}
		log.Printf("Connection closed")
	})
	return nil
}
