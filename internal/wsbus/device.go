// ABOUTME: Device side of the WebSocket virtual bus
// ABOUTME: Serves one host at a time, pumping its frames into the in-memory endpoint pair
package wsbus

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/uaclink/uaclink-go/pkg/bus"
	"github.com/uaclink/uaclink-go/pkg/bus/membus"
	"github.com/uaclink/uaclink-go/pkg/uac"
)

// DeviceConfig holds the bus server configuration.
type DeviceConfig struct {
	// ListenAddr is the TCP listen address, ":0" for an ephemeral port.
	ListenAddr string

	Name   string
	Stream uac.StreamConfig
	Debug  bool
}

// Device serves the virtual bus to one host. Incoming frames drive an
// in-memory endpoint pair, so the speaker core sees the same contracts
// it would on any other transport.
type Device struct {
	cfg      DeviceConfig
	deviceID string
	upgrader websocket.Upgrader

	bus  *membus.Bus
	port *membus.HostPort

	httpServer *http.Server
	listener   net.Listener

	mu        sync.Mutex
	conn      *websocket.Conn
	hostName  string
	hostAddr  string
	connected bool
	lastSOF   uint32
	haveSOF   bool
	sofGaps   uint64

	stopOnce sync.Once
	wg       sync.WaitGroup
}

// DeviceStatus is a snapshot for TUIs and logs.
type DeviceStatus struct {
	DeviceID          string
	HostName          string
	HostAddr          string
	HostConnected     bool
	StreamConnected   bool
	FeedbackConnected bool
	Frames            uint64
	SOFGaps           uint64
}

// NewDevice validates cfg and builds the device. The listener opens on
// Start.
func NewDevice(cfg DeviceConfig) (*Device, error) {
	if err := cfg.Stream.Validate(); err != nil {
		return nil, err
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8847"
	}
	b := membus.New()
	return &Device{
		cfg:      cfg,
		deviceID: uuid.New().String(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// Trusted local networks only; non-browser hosts carry
				// no Origin header.
				return true
			},
		},
		bus:  b,
		port: b.Host(),
	}, nil
}

// Speaker returns the endpoint bundle for the core engine.
func (d *Device) Speaker() bus.Speaker {
	return d.bus.Device()
}

// ID returns the device identity sent in the hello exchange.
func (d *Device) ID() string {
	return d.deviceID
}

// Start binds the listener and serves the bus endpoint.
func (d *Device) Start() error {
	ln, err := net.Listen("tcp", d.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("wsbus: listen: %w", err)
	}
	d.listener = ln

	mux := http.NewServeMux()
	mux.HandleFunc(BusPath, d.handleWebSocket)
	d.httpServer = &http.Server{Handler: mux}

	go func() {
		if err := d.httpServer.Serve(ln); err != http.ErrServerClosed {
			log.Printf("Bus server error: %v", err)
		}
	}()

	log.Printf("Bus listening on %s (device %s)", ln.Addr(), d.cfg.Name)
	return nil
}

// Addr returns the bound listen address.
func (d *Device) Addr() string {
	if d.listener == nil {
		return d.cfg.ListenAddr
	}
	return d.listener.Addr().String()
}

// Status snapshots the transport state.
func (d *Device) Status() DeviceStatus {
	d.mu.Lock()
	defer d.mu.Unlock()
	return DeviceStatus{
		DeviceID:          d.deviceID,
		HostName:          d.hostName,
		HostAddr:          d.hostAddr,
		HostConnected:     d.connected,
		StreamConnected:   d.port.StreamConnected(),
		FeedbackConnected: d.port.FeedbackConnected(),
		Frames:            d.port.Frames(),
		SOFGaps:           d.sofGaps,
	}
}

// Stop closes the active host connection and shuts the listener down.
func (d *Device) Stop() {
	d.stopOnce.Do(func() {
		d.mu.Lock()
		conn := d.conn
		d.mu.Unlock()
		if conn != nil {
			conn.Close()
		}
		if d.httpServer != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := d.httpServer.Shutdown(ctx); err != nil {
				log.Printf("Bus server shutdown error: %v", err)
			}
		}
		d.wg.Wait()
	})
}

func (d *Device) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := d.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}
	d.handleConnection(conn, r.RemoteAddr)
}

func (d *Device) handleConnection(conn *websocket.Conn, remoteAddr string) {
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		log.Printf("Error reading hello: %v", err)
		return
	}
	conn.SetReadDeadline(time.Time{})

	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Printf("Error parsing hello: %v", err)
		return
	}
	if msg.Type != "host/hello" {
		log.Printf("Expected host/hello, got %s", msg.Type)
		return
	}

	payload, _ := json.Marshal(msg.Payload)
	var hello HostHello
	if err := json.Unmarshal(payload, &hello); err != nil {
		log.Printf("Error parsing host hello: %v", err)
		return
	}
	if hello.Name == "" {
		hello.Name = hello.HostID
	}

	d.mu.Lock()
	if d.connected {
		serving := d.hostName
		d.mu.Unlock()
		log.Printf("Rejecting host %s: already serving %s", hello.Name, serving)
		reject := Message{Type: "device/error", Payload: ErrorInfo{
			Error:   "busy",
			Message: "device already attached to a host",
		}}
		if data, err := json.Marshal(reject); err == nil {
			conn.WriteMessage(websocket.TextMessage, data)
		}
		return
	}
	d.connected = true
	d.hostName = hello.Name
	d.hostAddr = remoteAddr
	d.conn = conn
	d.haveSOF = false
	d.mu.Unlock()

	log.Printf("Host attached: %s (ID: %s) from %s", hello.Name, hello.HostID, remoteAddr)

	ctx, cancel := context.WithCancel(context.Background())
	sendChan := make(chan interface{}, 64)

	defer func() {
		cancel()
		d.port.Disconnect()
		d.mu.Lock()
		d.connected = false
		d.hostName = ""
		d.hostAddr = ""
		d.conn = nil
		d.mu.Unlock()
		log.Printf("Host detached: %s", hello.Name)
	}()

	sendChan <- Message{Type: "device/hello", Payload: DeviceHello{
		DeviceID:       d.deviceID,
		Name:           d.cfg.Name,
		Version:        ProtocolVersion,
		SampleRateHz:   d.cfg.Stream.SampleRateHz,
		Channels:       d.cfg.Stream.Channels,
		SampleBits:     d.cfg.Stream.Width.Bits(),
		RefreshFrames:  d.cfg.Stream.Refresh.Frames(),
		MaxPacketBytes: d.cfg.Stream.MaxPacketBytes(),
	}}

	d.wg.Add(2)
	go func() {
		defer d.wg.Done()
		d.writer(ctx, conn, sendChan)
	}()
	go func() {
		defer d.wg.Done()
		d.feedbackPump(ctx, sendChan)
	}()

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			return
		}
		switch messageType {
		case websocket.BinaryMessage:
			d.handleBinary(ctx, data)
		case websocket.TextMessage:
			d.handleJSON(data)
		}
	}
}

// handleBinary routes one binary frame from the host.
func (d *Device) handleBinary(ctx context.Context, data []byte) {
	if len(data) == 0 {
		return
	}
	switch data[0] {
	case frameAudio:
		if d.cfg.Debug {
			log.Printf("[DEBUG] Audio packet: %d bytes", len(data)-1)
		}
		if err := d.port.WriteStream(ctx, data[1:]); err != nil {
			if d.cfg.Debug {
				log.Printf("[DEBUG] Audio packet dropped: %v", err)
			}
		}
	case frameSOF:
		if len(data) != 5 {
			log.Printf("Invalid SOF frame: %d bytes", len(data))
			return
		}
		d.noteSOF(binary.LittleEndian.Uint32(data[1:5]))
		d.port.PulseFrame()
	default:
		log.Printf("Unknown binary frame type: %d", data[0])
	}
}

// noteSOF tracks the host frame numbering to surface delivery gaps.
func (d *Device) noteSOF(num uint32) {
	d.mu.Lock()
	if d.haveSOF && num != d.lastSOF+1 {
		d.sofGaps++
		if d.cfg.Debug {
			log.Printf("[DEBUG] SOF gap: %d -> %d", d.lastSOF, num)
		}
	}
	d.lastSOF = num
	d.haveSOF = true
	d.mu.Unlock()
}

// handleJSON routes one text message from the host.
func (d *Device) handleJSON(data []byte) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Printf("Error parsing message: %v", err)
		return
	}

	payload, _ := json.Marshal(msg.Payload)

	switch msg.Type {
	case "host/alt":
		var alt AltSetting
		if err := json.Unmarshal(payload, &alt); err != nil {
			log.Printf("Error parsing alt setting: %v", err)
			return
		}
		switch alt.Interface {
		case InterfaceStream:
			d.port.SetStreamAlt(alt.Alt)
			log.Printf("Stream interface alt %d", alt.Alt)
		case InterfaceFeedback:
			d.port.SetFeedbackAlt(alt.Alt)
			log.Printf("Feedback interface alt %d", alt.Alt)
		default:
			log.Printf("Unknown interface %q in alt setting", alt.Interface)
		}

	case "host/control":
		var set ControlSet
		if err := json.Unmarshal(payload, &set); err != nil {
			log.Printf("Error parsing control set: %v", err)
			return
		}
		d.port.SetControl(uac.Channel(set.Channel), set.Volume, set.Muted)
		if d.cfg.Debug {
			log.Printf("[DEBUG] Control: channel %d volume %d muted %v", set.Channel, set.Volume, set.Muted)
		}

	default:
		log.Printf("Unknown message type: %s", msg.Type)
	}
}

// writer owns all writes to the connection. Binary payloads pass
// through as-is, everything else goes out as JSON.
func (d *Device) writer(ctx context.Context, conn *websocket.Conn, sendChan chan interface{}) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	const writeDeadline = 10 * time.Second

	for {
		select {
		case msg := <-sendChan:
			switch v := msg.(type) {
			case []byte:
				conn.SetWriteDeadline(time.Now().Add(writeDeadline))
				if err := conn.WriteMessage(websocket.BinaryMessage, v); err != nil {
					log.Printf("Error writing binary message: %v", err)
					return
				}
			default:
				data, err := json.Marshal(v)
				if err != nil {
					log.Printf("Error marshaling message: %v", err)
					continue
				}
				conn.SetWriteDeadline(time.Now().Add(writeDeadline))
				if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
					log.Printf("Error writing text message: %v", err)
					return
				}
			}

		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(10*time.Second)); err != nil {
				return
			}

		case <-ctx.Done():
			return
		}
	}
}

// feedbackPump forwards each feedback packet the core publishes to the
// host as a binary frame.
func (d *Device) feedbackPump(ctx context.Context, sendChan chan interface{}) {
	for {
		pkt, err := d.port.ReadFeedback(ctx)
		if err != nil {
			return
		}
		frame := make([]byte, 1+len(pkt))
		frame[0] = frameFeedback
		copy(frame[1:], pkt)
		select {
		case sendChan <- frame:
		case <-ctx.Done():
			return
		}
	}
}
