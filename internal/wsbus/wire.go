// ABOUTME: Wire format of the WebSocket virtual bus
// ABOUTME: Binary frame prefixes for iso data plus JSON envelopes for handshake and control
package wsbus

// ProtocolVersion is negotiated in the hello exchange.
const ProtocolVersion = 1

// BusPath is the HTTP path the device serves the bus on.
const BusPath = "/bus"

// Binary frame type prefixes. Each binary message carries one frame:
// the type byte followed by the frame body.
const (
	frameAudio    = 0x01 // host → device: raw little-endian PCM packet
	frameFeedback = 0x02 // device → host: 3-byte 10.14 rate value
	frameSOF      = 0x03 // host → device: 4-byte LE frame number
)

// Message is the JSON envelope for text messages.
type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

// HostHello opens the handshake.
type HostHello struct {
	HostID  string `json:"host_id"`
	Name    string `json:"name"`
	Version int    `json:"version"`
}

// DeviceHello answers with the device identity and its fixed stream
// format, which the host needs to pace and encode the stream.
type DeviceHello struct {
	DeviceID       string `json:"device_id"`
	Name           string `json:"name"`
	Version        int    `json:"version"`
	SampleRateHz   int    `json:"sample_rate_hz"`
	Channels       int    `json:"channels"`
	SampleBits     int    `json:"sample_bits"`
	RefreshFrames  int    `json:"refresh_frames"`
	MaxPacketBytes int    `json:"max_packet_bytes"`
}

// AltSetting selects a sub-interface alternate setting. Alt 0 is the
// zero-bandwidth setting, alt 1 is operational.
type AltSetting struct {
	Interface string `json:"interface"`
	Alt       int    `json:"alt"`
}

// Sub-interface names used in AltSetting.
const (
	InterfaceStream   = "stream"
	InterfaceFeedback = "feedback"
)

// ControlSet writes one channel's volume and mute state.
type ControlSet struct {
	Channel int   `json:"channel"`
	Volume  int16 `json:"volume"`
	Muted   bool  `json:"muted"`
}

// ErrorInfo reports a device-side refusal.
type ErrorInfo struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
