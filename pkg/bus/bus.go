// ABOUTME: Sub-interface contracts for stream, feedback, control and frame sync
// ABOUTME: Defines the endpoint errors shared by all transports
package bus

import (
	"context"
	"errors"

	"github.com/uaclink/uaclink-go/pkg/uac"
)

var (
	// ErrDisconnected reports that the sub-interface is at its
	// zero-bandwidth alternate setting or the transport is gone.
	ErrDisconnected = errors.New("bus: endpoint disconnected")

	// ErrUnknownChannel reports a control query for a channel the
	// stream does not carry.
	ErrUnknownChannel = errors.New("bus: unknown channel")
)

// Stream is the isochronous OUT endpoint carrying PCM data host to device.
type Stream interface {
	// WaitConnection blocks until the host selects the operational
	// alternate setting.
	WaitConnection(ctx context.Context) error

	// ReadPacket blocks until the next packet arrives and copies it
	// into buf, returning its length. Zero-length packets are valid.
	ReadPacket(ctx context.Context, buf []byte) (int, error)
}

// Feedback is the isochronous IN endpoint carrying rate feedback device
// to host.
type Feedback interface {
	WaitConnection(ctx context.Context) error

	// WritePacket queues one feedback packet for the host's next poll.
	// An unread previous value is overwritten.
	WritePacket(ctx context.Context, data []byte) error
}

// ControlMonitor surfaces volume and mute state written by the host's
// control requests. The core only observes; it never mutates.
type ControlMonitor interface {
	// Changed blocks until the control state changes.
	Changed(ctx context.Context) error

	Volume(ch uac.Channel) (int16, error)
	Muted(ch uac.Channel) (bool, error)
}

// FrameSync delivers the bus frame-sync pulse. The handler runs on the
// transport's pulse goroutine once per frame and must not block.
type FrameSync interface {
	OnFrame(fn func())
}

// Speaker bundles the sub-interfaces of one audio function.
type Speaker struct {
	Stream   Stream
	Feedback Feedback
	Control  ControlMonitor
	Sync     FrameSync
}
