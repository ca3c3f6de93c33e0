// ABOUTME: Endpoint abstraction for the speaker's bus attachment
// ABOUTME: Sub-interface contracts, connection gate and tick counter
// Package bus defines the endpoint surface the speaker core runs against.
//
// A transport implements the four sub-interfaces of one audio function:
//   - Stream: the isochronous OUT data endpoint
//   - Feedback: the isochronous IN rate-feedback endpoint
//   - ControlMonitor: volume/mute change notification and snapshots
//   - FrameSync: the per-frame synchronization pulse
//
// Endpoint operations return ErrDisconnected while the host holds the
// sub-interface at its zero-bandwidth alternate setting; callers treat
// that as a normal lifecycle transition, not a failure.
//
// The package also provides Gate, the connection-state primitive shared
// by transport implementations, and ClockCounter, the free-running tick
// counter used for rate measurement.
//
// Example:
//
//	if err := spk.Stream.WaitConnection(ctx); err != nil {
//	    return err
//	}
//	n, err := spk.Stream.ReadPacket(ctx, buf)
//	if errors.Is(err, bus.ErrDisconnected) {
//	    // host closed the alternate setting, wait again
//	}
package bus
