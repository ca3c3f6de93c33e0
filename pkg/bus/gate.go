// ABOUTME: Connection gate tracking one sub-interface's alternate setting
// ABOUTME: Broadcasts transitions through closed-while-in-state channels
package bus

import (
	"context"
	"sync"
)

// Gate tracks connection state for one sub-interface. Connected() and
// Disconnected() return channels that are closed while the gate is in
// that state, so selects observe both the current state and future
// transitions.
type Gate struct {
	mu        sync.Mutex
	connected bool
	up        chan struct{}
	down      chan struct{}
}

// NewGate returns a gate in the disconnected state.
func NewGate() *Gate {
	g := &Gate{
		up:   make(chan struct{}),
		down: make(chan struct{}),
	}
	close(g.down)
	return g
}

// Set transitions the gate. Setting the current state again is a no-op.
func (g *Gate) Set(connected bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.connected == connected {
		return
	}
	g.connected = connected
	if connected {
		close(g.up)
		g.down = make(chan struct{})
	} else {
		close(g.down)
		g.up = make(chan struct{})
	}
}

// IsConnected reports the current state.
func (g *Gate) IsConnected() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.connected
}

// Connected returns a channel closed while the gate is connected.
func (g *Gate) Connected() <-chan struct{} {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.up
}

// Disconnected returns a channel closed while the gate is disconnected.
func (g *Gate) Disconnected() <-chan struct{} {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.down
}

// WaitConnection blocks until the gate is connected or ctx ends.
func (g *Gate) WaitConnection(ctx context.Context) error {
	select {
	case <-g.Connected():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
