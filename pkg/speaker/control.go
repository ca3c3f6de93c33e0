// ABOUTME: Control monitor task observing host volume and mute changes
// ABOUTME: Snapshots the monitored channel set and hands it to an optional callback
package speaker

import (
	"context"
	"log"
	"sync"
	"sync/atomic"

	"github.com/uaclink/uaclink-go/pkg/bus"
	"github.com/uaclink/uaclink-go/pkg/uac"
)

// ChannelControl is the control state of one channel.
type ChannelControl struct {
	Channel uac.Channel
	Volume  int16
	Muted   bool
}

// ControlState is a snapshot of the monitored channels, in the order
// they were configured.
type ControlState struct {
	Controls []ChannelControl
}

// Get returns the entry for one channel.
func (s ControlState) Get(ch uac.Channel) (ChannelControl, bool) {
	for _, c := range s.Controls {
		if c.Channel == ch {
			return c, true
		}
	}
	return ChannelControl{}, false
}

// ControlConfig configures the control monitor.
type ControlConfig struct {
	// Channels is the monitored set. Defaults to master plus the
	// stereo pair.
	Channels []uac.Channel

	// OnControl, when set, receives each fresh snapshot on the monitor
	// goroutine.
	OnControl func(ControlState)
}

// ControlWatcher waits for control-change notifications and keeps the
// latest volume and mute snapshot. It never touches the audio path;
// callers decide what a control change means.
type ControlWatcher struct {
	ctl       bus.ControlMonitor
	channels  []uac.Channel
	onControl func(ControlState)

	mu    sync.Mutex
	state ControlState

	changes   atomic.Uint64
	readFails atomic.Uint64
}

// NewControlWatcher returns a watcher over the configured channel set.
func NewControlWatcher(ctl bus.ControlMonitor, cfg ControlConfig) *ControlWatcher {
	channels := cfg.Channels
	if len(channels) == 0 {
		channels = append([]uac.Channel{uac.ChannelMaster}, uac.StereoChannels...)
	}
	w := &ControlWatcher{
		ctl:       ctl,
		channels:  channels,
		onControl: cfg.OnControl,
	}
	w.state.Controls = make([]ChannelControl, len(channels))
	for i, ch := range channels {
		w.state.Controls[i] = ChannelControl{Channel: ch}
	}
	return w
}

// Run blocks on change notifications until ctx ends.
func (w *ControlWatcher) Run(ctx context.Context) {
	for {
		if err := w.ctl.Changed(ctx); err != nil {
			return
		}
		w.refresh()
	}
}

// refresh reads every monitored channel. A channel that fails to read
// keeps its previous snapshot entry.
func (w *ControlWatcher) refresh() {
	w.mu.Lock()
	snapshot := ControlState{Controls: make([]ChannelControl, len(w.state.Controls))}
	copy(snapshot.Controls, w.state.Controls)
	w.mu.Unlock()

	for i, ch := range w.channels {
		v, err := w.ctl.Volume(ch)
		if err != nil {
			w.readFails.Add(1)
			log.Printf("Control read failed for %s volume: %v", ch, err)
			continue
		}
		m, err := w.ctl.Muted(ch)
		if err != nil {
			w.readFails.Add(1)
			log.Printf("Control read failed for %s mute: %v", ch, err)
			continue
		}
		snapshot.Controls[i] = ChannelControl{Channel: ch, Volume: v, Muted: m}
	}

	w.mu.Lock()
	w.state = snapshot
	w.mu.Unlock()
	w.changes.Add(1)

	if w.onControl != nil {
		w.onControl(snapshot)
	}
}

// State returns the latest snapshot.
func (w *ControlWatcher) State() ControlState {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := ControlState{Controls: make([]ChannelControl, len(w.state.Controls))}
	copy(out.Controls, w.state.Controls)
	return out
}

// Changes reports how many snapshots have been taken.
func (w *ControlWatcher) Changes() uint64 { return w.changes.Load() }
