// ABOUTME: Tests for the control monitor
// ABOUTME: Covers snapshots, callbacks, channel sets and unreadable channels
package speaker

import (
	"context"
	"testing"
	"time"

	"github.com/uaclink/uaclink-go/pkg/bus/membus"
	"github.com/uaclink/uaclink-go/pkg/uac"
)

func startWatcher(t *testing.T, b *membus.Bus, cfg ControlConfig) *ControlWatcher {
	t.Helper()

	w := NewControlWatcher(b.Device().Control, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	ran := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(ran)
	}()

	t.Cleanup(func() {
		cancel()
		select {
		case <-ran:
		case <-time.After(time.Second):
			t.Errorf("watcher did not stop")
		}
	})
	return w
}

func waitChanges(t *testing.T, w *ControlWatcher, want uint64) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if w.Changes() >= want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("Changes = %d, want at least %d", w.Changes(), want)
}

func TestControlWatcherDefaultChannels(t *testing.T) {
	b := membus.New()
	w := startWatcher(t, b, ControlConfig{})

	st := w.State()
	if len(st.Controls) != 3 {
		t.Fatalf("default channel set has %d entries, want 3", len(st.Controls))
	}
	if st.Controls[0].Channel != uac.ChannelMaster {
		t.Errorf("first entry = %s, want master", st.Controls[0].Channel)
	}
}

func TestControlWatcherSnapshot(t *testing.T) {
	b := membus.New()
	w := startWatcher(t, b, ControlConfig{})
	port := b.Host()

	// -10 dB and muted on the master channel.
	port.SetControl(uac.ChannelMaster, -2560, true)
	waitChanges(t, w, 1)

	c, ok := w.State().Get(uac.ChannelMaster)
	if !ok {
		t.Fatalf("master channel missing from snapshot")
	}
	if c.Volume != -2560 {
		t.Errorf("Volume = %d, want -2560", c.Volume)
	}
	if !c.Muted {
		t.Errorf("Muted = false, want true")
	}

	// The stereo pair keeps its zero state.
	if lf, _ := w.State().Get(uac.ChannelLeftFront); lf.Volume != 0 || lf.Muted {
		t.Errorf("left-front = %+v, want untouched zero state", lf)
	}
}

func TestControlWatcherCallback(t *testing.T) {
	b := membus.New()
	snaps := make(chan ControlState, 4)
	w := startWatcher(t, b, ControlConfig{
		OnControl: func(s ControlState) { snaps <- s },
	})
	port := b.Host()

	port.SetControl(uac.ChannelMaster, 512, false)

	select {
	case s := <-snaps:
		c, ok := s.Get(uac.ChannelMaster)
		if !ok || c.Volume != 512 {
			t.Errorf("callback snapshot master = %+v, want volume 512", c)
		}
	case <-time.After(time.Second):
		t.Fatalf("OnControl was not invoked")
	}
	_ = w
}

func TestControlWatcherUnreadableChannelKeepsState(t *testing.T) {
	b := membus.New()

	// Channel 9 is not carried by the bus; its reads fail and its
	// snapshot entry stays at the zero state.
	w := startWatcher(t, b, ControlConfig{
		Channels: []uac.Channel{uac.ChannelMaster, uac.Channel(9)},
	})
	port := b.Host()

	port.SetControl(uac.ChannelMaster, -1280, false)
	waitChanges(t, w, 1)

	if c, _ := w.State().Get(uac.ChannelMaster); c.Volume != -1280 {
		t.Errorf("master Volume = %d, want -1280", c.Volume)
	}

	c, ok := w.State().Get(uac.Channel(9))
	if !ok {
		t.Fatalf("configured channel missing from snapshot")
	}
	if c.Volume != 0 || c.Muted {
		t.Errorf("unreadable channel = %+v, want zero state", c)
	}
}

func TestControlWatcherSuccessiveWrites(t *testing.T) {
	b := membus.New()
	w := startWatcher(t, b, ControlConfig{})
	port := b.Host()

	port.SetControl(uac.ChannelMaster, -5120, false)
	waitChanges(t, w, 1)

	port.SetControl(uac.ChannelMaster, 0, false)
	waitChanges(t, w, 2)

	if c, _ := w.State().Get(uac.ChannelMaster); c.Volume != 0 {
		t.Errorf("Volume after second write = %d, want 0", c.Volume)
	}
}

func TestControlStateGet(t *testing.T) {
	st := ControlState{Controls: []ChannelControl{
		{Channel: uac.ChannelMaster, Volume: -256},
		{Channel: uac.ChannelLeftFront, Volume: 100},
	}}

	if c, ok := st.Get(uac.ChannelLeftFront); !ok || c.Volume != 100 {
		t.Errorf("Get(left-front) = %+v, %v", c, ok)
	}
	if _, ok := st.Get(uac.ChannelRightFront); ok {
		t.Errorf("Get on an absent channel should report false")
	}
}
