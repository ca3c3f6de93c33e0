// ABOUTME: Tests for the device TUI model
// ABOUTME: Covers status application, view content and formatting helpers
package ui

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/uaclink/uaclink-go/pkg/uac"
)

func testStatus() DeviceStatus {
	return DeviceStatus{
		Name:              "Office Speaker",
		Addr:              ":8847",
		Sink:              "null",
		Format:            "48000 Hz, 2 ch, 32-bit",
		HostConnected:     true,
		HostName:          "workstation",
		HostAddr:          "192.168.1.20:49322",
		StreamConnected:   true,
		FeedbackConnected: false,
		Frames:            12000,
		SOFGaps:           1,
		Packets:           11990,
		BadPackets:        2,
		Periods:           1200,
		Underruns:         3,
		QueueDepth:        96,
		QueueCap:          3072,
		FeedbackSent:      1499,
		FeedbackLast:      48 << uac.FeedbackShift,
		Controls: []ControlInfo{
			{Channel: "master", Volume: 0},
			{Channel: "left-front", Volume: -25 * 256, Muted: true},
		},
	}
}

func TestStatusMsgApplied(t *testing.T) {
	m := deviceModel{startTime: time.Now(), quitChan: make(chan struct{}, 1)}

	updated, _ := m.Update(statusMsg(testStatus()))
	got := updated.(deviceModel)

	if got.status.Name != "Office Speaker" {
		t.Errorf("Name = %q, want Office Speaker", got.status.Name)
	}
	if got.status.Packets != 11990 {
		t.Errorf("Packets = %d, want 11990", got.status.Packets)
	}
}

func TestQuitKeySignals(t *testing.T) {
	quit := make(chan struct{}, 1)
	m := deviceModel{startTime: time.Now(), quitChan: quit}

	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	if cmd == nil {
		t.Fatal("quit key should produce a command")
	}
	if !updated.(deviceModel).quitting {
		t.Error("model should be quitting after q")
	}
	select {
	case <-quit:
	default:
		t.Error("quit channel should have been signalled")
	}
}

func TestViewContainsStatus(t *testing.T) {
	m := deviceModel{status: testStatus(), startTime: time.Now(), quitChan: make(chan struct{}, 1)}

	view := m.View()
	for _, want := range []string{
		"UAC Link Speaker",
		"Office Speaker",
		"attached: workstation",
		"open (alt 1)",
		"closed (alt 0)",
		"48.0000 samples/frame",
		"master",
		"[muted]",
	} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
}

func TestViewWaitingForHost(t *testing.T) {
	status := testStatus()
	status.HostConnected = false
	m := deviceModel{status: status, startTime: time.Now(), quitChan: make(chan struct{}, 1)}

	if !strings.Contains(m.View(), "waiting for host") {
		t.Error("view should show waiting state without a host")
	}
}

func TestVolumeLabel(t *testing.T) {
	tests := []struct {
		volume int16
		muted  bool
		want   string
	}{
		{0, false, "+0.0 dB"},
		{-25 * 256, false, "-25.0 dB"},
		{128, false, "+0.5 dB"},
		{uac.VolumeSilence, false, "silence"},
		{0, true, "+0.0 dB [muted]"},
	}

	for _, tt := range tests {
		if got := volumeLabel(tt.volume, tt.muted); got != tt.want {
			t.Errorf("volumeLabel(%d, %v) = %q, want %q", tt.volume, tt.muted, got, tt.want)
		}
	}
}

func TestRenderBar(t *testing.T) {
	tests := []struct {
		value, max, width int
		wantFilled        int
	}{
		{0, 100, 10, 0},
		{50, 100, 10, 5},
		{100, 100, 10, 10},
		{200, 100, 10, 10},
		{1, 0, 10, 10},
	}

	for _, tt := range tests {
		bar := renderBar(tt.value, tt.max, tt.width)
		filled := strings.Count(bar, "█")
		if filled != tt.wantFilled {
			t.Errorf("renderBar(%d, %d, %d) filled %d cells, want %d",
				tt.value, tt.max, tt.width, filled, tt.wantFilled)
		}
		if n := len([]rune(bar)); n != tt.width {
			t.Errorf("renderBar width = %d runes, want %d", n, tt.width)
		}
	}
}
