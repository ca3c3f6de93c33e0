// ABOUTME: Device TUI wrapper around the bubbletea program
// ABOUTME: Non-blocking status updates plus a quit signal for the daemon
package ui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// DeviceTUI manages the speaker device display.
type DeviceTUI struct {
	program  *tea.Program
	updates  chan DeviceStatus
	quitChan chan struct{}
}

// NewDeviceTUI creates the device TUI.
func NewDeviceTUI() *DeviceTUI {
	return &DeviceTUI{
		updates:  make(chan DeviceStatus, 10),
		quitChan: make(chan struct{}, 1),
	}
}

// Start runs the TUI until the user quits. It blocks.
func (t *DeviceTUI) Start(initial DeviceStatus) error {
	m := deviceModel{
		status:    initial,
		startTime: time.Now(),
		quitChan:  t.quitChan,
	}

	t.program = tea.NewProgram(m, tea.WithAltScreen())

	go func() {
		for status := range t.updates {
			if t.program != nil {
				t.program.Send(statusMsg(status))
			}
		}
	}()

	_, err := t.program.Run()
	return err
}

// Update sends a status update to the TUI without blocking.
func (t *DeviceTUI) Update(status DeviceStatus) {
	select {
	case t.updates <- status:
	default:
	}
}

// Stop stops the TUI.
func (t *DeviceTUI) Stop() {
	if t.program != nil {
		t.program.Quit()
	}
	close(t.updates)
}

// QuitChan signals when the user asked to quit.
func (t *DeviceTUI) QuitChan() <-chan struct{} {
	return t.quitChan
}
