// ABOUTME: Bubbletea model for the speaker device TUI
// ABOUTME: Renders endpoint states, stream counters and control values
package ui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/uaclink/uaclink-go/pkg/uac"
)

// DeviceStatus holds everything the device TUI displays.
type DeviceStatus struct {
	Name   string
	Addr   string
	Sink   string
	Format string

	HostConnected bool
	HostName      string
	HostAddr      string

	StreamConnected   bool
	FeedbackConnected bool

	Frames  uint64
	SOFGaps uint64

	Packets    uint64
	BadPackets uint64
	Dropped    uint64
	Periods    uint64
	Underruns  uint64
	QueueDepth int
	QueueCap   int

	FeedbackSent uint64
	FeedbackLast uint32

	Controls []ControlInfo
}

// ControlInfo is one feature-unit channel row.
type ControlInfo struct {
	Channel string
	Volume  int16
	Muted   bool
}

// deviceModel is the bubbletea model behind DeviceTUI.
type deviceModel struct {
	status    DeviceStatus
	startTime time.Time
	quitting  bool
	quitChan  chan struct{}
}

type tickMsg time.Time
type statusMsg DeviceStatus

func (m deviceModel) Init() tea.Cmd {
	return tea.Batch(
		tickEvery(),
	)
}

func tickEvery() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m deviceModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "q" || msg.String() == "ctrl+c" {
			m.quitting = true
			select {
			case m.quitChan <- struct{}{}:
			default:
			}
			return m, tea.Quit
		}

	case tickMsg:
		return m, tickEvery()

	case statusMsg:
		m.status = DeviceStatus(msg)
		return m, nil
	}

	return m, nil
}

func endpointLabel(connected bool) string {
	if connected {
		return "open (alt 1)"
	}
	return "closed (alt 0)"
}

func (m deviceModel) View() string {
	if m.quitting {
		return "Shutting down device...\n"
	}

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("205")).
		MarginBottom(1)

	headerStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("86"))

	valueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("250"))

	sectionStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("220"))

	var b strings.Builder

	b.WriteString(titleStyle.Render("UAC Link Speaker"))
	b.WriteString("\n\n")

	b.WriteString(headerStyle.Render("Device: "))
	b.WriteString(valueStyle.Render(fmt.Sprintf("%s (%s)", m.status.Name, m.status.Addr)))
	b.WriteString("\n")

	b.WriteString(headerStyle.Render("Sink: "))
	b.WriteString(valueStyle.Render(m.status.Sink))
	b.WriteString("\n")

	b.WriteString(headerStyle.Render("Format: "))
	b.WriteString(valueStyle.Render(m.status.Format))
	b.WriteString("\n")

	b.WriteString(headerStyle.Render("Uptime: "))
	uptime := time.Since(m.startTime).Round(time.Second)
	b.WriteString(valueStyle.Render(uptime.String()))
	b.WriteString("\n\n")

	b.WriteString(sectionStyle.Render("Host"))
	b.WriteString("\n")
	b.WriteString(headerStyle.Render("  State: "))
	if m.status.HostConnected {
		b.WriteString(valueStyle.Render(fmt.Sprintf("attached: %s (%s)", m.status.HostName, m.status.HostAddr)))
	} else {
		b.WriteString(valueStyle.Render("waiting for host"))
	}
	b.WriteString("\n")
	b.WriteString(headerStyle.Render("  Frames: "))
	b.WriteString(valueStyle.Render(fmt.Sprintf("%d (gaps: %d)", m.status.Frames, m.status.SOFGaps)))
	b.WriteString("\n\n")

	b.WriteString(sectionStyle.Render("Stream"))
	b.WriteString("\n")
	b.WriteString(headerStyle.Render("  Endpoint: "))
	b.WriteString(valueStyle.Render(endpointLabel(m.status.StreamConnected)))
	b.WriteString("\n")
	b.WriteString(headerStyle.Render("  Packets: "))
	b.WriteString(valueStyle.Render(fmt.Sprintf("%d (bad: %d, dropped words: %d)",
		m.status.Packets, m.status.BadPackets, m.status.Dropped)))
	b.WriteString("\n")
	b.WriteString(headerStyle.Render("  Queue: "))
	b.WriteString(valueStyle.Render(fmt.Sprintf("[%s] %d/%d words",
		renderBar(m.status.QueueDepth, m.status.QueueCap, 16), m.status.QueueDepth, m.status.QueueCap)))
	b.WriteString("\n")
	b.WriteString(headerStyle.Render("  Periods: "))
	b.WriteString(valueStyle.Render(fmt.Sprintf("%d (underruns: %d)", m.status.Periods, m.status.Underruns)))
	b.WriteString("\n\n")

	b.WriteString(sectionStyle.Render("Feedback"))
	b.WriteString("\n")
	b.WriteString(headerStyle.Render("  Endpoint: "))
	b.WriteString(valueStyle.Render(endpointLabel(m.status.FeedbackConnected)))
	b.WriteString("\n")
	b.WriteString(headerStyle.Render("  Sent: "))
	b.WriteString(valueStyle.Render(fmt.Sprintf("%d", m.status.FeedbackSent)))
	b.WriteString("\n")
	b.WriteString(headerStyle.Render("  Last: "))
	if m.status.FeedbackLast != 0 {
		b.WriteString(valueStyle.Render(fmt.Sprintf("%.4f samples/frame (0x%06X)",
			uac.FeedbackSamplesPerFrame(m.status.FeedbackLast), m.status.FeedbackLast)))
	} else {
		b.WriteString(valueStyle.Render("none"))
	}
	b.WriteString("\n\n")

	b.WriteString(sectionStyle.Render("Controls"))
	b.WriteString("\n")
	if len(m.status.Controls) == 0 {
		b.WriteString(valueStyle.Render("  none"))
		b.WriteString("\n")
	} else {
		for _, c := range m.status.Controls {
			b.WriteString(headerStyle.Render(fmt.Sprintf("  %s: ", c.Channel)))
			b.WriteString(valueStyle.Render(volumeLabel(c.Volume, c.Muted)))
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(lipgloss.NewStyle().Faint(true).Render("Press 'q' or Ctrl+C to quit"))

	return b.String()
}

// volumeLabel formats a feature-unit volume for display.
func volumeLabel(volume int16, muted bool) string {
	var s string
	if volume == uac.VolumeSilence {
		s = "silence"
	} else {
		s = fmt.Sprintf("%+.1f dB", uac.VolumeDB(volume))
	}
	if muted {
		s += " [muted]"
	}
	return s
}

// renderBar draws a fixed-width fill bar.
func renderBar(value, max, width int) string {
	if max <= 0 {
		max = 1
	}
	filled := (value * width) / max
	if filled > width {
		filled = width
	}
	bar := ""
	for i := 0; i < width; i++ {
		if i < filled {
			bar += "█"
		} else {
			bar += "░"
		}
	}
	return bar
}
