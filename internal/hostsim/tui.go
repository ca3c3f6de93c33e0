// ABOUTME: Host TUI showing device identity, stream counters and feedback
// ABOUTME: Real-time status display using bubbletea
package hostsim

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/uaclink/uaclink-go/pkg/uac"
)

// HostTUI manages the host status display.
type HostTUI struct {
	program  *tea.Program
	updates  chan HostStatus
	quitChan chan struct{}
}

// HostStatus holds host state for the TUI.
type HostStatus struct {
	DeviceName string
	DeviceID   string
	DeviceAddr string
	Format     string
	Source     string

	StreamAlt   int
	FeedbackAlt int

	Frames  uint64
	Packets uint64
	Starved uint64

	FeedbackOn      bool
	Feedback        uint32
	FeedbackApplied uint64
	Target          float64
}

// hostModel is the bubbletea model for the host TUI.
type hostModel struct {
	status    HostStatus
	startTime time.Time
	quitting  bool
	quitChan  chan struct{}
}

type hostTickMsg time.Time
type hostStatusMsg HostStatus

func (m hostModel) Init() tea.Cmd {
	return tea.Batch(
		hostTickEvery(),
	)
}

func hostTickEvery() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return hostTickMsg(t)
	})
}

func (m hostModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
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

	case hostTickMsg:
		return m, hostTickEvery()

	case hostStatusMsg:
		m.status = HostStatus(msg)
		return m, nil
	}

	return m, nil
}

func altLabel(alt int) string {
	if alt > 0 {
		return fmt.Sprintf("active (alt %d)", alt)
	}
	return "idle (alt 0)"
}

func (m hostModel) View() string {
	if m.quitting {
		return "Closing connection...\n"
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

	b.WriteString(titleStyle.Render("UAC Link Host"))
	b.WriteString("\n\n")

	b.WriteString(headerStyle.Render("Device: "))
	b.WriteString(valueStyle.Render(fmt.Sprintf("%s (%s)", m.status.DeviceName, m.status.DeviceAddr)))
	b.WriteString("\n")

	b.WriteString(headerStyle.Render("ID: "))
	b.WriteString(valueStyle.Render(m.status.DeviceID))
	b.WriteString("\n")

	b.WriteString(headerStyle.Render("Format: "))
	b.WriteString(valueStyle.Render(m.status.Format))
	b.WriteString("\n")

	b.WriteString(headerStyle.Render("Source: "))
	b.WriteString(valueStyle.Render(m.status.Source))
	b.WriteString("\n")

	b.WriteString(headerStyle.Render("Uptime: "))
	uptime := time.Since(m.startTime).Round(time.Second)
	b.WriteString(valueStyle.Render(uptime.String()))
	b.WriteString("\n\n")

	b.WriteString(sectionStyle.Render("Stream"))
	b.WriteString("\n")
	b.WriteString(headerStyle.Render("  Interface: "))
	b.WriteString(valueStyle.Render(altLabel(m.status.StreamAlt)))
	b.WriteString("\n")
	b.WriteString(headerStyle.Render("  Frames: "))
	b.WriteString(valueStyle.Render(fmt.Sprintf("%d", m.status.Frames)))
	b.WriteString("\n")
	b.WriteString(headerStyle.Render("  Packets: "))
	b.WriteString(valueStyle.Render(fmt.Sprintf("%d", m.status.Packets)))
	b.WriteString("\n")
	b.WriteString(headerStyle.Render("  Starved: "))
	b.WriteString(valueStyle.Render(fmt.Sprintf("%d", m.status.Starved)))
	b.WriteString("\n\n")

	b.WriteString(sectionStyle.Render("Feedback"))
	b.WriteString("\n")
	b.WriteString(headerStyle.Render("  Interface: "))
	b.WriteString(valueStyle.Render(altLabel(m.status.FeedbackAlt)))
	b.WriteString("\n")
	b.WriteString(headerStyle.Render("  Mode: "))
	if m.status.FeedbackOn {
		b.WriteString(valueStyle.Render("closed loop"))
	} else {
		b.WriteString(valueStyle.Render("open loop"))
	}
	b.WriteString("\n")
	b.WriteString(headerStyle.Render("  Last value: "))
	if m.status.Feedback != 0 {
		b.WriteString(valueStyle.Render(fmt.Sprintf("%.4f samples/frame (0x%06X)",
			uac.FeedbackSamplesPerFrame(m.status.Feedback), m.status.Feedback)))
	} else {
		b.WriteString(valueStyle.Render("none"))
	}
	b.WriteString("\n")
	b.WriteString(headerStyle.Render("  Applied: "))
	b.WriteString(valueStyle.Render(fmt.Sprintf("%d", m.status.FeedbackApplied)))
	b.WriteString("\n")
	b.WriteString(headerStyle.Render("  Target: "))
	b.WriteString(valueStyle.Render(fmt.Sprintf("%.4f samples/frame", m.status.Target)))
	b.WriteString("\n\n")

	b.WriteString(lipgloss.NewStyle().Faint(true).Render("Press 'q' or Ctrl+C to quit"))

	return b.String()
}

// NewHostTUI creates the host TUI.
func NewHostTUI() *HostTUI {
	return &HostTUI{
		updates:  make(chan HostStatus, 10),
		quitChan: make(chan struct{}, 1),
	}
}

// Start runs the TUI until the user quits. It blocks.
func (t *HostTUI) Start(initial HostStatus) error {
	m := hostModel{
		status:    initial,
		startTime: time.Now(),
		quitChan:  t.quitChan,
	}

	t.program = tea.NewProgram(m, tea.WithAltScreen())

	go func() {
		for status := range t.updates {
			if t.program != nil {
				t.program.Send(hostStatusMsg(status))
			}
		}
	}()

	_, err := t.program.Run()
	return err
}

// Update sends a status update to the TUI without blocking.
func (t *HostTUI) Update(status HostStatus) {
	select {
	case t.updates <- status:
	default:
	}
}

// Stop stops the TUI.
func (t *HostTUI) Stop() {
	if t.program != nil {
		t.program.Quit()
	}
	close(t.updates)
}

// QuitChan signals when the user asked to quit.
func (t *HostTUI) QuitChan() <-chan struct{} {
	return t.quitChan
}
