package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/muurk/wifican/internal/client"
	"github.com/muurk/wifican/internal/periodic"
)

const (
	// MaxReceivedLines is how many received chunks the monitor keeps on screen
	MaxReceivedLines = 10

	// RefreshInterval is how often transmitter counters are redrawn
	RefreshInterval = 100 * time.Millisecond
)

// ReceivedMsg carries one chunk read from the gateway into the monitor.
type ReceivedMsg struct {
	Data []byte
	At   time.Time
}

// SessionEndedMsg tells the monitor the session has returned.
type SessionEndedMsg struct {
	Err error
}

type refreshMsg time.Time

// monitorKeyMap defines key bindings for the monitor
type monitorKeyMap struct {
	Pause key.Binding
	Clear key.Binding
	Quit  key.Binding
}

// ShortHelp returns keybindings to be shown in the mini help view
func (k monitorKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Pause, k.Clear, k.Quit}
}

// FullHelp returns keybindings for the expanded help view
func (k monitorKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Pause, k.Clear, k.Quit}}
}

// Monitor is a live view of a running session.
type Monitor struct {
	Address string
	Width   int
	Height  int

	statsFn func() client.Stats
	cancel  func()

	spinner spinner.Model
	help    help.Model
	keys    monitorKeyMap

	stats         client.Stats
	received      []ReceivedMsg
	receivedTotal int
	paused        bool
	stopping      bool
	ended         bool
	err           error
	started       time.Time
}

// NewMonitor creates a monitor for the session at address. statsFn is
// polled for counters and cancel is called when the user quits; the
// monitor then waits for a SessionEndedMsg before exiting.
func NewMonitor(address string, statsFn func() client.Stats, cancel func()) Monitor {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(PrimaryColor)

	width, height := GetTerminalSize()

	return Monitor{
		Address: address,
		Width:   width,
		Height:  height,
		statsFn: statsFn,
		cancel:  cancel,
		spinner: s,
		help:    help.New(),
		keys: monitorKeyMap{
			Pause: key.NewBinding(
				key.WithKeys("p", " "),
				key.WithHelp("p", "pause output"),
			),
			Clear: key.NewBinding(
				key.WithKeys("c"),
				key.WithHelp("c", "clear"),
			),
			Quit: key.NewBinding(
				key.WithKeys("q", "esc", "ctrl+c"),
				key.WithHelp("q", "stop session"),
			),
		},
		started: time.Now(),
	}
}

func refresh() tea.Cmd {
	return tea.Tick(RefreshInterval, func(t time.Time) tea.Msg {
		return refreshMsg(t)
	})
}

// Init implements tea.Model
func (m Monitor) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, refresh())
}

// Update implements tea.Model
func (m Monitor) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			if m.ended || m.cancel == nil {
				return m, tea.Quit
			}
			if !m.stopping {
				m.stopping = true
				m.cancel()
			}
			return m, nil
		case key.Matches(msg, m.keys.Pause):
			m.paused = !m.paused
			return m, nil
		case key.Matches(msg, m.keys.Clear):
			m.received = nil
			return m, nil
		}

	case ReceivedMsg:
		m.receivedTotal++
		if !m.paused {
			m.received = append(m.received, msg)
			if len(m.received) > MaxReceivedLines {
				m.received = m.received[len(m.received)-MaxReceivedLines:]
			}
		}
		return m, nil

	case SessionEndedMsg:
		m.ended = true
		m.err = msg.Err
		m.refreshStats()
		return m, tea.Quit

	case refreshMsg:
		if m.ended {
			return m, nil
		}
		m.refreshStats()
		return m, refresh()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m *Monitor) refreshStats() {
	if m.statsFn != nil {
		m.stats = m.statsFn()
	}
}

// Err returns the error the session ended with.
func (m Monitor) Err() error {
	return m.err
}

// Stats returns the last counters shown.
func (m Monitor) Stats() client.Stats {
	return m.stats
}

// View implements tea.Model
func (m Monitor) View() string {
	var b strings.Builder

	status := m.spinner.View() + " " + HeaderTitleStyle.UnsetPaddingLeft().Render("Connected to "+m.Address)
	switch {
	case m.ended:
		status = StateStoppedStyle.Render(StoppedMarker) + " " + HeaderTitleStyle.UnsetPaddingLeft().Render("Session ended")
	case m.stopping:
		status += StateStoppedStyle.Render("  stopping...")
	}
	elapsed := time.Since(m.started).Truncate(time.Second)
	b.WriteString(status + HeaderCommandStyle.Render(elapsed.String()) + "\n\n")

	b.WriteString(m.renderTransmitters())
	b.WriteString("\n")
	b.WriteString(m.renderReceived())

	if m.err != nil {
		b.WriteString("\n" + ErrorMessageStyle.Render("Error: "+m.err.Error()) + "\n")
	}

	b.WriteString("\n" + m.help.View(m.keys) + "\n")
	return b.String()
}

func (m Monitor) renderTransmitters() string {
	rows := []string{
		TableHeaderStyle.Render(fmt.Sprintf("  %-12s %-22s %8s %10s  %s", "NAME", "FRAME", "PERIOD", "SENT", "STATE")),
	}
	for _, tx := range m.stats.Transmitters {
		marker, style := StoppedMarker, StateStoppedStyle
		if tx.State == periodic.StateRunning {
			marker, style = RunningMarker, StateRunningStyle
		}
		state := tx.State.String()
		if tx.Err != nil {
			state = "failed: " + tx.Err.Error()
			style = ErrorMessageStyle
		}
		rows = append(rows, fmt.Sprintf("%s %-12s %s %8s %10d  %s",
			style.Render(marker),
			truncate(tx.Name, 12),
			FrameStyle.Render(fmt.Sprintf("%-22s", tx.Frame)),
			tx.Period,
			tx.Sent,
			style.Render(state),
		))
	}
	rows = append(rows, HeaderCommandStyle.UnsetPaddingLeft().Render(
		fmt.Sprintf("  %d frames, %d bytes sent", m.stats.FramesSent, m.stats.BytesSent)))
	return strings.Join(rows, "\n") + "\n"
}

func (m Monitor) renderReceived() string {
	title := fmt.Sprintf("Received (%d chunks, %d bytes)", m.receivedTotal, m.stats.BytesReceived)
	if m.paused {
		title += " [paused]"
	}
	lines := []string{TableHeaderStyle.Render("  " + title)}
	for _, r := range m.received {
		lines = append(lines, "  "+HeaderCommandStyle.UnsetPaddingLeft().Render(r.At.Format("15:04:05.000"))+" "+FormatReceived(r.Data))
	}
	if len(m.received) == 0 {
		lines = append(lines, StateStoppedStyle.Render("  nothing yet"))
	}
	return strings.Join(lines, "\n") + "\n"
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}
