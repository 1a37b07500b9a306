package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/muurk/wifican/internal/client"
)

// Param is one labelled value shown in a header. Params keep their order.
type Param struct {
	Key   string
	Value string
}

// Header represents a command header with title, command, and parameters.
type Header struct {
	Title   string  // e.g., "CAN GATEWAY SESSION"
	Command string  // e.g., "wifican run"
	Params  []Param // Rendered in order
	Width   int     // Terminal width for responsive rendering
}

// NewHeader creates a new header with the given values
func NewHeader(title, command string, params ...Param) *Header {
	return &Header{
		Title:   title,
		Command: command,
		Params:  params,
		Width:   GetTerminalWidth(),
	}
}

// SetWidth sets the terminal width for responsive rendering
func (h *Header) SetWidth(width int) *Header {
	h.Width = width
	return h
}

// Add appends a parameter.
func (h *Header) Add(key, value string) *Header {
	h.Params = append(h.Params, Param{Key: key, Value: value})
	return h
}

// Render returns the styled header as a string
func (h *Header) Render() string {
	width := h.Width
	if width < MinTerminalWidth {
		width = MinTerminalWidth
	}

	titleLine := HeaderTitleStyle.Render(strings.ToUpper(h.Title))
	commandLine := HeaderCommandStyle.Render(h.Command)
	content := lipgloss.JoinVertical(lipgloss.Left, titleLine, commandLine)

	if len(h.Params) > 0 {
		dividerWidth := width - 6 // Account for border and padding
		if dividerWidth < 10 {
			dividerWidth = 10
		}
		divider := RenderHorizontalDivider(dividerWidth, "─")

		paramLines := make([]string, 0, len(h.Params))
		for _, p := range h.Params {
			paramLines = append(paramLines,
				HeaderParamKeyStyle.Render(p.Key+":")+" "+HeaderParamValueStyle.Render(p.Value))
		}
		content = lipgloss.JoinVertical(lipgloss.Left, content, divider, strings.Join(paramLines, "\n"))
	}

	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(PrimaryColor).
		Width(width - 2). // Account for border characters
		Render(content)
}

// String implements fmt.Stringer
func (h *Header) String() string {
	return h.Render()
}

// SessionHeader builds the banner printed before a session starts: the
// gateway address, the read timeout and one line per periodic frame.
func SessionHeader(command string, cfg client.Config, stats client.Stats) *Header {
	h := NewHeader("CAN gateway session", command).
		Add("Gateway", cfg.Address()).
		Add("Read timeout", cfg.ReadTimeout.String())

	for _, tx := range stats.Transmitters {
		h.Add(tx.Name, fmt.Sprintf("%s every %s", FrameStyle.Render(tx.Frame), tx.Period))
	}
	if len(stats.Transmitters) == 0 {
		h.Add("Transmit", "nothing (receive only)")
	}
	return h
}
