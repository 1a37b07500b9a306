package ui

import (
	"fmt"
	"io"
	"os"
	"strconv"
)

// FormatReceived renders one received chunk as a "Received:" line with
// the bytes quoted. Without a color terminal it is identical to
// client.FormatReceived.
func FormatReceived(data []byte) string {
	return ReceivedLabelStyle.Render("Received:") + " " + ReceivedDataStyle.Render(strconv.Quote(string(data)))
}

// Printer provides methods for printing UI components to a writer.
type Printer struct {
	out   io.Writer
	width int
}

// NewPrinter creates a new Printer that writes to the given writer.
// If w is nil, os.Stdout is used.
func NewPrinter(w io.Writer) *Printer {
	if w == nil {
		w = os.Stdout
	}
	return &Printer{
		out:   w,
		width: GetTerminalWidth(),
	}
}

// Writer returns the underlying writer.
func (p *Printer) Writer() io.Writer {
	return p.out
}

// Width returns the current terminal width used by this printer
func (p *Printer) Width() int {
	return p.width
}

// Println writes content with a newline
func (p *Printer) Println(content string) {
	_, _ = fmt.Fprintln(p.out, content)
}

// Newline prints an empty line
func (p *Printer) Newline() {
	_, _ = fmt.Fprintln(p.out)
}

// PrintHeader prints a command header box
func (p *Printer) PrintHeader(h *Header) {
	p.Println(h.SetWidth(p.width).Render())
}

// PrintResult prints a result box
func (p *Printer) PrintResult(r *Result) {
	p.Println(r.SetWidth(p.width).Render())
}
