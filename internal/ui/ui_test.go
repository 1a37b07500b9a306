package ui

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/muurk/wifican/internal/client"
	"github.com/muurk/wifican/internal/periodic"
)

func testStats() client.Stats {
	return client.Stats{
		BytesSent:     170,
		FramesSent:    10,
		BytesReceived: 5,
		Transmitters: []client.TransmitterStats{
			{Name: "standard", Frame: ":S456N0806040200;", Period: 10 * time.Millisecond, Sent: 9, State: periodic.StateRunning},
			{Name: "extended", Frame: ":X56789AN05030709;", Period: 100 * time.Millisecond, Sent: 1, State: periodic.StateRunning},
		},
	}
}

func TestFormatReceived(t *testing.T) {
	tests := []struct {
		data []byte
		want string
	}{
		{[]byte("hello"), `"hello"`},
		{[]byte{0x00, 0x7F}, `"\x00\x7f"`},
		{nil, `""`},
	}
	for _, tt := range tests {
		got := FormatReceived(tt.data)
		if !strings.Contains(got, "Received:") || !strings.Contains(got, tt.want) {
			t.Errorf("FormatReceived(%v) = %q, want Received: %s", tt.data, got, tt.want)
		}
	}
}

func TestHeader_RenderKeepsParamOrder(t *testing.T) {
	h := NewHeader("Session", "wifican run",
		Param{Key: "First", Value: "1"},
		Param{Key: "Second", Value: "2"},
		Param{Key: "Third", Value: "3"},
	).SetWidth(80)

	out := h.Render()
	if !strings.Contains(out, "SESSION") {
		t.Error("title should be upper-cased")
	}
	i1, i2, i3 := strings.Index(out, "First"), strings.Index(out, "Second"), strings.Index(out, "Third")
	if i1 < 0 || i2 < i1 || i3 < i2 {
		t.Errorf("params out of order in:\n%s", out)
	}
}

func TestSessionHeader(t *testing.T) {
	cfg := client.Config{Host: "192.168.42.1", Port: 10001, ReadTimeout: 10 * time.Second}
	out := SessionHeader("wifican run", cfg, testStats()).SetWidth(90).Render()

	for _, want := range []string{"192.168.42.1:10001", "10s", ":S456N0806040200;", ":X56789AN05030709;", "100ms"} {
		if !strings.Contains(out, want) {
			t.Errorf("SessionHeader missing %q:\n%s", want, out)
		}
	}

	empty := SessionHeader("wifican run", cfg, client.Stats{}).Render()
	if !strings.Contains(empty, "receive only") {
		t.Errorf("SessionHeader without messages should say receive only:\n%s", empty)
	}
}

func TestResult_Render(t *testing.T) {
	fail := NewFailureResult("Connection failed", errors.New("connection refused"),
		[]string{"Join the gateway access point"}).SetWidth(80).Render()
	for _, want := range []string{FailureMarker, "Connection failed", "connection refused", "Troubleshooting:", "Join the gateway"} {
		if !strings.Contains(fail, want) {
			t.Errorf("failure box missing %q", want)
		}
	}

	ok := NewSuccessResult("Session ended").AddDetail("Frames sent", "10").SetWidth(80).Render()
	if !strings.Contains(ok, SuccessMarker) || !strings.Contains(ok, "Frames sent") {
		t.Errorf("success box = %s", ok)
	}
}

func TestClampWidth(t *testing.T) {
	tests := []struct {
		width int
		err   error
		want  int
	}{
		{80, nil, 80},
		{20, nil, MinTerminalWidth},
		{400, nil, MaxContentWidth},
		{80, errors.New("not a tty"), MinTerminalWidth},
	}
	for _, tt := range tests {
		if got := clampWidth(tt.width, tt.err); got != tt.want {
			t.Errorf("clampWidth(%d, %v) = %d, want %d", tt.width, tt.err, got, tt.want)
		}
	}
}

func update(t *testing.T, m Monitor, msg tea.Msg) (Monitor, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	mon, ok := next.(Monitor)
	if !ok {
		t.Fatalf("Update returned %T, want Monitor", next)
	}
	return mon, cmd
}

func TestMonitor_RefreshShowsTransmitters(t *testing.T) {
	m := NewMonitor("192.168.42.1:10001", testStats, nil)
	m, cmd := update(t, m, refreshMsg(time.Now()))
	if cmd == nil {
		t.Error("refresh should schedule the next refresh")
	}

	view := m.View()
	for _, want := range []string{"192.168.42.1:10001", "standard", ":S456N0806040200;", "extended", "running", "10 frames, 170 bytes sent"} {
		if !strings.Contains(view, want) {
			t.Errorf("View() missing %q:\n%s", want, view)
		}
	}
}

func TestMonitor_ReceivedIsCapped(t *testing.T) {
	m := NewMonitor("gw", nil, nil)
	for i := 0; i < MaxReceivedLines+5; i++ {
		m, _ = update(t, m, ReceivedMsg{Data: []byte(fmt.Sprintf("chunk-%02d", i)), At: time.Now()})
	}

	if len(m.received) != MaxReceivedLines {
		t.Fatalf("kept %d chunks, want %d", len(m.received), MaxReceivedLines)
	}
	view := m.View()
	if strings.Contains(view, "chunk-00") {
		t.Error("oldest chunk should have been dropped")
	}
	if !strings.Contains(view, "chunk-14") {
		t.Error("newest chunk should be shown")
	}
	if !strings.Contains(view, fmt.Sprintf("Received (%d chunks", MaxReceivedLines+5)) {
		t.Errorf("total count missing:\n%s", view)
	}
}

func TestMonitor_PauseAndClear(t *testing.T) {
	m := NewMonitor("gw", nil, nil)
	m, _ = update(t, m, ReceivedMsg{Data: []byte("a")})

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'p'}})
	m, _ = update(t, m, ReceivedMsg{Data: []byte("b")})
	if len(m.received) != 1 || m.receivedTotal != 2 {
		t.Errorf("paused monitor kept %d chunks (total %d), want 1 (total 2)", len(m.received), m.receivedTotal)
	}
	if !strings.Contains(m.View(), "[paused]") {
		t.Error("View() should show paused")
	}

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'c'}})
	if len(m.received) != 0 {
		t.Errorf("clear left %d chunks", len(m.received))
	}
}

func TestMonitor_QuitCancelsAndWaitsForSession(t *testing.T) {
	cancelled := 0
	m := NewMonitor("gw", testStats, func() { cancelled++ })

	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	if cancelled != 1 {
		t.Errorf("cancel called %d times, want 1", cancelled)
	}
	if cmd != nil {
		t.Error("quit should wait for the session to end")
	}

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlC})
	if cancelled != 1 {
		t.Errorf("second quit called cancel again (%d)", cancelled)
	}

	sessionErr := errors.New("read timeout")
	m, cmd = update(t, m, SessionEndedMsg{Err: sessionErr})
	if cmd == nil {
		t.Fatal("SessionEndedMsg should quit")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("SessionEndedMsg should return tea.Quit")
	}
	if !errors.Is(m.Err(), sessionErr) {
		t.Errorf("Err() = %v, want %v", m.Err(), sessionErr)
	}
	if !strings.Contains(m.View(), "Session ended") {
		t.Error("View() should report the session ended")
	}
}

func TestMonitor_QuitWithoutCancel(t *testing.T) {
	m := NewMonitor("gw", nil, nil)
	_, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	if cmd == nil {
		t.Fatal("quit without a session should exit immediately")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("expected tea.QuitMsg")
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("standard", 12); got != "standard" {
		t.Errorf("truncate() = %q", got)
	}
	if got := truncate("a-very-long-name", 6); got != "a-ver…" {
		t.Errorf("truncate() = %q", got)
	}
}
