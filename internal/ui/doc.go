// Package ui renders terminal output for the wifican CLI.
//
// Plain output (the session header, "Received:" lines, result boxes) is
// styled with Lipgloss, which drops colors automatically when stdout is
// not a terminal, so piped output stays byte-for-byte readable.
//
// The Monitor is a Bubble Tea model used by "wifican run --tui". It shows
// a live table of transmitters with their frame counts and the most
// recent chunks received from the gateway.
//
// # Logging Integration
//
// zap logging is silent unless WIFICAN_LOG_LEVEL or --log-level is set,
// so the curated UI output is not interleaved with log lines.
package ui
