// Package config manages the wifican YAML configuration file.
//
// The file describes the gateway to connect to and the periodic messages
// the client transmits. When no file exists the defaults reproduce the
// gateway's reference test: two frames, 0x456 every 10ms and the
// extended 0x56789A every 100ms, sent to 192.168.42.1:10001.
//
// # Configuration File Location
//
//   - Linux: $XDG_CONFIG_HOME/wifican/config.yaml or $HOME/.config/wifican/config.yaml
//   - macOS: $HOME/.config/wifican/config.yaml
//   - Windows: %LOCALAPPDATA%\wifican\config.yaml
//
// An explicit path given with --config always wins.
//
// # Example
//
//	version: 1
//	gateway:
//	  host: 192.168.42.1
//	  port: 10001
//	  read_timeout: 10s
//	messages:
//	  - name: standard
//	    id: "0x456"
//	    data: "0806040200"
//	    period: 10ms
//
// # Validation
//
// Load validates the file: every message must encode to a legal CAN frame
// (11-bit standard or 29-bit extended identifier, at most eight data
// bytes) and every period must be positive. Problems are reported as
// *FieldError values joined into one error.
package config
