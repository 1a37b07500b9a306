// Package logging provides structured logging for the wifican client.
//
// This package wraps a global zap logger with convenience functions for the
// logging patterns used throughout the client: connection lifecycle events,
// transmitter state changes and raw frame dumps.
//
// # Log Levels
//
//   - Debug: Every frame written or chunk received, with hex and ASCII dumps
//   - Info: Connection events, transmitters starting and stopping
//   - Warn: Transmitter write failures, read timeouts
//   - Error: Fatal session errors
//
// # Configuration
//
// Logging is silent unless a level is passed explicitly or the
// WIFICAN_LOG_LEVEL environment variable is set. This keeps the
// "Received: ..." output of the client readable by default.
//
//	if err := logging.Initialize("debug"); err != nil {
//	    log.Fatal(err)
//	}
//	defer logging.Sync()
//
// # Thread Safety
//
// All logging functions are safe for concurrent use.
package logging
