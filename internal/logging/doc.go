// Package logging provides a simple leveled logging interface for the
// asset-tiles engine.
//
// It supports the following log levels:
//   - DEBUG: Verbose debugging information
//   - INFO: General operational messages
//   - WARN: Warning conditions
//   - ERROR: Error conditions
//
// The log level is configured via the LOG_LEVEL environment variable, or
// programmatically with SetLevel.
package logging
