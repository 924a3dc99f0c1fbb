// Package log provides the structured session trace for vtprobe.
//
// This package defines the Logger interface and Event types for capturing
// lifecycle transitions, tag accesses, request submissions and errors. It is
// separate from operational logging (slog): the trace is a complete
// machine-readable record of one probing session for later analysis.
//
// # Basic Usage
//
// Applications configure tracing by providing a Logger implementation:
//
//	// For development: log to console via slog
//	cfg.Trace = log.NewSlogAdapter(slog.Default())
//
//	// For later analysis: write to binary file
//	cfg.Trace, _ = log.NewFileLogger("probe.vtlog")
//
//	// Both: use MultiLogger
//	cfg.Trace = log.NewMultiLogger(
//	    log.NewSlogAdapter(slog.Default()),
//	    fileLogger,
//	)
//
// # Event Types
//
// Every event carries a session id and one payload:
//   - StateChangeEvent: session state transitions
//   - AccessEvent: typed tag reads and writes, with value or failure
//   - CaptureEvent: repeating submissions and single captures
//   - ErrorEventData: device errors and HAL faults
//
// # File Format
//
// Trace files are a stream of CBOR-encoded events with the .vtlog
// extension. "vtprobe log" prints and filters them.
package log
