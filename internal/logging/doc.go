// Package logging assembles structured slog loggers and formatting helpers used
// across hlscache.
//
// It owns the console and JSON handlers, level parsing (including the
// critical level used for configuration faults), and context-aware helpers
// that tag log lines with request correlation ids and rendition keys. A
// no-op logger is provided for tests and optional wiring.
package logging
