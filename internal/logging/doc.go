// Package logging assembles structured slog loggers and formatting helpers used
// across watchsync.
//
// It owns the console and JSON handlers, centralizes level parsing, and mirrors
// daemon output into a JSON log file under the configured log directory.
// Context helpers tag lines with the watchlist source, user, and request
// identifiers carried on the context. A no-op logger is provided for tests and
// wiring code that cannot fail.
package logging
