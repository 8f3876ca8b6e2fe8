// Package services defines shared utilities consumed by the sync engine and
// its external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp watchlist sources, user identifiers, and
//     correlation identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper that let callers classify
//     failures (configuration vs transient) without string matching.
//
// Use these helpers when wiring new sync logic so operational behaviour (error
// handling, observability) stays uniform across the daemon, API, and CLI.
package services
