// Package api defines wire-format types and converters for the HTTP API.
//
// DTOs use camelCase JSON tags. Timestamps are RFC3339 with milliseconds in
// UTC and omitted when zero. Converters translate watchlist, store, and
// workflow models so handlers and the CLI never encode internal types
// directly. Client is the small HTTP client the CLI uses to reach a running
// daemon.
package api
