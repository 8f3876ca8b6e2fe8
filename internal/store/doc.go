// Package store persists watchsync users, watchlist items, pending RSS
// sightings, and genres in SQLite.
//
// The schema is embedded and versioned; opening a database with a different
// schema version fails with ErrSchemaMismatch. Writes retry on SQLITE_BUSY so
// an on-demand sync and a background refresh can overlap safely.
//
// List-valued columns (guids, genres) are stored as JSON text. DecodeList
// accepts older encodings as well so rows written by other tools still match.
package store
