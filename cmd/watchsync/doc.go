// Command watchsync syncs Plex watchlists into a local database.
//
// `watchsync daemon` runs the long-lived process: the HTTP API plus the RSS
// workflow. The remaining commands either talk to a running daemon over its
// API (status, workflow, sync) or read the local database directly
// (watchlist, pending). `sync --local` runs a sync in-process without a daemon.
package main
