// Package daemon coordinates the long-running watchsync process.
//
// It wires configuration, storage, the watchlist syncer, the RSS workflow,
// and the progress hub into a single lifecycle with flock-based locking to
// prevent multiple instances. The HTTP API (chi router, optional bearer
// token) exposes on-demand syncs, stored watchlists, pending RSS items,
// workflow control, and a server-sent event stream of sync progress.
//
// Keep orchestration here; sync logic lives in watchlist and the polling
// loops in workflow.
package daemon
