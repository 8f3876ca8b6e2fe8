// Package watchlist reconciles Plex watchlists with local storage.
//
// A sync pass for one source (personal tokens or friends) runs:
//
//	Resolver   -> maps each token or friend onto a local user, creating it on first sight
//	Collector  -> fetches every identity's watchlist in parallel, keeping partial results
//	Reconciler -> inserts new content, links content other users already hold, prunes removals
//	Matcher    -> clears pending RSS sightings confirmed by the fresh result
//
// Content is the same across users when any GUID intersects; the upstream
// key only identifies an item within one identity's watchlist. Syncer wires
// the steps together and is what the daemon, CLI, and RSS workflow call.
package watchlist
