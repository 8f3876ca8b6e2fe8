// Package plex talks to the Plex watchlist APIs and RSS feeds.
//
// Client fetches personal watchlists from the discover provider, lists friends
// and their watchlists through the community GraphQL endpoint, and checks
// tokens against plex.tv. RSSClient reads the watchlist RSS feeds through
// gofeed and maps Plex's RSS conventions onto Item.
//
// Callers own retry policy; failures are returned wrapped with
// services.ErrTransient (or ErrUnauthorized for rejected tokens).
package plex
