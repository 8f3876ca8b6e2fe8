// Package config loads, normalizes, and validates watchsync configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// PLEX_TOKENS. The Config type centralizes every knob the daemon and CLI need,
// allowing data directories, Plex credentials, RSS endpoints, and workflow
// timing to be discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
