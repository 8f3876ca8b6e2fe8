// Package progress fans sync progress events out to live subscribers, such as
// the daemon's server-sent events endpoint.
//
// Emitters check HasActiveConnections before building events so that passes
// with nobody watching do no extra work. Slow subscribers never block an
// emitter: events that do not fit a subscriber's buffer are dropped for that
// subscriber and counted.
package progress
