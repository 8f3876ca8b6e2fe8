// Package workflow keeps stored watchlists fresh between full syncs.
//
// Two independent loops run on the same cadence. The Detector polls each
// configured RSS feed, diffs it against the previous snapshot, and queues new
// or modified items while recording them as pending. The Refresher watches the
// queue and, once it has been quiet long enough, drains it and runs a full sync
// for every enabled source. A single-flight guard keeps at most one refresh
// running; ticks that arrive meanwhile are skipped.
//
// Workflow owns both loops and their shared state. Timers come from a Clock so
// tests can drive ticks by hand.
package workflow
