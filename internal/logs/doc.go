// Package logs reads the daemon log file for the `watchsync logs` command.
//
// Tail returns the last N lines with bounded memory; Follow polls from an
// offset and streams lines as the daemon appends them, restarting from the top
// when the file is truncated or rotated.
package logs
