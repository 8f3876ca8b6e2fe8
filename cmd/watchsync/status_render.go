package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/mattn/go-isatty"

	"watchsync/internal/api"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

var statusKinds = map[statusKind]struct {
	label string
	color string
}{
	statusInfo:  {"INFO", "\x1b[34m"},
	statusOK:    {"OK", "\x1b[32m"},
	statusWarn:  {"WARN", "\x1b[33m"},
	statusError: {"ERROR", "\x1b[31m"},
}

const (
	ansiReset        = "\x1b[0m"
	statusLabelWidth = 18
	statusIndent     = "  "
)

// statusLine is one "label: [KIND] message" row.
type statusLine struct {
	label   string
	kind    statusKind
	message string
}

type statusSection struct {
	title string
	lines []statusLine
}

func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	meta := statusKinds[kind]
	text := "[" + meta.label + "]"
	if message != "" {
		text += " " + message
	}
	line := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, label+":", text)
	if colorize {
		return meta.color + line + ansiReset
	}
	return line
}

// writeSections prints each section under a "== title ==" rule, separated by
// blank lines.
func writeSections(out io.Writer, colorize bool, sections ...statusSection) {
	for i, section := range sections {
		if i > 0 {
			fmt.Fprintln(out)
		}
		header := "== " + strings.TrimSpace(section.title) + " =="
		rule := strings.Repeat("-", len(header))
		if colorize {
			header = statusKinds[statusInfo].color + header + ansiReset
			rule = statusKinds[statusInfo].color + rule + ansiReset
		}
		fmt.Fprintln(out, header)
		fmt.Fprintln(out, rule)
		for _, line := range section.lines {
			fmt.Fprintln(out, renderStatusLine(line.label, line.kind, line.message, colorize))
		}
	}
}

func daemonSection(status api.DaemonStatus) statusSection {
	sources := "none"
	if len(status.SyncSources) > 0 {
		sources = strings.Join(status.SyncSources, ", ")
	}
	pendingKind := statusInfo
	if status.Pending > 0 {
		pendingKind = statusWarn
	}
	return statusSection{title: "Daemon", lines: []statusLine{
		{"Daemon", statusOK, "running (pid " + strconv.Itoa(status.PID) + ")"},
		{"Database", statusInfo, status.DatabasePath},
		{"Sync sources", statusInfo, sources},
		{"Users", statusInfo, strconv.Itoa(status.Users)},
		{"Items", statusInfo, strconv.Itoa(status.Items)},
		{"Pending", pendingKind, strconv.Itoa(status.Pending) + " unmatched RSS items"},
		{"Progress listeners", statusInfo, strconv.Itoa(status.ProgressListeners)},
	}}
}

func workflowSection(wf api.WorkflowStatus) statusSection {
	section := statusSection{title: "Workflow"}
	add := func(label string, kind statusKind, message string) {
		section.lines = append(section.lines, statusLine{label, kind, message})
	}

	if wf.Running {
		add("Workflow", statusOK, "running since "+wf.StartedAt)
	} else {
		add("Workflow", statusWarn, "stopped")
	}
	feeds := "none"
	if len(wf.Feeds) > 0 {
		feeds = strings.Join(wf.Feeds, ", ")
	}
	add("Feeds", statusInfo, feeds)

	switch {
	case wf.RefreshInProgress:
		add("Queued changes", statusInfo, strconv.Itoa(wf.QueueLength)+" (refresh running)")
	case wf.QueueLength > 0:
		add("Queued changes", statusWarn, strconv.Itoa(wf.QueueLength)+" waiting for quiet period since "+wf.LastQueuedAt)
	default:
		add("Queued changes", statusInfo, "0")
	}

	refreshes := strconv.Itoa(wf.Refreshes)
	if wf.LastRefreshAt != "" {
		refreshes += ", last at " + wf.LastRefreshAt
	}
	add("Refreshes", statusInfo, refreshes)
	if wf.LastError != "" {
		add("Last error", statusError, wf.LastError)
	}
	return section
}

// isTerminal reports whether writer is an interactive terminal.
func isTerminal(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
