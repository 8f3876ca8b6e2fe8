package main

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"watchsync/internal/api"
)

func TestRenderStatusLineNoColor(t *testing.T) {
	got := renderStatusLine("Daemon", statusError, "not running", false)
	want := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, "Daemon:", "[ERROR] not running")
	if got != want {
		t.Fatalf("renderStatusLine mismatch\n got: %q\nwant: %q", got, want)
	}
}

func TestRenderStatusLineWithColor(t *testing.T) {
	got := renderStatusLine("Daemon", statusOK, "running", true)
	if !strings.HasPrefix(got, statusKinds[statusOK].color) || !strings.HasSuffix(got, ansiReset) {
		t.Fatalf("expected green wrapped line, got %q", got)
	}
}

func TestRenderTablePlain(t *testing.T) {
	got := renderTable([]string{"ID", "Name"}, [][]string{{"1", "alice"}, {"2"}}, nil, true)
	want := "ID\tName\n1\talice\n2\t"
	if got != want {
		t.Fatalf("plain table mismatch\n got: %q\nwant: %q", got, want)
	}
}

func TestRenderTablePretty(t *testing.T) {
	got := renderTable([]string{"ID", "Name"}, [][]string{{"1", "alice"}}, []columnAlignment{alignRight}, false)
	if !strings.Contains(got, "alice") || !strings.Contains(got, "╭") {
		t.Fatalf("expected rounded table, got %q", got)
	}
}

func TestSyncTargets(t *testing.T) {
	all, err := syncTargets("all")
	if err != nil || len(all) != 2 {
		t.Fatalf("all: %v %v", all, err)
	}
	if _, err := syncTargets("bogus"); err == nil {
		t.Fatal("expected error for bogus target")
	}
}

func TestWorkflowSectionKinds(t *testing.T) {
	tests := []struct {
		name  string
		wf    api.WorkflowStatus
		label string
		want  string
	}{
		{"stopped", api.WorkflowStatus{}, "Workflow", "[WARN] stopped"},
		{"running", api.WorkflowStatus{Running: true, StartedAt: "t0"}, "Workflow", "[OK] running since t0"},
		{"settling", api.WorkflowStatus{QueueLength: 2, LastQueuedAt: "t1"}, "Queued changes", "[WARN] 2 waiting for quiet period since t1"},
		{"refreshing", api.WorkflowStatus{QueueLength: 0, RefreshInProgress: true}, "Queued changes", "[INFO] 0 (refresh running)"},
		{"failed", api.WorkflowStatus{LastError: "boom"}, "Last error", "[ERROR] boom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			writeSections(&out, false, workflowSection(tt.wf))
			want := renderStatusLine(tt.label, statusInfo, "", false)
			want = strings.TrimSuffix(want, "[INFO]") + tt.want
			if !strings.Contains(out.String(), want) {
				t.Fatalf("expected %q in\n%s", want, out.String())
			}
		})
	}
}

func TestDaemonSectionListsSyncSources(t *testing.T) {
	var out bytes.Buffer
	writeSections(&out, false, daemonSection(api.DaemonStatus{PID: 42, Pending: 3, SyncSources: []string{"self"}}))
	got := out.String()
	for _, want := range []string{"== Daemon ==", "running (pid 42)", "[INFO] self", "[WARN] 3 unmatched RSS items"} {
		if !strings.Contains(got, want) {
			t.Fatalf("expected %q in\n%s", want, got)
		}
	}
}
