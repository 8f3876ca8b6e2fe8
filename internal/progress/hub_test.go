package progress_test

import (
	"testing"

	"watchsync/internal/progress"
)

func TestHubTracksConnections(t *testing.T) {
	hub := progress.NewHub(4)
	if hub.HasActiveConnections() {
		t.Fatal("new hub should have no connections")
	}
	_, cancel := hub.Subscribe()
	if !hub.HasActiveConnections() || hub.Connections() != 1 {
		t.Fatal("expected one active connection")
	}
	cancel()
	cancel()
	if hub.HasActiveConnections() {
		t.Fatal("expected connection removed after cancel")
	}
}

func TestHubDeliversInOrderWithSequence(t *testing.T) {
	hub := progress.NewHub(4)
	events, cancel := hub.Subscribe()
	defer cancel()

	hub.Emit(progress.Event{OperationID: "op", Type: progress.TypeSelfWatchlist, Phase: progress.PhaseStart, Progress: 0})
	hub.Emit(progress.Event{OperationID: "op", Type: progress.TypeSelfWatchlist, Phase: progress.PhaseComplete, Progress: 100})

	first := <-events
	second := <-events
	if first.Phase != progress.PhaseStart || second.Phase != progress.PhaseComplete {
		t.Fatalf("unexpected order: %v then %v", first.Phase, second.Phase)
	}
	if second.Sequence != first.Sequence+1 {
		t.Fatalf("expected consecutive sequences, got %d and %d", first.Sequence, second.Sequence)
	}
	if first.Timestamp.IsZero() {
		t.Fatal("expected timestamp to be assigned")
	}
}

func TestHubDropsForSlowSubscriber(t *testing.T) {
	hub := progress.NewHub(1)
	events, cancel := hub.Subscribe()
	defer cancel()

	hub.Emit(progress.Event{Phase: progress.PhaseStart})
	hub.Emit(progress.Event{Phase: progress.PhaseSaving})

	if got := hub.Dropped(); got != 1 {
		t.Fatalf("expected 1 dropped event, got %d", got)
	}
	if evt := <-events; evt.Phase != progress.PhaseStart {
		t.Fatalf("expected buffered start event, got %v", evt.Phase)
	}
}

func TestNilHubIsInert(t *testing.T) {
	var hub *progress.Hub
	if hub.HasActiveConnections() {
		t.Fatal("nil hub should report no connections")
	}
	hub.Emit(progress.Event{})
}
