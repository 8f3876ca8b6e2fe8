package daemon

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"watchsync/internal/api"
	"watchsync/internal/config"
	"watchsync/internal/logging"
	"watchsync/internal/progress"
	"watchsync/internal/services/plex"
	"watchsync/internal/store"
	"watchsync/internal/testsupport"
	"watchsync/internal/watchlist"
	"watchsync/internal/workflow"
)

type stubFetcher struct {
	items map[string][]plex.Item
	err   error
}

func (f *stubFetcher) Watchlist(_ context.Context, token string) ([]plex.Item, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.items[token], nil
}

func (f *stubFetcher) Friends(context.Context, string) ([]plex.Friend, error) {
	return nil, nil
}

func (f *stubFetcher) FriendWatchlist(context.Context, string, string) ([]plex.Item, error) {
	return nil, nil
}

type noFeeds struct{}

func (noFeeds) Fetch(context.Context, string) ([]plex.Item, error) { return nil, nil }

func newTestDaemon(t *testing.T, cfg *config.Config, fetcher watchlist.Fetcher) *Daemon {
	t.Helper()
	st := testsupport.MustOpenStore(t, cfg)
	hub := progress.NewHub(8)
	logger := logging.NewNop()
	syncer := watchlist.NewSyncer(watchlist.SyncerOptions{
		Store:       st,
		Fetcher:     fetcher,
		Sink:        hub,
		Tokens:      cfg.Plex.Tokens,
		SyncFriends: cfg.Plex.SyncFriends,
		Logger:      logger,
	})
	wf := workflow.New(workflow.Options{Config: cfg, Feeds: noFeeds{}, Pending: st, Runner: syncer, Logger: logger})
	d, err := New(Options{Config: cfg, Store: st, Syncer: syncer, Workflow: wf, Hub: hub, Logger: logger})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return d
}

func serve(d *Daemon, method, path string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	w := httptest.NewRecorder()
	d.api.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return out
}

func TestSyncEndpointReconcilesAndListsUsers(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithTokens("alpha"))
	fetcher := &stubFetcher{items: map[string][]plex.Item{
		"alpha": {{ID: "1", Title: "Heat", Type: "movie", GUIDs: []string{"imdb://tt1"}}},
	}}
	d := newTestDaemon(t, cfg, fetcher)

	w := serve(d, http.MethodPost, "/api/watchlist/self/sync", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	resp := decode[api.SyncResponse](t, w)
	if resp.Total != 1 || len(resp.Users) != 1 || resp.Users[0].Username != "token1" {
		t.Fatalf("unexpected sync response %+v", resp)
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Fatal("expected a request id header")
	}

	w = serve(d, http.MethodGet, "/api/watchlist/users", nil)
	users := decode[api.UserListResponse](t, w)
	if len(users.Users) != 1 || users.Users[0].ItemCount != 1 {
		t.Fatalf("unexpected users %+v", users)
	}

	w = serve(d, http.MethodGet, fmt.Sprintf("/api/watchlist/users/%d", users.Users[0].ID), nil)
	detail := decode[api.UserDetailResponse](t, w)
	if len(detail.Items) != 1 || detail.Items[0].Key != "1" {
		t.Fatalf("unexpected detail %+v", detail)
	}
}

func TestSyncEndpointErrors(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d := newTestDaemon(t, cfg, &stubFetcher{err: errors.New("boom")})

	cases := []struct {
		path string
		want int
	}{
		{"/api/watchlist/everyone/sync", http.StatusBadRequest},
		{"/api/watchlist/self/sync", http.StatusUnprocessableEntity},
	}
	for _, tc := range cases {
		w := serve(d, http.MethodPost, tc.path, nil)
		if w.Code != tc.want {
			t.Fatalf("%s: expected %d, got %d", tc.path, tc.want, w.Code)
		}
		if body := decode[api.ErrorResponse](t, w); body.Error == "" {
			t.Fatalf("%s: expected error message", tc.path)
		}
	}

	if w := serve(d, http.MethodGet, "/api/watchlist/users/abc", nil); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad id, got %d", w.Code)
	}
	if w := serve(d, http.MethodGet, "/api/watchlist/users/999", nil); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for missing user, got %d", w.Code)
	}
	if w := serve(d, http.MethodGet, "/api/watchlist/self/sync", nil); w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", w.Code)
	}
}

func TestSyncWithoutTokensIsBadRequest(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithTokens())
	d := newTestDaemon(t, cfg, &stubFetcher{})
	if w := serve(d, http.MethodPost, "/api/watchlist/self/sync", nil); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestPendingEndpointFiltersBySource(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d := newTestDaemon(t, cfg, &stubFetcher{})
	if err := d.store.CreateTempRSSItems(context.Background(), []store.TempRSSItem{
		{Source: store.SourceSelf, Key: "a", Title: "A", Type: "movie"},
		{Source: store.SourceFriends, Key: "b", Title: "B", Type: "show"},
	}); err != nil {
		t.Fatalf("CreateTempRSSItems: %v", err)
	}

	all := decode[api.PendingListResponse](t, serve(d, http.MethodGet, "/api/pending", nil))
	if len(all.Items) != 2 {
		t.Fatalf("expected 2 pending items, got %d", len(all.Items))
	}
	friends := decode[api.PendingListResponse](t, serve(d, http.MethodGet, "/api/pending?source=friends", nil))
	if len(friends.Items) != 1 || friends.Items[0].Title != "B" {
		t.Fatalf("unexpected friends items %+v", friends.Items)
	}
	if w := serve(d, http.MethodGet, "/api/pending?source=nope", nil); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestWorkflowStartWithoutFeedsIsBadRequest(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d := newTestDaemon(t, cfg, &stubFetcher{})
	d.ctx = context.Background()

	if w := serve(d, http.MethodPost, "/api/workflow/start", nil); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
	status := decode[api.WorkflowStatus](t, serve(d, http.MethodGet, "/api/workflow", nil))
	if status.Running {
		t.Fatal("workflow should not be running")
	}
}

func TestAuthMiddlewareRequiresBearerToken(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Paths.APIToken = "secret"
	d := newTestDaemon(t, cfg, &stubFetcher{})

	if w := serve(d, http.MethodGet, "/api/workflow", nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", w.Code)
	}
	bad := http.Header{"Authorization": {"Bearer wrong"}}
	if w := serve(d, http.MethodGet, "/api/workflow", bad); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with wrong token, got %d", w.Code)
	}
	good := http.Header{"Authorization": {"Bearer secret"}}
	if w := serve(d, http.MethodGet, "/api/workflow", good); w.Code != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d", w.Code)
	}
}

func TestProgressStreamDeliversEvents(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d := newTestDaemon(t, cfg, &stubFetcher{})
	srv := httptest.NewServer(d.api.router)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/progress", nil)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET progress: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("unexpected content type %q", ct)
	}

	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	if err != nil || !strings.HasPrefix(line, ": connected") {
		t.Fatalf("expected connected comment, got %q (%v)", line, err)
	}
	if !d.hub.HasActiveConnections() {
		t.Fatal("hub should report the subscriber")
	}

	d.hub.Emit(progress.Event{OperationID: "op-1", Type: progress.TypeSelfWatchlist, Phase: progress.PhaseStart})
	var data string
	for data == "" {
		line, err := reader.ReadString('\n')
		if err != nil {
			t.Fatalf("read stream: %v", err)
		}
		if payload, ok := strings.CutPrefix(line, "data: "); ok {
			data = strings.TrimSpace(payload)
		}
	}
	var evt progress.Event
	if err := json.Unmarshal([]byte(data), &evt); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	if evt.OperationID != "op-1" || evt.Phase != progress.PhaseStart {
		t.Fatalf("unexpected event %+v", evt)
	}
}
