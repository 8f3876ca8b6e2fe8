package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"watchsync/internal/api"
	"watchsync/internal/config"
	"watchsync/internal/logging"
	"watchsync/internal/services"
	"watchsync/internal/store"
	"watchsync/internal/watchlist"
	"watchsync/internal/workflow"
)

const sseHeartbeat = 15 * time.Second

type apiServer struct {
	bind     string
	logger   *slog.Logger
	daemon   *Daemon
	router   chi.Router
	server   *http.Server
	// closed on shutdown so event streams end
	shutdown chan struct{}

	mu       sync.Mutex
	listener net.Listener
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) *apiServer {
	srv := &apiServer{
		bind:     strings.TrimSpace(cfg.Paths.APIBind),
		logger:   logging.NewComponentLogger(logger, "api-server"),
		daemon:   d,
		shutdown: make(chan struct{}),
	}
	srv.router = srv.routes(cfg.Paths.APIToken)
	srv.server = &http.Server{
		Handler:           srv.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	srv.server.RegisterOnShutdown(func() { close(srv.shutdown) })
	return srv
}

func (s *apiServer) routes(token string) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestIDMiddleware)
	r.Use(authMiddleware(token))

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Post("/watchlist/{source}/sync", s.handleSync)
		r.Get("/watchlist/users", s.handleUsers)
		r.Get("/watchlist/users/{id}", s.handleUser)
		r.Get("/pending", s.handlePending)
		r.Get("/workflow", s.handleWorkflow)
		r.Post("/workflow/start", s.handleWorkflowStart)
		r.Post("/workflow/stop", s.handleWorkflowStop)
		r.Get("/progress", s.handleProgress)
	})
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorBody("method not allowed"))
	})
	return r
}

func (s *apiServer) start(ctx context.Context) error {
	if s.bind == "" {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		s.stop()
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	s.mu.Lock()
	listener := s.listener
	s.listener = nil
	s.mu.Unlock()
	if listener == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.server.Shutdown(shutdownCtx)
	_ = listener.Close()
}

func (s *apiServer) address() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := s.daemon.Status(r.Context())
	sources := make([]string, 0, len(status.SyncSources))
	for _, source := range status.SyncSources {
		sources = append(sources, string(source))
	}
	writeJSON(w, http.StatusOK, api.DaemonStatus{
		Running:           status.Running,
		PID:               status.PID,
		DatabasePath:      status.DatabasePath,
		LockFilePath:      status.LockFilePath,
		Users:             status.Users,
		Items:             status.Items,
		Pending:           status.Pending,
		ProgressListeners: status.ProgressListeners,
		SyncSources:       sources,
		Workflow:          api.FromWorkflowStatus(status.Workflow),
	})
}

func (s *apiServer) handleSync(w http.ResponseWriter, r *http.Request) {
	source, ok := store.ParseSource(chi.URLParam(r, "source"))
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("source must be self or friends"))
		return
	}
	resp, err := s.daemon.Sync(r.Context(), source)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, api.FromResponse(resp))
}

func (s *apiServer) handleUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.daemon.store.ListUsers(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	out := api.UserListResponse{Users: make([]api.User, 0, len(users))}
	for _, user := range users {
		out.Users = append(out.Users, api.FromUserSummary(user))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *apiServer) handleUser(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid user id"))
		return
	}
	ctx := services.WithUserID(r.Context(), id)
	user, err := s.daemon.store.GetUser(ctx, id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if user == nil {
		writeJSON(w, http.StatusNotFound, errorBody("user not found"))
		return
	}
	items, err := s.daemon.store.GetAllWatchlistItemsForUser(ctx, id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, api.UserDetailResponse{
		User:  api.FromUserSummary(store.UserSummary{User: *user, ItemCount: len(items)}),
		Items: api.FromStoredItems(items),
	})
}

func (s *apiServer) handlePending(w http.ResponseWriter, r *http.Request) {
	var source store.Source
	if raw := strings.TrimSpace(r.URL.Query().Get("source")); raw != "" {
		parsed, ok := store.ParseSource(raw)
		if !ok {
			writeJSON(w, http.StatusBadRequest, errorBody("source must be self or friends"))
			return
		}
		source = parsed
	}
	items, err := s.daemon.store.GetTempRSSItems(r.Context(), source)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, api.PendingListResponse{Items: api.FromTempRSSItems(items)})
}

func (s *apiServer) handleWorkflow(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, api.FromWorkflowStatus(s.daemon.WorkflowStatus()))
}

func (s *apiServer) handleWorkflowStart(w http.ResponseWriter, r *http.Request) {
	if err := s.daemon.StartWorkflow(); err != nil {
		if errors.Is(err, workflow.ErrAlreadyRunning) {
			writeJSON(w, http.StatusConflict, errorBody(err.Error()))
			return
		}
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, api.FromWorkflowStatus(s.daemon.WorkflowStatus()))
}

func (s *apiServer) handleWorkflowStop(w http.ResponseWriter, _ *http.Request) {
	s.daemon.StopWorkflow()
	writeJSON(w, http.StatusOK, api.FromWorkflowStatus(s.daemon.WorkflowStatus()))
}

// handleProgress streams progress events as server-sent events until the client disconnects.
func (s *apiServer) handleProgress(w http.ResponseWriter, r *http.Request) {
	rc := http.NewResponseController(w)
	events, cancel := s.daemon.hub.Subscribe()
	defer cancel()

	_ = rc.SetWriteDeadline(time.Time{})
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, ": connected\n\n")
	if err := rc.Flush(); err != nil {
		return
	}

	heartbeat := time.NewTicker(sseHeartbeat)
	defer heartbeat.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case <-s.shutdown:
			return
		case <-heartbeat.C:
			fmt.Fprint(w, ": ping\n\n")
		case evt, ok := <-events:
			if !ok {
				return
			}
			payload, err := json.Marshal(evt)
			if err != nil {
				s.logger.Warn("failed to encode progress event", logging.Error(err))
				continue
			}
			fmt.Fprintf(w, "id: %d\nevent: progress\ndata: %s\n\n", evt.Sequence, payload)
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}

func (s *apiServer) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusForError(err)
	logger := logging.WithContext(r.Context(), s.logger)
	if status >= http.StatusInternalServerError {
		logging.ErrorWithContext(logger, "api request failed", "api_request_failed",
			logging.String("path", r.URL.Path),
			logging.Int("status", status),
			logging.Error(err),
		)
	} else {
		logger.Info("api request rejected",
			logging.String("path", r.URL.Path),
			logging.Int("status", status),
			logging.Error(err),
		)
	}
	writeJSON(w, status, errorBody(err.Error()))
}

func statusForError(err error) int {
	if errors.Is(err, watchlist.ErrNoWatchlistItems) {
		return http.StatusUnprocessableEntity
	}
	return services.HTTPStatus(err)
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get("X-Request-ID"))
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(services.WithRequestID(r.Context(), id)))
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func errorBody(message string) api.ErrorResponse {
	return api.ErrorResponse{Error: message}
}
