package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"scuffcommander/internal/history"
	"scuffcommander/internal/store"
	"scuffcommander/pkg/action"
	"scuffcommander/pkg/plugin"
)

const maxBodyBytes = 1 << 20

// ActionStore is the subset of the action repository the server uses.
type ActionStore interface {
	Get(ctx context.Context, id string) (*store.Record, error)
	List(ctx context.Context) ([]*store.Record, error)
	Put(ctx context.Context, id string, a action.Action) error
	Delete(ctx context.Context, id string) error
}

// Deps are the collaborators of Server. Metrics and History may be nil.
type Deps struct {
	Actions  ActionStore
	Runner   *action.Runner
	Registry *plugin.Registry
	Metrics  http.Handler
	History  *history.Tracker
	Logger   *zap.Logger
}

// Server provides the HTTP trigger and authoring endpoints
type Server struct {
	actions  ActionStore
	runner   *action.Runner
	registry *plugin.Registry
	history  *history.Tracker
	logger   *zap.Logger
	router   chi.Router
	server   *http.Server
}

// NewServer creates a new API server listening on addr.
func NewServer(deps Deps, addr string) *Server {
	s := &Server{
		actions:  deps.Actions,
		runner:   deps.Runner,
		registry: deps.Registry,
		history:  deps.History,
		logger:   deps.Logger,
	}
	if s.history == nil {
		s.history = history.NewTracker(0, nil)
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/", s.handleSitemap)
	r.Get("/health", s.handleHealth)
	r.Get("/click/{id}", s.handleClick)
	r.Route("/api", func(r chi.Router) {
		r.Get("/actions", s.handleListActions)
		r.Get("/actions/{id}", s.handleGetAction)
		r.Put("/actions/{id}", s.handlePutAction)
		r.Delete("/actions/{id}", s.handleDeleteAction)
		r.Post("/actions/{id}/run", s.handleRunAction)
		r.Post("/conditions/check", s.handleCheckCondition)
		r.Get("/plugins", s.handlePlugins)
		r.Get("/runs", s.handleRuns)
	})
	if deps.Metrics != nil {
		r.Handle("/metrics", deps.Metrics)
	}
	s.router = r

	s.server = &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler returns the router, for embedding and tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("Request served",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("took", time.Since(start)),
			zap.String("remote_addr", r.RemoteAddr))
	})
}

// ActionResponse is one stored action.
type ActionResponse struct {
	ID        string          `json:"id"`
	Action    json.RawMessage `json:"action"`
	Summary   string          `json:"summary"`
	Plugins   []plugin.Type   `json:"plugins"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
	LastRun   *history.Run    `json:"last_run,omitempty"`
}

// ErrorResponse is the body of every failed /api request.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// CheckResponse is the result of a condition check.
type CheckResponse struct {
	Result bool `json:"result"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to encode response", zap.Error(err))
	}
}

// errorKind maps an error to an HTTP status and a short machine-readable kind.
func errorKind(err error) (int, string) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, plugin.ErrNotConfigured):
		return http.StatusConflict, "plugin_not_configured"
	case errors.Is(err, plugin.ErrConnectionUnavailable):
		return http.StatusBadGateway, "connection_unavailable"
	case errors.Is(err, plugin.ErrRequestFailed):
		return http.StatusBadGateway, "request_failed"
	case errors.Is(err, plugin.ErrUnknownName):
		return http.StatusUnprocessableEntity, "unknown_name"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status, kind := errorKind(err)
	s.writeJSON(w, status, ErrorResponse{Error: err.Error(), Kind: kind})
}

func (s *Server) badRequest(w http.ResponseWriter, err error) {
	s.writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error(), Kind: "bad_request"})
}

func (s *Server) toResponse(rec *store.Record) (ActionResponse, error) {
	data, err := action.Marshal(rec.Action)
	if err != nil {
		return ActionResponse{}, err
	}
	resp := ActionResponse{
		ID:        rec.ID,
		Action:    data,
		Summary:   action.Summary(rec.Action),
		Plugins:   action.Plugins(rec.Action),
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
	}
	if run, ok := s.history.Last(rec.ID); ok {
		resp.LastRun = &run
	}
	return resp, nil
}

// handleClick runs an action and answers in plain text: "Success" or the
// error message.
func (s *Server) handleClick(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	rec, err := s.actions.Get(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprintf(w, "Action with ID %s not configured", id)
		return
	}
	if err != nil {
		s.logger.Error("Failed to load action", zap.String("action", id), zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		io.WriteString(w, err.Error())
		return
	}

	// a press runs to completion even if the client hangs up
	if err := s.runner.Run(context.WithoutCancel(r.Context()), id, rec.Action); err != nil {
		status, _ := errorKind(err)
		w.WriteHeader(status)
		io.WriteString(w, err.Error())
		return
	}
	io.WriteString(w, "Success")
}

func (s *Server) handleListActions(w http.ResponseWriter, r *http.Request) {
	records, err := s.actions.List(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	out := make([]ActionResponse, 0, len(records))
	for _, rec := range records {
		resp, err := s.toResponse(rec)
		if err != nil {
			s.writeError(w, err)
			return
		}
		out = append(out, resp)
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetAction(w http.ResponseWriter, r *http.Request) {
	rec, err := s.actions.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	resp, err := s.toResponse(rec)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// handlePutAction stores the action in the body. With ?resolve=true VTS
// display names are rewritten into ids first.
func (s *Server) handlePutAction(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		s.badRequest(w, err)
		return
	}
	a, err := action.Unmarshal(body)
	if err != nil {
		s.badRequest(w, err)
		return
	}

	if r.URL.Query().Get("resolve") == "true" {
		if a, err = action.Resolve(r.Context(), s.registry, a); err != nil {
			s.writeError(w, err)
			return
		}
	}

	if err := s.actions.Put(r.Context(), id, a); err != nil {
		s.writeError(w, err)
		return
	}
	rec, err := s.actions.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	resp, err := s.toResponse(rec)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.logger.Info("Action stored", zap.String("action", id))
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDeleteAction(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.actions.Delete(r.Context(), id); err != nil {
		s.writeError(w, err)
		return
	}
	s.history.Forget(id)
	s.logger.Info("Action deleted", zap.String("action", id))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRunAction(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rec, err := s.actions.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.runner.Run(context.WithoutCancel(r.Context()), id, rec.Action); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCheckCondition(w http.ResponseWriter, r *http.Request) {
	var cond action.Condition
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&cond); err != nil {
		s.badRequest(w, err)
		return
	}
	ok, err := s.runner.Check(r.Context(), cond)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, CheckResponse{Result: ok})
}

func (s *Server) handlePlugins(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.registry.Status())
}

// handleRuns lists the most recent runs, newest first.
func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.history.Recent())
}

// handleHealth returns a simple health check response
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// Endpoint represents an API endpoint with its documentation
type Endpoint struct {
	Path        string `json:"path"`
	Method      string `json:"method"`
	Description string `json:"description"`
}

var endpoints = []Endpoint{
	{Path: "/", Method: "GET", Description: "This sitemap"},
	{Path: "/health", Method: "GET", Description: "Health check, returns {\"status\": \"ok\"}"},
	{Path: "/click/{id}", Method: "GET", Description: "Run an action, answers Success or the error"},
	{Path: "/api/actions", Method: "GET", Description: "List stored actions"},
	{Path: "/api/actions/{id}", Method: "GET", Description: "Get one action"},
	{Path: "/api/actions/{id}", Method: "PUT", Description: "Store an action (?resolve=true maps VTS names to ids)"},
	{Path: "/api/actions/{id}", Method: "DELETE", Description: "Delete an action"},
	{Path: "/api/actions/{id}/run", Method: "POST", Description: "Run an action, JSON result"},
	{Path: "/api/conditions/check", Method: "POST", Description: "Evaluate a condition"},
	{Path: "/api/plugins", Method: "GET", Description: "Configured plugins and their connection state"},
	{Path: "/api/runs", Method: "GET", Description: "Most recent action runs, newest first"},
	{Path: "/metrics", Method: "GET", Description: "Prometheus metrics"},
}

// handleSitemap lists the endpoints as HTML for browsers and plain text
// otherwise.
func (s *Server) handleSitemap(w http.ResponseWriter, r *http.Request) {
	if strings.Contains(r.Header.Get("Accept"), "text/html") {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		io.WriteString(w, `<!DOCTYPE html>
<html>
<head>
    <title>ScuffCommander</title>
    <style>
        body { font-family: monospace; margin: 40px; background: #1e1e1e; color: #d4d4d4; }
        h1 { color: #4ec9b0; }
        .endpoint { background: #2d2d2d; padding: 15px; margin: 10px 0; border-left: 3px solid #007acc; }
        .method { color: #4ec9b0; font-weight: bold; }
        .path { color: #ce9178; }
        .description { color: #9cdcfe; margin-top: 5px; }
    </style>
</head>
<body>
    <h1>ScuffCommander</h1>
`)
		for _, ep := range endpoints {
			fmt.Fprintf(w, `    <div class="endpoint">
        <div><span class="method">%s</span> <span class="path">%s</span></div>
        <div class="description">%s</div>
    </div>
`, ep.Method, ep.Path, ep.Description)
		}
		io.WriteString(w, "</body>\n</html>\n")
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintf(w, "ScuffCommander\n")
	fmt.Fprintf(w, "==============\n\n")
	for _, ep := range endpoints {
		fmt.Fprintf(w, "  %-8s %-24s %s\n", ep.Method, ep.Path, ep.Description)
	}
}

// Start begins serving HTTP requests
func (s *Server) Start() error {
	s.logger.Info("Starting HTTP API server", zap.String("addr", s.server.Addr))

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("HTTP server error", zap.Error(err))
		}
	}()

	return nil
}

// Stop gracefully shuts down the HTTP server
func (s *Server) Stop() error {
	s.logger.Info("Stopping HTTP API server")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}

	return nil
}
