// Package inspector serves a read-mostly HTTP view of a running application's
// state. Every store access is marshalled onto the event loop.
package inspector

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	ferrors "git.home.luguber.info/inful/treestate/internal/foundation/errors"
	"git.home.luguber.info/inful/treestate/internal/journal"
	"git.home.luguber.info/inful/treestate/internal/logfields"
	"git.home.luguber.info/inful/treestate/internal/runtime"
	"git.home.luguber.info/inful/treestate/internal/state"
)

// Runner executes fn on the goroutine that owns the store.
type Runner interface {
	Do(ctx context.Context, fn func()) error
}

// HistoryReader lists journaled batches, newest first.
type HistoryReader interface {
	Recent(ctx context.Context, limit int) ([]journal.Entry, error)
}

// Options carries the optional surfaces.
type Options struct {
	History HistoryReader
	Metrics http.Handler
	Logger  *slog.Logger
}

// Server is the inspector HTTP server.
type Server struct {
	Addr       string
	router     *chi.Mux
	server     *http.Server
	runner     Runner
	app        *runtime.App
	opts       Options
	errAdapter *ferrors.HTTPErrorAdapter
	logger     *slog.Logger
}

// NewServer creates an inspector for app listening on addr.
func NewServer(addr string, runner Runner, app *runtime.App, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(logfields.Component("inspector"), logfields.Addr(addr))

	s := &Server{
		Addr:       addr,
		router:     chi.NewRouter(),
		runner:     runner,
		app:        app,
		opts:       opts,
		errAdapter: ferrors.NewHTTPErrorAdapter(logger),
		logger:     logger,
	}
	s.setupRoutes()

	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(30 * time.Second))

	s.router.Get("/health", s.handleHealth)
	s.router.Get("/state", s.handleSnapshot)
	s.router.Get("/state/{path}", s.handleGetState)
	s.router.Post("/state/{path}", s.handleDispatch)
	s.router.Get("/history", s.handleHistory)
	if s.opts.Metrics != nil {
		s.router.Handle("/metrics", s.opts.Metrics)
	}
}

// Handler returns the router.
func (s *Server) Handler() http.Handler { return s.router }

// Start serves until Shutdown. It returns nil after a clean shutdown.
func (s *Server) Start() error {
	s.logger.Info("Inspector listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return ferrors.WrapError(err, ferrors.CategoryRuntime, "inspector server failed").
			WithContext("addr", s.Addr).
			Build()
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Response is the JSON envelope of every non-error reply.
type Response struct {
	Success bool `json:"success"`
	Data    any  `json:"data,omitempty"`
}

// EntityView is the JSON form of one stored value.
type EntityView struct {
	Path   string         `json:"path"`
	Kind   string         `json:"kind,omitempty"`
	Props  map[string]any `json:"props,omitempty"`
	Values map[string]any `json:"values,omitempty"`
	Value  any            `json:"value,omitempty"`
}

// View describes v stored at path.
func View(path string, v any) EntityView {
	if e, ok := v.(state.Entity); ok {
		return EntityView{Path: path, Kind: e.Kind(), Props: e.Props(), Values: e.Values()}
	}
	return EntityView{Path: path, Value: v}
}

func (s *Server) success(w http.ResponseWriter, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(Response{Success: true, Data: data})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"healthy"}`))
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	root := r.URL.Query().Get("root")
	var views map[string]EntityView
	err := s.runner.Do(r.Context(), func() {
		snap := s.app.Container().Store().Snapshot(root)
		views = make(map[string]EntityView, len(snap))
		for p, v := range snap {
			views[p] = View(p, v)
		}
	})
	if err != nil {
		s.errAdapter.WriteErrorResponse(w, r, err)
		return
	}
	s.success(w, http.StatusOK, views)
}

func (s *Server) handleGetState(w http.ResponseWriter, r *http.Request) {
	path := chi.URLParam(r, "path")
	var (
		view  EntityView
		found bool
	)
	err := s.runner.Do(r.Context(), func() {
		var v any
		if v, found = s.app.Container().Store().Get(path); found {
			view = View(path, v)
		}
	})
	if err == nil && !found {
		err = ferrors.NotFoundError("nothing stored at path").WithPath(path).Build()
	}
	if err != nil {
		s.errAdapter.WriteErrorResponse(w, r, err)
		return
	}
	s.success(w, http.StatusOK, view)
}

func (s *Server) handleDispatch(w http.ResponseWriter, r *http.Request) {
	path := chi.URLParam(r, "path")

	var changes map[string]any
	if err := json.NewDecoder(r.Body).Decode(&changes); err != nil {
		s.errAdapter.WriteErrorResponse(w, r, ferrors.WrapError(err, ferrors.CategoryValidation, "request body must be a JSON object").Build())
		return
	}

	var (
		view EntityView
		derr error
	)
	err := s.runner.Do(r.Context(), func() {
		if derr = s.app.Dispatch(path, state.Values(changes)); derr != nil {
			return
		}
		v, _ := s.app.Container().Store().Get(path)
		view = View(path, v)
	})
	if err == nil {
		err = derr
	}
	if err != nil {
		s.errAdapter.WriteErrorResponse(w, r, err)
		return
	}
	s.logger.Info("Dispatched state change", logfields.Path(path))
	s.success(w, http.StatusOK, view)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.opts.History == nil {
		s.errAdapter.WriteErrorResponse(w, r, ferrors.NotFoundError("change journal is disabled").Build())
		return
	}
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			s.errAdapter.WriteErrorResponse(w, r, ferrors.ValidationError("limit must be a positive integer").
				WithContext("limit", raw).
				Build())
			return
		}
		limit = n
	}
	entries, err := s.opts.History.Recent(r.Context(), limit)
	if err != nil {
		s.errAdapter.WriteErrorResponse(w, r, err)
		return
	}
	s.success(w, http.StatusOK, entries)
}
