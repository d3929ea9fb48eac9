package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/nightwatch/nightwatch/pkg/action"
	"github.com/nightwatch/nightwatch/pkg/log"
	"github.com/nightwatch/nightwatch/pkg/manager"
	"github.com/nightwatch/nightwatch/pkg/metrics"
	"github.com/nightwatch/nightwatch/pkg/provider"
	"github.com/nightwatch/nightwatch/pkg/task"
	"github.com/nightwatch/nightwatch/pkg/taskloader"
)

// Server is the HTTP control surface over the task manager. It is a thin
// adapter: parse the request, invoke the manager, map errors to status
// codes, serialise task status snapshots as JSON.
type Server struct {
	mgr    *manager.Manager
	logger zerolog.Logger
	srv    *http.Server
}

// NewServer builds a server over the given manager.
func NewServer(mgr *manager.Manager) *Server {
	return &Server{
		mgr:    mgr,
		logger: log.WithComponent("api"),
	}
}

// Handler returns the full route table, wrapped in the request middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/night-watch/status", s.handleDaemonStatus)
	mux.HandleFunc("PUT /api/v1/night-watch/pause", s.handleDaemonPause)
	mux.HandleFunc("PUT /api/v1/night-watch/resume", s.handleDaemonResume)
	mux.HandleFunc("PUT /api/v1/night-watch/reload", s.handleDaemonReload)

	mux.HandleFunc("GET /api/v1/tasks", s.handleListTasks)
	mux.HandleFunc("PUT /api/v1/tasks/{action}", s.handleBulkTaskAction)

	mux.HandleFunc("GET /api/v1/task/{name}", s.handleGetTask)
	mux.HandleFunc("POST /api/v1/task", s.handleAddTasks)
	mux.HandleFunc("PUT /api/v1/task/{name}/{action}", s.handleTaskAction)

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", metrics.Handler())

	return s.middleware(mux)
}

// Start serves the control API on addr until Stop is called. It blocks.
func (s *Server) Start(addr string) error {
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.logger.Info().Str("addr", addr).Msg("control API listening")
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop shuts the server down, draining in-flight requests.
func (s *Server) Stop(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	s.logger.Info().Msg("control API shutting down")
	return s.srv.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

// writeError maps the manager's error taxonomy to HTTP status codes:
// task lookup misses are 404, configuration validation failures are 501,
// everything else is 500.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError

	var taskCfg *task.ConfigError
	var providerCfg *provider.ConfigError
	var actionCfg *action.ConfigError
	switch {
	case errors.Is(err, manager.ErrTaskNotFound), errors.Is(err, taskloader.ErrTaskNotFound):
		status = http.StatusNotFound
	case errors.As(err, &taskCfg), errors.As(err, &providerCfg), errors.As(err, &actionCfg):
		status = http.StatusNotImplemented
	}

	writeJSON(w, status, map[string]string{"error_msg": err.Error()})
}

func (s *Server) writeUnknownAction(w http.ResponseWriter, name string) {
	writeJSON(w, http.StatusNotImplemented, map[string]string{
		"error_msg": fmt.Sprintf("unknown action %q", name),
	})
}
