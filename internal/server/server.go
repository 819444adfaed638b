// Package server hosts the pipeline simulation behind the backend HTTP contract.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hypnoticwarchief/cratex/internal/analysis"
	"github.com/hypnoticwarchief/cratex/internal/backend"
	"github.com/hypnoticwarchief/cratex/internal/engine"
	"github.com/hypnoticwarchief/cratex/internal/history"
	"github.com/hypnoticwarchief/cratex/internal/metrics"
	"github.com/hypnoticwarchief/cratex/internal/status"
	"github.com/hypnoticwarchief/cratex/pkg/models"
)

const (
	msgBusy       = "Pipeline already running"
	msgNoAnalysis = "No proposed changes. Run a dry run first."
	msgBadRequest = "Invalid request body"
)

// Options wires a Server
type Options struct {
	Engine  *engine.Engine
	History *history.Store
	// Config is served verbatim by GET /config
	Config models.ConfigResponse
	// Defaults fills unset dry run fields
	Defaults models.DryRunConfig
}

// Server holds the chi router and the simulation it serves
type Server struct {
	router   chi.Router
	engine   *engine.Engine
	history  *history.Store
	config   models.ConfigResponse
	defaults models.DryRunConfig
	logger   *slog.Logger
}

// New creates a Server with all routes configured
func New(opts Options, logger *slog.Logger) *Server {
	s := &Server{
		engine:   opts.Engine,
		history:  opts.History,
		config:   opts.Config,
		defaults: opts.Defaults,
		logger:   logger.With("component", "server"),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/status", s.handleStatus)
	r.Get("/config", s.handleConfig)
	r.Post("/analyze", s.handleAnalyze)
	r.Post("/execute", s.handleExecute)
	r.Post("/rollback", s.handleRollback)
	r.Post("/reset", s.handleReset)

	r.Get("/analysis", s.handleAnalysis)
	r.Route("/history", func(r chi.Router) {
		r.Get("/", s.handleHistory)
		r.Post("/{id}/rollback", s.handleHistoryRollback)
	})

	r.Handle("/metrics", metrics.Handler())

	s.router = r
	return s
}

// ServeHTTP implements the http.Handler interface, delegating to the chi router.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is cancelled
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.engine.Reset()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		s.engine.Wait()
		return nil
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Status())
}

func (s *Server) handleConfig(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.config)
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req backend.AnalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, msgBadRequest)
		return
	}
	if req.Path == "" {
		req.Path = s.config.CWD
	}

	cfg := s.defaults
	if req.Config != nil {
		cfg = *req.Config
		if cfg.SmartFanOut == nil {
			cfg.SmartFanOut = s.defaults.SmartFanOut
		}
	}

	if !s.engine.StartDryRun(req.Path, cfg.WithDefaults()) {
		writeError(w, http.StatusConflict, msgBusy)
		return
	}
	writeJSON(w, http.StatusOK, models.Acknowledgement{Message: status.AckAnalyze})
}

func (s *Server) handleExecute(w http.ResponseWriter, _ *http.Request) {
	st := s.engine.Status()
	if st.IsRunning {
		writeError(w, http.StatusConflict, msgBusy)
		return
	}
	if len(st.ProposedChanges) == 0 {
		writeError(w, http.StatusBadRequest, msgNoAnalysis)
		return
	}
	if !s.engine.StartExecute() {
		writeError(w, http.StatusConflict, msgBusy)
		return
	}
	writeJSON(w, http.StatusOK, models.Acknowledgement{Message: status.AckExecute})
}

func (s *Server) handleRollback(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Rollback(r.Context()); err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, models.Acknowledgement{Message: status.AckRollback})
}

func (s *Server) handleReset(w http.ResponseWriter, _ *http.Request) {
	s.engine.Reset()
	writeJSON(w, http.StatusOK, models.Acknowledgement{Message: status.AckReset})
}

func (s *Server) handleAnalysis(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, analysis.Build(s.engine.Status().Stats.PlannedMoves))
}

func (s *Server) handleHistory(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.history.List())
}

func (s *Server) handleHistoryRollback(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	err := s.history.Rollback(r.Context(), id)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, models.Acknowledgement{Message: "Rollback successful."})
	case errors.Is(err, history.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, history.ErrExpired), errors.Is(err, history.ErrAlreadyRolledBack):
		writeError(w, http.StatusConflict, err.Error())
	default:
		s.writeEngineError(w, err)
	}
}

func (s *Server) writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, engine.ErrBusy):
		writeError(w, http.StatusConflict, msgBusy)
	case errors.Is(err, context.Canceled), errors.Is(err, engine.ErrInterrupted):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		s.logger.Error("Request failed", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("Request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()))
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, detail string) {
	writeJSON(w, code, map[string]string{"detail": detail})
}
