// Package server exposes the run engine over HTTP: submit pipeline
// definitions, watch and list runs, cancel runs still in flight.
// Completed runs are read from the store; active runs live in an
// in-memory table that is dropped on restart.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/slipway-io/slipway/config"
	"github.com/slipway-io/slipway/logging"
	"github.com/slipway-io/slipway/pipeline"
	"github.com/slipway-io/slipway/store"
	"github.com/slipway-io/slipway/validate"
)

// maxDefinitionBytes caps the size of a submitted pipeline document.
const maxDefinitionBytes = 1 << 20

// Server runs pipelines on behalf of HTTP clients. One controller is
// shared across runs; each submission gets its own cancellable context.
type Server struct {
	controller *pipeline.Controller
	store      *store.Store
	log        logging.Logger

	mu     sync.Mutex
	active map[string]*activeRun
}

// activeRun tracks a run between acceptance and completion.
type activeRun struct {
	id       string
	pipeline string
	started  time.Time
	cancel   context.CancelFunc
	done     chan struct{}
}

// New wires a server around an engine, a result store, and a logger.
func New(c *pipeline.Controller, st *store.Store, log logging.Logger) *Server {
	return &Server{
		controller: c,
		store:      st,
		log:        log,
		active:     make(map[string]*activeRun),
	}
}

// Router builds the HTTP routing table.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/healthz", s.handleHealth)
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/runs", s.handleSubmitRun)
		r.Get("/runs", s.handleListRuns)
		r.Get("/runs/{id}", s.handleGetRun)
		r.Post("/runs/{id}/cancel", s.handleCancelRun)
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleSubmitRun accepts a YAML pipeline definition as the request body,
// rejects anything that fails parsing or validation, and launches the run
// in the background. The run ID in the accept response is the same ID the
// result is stored under.
func (s *Server) handleSubmitRun(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxDefinitionBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "reading request body: "+err.Error())
		return
	}

	def, err := config.ParseDefinition(data)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if vr := validate.Definition(def); !vr.IsValid() {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":   "definition is invalid",
			"details": vr.Errors,
		})
		return
	}

	id := pipeline.NewRunID(def.Name)
	ctx, cancel := context.WithCancel(context.Background())
	run := &activeRun{
		id:       id,
		pipeline: def.Name,
		started:  time.Now().UTC(),
		cancel:   cancel,
		done:     make(chan struct{}),
	}

	s.mu.Lock()
	s.active[id] = run
	s.mu.Unlock()

	go s.execute(ctx, run, def)

	writeJSON(w, http.StatusAccepted, map[string]string{
		"id":       id,
		"pipeline": def.Name,
		"status":   string(pipeline.StatusRunning),
	})
}

// execute drives one accepted run to completion and persists the result.
// The run error is already recorded on the result, so it is not handled
// separately here.
func (s *Server) execute(ctx context.Context, run *activeRun, def *config.Definition) {
	defer close(run.done)
	defer run.cancel()

	res, _ := s.controller.RunWithID(ctx, run.id, def)
	if _, err := s.store.Save(res); err != nil {
		s.log.Error("persisting run result", map[string]any{"run": run.id, "error": err.Error()})
	}

	s.mu.Lock()
	delete(s.active, run.id)
	s.mu.Unlock()
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	stored, err := s.store.List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "listing runs: "+err.Error())
		return
	}

	runs := s.activeSnapshots()
	runs = append(runs, stored...)
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	s.mu.Lock()
	run, ok := s.active[id]
	s.mu.Unlock()
	if ok {
		writeJSON(w, http.StatusOK, snapshot(run))
		return
	}

	res, err := s.store.Get(id)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, res)
	case errors.Is(err, store.ErrInvalidID):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, os.ErrNotExist):
		writeError(w, http.StatusNotFound, "no run with id "+id)
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// handleCancelRun asks an active run to stop. Cancellation is cooperative:
// the response only acknowledges the request, the run finishes on its own
// schedule and records a cancellation failure.
func (s *Server) handleCancelRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	s.mu.Lock()
	run, ok := s.active[id]
	s.mu.Unlock()
	if !ok {
		if _, err := s.store.Get(id); err == nil {
			writeError(w, http.StatusConflict, "run "+id+" already finished")
			return
		}
		writeError(w, http.StatusNotFound, "no active run with id "+id)
		return
	}

	run.cancel()
	writeJSON(w, http.StatusAccepted, map[string]string{"id": id, "status": "cancelling"})
}

// activeSnapshots returns placeholder results for in-flight runs, newest
// first so they line up with the store's ordering.
func (s *Server) activeSnapshots() []*pipeline.RunResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	runs := make([]*pipeline.RunResult, 0, len(s.active))
	for _, run := range s.active {
		runs = append(runs, snapshot(run))
	}
	for i := range runs {
		for j := i + 1; j < len(runs); j++ {
			if runs[j].ID > runs[i].ID {
				runs[i], runs[j] = runs[j], runs[i]
			}
		}
	}
	return runs
}

// snapshot renders what is known about an active run. Stage progress is
// internal to the controller, so the placeholder only carries identity.
func snapshot(run *activeRun) *pipeline.RunResult {
	return &pipeline.RunResult{
		ID:        run.id,
		Pipeline:  run.pipeline,
		Status:    pipeline.StatusRunning,
		StartedAt: run.started,
		Stages:    []*pipeline.StageResult{},
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Info("http request", map[string]any{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      ww.Status(),
			"duration_ms": time.Since(start).Milliseconds(),
		})
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
