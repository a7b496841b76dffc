// Package server exposes the persistent solver over an HTTP API. Each
// session holds a backend instance and accepts incremental model
// mutations between solves.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/copyleftdev/SKARN/internal/backend/dense"
	"github.com/copyleftdev/SKARN/internal/config"
	"github.com/copyleftdev/SKARN/internal/logging"
	"github.com/copyleftdev/SKARN/internal/metrics"
	"github.com/copyleftdev/SKARN/internal/model"
	"github.com/copyleftdev/SKARN/internal/persistent"
)

// Logger is the logging interface used by the server.
type Logger interface {
	Debug(msg string, fields ...map[string]interface{})
	Info(msg string, fields ...map[string]interface{})
	Warn(msg string, fields ...map[string]interface{})
	Error(msg string, fields ...map[string]interface{})
	WithFields(fields map[string]interface{}) *logging.Logger
}

// sessionState holds one client session. The mutex serializes all model
// mutations and solves on the session.
type sessionState struct {
	mu      sync.Mutex
	session *persistent.Session

	vars        map[string]*model.Var
	constraints map[string]*model.Constraint
	objectives  map[string]*model.Objective

	created  time.Time
	lastUsed time.Time
}

// Server manages solver sessions and serves the session API.
type Server struct {
	cfg    *config.Config
	logger Logger

	sessions   map[string]*sessionState
	sessionsMu sync.RWMutex
}

// NewServer creates a server with the given config and logger.
func NewServer(cfg *config.Config, logger Logger) *Server {
	return &Server{
		cfg:      cfg,
		logger:   logger,
		sessions: make(map[string]*sessionState),
	}
}

// RegisterRoutes mounts the session API under /api/v1.
func (s *Server) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/sessions", s.handleCreateSession)
		r.Route("/sessions/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetSession)
			r.Delete("/", s.handleDeleteSession)
			r.Put("/model", s.handleSetModel)
			r.Post("/variables", s.handleAddVar)
			r.Patch("/variables/{name}", s.handleUpdateVar)
			r.Delete("/variables/{name}", s.handleRemoveVar)
			r.Post("/constraints", s.handleAddConstraint)
			r.Delete("/constraints/{name}", s.handleRemoveConstraint)
			r.Post("/objectives", s.handleAddObjective)
			r.Delete("/objectives/{name}", s.handleRemoveObjective)
			r.Post("/solve", s.handleSolve)
			r.Get("/results", s.handleResults)
			r.Post("/load", s.handleLoadVars)
		})
	})
}

// Close discards every session.
func (s *Server) Close() error {
	s.sessionsMu.Lock()
	defer s.sessionsMu.Unlock()
	for id := range s.sessions {
		delete(s.sessions, id)
		metrics.SessionsActive.Dec()
	}
	return nil
}

func (s *Server) lookupSession(id string) (*sessionState, bool) {
	s.sessionsMu.RLock()
	defer s.sessionsMu.RUnlock()
	st, ok := s.sessions[id]
	return st, ok
}

// withSession runs fn while holding the session's lock, or writes a 404 if
// the session does not exist.
func (s *Server) withSession(w http.ResponseWriter, r *http.Request, fn func(st *sessionState)) {
	id := chi.URLParam(r, "id")
	st, ok := s.lookupSession(id)
	if !ok {
		s.respondError(w, http.StatusNotFound, fmt.Errorf("session %s not found", id))
		return
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	st.lastUsed = time.Now()
	fn(st)
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	s.sessionsMu.Lock()
	if s.cfg.Solver.MaxSessions > 0 && len(s.sessions) >= s.cfg.Solver.MaxSessions {
		s.sessionsMu.Unlock()
		s.respondError(w, http.StatusTooManyRequests, fmt.Errorf("session limit reached"))
		return
	}
	id := fmt.Sprintf("ses_%d", time.Now().UnixNano())
	now := time.Now()
	st := &sessionState{
		session:  persistent.New(dense.New()),
		created:  now,
		lastUsed: now,
	}
	s.sessions[id] = st
	s.sessionsMu.Unlock()

	metrics.SessionsCreated.Inc()
	metrics.SessionsActive.Inc()
	s.logger.Info("Session created", map[string]interface{}{"session_id": id})

	// Accept an optional model in the creation body. A bad model aborts
	// the whole creation.
	var spec ModelSpec
	if r.ContentLength > 0 {
		err := json.NewDecoder(r.Body).Decode(&spec)
		if err == nil {
			st.mu.Lock()
			err = s.bindModel(st, spec)
			st.mu.Unlock()
		} else {
			err = &badRequestError{fmt.Errorf("invalid request body: %w", err)}
		}
		if err != nil {
			s.sessionsMu.Lock()
			delete(s.sessions, id)
			s.sessionsMu.Unlock()
			metrics.SessionsActive.Dec()
			s.respondSessionError(w, err)
			return
		}
	}

	s.respondJSON(w, http.StatusCreated, map[string]interface{}{
		"session_id": id,
		"state":      st.session.State().String(),
	})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	s.withSession(w, r, func(st *sessionState) {
		resp := map[string]interface{}{
			"state":       st.session.State().String(),
			"variables":   len(st.vars),
			"constraints": len(st.constraints),
			"objectives":  len(st.objectives),
			"created":     st.created.Format(time.RFC3339),
			"last_used":   st.lastUsed.Format(time.RFC3339),
		}
		if m := st.session.Instance(); m != nil {
			resp["model"] = m.Name()
		}
		s.respondJSON(w, http.StatusOK, resp)
	})
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.sessionsMu.Lock()
	_, ok := s.sessions[id]
	if ok {
		delete(s.sessions, id)
	}
	s.sessionsMu.Unlock()
	if !ok {
		s.respondError(w, http.StatusNotFound, fmt.Errorf("session %s not found", id))
		return
	}
	metrics.SessionsActive.Dec()
	s.logger.Info("Session deleted", map[string]interface{}{"session_id": id})
	w.WriteHeader(http.StatusNoContent)
}

// bindModel builds a model from spec and binds it to the session,
// replacing any previous instance. Callers hold st.mu.
func (s *Server) bindModel(st *sessionState, spec ModelSpec) error {
	m, vars, cons, objs, err := buildModel(spec)
	if err != nil {
		return &badRequestError{err}
	}
	if err := st.session.SetInstance(m); err != nil {
		return err
	}
	st.vars = vars
	st.constraints = cons
	st.objectives = objs
	return nil
}

func (s *Server) handleSetModel(w http.ResponseWriter, r *http.Request) {
	s.withSession(w, r, func(st *sessionState) {
		var spec ModelSpec
		if err := json.NewDecoder(r.Body).Decode(&spec); err != nil {
			s.respondError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
			return
		}
		if err := s.bindModel(st, spec); err != nil {
			s.respondSessionError(w, err)
			return
		}
		s.respondJSON(w, http.StatusOK, map[string]interface{}{
			"state":       st.session.State().String(),
			"variables":   len(st.vars),
			"constraints": len(st.constraints),
			"objectives":  len(st.objectives),
		})
	})
}

func (s *Server) handleAddVar(w http.ResponseWriter, r *http.Request) {
	s.withSession(w, r, func(st *sessionState) {
		var spec VarSpec
		if err := json.NewDecoder(r.Body).Decode(&spec); err != nil {
			s.respondError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
			return
		}
		if _, exists := st.vars[spec.Name]; exists {
			s.respondError(w, http.StatusConflict, fmt.Errorf("variable %q already exists", spec.Name))
			return
		}
		v, err := buildVar(spec)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, err)
			return
		}
		if err := st.session.AddVar(v); err != nil {
			s.respondSessionError(w, err)
			return
		}
		st.vars[spec.Name] = v
		metrics.Mutations.WithLabelValues("add_var").Inc()
		s.respondJSON(w, http.StatusCreated, map[string]string{"name": spec.Name})
	})
}

func (s *Server) handleUpdateVar(w http.ResponseWriter, r *http.Request) {
	s.withSession(w, r, func(st *sessionState) {
		name := chi.URLParam(r, "name")
		v, ok := st.vars[name]
		if !ok {
			s.respondError(w, http.StatusNotFound, fmt.Errorf("variable %q not found", name))
			return
		}
		var spec VarSpec
		if err := json.NewDecoder(r.Body).Decode(&spec); err != nil {
			s.respondError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
			return
		}
		if spec.Lower != nil {
			v.Lower = *spec.Lower
		}
		if spec.Upper != nil {
			v.Upper = *spec.Upper
		}
		if spec.Start != nil {
			v.Start = *spec.Start
		}
		if spec.Type != "" {
			vt, err := parseVarType(spec.Type)
			if err != nil {
				s.respondError(w, http.StatusBadRequest, err)
				return
			}
			v.Type = vt
		}
		if err := st.session.UpdateVar(v); err != nil {
			s.respondSessionError(w, err)
			return
		}
		metrics.Mutations.WithLabelValues("update_var").Inc()
		s.respondJSON(w, http.StatusOK, map[string]string{"name": name})
	})
}

func (s *Server) handleRemoveVar(w http.ResponseWriter, r *http.Request) {
	s.withSession(w, r, func(st *sessionState) {
		name := chi.URLParam(r, "name")
		v, ok := st.vars[name]
		if !ok {
			s.respondError(w, http.StatusNotFound, fmt.Errorf("variable %q not found", name))
			return
		}
		if err := st.session.RemoveVar(v); err != nil {
			s.respondSessionError(w, err)
			return
		}
		delete(st.vars, name)
		metrics.Mutations.WithLabelValues("remove_var").Inc()
		w.WriteHeader(http.StatusNoContent)
	})
}

func (s *Server) handleAddConstraint(w http.ResponseWriter, r *http.Request) {
	s.withSession(w, r, func(st *sessionState) {
		var spec ConstraintSpec
		if err := json.NewDecoder(r.Body).Decode(&spec); err != nil {
			s.respondError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
			return
		}
		if _, exists := st.constraints[spec.Name]; exists {
			s.respondError(w, http.StatusConflict, fmt.Errorf("constraint %q already exists", spec.Name))
			return
		}
		c, err := buildConstraint(spec, st.vars)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, err)
			return
		}
		if err := st.session.AddConstraint(c); err != nil {
			s.respondSessionError(w, err)
			return
		}
		st.constraints[spec.Name] = c
		metrics.Mutations.WithLabelValues("add_constraint").Inc()
		s.respondJSON(w, http.StatusCreated, map[string]string{"name": spec.Name})
	})
}

func (s *Server) handleRemoveConstraint(w http.ResponseWriter, r *http.Request) {
	s.withSession(w, r, func(st *sessionState) {
		name := chi.URLParam(r, "name")
		c, ok := st.constraints[name]
		if !ok {
			s.respondError(w, http.StatusNotFound, fmt.Errorf("constraint %q not found", name))
			return
		}
		if err := st.session.RemoveConstraint(c); err != nil {
			s.respondSessionError(w, err)
			return
		}
		delete(st.constraints, name)
		metrics.Mutations.WithLabelValues("remove_constraint").Inc()
		w.WriteHeader(http.StatusNoContent)
	})
}

func (s *Server) handleAddObjective(w http.ResponseWriter, r *http.Request) {
	s.withSession(w, r, func(st *sessionState) {
		var spec ObjectiveSpec
		if err := json.NewDecoder(r.Body).Decode(&spec); err != nil {
			s.respondError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
			return
		}
		if _, exists := st.objectives[spec.Name]; exists {
			s.respondError(w, http.StatusConflict, fmt.Errorf("objective %q already exists", spec.Name))
			return
		}
		o, err := buildObjective(spec, st.vars)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, err)
			return
		}
		if err := st.session.AddObjective(o); err != nil {
			s.respondSessionError(w, err)
			return
		}
		st.objectives[spec.Name] = o
		metrics.Mutations.WithLabelValues("add_objective").Inc()
		s.respondJSON(w, http.StatusCreated, map[string]string{"name": spec.Name})
	})
}

func (s *Server) handleRemoveObjective(w http.ResponseWriter, r *http.Request) {
	s.withSession(w, r, func(st *sessionState) {
		name := chi.URLParam(r, "name")
		o, ok := st.objectives[name]
		if !ok {
			s.respondError(w, http.StatusNotFound, fmt.Errorf("objective %q not found", name))
			return
		}
		if err := st.session.RemoveObjective(o); err != nil {
			s.respondSessionError(w, err)
			return
		}
		delete(st.objectives, name)
		metrics.Mutations.WithLabelValues("remove_objective").Inc()
		w.WriteHeader(http.StatusNoContent)
	})
}

func (s *Server) handleSolve(w http.ResponseWriter, r *http.Request) {
	s.withSession(w, r, func(st *sessionState) {
		var req struct {
			TimeLimit     *float64 `json:"time_limit,omitempty"`
			LoadSolutions *bool    `json:"load_solutions,omitempty"`
			SaveResults   *bool    `json:"save_results,omitempty"`
		}
		if r.ContentLength > 0 {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				s.respondError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
				return
			}
		}

		var opts []persistent.SolveOption
		switch {
		case req.TimeLimit != nil:
			opts = append(opts, persistent.WithTimeLimit(*req.TimeLimit))
		case s.cfg.Solver.DefaultTimeLimit > 0:
			opts = append(opts, persistent.WithTimeLimit(s.cfg.Solver.DefaultTimeLimit))
		}
		if req.LoadSolutions != nil {
			opts = append(opts, persistent.WithLoadSolutions(*req.LoadSolutions))
		}
		if req.SaveResults != nil {
			opts = append(opts, persistent.WithResults(*req.SaveResults))
		}

		start := time.Now()
		results, err := st.session.Solve(r.Context(), opts...)
		metrics.SolveDuration.Observe(time.Since(start).Seconds())
		if err != nil {
			metrics.Solves.WithLabelValues("error").Inc()
			s.respondSessionError(w, err)
			return
		}
		metrics.Solves.WithLabelValues(results.Status.String()).Inc()

		s.logger.Info("Solve finished", map[string]interface{}{
			"status":     results.Status.String(),
			"latency_ms": float64(time.Since(start).Microseconds()) / 1000.0,
		})
		s.respondJSON(w, http.StatusOK, resultsResponse(results))
	})
}

func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	s.withSession(w, r, func(st *sessionState) {
		results := st.session.Results()
		if results == nil {
			s.respondError(w, http.StatusNotFound, fmt.Errorf("no results available"))
			return
		}
		s.respondJSON(w, http.StatusOK, resultsResponse(results))
	})
}

func (s *Server) handleLoadVars(w http.ResponseWriter, r *http.Request) {
	s.withSession(w, r, func(st *sessionState) {
		var req struct {
			Variables []string `json:"variables,omitempty"`
		}
		if r.ContentLength > 0 {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				s.respondError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
				return
			}
		}

		subset := make([]*model.Var, 0, len(req.Variables))
		for _, name := range req.Variables {
			v, ok := st.vars[name]
			if !ok {
				s.respondError(w, http.StatusNotFound, fmt.Errorf("variable %q not found", name))
				return
			}
			subset = append(subset, v)
		}
		if err := st.session.LoadVars(subset...); err != nil {
			s.respondSessionError(w, err)
			return
		}

		values := make(map[string]float64)
		if len(subset) == 0 {
			for name, v := range st.vars {
				values[name] = v.Value
			}
		} else {
			for _, v := range subset {
				values[v.Name()] = v.Value
			}
		}
		s.respondJSON(w, http.StatusOK, map[string]interface{}{"values": values})
	})
}

func resultsResponse(res *persistent.Results) map[string]interface{} {
	resp := map[string]interface{}{
		"status": res.Status.String(),
	}
	if res.Message != "" {
		resp["message"] = res.Message
	}
	if res.HasSolution() {
		resp["objective"] = res.Objective
		if res.Solution != nil {
			resp["solution"] = res.Solution
		}
		if res.ConstraintActivity != nil {
			resp["constraint_activity"] = res.ConstraintActivity
		}
	}
	return resp
}

// badRequestError marks a decode or name-resolution failure so
// respondSessionError can map it to 400.
type badRequestError struct{ err error }

func (e *badRequestError) Error() string { return e.err.Error() }
func (e *badRequestError) Unwrap() error { return e.err }

// respondSessionError maps session errors to HTTP status codes.
func (s *Server) respondSessionError(w http.ResponseWriter, err error) {
	var (
		dup    *persistent.DuplicateComponentError
		stale  *persistent.StaleReferenceError
		idx    *persistent.IndexedComponentError
		unres  *persistent.UnresolvedReferenceError
		unsup  *persistent.UnsupportedExpressionError
		nosol  *persistent.NoSolutionAvailableError
		badReq *badRequestError
	)
	switch {
	case errors.As(err, &badReq):
		s.respondError(w, http.StatusBadRequest, err)
	case errors.As(err, &dup):
		s.respondError(w, http.StatusConflict, err)
	case errors.As(err, &stale):
		s.respondError(w, http.StatusNotFound, err)
	case errors.As(err, &idx), errors.As(err, &unres), errors.As(err, &unsup):
		s.respondError(w, http.StatusUnprocessableEntity, err)
	case errors.As(err, &nosol), errors.Is(err, persistent.ErrUnbound):
		s.respondError(w, http.StatusConflict, err)
	default:
		s.respondError(w, http.StatusInternalServerError, err)
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, err error) {
	if status >= 500 {
		s.logger.Error("Request failed", map[string]interface{}{
			"status": status,
			"error":  err.Error(),
		})
	}
	s.respondJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("Failed to encode response", map[string]interface{}{"error": err.Error()})
	}
}
