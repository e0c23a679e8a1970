package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cwbudde/polyga/internal/chart"
	"github.com/cwbudde/polyga/internal/ga"
	"github.com/cwbudde/polyga/internal/opt"
	"github.com/cwbudde/polyga/internal/store"
)

// referenceIters is the mayfly iteration budget for /reference.
const referenceIters = 200

// Server represents the HTTP server
type Server struct {
	sessions *SessionManager
	store    store.Store
	addr     string
	server   *http.Server
}

// NewServer creates a new HTTP server. st may be nil, which disables the
// checkpoint endpoints.
func NewServer(addr string, st store.Store, cfg ManagerConfig) *Server {
	cfg.Store = st
	return &Server{
		sessions: NewSessionManager(cfg),
		store:    st,
		addr:     addr,
	}
}

// Sessions returns the session manager.
func (s *Server) Sessions() *SessionManager {
	return s.sessions
}

// Handler builds the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/v1/sessions", s.handleSessions)
	mux.HandleFunc("/api/v1/sessions/", s.handleSessionsWithID)
	mux.HandleFunc("/api/v1/checkpoints", s.handleCheckpoints)
	mux.HandleFunc("/api/v1/checkpoints/", s.handleCheckpointsWithID)
	mux.Handle("/metrics", s.sessions.metrics.Handler())

	return s.loggingMiddleware(s.corsMiddleware(mux))
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	slog.Info("Starting HTTP server", "addr", s.addr)
	return s.server.ListenAndServe()
}

// Shutdown stops all auto-runs and gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("Shutting down HTTP server")
	s.sessions.CloseAll()
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// CreateSessionRequest is the body of POST /api/v1/sessions.
type CreateSessionRequest struct {
	Config *ga.Config `json:"config,omitempty"`
	Goal   string     `json:"goal,omitempty"`
	// Start begins auto-run right after initialization
	Start bool `json:"start,omitempty"`
}

type goalRequest struct {
	Goal string `json:"goal"`
}

// handleSessions handles /api/v1/sessions
func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleCreateSession(w, r)
	case http.MethodGet:
		writeJSON(w, http.StatusOK, s.sessions.ListSessions())
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleSessionsWithID handles /api/v1/sessions/:id/*
func (s *Server) handleSessionsWithID(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/v1/sessions/")
	parts := strings.Split(path, "/")
	if len(parts) == 0 || parts[0] == "" {
		http.Error(w, "Session ID required", http.StatusBadRequest)
		return
	}

	sessionID := parts[0]
	action := ""
	if len(parts) > 1 {
		action = parts[1]
	}

	route := r.Method + " " + action
	switch route {
	case "GET ", "GET status":
		s.handleGetSession(w, r, sessionID)
	case "DELETE ":
		s.handleDeleteSession(w, r, sessionID)
	case "POST step", "POST start", "POST stop", "POST reset":
		s.handleCommand(w, r, sessionID, action)
	case "PUT goal":
		s.handleSetGoal(w, r, sessionID)
	case "PUT config":
		s.handleSetConfig(w, r, sessionID)
	case "GET points":
		s.handleGetPoints(w, r, sessionID)
	case "GET stream":
		s.handleSessionStream(w, r, sessionID)
	case "GET plot.png":
		s.handleGetPlot(w, r, sessionID)
	case "GET reference":
		s.handleGetReference(w, r, sessionID)
	case "POST checkpoint":
		s.handleSaveCheckpoint(w, r, sessionID)
	default:
		switch action {
		case "", "status", "step", "start", "stop", "reset", "goal", "config",
			"points", "stream", "plot.png", "reference", "checkpoint":
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		default:
			http.Error(w, "Not found", http.StatusNotFound)
		}
	}
}

// handleCreateSession handles POST /api/v1/sessions
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, fmt.Sprintf("Invalid JSON: %v", err), http.StatusBadRequest)
			return
		}
	}

	cfg := ga.DefaultConfig()
	if req.Config != nil {
		cfg = *req.Config
	}

	var goal ga.Goal
	if req.Goal != "" {
		g, err := ga.ParseGoal(req.Goal)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		goal = g
	}

	session, err := s.sessions.CreateSession(cfg, goal)
	if err != nil {
		var verr *ga.ValidationError
		if errors.As(err, &verr) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if req.Start {
		session.Controller.StartAuto()
	}

	w.Header().Set("Location", "/api/v1/sessions/"+session.ID)
	writeJSON(w, http.StatusCreated, sessionResponse(session))
}

// handleGetSession handles GET /api/v1/sessions/:id
func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request, sessionID string) {
	session, ok := s.lookup(w, sessionID)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse(session))
}

// handleDeleteSession handles DELETE /api/v1/sessions/:id
func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request, sessionID string) {
	if err := s.sessions.DeleteSession(sessionID); err != nil {
		http.Error(w, "Session not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleCommand handles POST /api/v1/sessions/:id/{step,start,stop,reset}
func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request, sessionID, action string) {
	session, ok := s.lookup(w, sessionID)
	if !ok {
		return
	}

	c := session.Controller
	var err error
	switch action {
	case "step":
		err = c.Step()
	case "start":
		c.StartAuto()
	case "stop":
		c.StopAuto()
	case "reset":
		err = c.Reset()
	}
	if err != nil {
		slog.Warn("Session command failed", "session_id", sessionID, "action", action, "error", err)
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":   err.Error(),
			"session": sessionResponse(session),
		})
		return
	}

	writeJSON(w, http.StatusOK, sessionResponse(session))
}

// handleSetGoal handles PUT /api/v1/sessions/:id/goal
func (s *Server) handleSetGoal(w http.ResponseWriter, r *http.Request, sessionID string) {
	session, ok := s.lookup(w, sessionID)
	if !ok {
		return
	}

	var req goalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("Invalid JSON: %v", err), http.StatusBadRequest)
		return
	}
	goal, err := ga.ParseGoal(req.Goal)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	session.Controller.SetGoal(goal)
	writeJSON(w, http.StatusOK, sessionResponse(session))
}

// handleSetConfig handles PUT /api/v1/sessions/:id/config
func (s *Server) handleSetConfig(w http.ResponseWriter, r *http.Request, sessionID string) {
	session, ok := s.lookup(w, sessionID)
	if !ok {
		return
	}

	cfg := session.Controller.Config()
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		http.Error(w, fmt.Sprintf("Invalid JSON: %v", err), http.StatusBadRequest)
		return
	}
	if err := session.Controller.SetConfig(cfg); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusOK, cfg)
}

// handleGetPoints handles GET /api/v1/sessions/:id/points
func (s *Server) handleGetPoints(w http.ResponseWriter, r *http.Request, sessionID string) {
	session, ok := s.lookup(w, sessionID)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, session.Controller.Points())
}

// handleGetPlot handles GET /api/v1/sessions/:id/plot.png
func (s *Server) handleGetPlot(w http.ResponseWriter, r *http.Request, sessionID string) {
	session, ok := s.lookup(w, sessionID)
	if !ok {
		return
	}

	snap := session.Controller.Snapshot()
	if len(snap.Points) == 0 {
		http.Error(w, "No results yet", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-cache")

	if err := chart.Population(w, snap); err != nil {
		slog.Error("Failed to render plot", "session_id", sessionID, "error", err)
	}
}

// handleGetReference handles GET /api/v1/sessions/:id/reference
func (s *Server) handleGetReference(w http.ResponseWriter, r *http.Request, sessionID string) {
	session, ok := s.lookup(w, sessionID)
	if !ok {
		return
	}

	c := session.Controller
	cfg := c.Config()
	optimizer := opt.NewMayfly(referenceIters, opt.MinMayflyPopSize, int64(cfg.Seed))
	writeJSON(w, http.StatusOK, opt.Solve(cfg, c.Goal(), optimizer))
}

// handleSaveCheckpoint handles POST /api/v1/sessions/:id/checkpoint
func (s *Server) handleSaveCheckpoint(w http.ResponseWriter, r *http.Request, sessionID string) {
	if s.store == nil {
		http.Error(w, "Checkpoint store not configured", http.StatusServiceUnavailable)
		return
	}
	if _, ok := s.lookup(w, sessionID); !ok {
		return
	}

	info, err := s.sessions.SaveCheckpoint(sessionID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	writeJSON(w, http.StatusCreated, info)
}

// handleCheckpoints handles GET /api/v1/checkpoints
func (s *Server) handleCheckpoints(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.store == nil {
		http.Error(w, "Checkpoint store not configured", http.StatusServiceUnavailable)
		return
	}

	infos, err := s.store.ListCheckpoints()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, infos)
}

// handleCheckpointsWithID handles POST /api/v1/checkpoints/:runID/restore
func (s *Server) handleCheckpointsWithID(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/v1/checkpoints/")
	parts := strings.Split(path, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] != "restore" {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.store == nil {
		http.Error(w, "Checkpoint store not configured", http.StatusServiceUnavailable)
		return
	}

	session, err := s.sessions.RestoreSession(parts[0])
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "Checkpoint not found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	w.Header().Set("Location", "/api/v1/sessions/"+session.ID)
	writeJSON(w, http.StatusCreated, sessionResponse(session))
}

func (s *Server) lookup(w http.ResponseWriter, sessionID string) (*Session, bool) {
	session, exists := s.sessions.GetSession(sessionID)
	if !exists {
		http.Error(w, "Session not found", http.StatusNotFound)
		return nil, false
	}
	return session, true
}

// corsMiddleware adds CORS headers
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		slog.Debug("HTTP request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}
