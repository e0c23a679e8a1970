package server

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cwbudde/polyga/internal/controller"
	"github.com/cwbudde/polyga/internal/ga"
	"github.com/cwbudde/polyga/internal/store"
)

// Session is one controller owned by the server.
type Session struct {
	ID         string
	CreatedAt  time.Time
	Controller *controller.Controller

	mu             sync.Mutex
	lastSeq        uint64
	lastGeneration int
	wasConverged   bool
	unsubscribe    func()
}

// SessionSummary is the list view of a session.
type SessionSummary struct {
	ID         string           `json:"id"`
	State      controller.State `json:"state"`
	Goal       ga.Goal          `json:"goal"`
	Generation int              `json:"generation"`
	BestX      *int             `json:"bestX,omitempty"`
	BestY      *float64         `json:"bestY,omitempty"`
	CreatedAt  time.Time        `json:"createdAt"`
}

// ManagerConfig configures a SessionManager.
type ManagerConfig struct {
	// Options are the defaults for new controllers
	Options controller.Options
	// Store persists checkpoints; nil disables persistence
	Store store.Store
	// CheckpointOnConverge saves a checkpoint when a session converges
	CheckpointOnConverge bool
}

// SessionManager manages the lifecycle of sessions.
type SessionManager struct {
	mu          sync.RWMutex
	sessions    map[string]*Session
	broadcaster *EventBroadcaster
	metrics     *Metrics
	cfg         ManagerConfig
}

// NewSessionManager creates a new SessionManager.
func NewSessionManager(cfg ManagerConfig) *SessionManager {
	return &SessionManager{
		sessions:    make(map[string]*Session),
		broadcaster: NewEventBroadcaster(),
		metrics:     NewMetrics(),
		cfg:         cfg,
	}
}

// CreateSession builds and initializes a controller for cfg.
func (sm *SessionManager) CreateSession(cfg ga.Config, goal ga.Goal) (*Session, error) {
	opts := sm.cfg.Options
	if goal != "" {
		opts.Goal = goal
	}

	session := &Session{
		ID:         uuid.New().String(),
		CreatedAt:  time.Now(),
		Controller: controller.New(cfg, opts),
	}
	session.unsubscribe = session.Controller.Subscribe(func(snap controller.Snapshot) {
		sm.onSnapshot(session, snap)
	})

	if err := session.Controller.Init(); err != nil {
		session.unsubscribe()
		sm.broadcaster.CleanupSession(session.ID)
		sm.metrics.Forget(session.ID)
		return nil, err
	}

	sm.add(session)
	slog.Info("Session created", "session_id", session.ID, "pop_size", cfg.PopSize, "goal", opts.Goal)
	return session, nil
}

// RestoreSession creates a session from a stored checkpoint.
func (sm *SessionManager) RestoreSession(runID string) (*Session, error) {
	if sm.cfg.Store == nil {
		return nil, fmt.Errorf("checkpoint store not configured")
	}
	cp, err := sm.cfg.Store.LoadCheckpoint(runID)
	if err != nil {
		return nil, err
	}

	session := &Session{
		ID:         uuid.New().String(),
		CreatedAt:  time.Now(),
		Controller: controller.New(cp.Config, sm.cfg.Options),
	}
	session.mu.Lock()
	session.lastGeneration = cp.Generation
	session.wasConverged = cp.Converged
	session.mu.Unlock()
	session.unsubscribe = session.Controller.Subscribe(func(snap controller.Snapshot) {
		sm.onSnapshot(session, snap)
	})

	if err := session.Controller.Restore(cp); err != nil {
		session.unsubscribe()
		sm.metrics.Forget(session.ID)
		return nil, err
	}

	sm.add(session)
	slog.Info("Session restored", "session_id", session.ID, "run_id", runID, "generation", cp.Generation)
	return session, nil
}

func (sm *SessionManager) add(session *Session) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.sessions[session.ID] = session
	sm.metrics.sessions.Set(float64(len(sm.sessions)))
}

// GetSession retrieves a session by ID.
func (sm *SessionManager) GetSession(id string) (*Session, bool) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	session, exists := sm.sessions[id]
	return session, exists
}

// ListSessions returns summaries ordered by creation time.
func (sm *SessionManager) ListSessions() []SessionSummary {
	sm.mu.RLock()
	sessions := make([]*Session, 0, len(sm.sessions))
	for _, s := range sm.sessions {
		sessions = append(sessions, s)
	}
	sm.mu.RUnlock()

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.Before(sessions[j].CreatedAt)
	})

	out := make([]SessionSummary, len(sessions))
	for i, s := range sessions {
		snap := s.Controller.Snapshot()
		out[i] = SessionSummary{
			ID:         s.ID,
			State:      snap.State,
			Goal:       snap.Goal,
			Generation: snap.Generation,
			CreatedAt:  s.CreatedAt,
		}
		if snap.Best != nil {
			x, y := snap.Best.X, snap.Best.Y
			out[i].BestX, out[i].BestY = &x, &y
		}
	}
	return out
}

// DeleteSession stops and removes a session.
func (sm *SessionManager) DeleteSession(id string) error {
	sm.mu.Lock()
	session, exists := sm.sessions[id]
	if !exists {
		sm.mu.Unlock()
		return fmt.Errorf("session not found: %s", id)
	}
	delete(sm.sessions, id)
	sm.metrics.sessions.Set(float64(len(sm.sessions)))
	sm.mu.Unlock()

	session.unsubscribe()
	session.Controller.Close()
	sm.broadcaster.CleanupSession(id)
	sm.metrics.Forget(id)

	slog.Info("Session deleted", "session_id", id)
	return nil
}

// CloseAll stops every session's auto-run.
func (sm *SessionManager) CloseAll() {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	for _, s := range sm.sessions {
		s.Controller.Close()
	}
}

// SaveCheckpoint persists the session under its own ID.
func (sm *SessionManager) SaveCheckpoint(id string) (*store.CheckpointInfo, error) {
	if sm.cfg.Store == nil {
		return nil, fmt.Errorf("checkpoint store not configured")
	}
	session, exists := sm.GetSession(id)
	if !exists {
		return nil, fmt.Errorf("session not found: %s", id)
	}
	return saveCheckpoint(sm.cfg.Store, session)
}

func saveCheckpoint(st store.Store, session *Session) (*store.CheckpointInfo, error) {
	cp, err := session.Controller.Checkpoint(session.ID)
	if err != nil {
		return nil, err
	}
	if err := st.SaveCheckpoint(session.ID, cp); err != nil {
		return nil, fmt.Errorf("failed to save checkpoint: %w", err)
	}

	info := cp.ToInfo()
	slog.Info("Checkpoint saved",
		"session_id", session.ID,
		"generation", info.Generation,
		"best_y", info.BestY,
	)
	return &info, nil
}

// onSnapshot fans a snapshot out to SSE clients and metrics and saves a
// checkpoint on the transition into convergence. Observers of one controller
// can race, so snapshots older than the last one seen are dropped and the
// fan-out happens under the session lock to keep clients in order.
func (sm *SessionManager) onSnapshot(session *Session, snap controller.Snapshot) {
	session.mu.Lock()
	if snap.Seq <= session.lastSeq {
		session.mu.Unlock()
		slog.Debug("Dropping stale snapshot", "session_id", session.ID, "seq", snap.Seq, "last_seq", session.lastSeq)
		return
	}
	session.lastSeq = snap.Seq

	advanced := snap.Generation - session.lastGeneration
	session.lastGeneration = snap.Generation
	newlyConverged := snap.Converged && !session.wasConverged
	session.wasConverged = snap.Converged

	sm.metrics.Observe(session.ID, snap, advanced, newlyConverged)
	sm.broadcaster.Broadcast(NewSnapshotEvent(session.ID, snap))
	session.mu.Unlock()

	if newlyConverged && sm.cfg.CheckpointOnConverge && sm.cfg.Store != nil {
		if _, err := saveCheckpoint(sm.cfg.Store, session); err != nil {
			slog.Error("Failed to save convergence checkpoint", "session_id", session.ID, "error", err)
		}
	}
}
