package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/cwbudde/polyga/internal/controller"
	"github.com/cwbudde/polyga/internal/ga"
)

// SnapshotEvent is one SSE message for a session.
type SnapshotEvent struct {
	SessionID  string           `json:"sessionId"`
	Seq        uint64           `json:"seq"`
	State      controller.State `json:"state"`
	Goal       ga.Goal          `json:"goal"`
	Generation int              `json:"generation"`
	Population []ga.Individual  `json:"population"`
	Best       *ga.Individual   `json:"best,omitempty"`
	Stability  int              `json:"stability"`
	Running    bool             `json:"running"`
	Converged  bool             `json:"converged"`
	Stats      ga.Stats         `json:"stats"`
	LastError  string           `json:"lastError,omitempty"`
	Timestamp  time.Time        `json:"timestamp"`
}

// NewSnapshotEvent wraps a controller snapshot for streaming.
func NewSnapshotEvent(sessionID string, snap controller.Snapshot) SnapshotEvent {
	return SnapshotEvent{
		SessionID:  sessionID,
		Seq:        snap.Seq,
		State:      snap.State,
		Goal:       snap.Goal,
		Generation: snap.Generation,
		Population: snap.Population,
		Best:       snap.Best,
		Stability:  snap.Stability,
		Running:    snap.Running,
		Converged:  snap.Converged,
		Stats:      snap.Stats,
		LastError:  snap.LastError,
		Timestamp:  time.Now(),
	}
}

// EventBroadcaster manages SSE connections per session
type EventBroadcaster struct {
	mu        sync.RWMutex
	clients   map[string]map[chan SnapshotEvent]bool // sessionID -> set of client channels
	lastEvent map[string]SnapshotEvent               // sessionID -> last event for new clients
}

// NewEventBroadcaster creates a new event broadcaster
func NewEventBroadcaster() *EventBroadcaster {
	return &EventBroadcaster{
		clients:   make(map[string]map[chan SnapshotEvent]bool),
		lastEvent: make(map[string]SnapshotEvent),
	}
}

// Subscribe adds a client to receive events for a session
func (eb *EventBroadcaster) Subscribe(sessionID string) chan SnapshotEvent {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	ch := make(chan SnapshotEvent, 16)

	if eb.clients[sessionID] == nil {
		eb.clients[sessionID] = make(map[chan SnapshotEvent]bool)
	}
	eb.clients[sessionID][ch] = true

	// Replay the last event for reconnecting clients
	if lastEvent, ok := eb.lastEvent[sessionID]; ok {
		select {
		case ch <- lastEvent:
		default:
		}
	}

	slog.Debug("SSE client subscribed", "session_id", sessionID, "total_clients", len(eb.clients[sessionID]))
	return ch
}

// Unsubscribe removes a client from receiving events
func (eb *EventBroadcaster) Unsubscribe(sessionID string, ch chan SnapshotEvent) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if clients, ok := eb.clients[sessionID]; ok {
		if _, subscribed := clients[ch]; subscribed {
			delete(clients, ch)
			close(ch)
		}
		if len(clients) == 0 {
			delete(eb.clients, sessionID)
		}
	}

	slog.Debug("SSE client unsubscribed", "session_id", sessionID)
}

// Broadcast sends an event to all subscribed clients for a session
func (eb *EventBroadcaster) Broadcast(event SnapshotEvent) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.lastEvent[event.SessionID] = event

	clients, ok := eb.clients[event.SessionID]
	if !ok || len(clients) == 0 {
		return
	}

	for ch := range clients {
		select {
		case ch <- event:
		default:
			// Slow client, drop the event rather than block the controller
			slog.Warn("SSE channel full, skipping event", "session_id", event.SessionID)
		}
	}
}

// CleanupSession removes all clients and cached events for a session
func (eb *EventBroadcaster) CleanupSession(sessionID string) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if clients, ok := eb.clients[sessionID]; ok {
		for ch := range clients {
			close(ch)
		}
		delete(eb.clients, sessionID)
	}

	delete(eb.lastEvent, sessionID)
	slog.Debug("Cleaned up SSE resources", "session_id", sessionID)
}

// handleSessionStream handles SSE connections for session progress
func (s *Server) handleSessionStream(w http.ResponseWriter, r *http.Request, sessionID string) {
	session, exists := s.sessions.GetSession(sessionID)
	if !exists {
		http.Error(w, "Session not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	eventChan := s.sessions.broadcaster.Subscribe(sessionID)
	defer s.sessions.broadcaster.Unsubscribe(sessionID, eventChan)

	if err := writeSSEEvent(w, NewSnapshotEvent(session.ID, session.Controller.Snapshot())); err != nil {
		slog.Error("Failed to write initial SSE event", "error", err)
		return
	}
	flusher.Flush()

	pingTicker := time.NewTicker(30 * time.Second)
	defer pingTicker.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			slog.Debug("SSE client disconnected", "session_id", sessionID)
			return

		case event, ok := <-eventChan:
			if !ok {
				return
			}
			if err := writeSSEEvent(w, event); err != nil {
				slog.Error("Failed to write SSE event", "error", err)
				return
			}
			flusher.Flush()

		case <-pingTicker.C:
			fmt.Fprintf(w, ": ping\n\n")
			flusher.Flush()
		}
	}
}

// writeSSEEvent writes an event in SSE format
func writeSSEEvent(w http.ResponseWriter, event SnapshotEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	_, err = fmt.Fprintf(w, "data: %s\n\n", data)
	return err
}
