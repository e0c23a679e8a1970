package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/cwbudde/polyga/internal/controller"
)

// SessionResponse is the JSON view of one session.
type SessionResponse struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	controller.Snapshot
}

func sessionResponse(s *Session) SessionResponse {
	return SessionResponse{
		ID:        s.ID,
		CreatedAt: s.CreatedAt,
		Snapshot:  s.Controller.Snapshot(),
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}
