// internal/handlers/rooms.go
package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// CreateRoomHandler creates an empty lobby room. The host is taken from the hostId query
// parameter, or generated when absent.
func CreateRoomHandler(gs *GameServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		hostID := strings.TrimSpace(r.URL.Query().Get("hostId"))
		if hostID == "" {
			hostID = uuid.NewString()
		}
		room, err := gs.Engine.Create(r.Context(), hostID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, room)
	}
}

// GetRoomHandler returns a room by code. With redaction on, the playerId query parameter selects the view.
func GetRoomHandler(gs *GameServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := strings.ToUpper(chi.URLParam(r, "code"))
		room, err := gs.Engine.Get(r.Context(), code)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, gs.Hub.View(room, r.URL.Query().Get("playerId")))
	}
}

// HealthHandler reports liveness.
func HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	code := errorCode(err)
	status := http.StatusInternalServerError
	switch code {
	case CodeNotFound:
		status = http.StatusNotFound
	case CodeExhausted:
		status = http.StatusServiceUnavailable
	}
	msg := err.Error()
	if code == CodeInternal {
		msg = "internal error"
	}
	writeJSON(w, status, map[string]string{"error": code, "message": msg})
}
