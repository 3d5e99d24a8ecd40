// Package webhook is the HTTP surface the telephony platform calls. It
// translates call lifecycle events into session registry operations and
// exposes a status endpoint for operators.
package webhook

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/helpathands/shiftline/internal/app"
)

// Handler serves the telephony webhooks on top of a session manager.
type Handler struct {
	manager *app.Manager
	log     *slog.Logger
}

// New creates a Handler backed by manager.
func New(manager *app.Manager, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{manager: manager, log: log}
}

// Register adds the webhook and status routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /webhook/call-started", h.CallStarted)
	mux.HandleFunc("POST /webhook/call-ended", h.CallEnded)
	mux.HandleFunc("GET /status", h.Status)
}

// callEvent is the request body for both lifecycle webhooks.
type callEvent struct {
	CallID string `json:"call_id"`
	From   string `json:"from"`
}

// errorBody is the JSON error envelope.
type errorBody struct {
	Error string `json:"error"`
}

// CallStarted accepts a call-started event and boots a session. Responds 400
// when call_id is missing and 409 when the call is already live.
func (h *Handler) CallStarted(w http.ResponseWriter, r *http.Request) {
	var ev callEvent
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid JSON body"})
		return
	}
	if ev.CallID == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "call_id is required"})
		return
	}

	if err := h.manager.Start(r.Context(), ev.CallID, ev.From); err != nil {
		if errors.Is(err, app.ErrAlreadyExists) {
			writeJSON(w, http.StatusConflict, errorBody{Error: "call already active"})
			return
		}
		h.log.Error("starting call session", "call_id", ev.CallID, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "failed to start session"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":       "success",
		"call_id":      ev.CallID,
		"caller_phone": ev.From,
	})
}

// CallEnded winds down the session for a call-ended event. Responds 404 when
// the call is unknown.
func (h *Handler) CallEnded(w http.ResponseWriter, r *http.Request) {
	var ev callEvent
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid JSON body"})
		return
	}
	if ev.CallID == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "call_id is required"})
		return
	}

	if err := h.manager.Stop(r.Context(), ev.CallID); err != nil {
		if errors.Is(err, app.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody{Error: "no such call"})
			return
		}
		h.log.Error("stopping call session", "call_id", ev.CallID, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "failed to stop session"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

// statusResponse shapes the /status payload with human-readable uptimes.
type statusResponse struct {
	ActiveSessions int             `json:"active_sessions"`
	Sessions       []statusSession `json:"sessions"`
}

type statusSession struct {
	CallID    string    `json:"call_id"`
	StartedAt time.Time `json:"started_at"`
	Uptime    string    `json:"uptime"`
}

// Status reports the live sessions.
func (h *Handler) Status(w http.ResponseWriter, _ *http.Request) {
	snap := h.manager.Status()

	resp := statusResponse{
		ActiveSessions: snap.ActiveSessions,
		Sessions:       make([]statusSession, 0, len(snap.Sessions)),
	}
	for _, s := range snap.Sessions {
		resp.Sessions = append(resp.Sessions, statusSession{
			CallID:    s.CallID,
			StartedAt: s.StartedAt,
			Uptime:    s.Uptime.Round(time.Second).String(),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// writeJSON encodes v with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error":"encoding failure"}`, http.StatusInternalServerError)
	}
}
