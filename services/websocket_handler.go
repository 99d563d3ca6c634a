package services

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/krshsl/mockinterview/repository"
	ws "github.com/krshsl/mockinterview/websocket"
)

type WebSocketHandler struct {
	store        repository.Store
	hub          *ws.Hub
	lease        SessionLease
	orchestrator *DialogueOrchestrator
	upgrader     websocket.Upgrader
	voiceEnabled bool
}

func NewWebSocketHandler(store repository.Store, hub *ws.Hub, lease SessionLease, orchestrator *DialogueOrchestrator, upgrader websocket.Upgrader, voiceEnabled bool) *WebSocketHandler {
	return &WebSocketHandler{
		store:        store,
		hub:          hub,
		lease:        lease,
		orchestrator: orchestrator,
		upgrader:     upgrader,
		voiceEnabled: voiceEnabled,
	}
}

func (h *WebSocketHandler) ChatHandler(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, ModeText)
}

func (h *WebSocketHandler) SpeechHandler(w http.ResponseWriter, r *http.Request) {
	if !h.voiceEnabled {
		http.Error(w, "Speech recognition is not configured", http.StatusServiceUnavailable)
		return
	}
	h.serve(w, r, ModeVoice)
}

// ValidJoinCode reports whether code could have been issued by NewJoinCode.
func ValidJoinCode(code string) bool {
	if len(code) != joinCodeLength {
		return false
	}
	for _, c := range code {
		if !strings.ContainsRune(joinCodeAlphabet, c) {
			return false
		}
	}
	return true
}

func (h *WebSocketHandler) serve(w http.ResponseWriter, r *http.Request, mode DialogueMode) {
	code := chi.URLParam(r, "code")

	session, err := h.store.GetSessionByCode(r.Context(), code)
	if err != nil {
		slog.Error("Failed to get session for dialogue", "error", err, "code", code)
		http.Error(w, "Failed to get session", http.StatusInternalServerError)
		return
	}

	// Only a dialogue that can actually run takes the lease.
	if session != nil {
		release, err := h.lease.Acquire(r.Context(), session.ID, uuid.NewString())
		if errors.Is(err, ErrLeaseHeld) {
			http.Error(w, ErrLeaseHeld.Error(), http.StatusConflict)
			return
		}
		if err != nil {
			slog.Error("Failed to acquire dialogue lease", "error", err, "session_id", session.ID)
			http.Error(w, "Failed to start dialogue", http.StatusServiceUnavailable)
			return
		}
		defer release()
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("WebSocket upgrade failed", "error", err)
		return
	}

	sessionID := code
	if session != nil {
		sessionID = session.ID
	}
	client := h.hub.RegisterClient(conn, sessionID, string(mode))
	slog.Info("WebSocket connection established", "session_id", sessionID, "mode", mode)

	if !ValidJoinCode(code) {
		rejectClient(r.Context(), client, ws.CloseInvalidSession, "Invalid session code.")
		return
	}
	if session == nil {
		rejectClient(r.Context(), client, ws.CloseSessionNotFound, "Session not found.")
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go func() {
		select {
		case <-h.hub.Stopped():
			cancel()
		case <-ctx.Done():
		}
	}()

	if err := h.orchestrator.Run(ctx, client, session, mode); err != nil {
		slog.Info("Dialogue ended early", "session_id", session.ID, "reason", err)
	}
}

func rejectClient(ctx context.Context, client *ws.Client, code int, message string) {
	if err := client.Send(ctx, ErrorEvent{Type: "error", Error: message}); err != nil {
		slog.Warn("Failed to send rejection", "error", err)
	}
	client.Close(code, message)
}
