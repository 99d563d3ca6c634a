package services

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/krshsl/mockinterview/models"
)

type AuthEndpoints struct {
	authService *AuthService
}

type JoinSessionResponse struct {
	SessionID string               `json:"session_id"`
	Status    models.SessionStatus `json:"status"`
	Token     string               `json:"token,omitempty"`
	Message   string               `json:"message"`
}

func NewAuthEndpoints(authService *AuthService) *AuthEndpoints {
	return &AuthEndpoints{
		authService: authService,
	}
}

func (e *AuthEndpoints) JoinHandler(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	code := chi.URLParam(r, "code")
	session, token, err := e.authService.Join(r.Context(), code, strings.TrimSpace(req.Username), req.Password)
	if errors.Is(err, ErrInvalidCredentials) {
		slog.Warn("Join rejected", "code", code)
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}
	if err != nil {
		slog.Error("Join failed", "error", err, "code", code)
		http.Error(w, "Failed to join session", http.StatusInternalServerError)
		return
	}
	if session == nil {
		http.Error(w, "Session not found", http.StatusNotFound)
		return
	}

	e.authService.SetSessionCookie(w, token)
	writeJSON(w, http.StatusOK, JoinSessionResponse{
		SessionID: session.ID,
		Status:    session.Status,
		Token:     token,
		Message:   "Join successful",
	})
}

// LeaveHandler clears the session cookie. Tokens stay valid until they expire.
func (e *AuthEndpoints) LeaveHandler(w http.ResponseWriter, r *http.Request) {
	e.authService.ClearSessionCookie(w)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Left session",
	})
}
