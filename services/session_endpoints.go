package services

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/krshsl/mockinterview/models"
	"github.com/krshsl/mockinterview/repository"
)

const maxCodeAttempts = 10

type SessionEndpoints struct {
	store      repository.Store
	preparer   *InterviewPreparer
	aggregator *ReportAggregator
}

func NewSessionEndpoints(store repository.Store, preparer *InterviewPreparer, aggregator *ReportAggregator) *SessionEndpoints {
	return &SessionEndpoints{
		store:      store,
		preparer:   preparer,
		aggregator: aggregator,
	}
}

type CredentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type CreateSessionResponse struct {
	SessionID string               `json:"session_id"`
	Code      string               `json:"code"`
	Status    models.SessionStatus `json:"status"`
	CreatedAt time.Time            `json:"created_at"`
}

type ProfileRequest struct {
	Name      string           `json:"name"`
	Age       int              `json:"age"`
	Gender    string           `json:"gender"`
	Email     string           `json:"email"`
	Phone     string           `json:"phone"`
	Education models.Education `json:"education"`
}

type InterviewInfoRequest struct {
	Company   string `json:"company"`
	Position  string `json:"position"`
	SelfIntro string `json:"self_intro"`
}

type GenerateQuestionsRequest struct {
	NumQuestions int `json:"num_questions"`
}

type StatusResponse struct {
	Message string               `json:"message"`
	Status  models.SessionStatus `json:"status"`
}

func (e *SessionEndpoints) CreateSessionHandler(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		http.Error(w, "username and password are required", http.StatusBadRequest)
		return
	}

	hash, err := HashPassword(req.Password)
	if err != nil {
		slog.Error("Failed to hash session password", "error", err)
		http.Error(w, "Failed to create session", http.StatusInternalServerError)
		return
	}

	var session *models.Session
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code, err := NewJoinCode()
		if err != nil {
			slog.Error("Failed to generate join code", "error", err)
			http.Error(w, "Failed to create session", http.StatusInternalServerError)
			return
		}

		candidate := &models.Session{
			Code:         code,
			Username:     req.Username,
			PasswordHash: hash,
			Status:       models.StatusReady,
		}
		err = e.store.CreateSession(r.Context(), candidate)
		if errors.Is(err, repository.ErrDuplicateCode) {
			slog.Warn("Join code collision, retrying", "attempt", attempt+1)
			continue
		}
		if err != nil {
			slog.Error("Failed to create session", "error", err)
			http.Error(w, "Failed to create session", http.StatusInternalServerError)
			return
		}
		session = candidate
		break
	}
	if session == nil {
		http.Error(w, "Could not allocate a join code", http.StatusServiceUnavailable)
		return
	}

	writeJSON(w, http.StatusCreated, CreateSessionResponse{
		SessionID: session.ID,
		Code:      session.Code,
		Status:    session.Status,
		CreatedAt: session.CreatedAt,
	})

	slog.Info("Interview session created", "session_id", session.ID, "code", session.Code)
}

func (e *SessionEndpoints) SaveProfileHandler(w http.ResponseWriter, r *http.Request) {
	session, ok := e.loadSession(w, r)
	if !ok {
		return
	}

	var req ProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if msg := validateProfile(&req); msg != "" {
		http.Error(w, msg, http.StatusBadRequest)
		return
	}

	profile := models.Profile{
		Name:      req.Name,
		Age:       req.Age,
		Gender:    req.Gender,
		Email:     req.Email,
		Phone:     req.Phone,
		Education: req.Education,
	}
	status := session.Status.Advance(models.StatusProfileSaved)
	if err := e.store.SaveProfile(r.Context(), session.ID, profile, status); err != nil {
		slog.Error("Failed to save profile", "error", err, "session_id", session.ID)
		http.Error(w, "Failed to save profile", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, StatusResponse{Message: "Profile saved", Status: status})
}

func validateProfile(req *ProfileRequest) string {
	req.Name = strings.TrimSpace(req.Name)
	req.Gender = strings.TrimSpace(req.Gender)
	req.Email = strings.TrimSpace(req.Email)
	switch {
	case req.Name == "":
		return "name is required"
	case req.Age <= 0:
		return "age must be a positive number"
	case req.Gender == "":
		return "gender is required"
	case req.Email == "" || !strings.Contains(req.Email, "@"):
		return "a valid email is required"
	}
	return ""
}

func (e *SessionEndpoints) SaveInterviewInfoHandler(w http.ResponseWriter, r *http.Request) {
	session, ok := e.loadSession(w, r)
	if !ok {
		return
	}

	var req InterviewInfoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	info := models.InterviewInfo{
		Company:   strings.TrimSpace(req.Company),
		Position:  strings.TrimSpace(req.Position),
		SelfIntro: strings.TrimSpace(req.SelfIntro),
	}
	if info.Company == "" || info.Position == "" || info.SelfIntro == "" {
		http.Error(w, "company, position and self_intro are required", http.StatusBadRequest)
		return
	}

	status := session.Status.Advance(models.StatusInterviewInfoSaved)
	if err := e.store.SaveInterviewInfo(r.Context(), session.ID, info, status); err != nil {
		slog.Error("Failed to save interview info", "error", err, "session_id", session.ID)
		http.Error(w, "Failed to save interview info", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, StatusResponse{Message: "Interview info saved", Status: status})
}

func (e *SessionEndpoints) GeneratePersonaHandler(w http.ResponseWriter, r *http.Request) {
	session, ok := e.loadSession(w, r)
	if !ok {
		return
	}

	persona, err := e.preparer.GeneratePersona(r.Context(), session)
	if errors.Is(err, ErrInterviewInfoMissing) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err != nil {
		slog.Error("Failed to generate persona", "error", err, "session_id", session.ID)
		http.Error(w, "Failed to generate persona", http.StatusBadGateway)
		return
	}

	status := session.Status.Advance(models.StatusPersonaReady)
	if err := e.store.SavePersona(r.Context(), session.ID, persona, status); err != nil {
		slog.Error("Failed to save persona", "error", err, "session_id", session.ID)
		http.Error(w, "Failed to save persona", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, persona)
}

func (e *SessionEndpoints) GetPersonaHandler(w http.ResponseWriter, r *http.Request) {
	session, ok := e.loadSession(w, r)
	if !ok {
		return
	}
	if session.Persona.Empty() {
		http.Error(w, "Persona not generated", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, session.Persona)
}

func (e *SessionEndpoints) GenerateQuestionsHandler(w http.ResponseWriter, r *http.Request) {
	session, ok := e.loadSession(w, r)
	if !ok {
		return
	}

	var req GenerateQuestionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	questions, err := e.preparer.GenerateQuestions(r.Context(), session, req.NumQuestions)
	if errors.Is(err, ErrPersonaMissing) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err != nil {
		slog.Error("Failed to generate questions", "error", err, "session_id", session.ID)
		http.Error(w, "Failed to generate questions", http.StatusBadGateway)
		return
	}

	status := session.Status.Advance(models.StatusQuestionsReady)
	if err := e.store.SaveQuestions(r.Context(), session.ID, questions, status); err != nil {
		slog.Error("Failed to save questions", "error", err, "session_id", session.ID)
		http.Error(w, "Failed to save questions", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"questions": questions,
		"status":    status,
	})
}

func (e *SessionEndpoints) GetQuestionsHandler(w http.ResponseWriter, r *http.Request) {
	session, ok := e.loadSession(w, r)
	if !ok {
		return
	}
	questions := []models.Question(session.Questions)
	if questions == nil {
		questions = []models.Question{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"questions": questions,
	})
}

func (e *SessionEndpoints) GetInteractionsHandler(w http.ResponseWriter, r *http.Request) {
	session, ok := e.loadSession(w, r)
	if !ok {
		return
	}

	interactions, err := e.store.ListInteractions(r.Context(), session.ID)
	if err != nil {
		slog.Error("Failed to list interactions", "error", err, "session_id", session.ID)
		http.Error(w, "Failed to get interactions", http.StatusInternalServerError)
		return
	}
	if interactions == nil {
		interactions = []models.Interaction{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"interactions": interactions,
		"count":        len(interactions),
	})
}

func (e *SessionEndpoints) EndChatHandler(w http.ResponseWriter, r *http.Request) {
	session, ok := e.loadSession(w, r)
	if !ok {
		return
	}
	if session.Status != models.StatusChatEnded {
		http.Error(w, "Interview has not finished yet", http.StatusConflict)
		return
	}
	writeJSON(w, http.StatusOK, StatusResponse{Message: "Interview ended", Status: session.Status})
}

func (e *SessionEndpoints) FinalEvaluationHandler(w http.ResponseWriter, r *http.Request) {
	session, ok := e.loadSession(w, r)
	if !ok {
		return
	}
	if session.Status != models.StatusChatEnded {
		http.Error(w, "Interview must be completed before the final evaluation", http.StatusConflict)
		return
	}

	interactions, err := e.store.ListInteractions(r.Context(), session.ID)
	if err != nil {
		slog.Error("Failed to list interactions", "error", err, "session_id", session.ID)
		http.Error(w, "Failed to get interactions", http.StatusInternalServerError)
		return
	}

	report := e.aggregator.Aggregate(r.Context(), interactions)
	if err := e.store.SaveReport(r.Context(), session.ID, report); err != nil {
		slog.Error("Failed to save report", "error", err, "session_id", session.ID)
		http.Error(w, "Failed to save report", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, report)
	slog.Info("Final evaluation generated", "session_id", session.ID, "total_score", report.TotalScore, "question_count", report.QuestionCount)
}

func (e *SessionEndpoints) GetReportHandler(w http.ResponseWriter, r *http.Request) {
	session, ok := e.loadSession(w, r)
	if !ok {
		return
	}

	report, err := e.store.GetReport(r.Context(), session.ID)
	if err != nil {
		slog.Error("Failed to get report", "error", err, "session_id", session.ID)
		http.Error(w, "Failed to get report", http.StatusInternalServerError)
		return
	}
	if report == nil {
		http.Error(w, "Report not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// loadSession resolves {code}. It writes the error response itself and
// reports false when the handler should stop.
func (e *SessionEndpoints) loadSession(w http.ResponseWriter, r *http.Request) (*models.Session, bool) {
	code := chi.URLParam(r, "code")
	if code == "" {
		http.Error(w, "Session code is required", http.StatusBadRequest)
		return nil, false
	}

	session, err := e.store.GetSessionByCode(r.Context(), code)
	if err != nil {
		slog.Error("Failed to get session", "error", err, "code", code)
		http.Error(w, "Failed to get session", http.StatusInternalServerError)
		return nil, false
	}
	if session == nil {
		http.Error(w, "Session not found", http.StatusNotFound)
		return nil, false
	}
	return session, true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}
