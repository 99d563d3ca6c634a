package repository

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/krshsl/mockinterview/models"
)

// MemoryRepository is a process-local Store used when no database is configured.
// Values are copied on the way in and out.
type MemoryRepository struct {
	mu           sync.RWMutex
	sessions     map[string]*models.Session
	codes        map[string]string
	interactions map[string][]models.Interaction
	reports      map[string]models.Report
	nextID       uint64
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		sessions:     make(map[string]*models.Session),
		codes:        make(map[string]string),
		interactions: make(map[string][]models.Interaction),
		reports:      make(map[string]models.Report),
	}
}

func (r *MemoryRepository) Ping(ctx context.Context) error {
	return nil
}

func (r *MemoryRepository) CreateSession(ctx context.Context, session *models.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.codes[session.Code]; taken {
		return ErrDuplicateCode
	}
	if session.ID == "" {
		session.ID = uuid.New().String()
	}
	now := time.Now()
	session.CreatedAt = now
	session.UpdatedAt = now

	stored := copySession(session)
	r.sessions[session.ID] = stored
	r.codes[session.Code] = session.ID
	return nil
}

func (r *MemoryRepository) GetSession(ctx context.Context, id string) (*models.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	session, ok := r.sessions[id]
	if !ok {
		return nil, nil
	}
	return copySession(session), nil
}

func (r *MemoryRepository) GetSessionByCode(ctx context.Context, code string) (*models.Session, error) {
	r.mu.RLock()
	id, ok := r.codes[code]
	r.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return r.GetSession(ctx, id)
}

func (r *MemoryRepository) SaveProfile(ctx context.Context, id string, profile models.Profile, status models.SessionStatus) error {
	return r.update(id, func(s *models.Session) {
		s.Name = profile.Name
		s.Age = profile.Age
		s.Gender = profile.Gender
		s.Email = profile.Email
		s.Phone = profile.Phone
		s.Education = profile.Education
		s.Status = status
	})
}

func (r *MemoryRepository) SaveInterviewInfo(ctx context.Context, id string, info models.InterviewInfo, status models.SessionStatus) error {
	return r.update(id, func(s *models.Session) {
		s.Company = info.Company
		s.Position = info.Position
		s.SelfIntro = info.SelfIntro
		s.Status = status
	})
}

func (r *MemoryRepository) SavePersona(ctx context.Context, id string, persona models.Persona, status models.SessionStatus) error {
	return r.update(id, func(s *models.Session) {
		s.Persona = persona
		s.Status = status
	})
}

func (r *MemoryRepository) SaveQuestions(ctx context.Context, id string, questions []models.Question, status models.SessionStatus) error {
	return r.update(id, func(s *models.Session) {
		s.Questions = slices.Clone(questions)
		s.Status = status
	})
}

func (r *MemoryRepository) UpdateStatus(ctx context.Context, id string, status models.SessionStatus) error {
	return r.update(id, func(s *models.Session) {
		s.Status = status
	})
}

func (r *MemoryRepository) update(id string, apply func(*models.Session)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[id]
	if !ok {
		return ErrNotFound
	}
	apply(session)
	session.UpdatedAt = time.Now()
	return nil
}

func (r *MemoryRepository) AppendInteraction(ctx context.Context, interaction *models.Interaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	interaction.ID = r.nextID
	if interaction.CreatedAt.IsZero() {
		interaction.CreatedAt = time.Now()
	}
	stored := *interaction
	stored.Evaluations = slices.Clone(interaction.Evaluations)
	r.interactions[interaction.SessionID] = append(r.interactions[interaction.SessionID], stored)
	return nil
}

func (r *MemoryRepository) ListInteractions(ctx context.Context, sessionID string) ([]models.Interaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return slices.Clone(r.interactions[sessionID]), nil
}

func (r *MemoryRepository) SaveReport(ctx context.Context, sessionID string, report *models.Report) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.reports[sessionID] = *report
	return nil
}

func (r *MemoryRepository) GetReport(ctx context.Context, sessionID string) (*models.Report, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	report, ok := r.reports[sessionID]
	if !ok {
		return nil, nil
	}
	return &report, nil
}

func copySession(s *models.Session) *models.Session {
	c := *s
	c.Questions = slices.Clone(s.Questions)
	return &c
}
