package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/krshsl/mockinterview/models"
	"github.com/krshsl/mockinterview/repository"
)

const (
	DemoSessionCode     = "TRYME2"
	DemoSessionUser     = "demo"
	DemoSessionPassword = "demo"
)

// DatabaseSeeder handles database seeding operations
type DatabaseSeeder struct {
	store repository.Store
}

// NewDatabaseSeeder creates a new database seeder
func NewDatabaseSeeder(store repository.Store) *DatabaseSeeder {
	return &DatabaseSeeder{store: store}
}

// SeedDemoSession creates a session that is ready to chat, so the dialogue can
// be tried without an AI provider for the preparation steps (idempotent).
func (s *DatabaseSeeder) SeedDemoSession(ctx context.Context) (*models.Session, error) {
	existing, err := s.store.GetSessionByCode(ctx, DemoSessionCode)
	if err != nil {
		return nil, fmt.Errorf("error checking demo session: %w", err)
	}
	if existing != nil {
		slog.Info("Demo session already exists, skipping", "code", DemoSessionCode)
		return existing, nil
	}

	hash, err := HashPassword(DemoSessionPassword)
	if err != nil {
		return nil, err
	}

	session := &models.Session{
		Code:         DemoSessionCode,
		Username:     DemoSessionUser,
		PasswordHash: hash,
		Status:       models.StatusReady,
	}
	if err := s.store.CreateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create demo session: %w", err)
	}

	profile := models.Profile{
		Name:   "Demo Candidate",
		Age:    25,
		Gender: "female",
		Email:  "demo@example.com",
		Education: models.Education{
			School: "Demo University",
			Major:  "Computer Science",
			Degree: "B.S.",
		},
	}
	info := models.InterviewInfo{
		Company:   "Demo Corp",
		Position:  "Backend Developer",
		SelfIntro: "I build small web services in Go and enjoy debugging production issues.",
	}
	persona := models.Persona{
		Name:        "Jiwoo Park",
		Department:  "Platform Engineering",
		Description: "A calm senior backend engineer who values clear reasoning over memorized answers and likes to probe how candidates would debug real incidents.",
	}
	questions := []models.Question{
		{ID: uuid.NewString(), Text: "Explain the difference between a process and a thread.", Type: models.QuestionTypeBasic},
		{ID: uuid.NewString(), Text: "How would you find out why an API endpoint suddenly became slow?", Type: models.QuestionTypeBasic},
		{ID: uuid.NewString(), Text: "Write a function that reverses a singly linked list and explain its complexity.", Type: models.QuestionTypeBasic},
	}

	steps := []struct {
		name string
		run  func() error
	}{
		{"profile", func() error {
			return s.store.SaveProfile(ctx, session.ID, profile, models.StatusProfileSaved)
		}},
		{"interview info", func() error {
			return s.store.SaveInterviewInfo(ctx, session.ID, info, models.StatusInterviewInfoSaved)
		}},
		{"persona", func() error {
			return s.store.SavePersona(ctx, session.ID, persona, models.StatusPersonaReady)
		}},
		{"questions", func() error {
			return s.store.SaveQuestions(ctx, session.ID, questions, models.StatusQuestionsReady)
		}},
	}
	for _, step := range steps {
		if err := step.run(); err != nil {
			return nil, fmt.Errorf("failed to seed demo %s: %w", step.name, err)
		}
	}

	slog.Info("Demo session seeded", "code", DemoSessionCode, "session_id", session.ID, "questions", len(questions))
	return s.store.GetSession(ctx, session.ID)
}
