package repository

import (
	"context"
	"errors"

	"github.com/krshsl/mockinterview/models"
)

var (
	// ErrNotFound is returned by updates that target a missing session.
	ErrNotFound = errors.New("session not found")
	// ErrDuplicateCode is returned by CreateSession when the join code is taken.
	ErrDuplicateCode = errors.New("join code already in use")
)

// Store is the session document store. Lookups return (nil, nil) when nothing
// matches. Interactions form an append-only log per session, listed in append order.
type Store interface {
	CreateSession(ctx context.Context, session *models.Session) error
	GetSession(ctx context.Context, id string) (*models.Session, error)
	GetSessionByCode(ctx context.Context, code string) (*models.Session, error)

	SaveProfile(ctx context.Context, id string, profile models.Profile, status models.SessionStatus) error
	SaveInterviewInfo(ctx context.Context, id string, info models.InterviewInfo, status models.SessionStatus) error
	SavePersona(ctx context.Context, id string, persona models.Persona, status models.SessionStatus) error
	SaveQuestions(ctx context.Context, id string, questions []models.Question, status models.SessionStatus) error
	UpdateStatus(ctx context.Context, id string, status models.SessionStatus) error

	AppendInteraction(ctx context.Context, interaction *models.Interaction) error
	ListInteractions(ctx context.Context, sessionID string) ([]models.Interaction, error)

	SaveReport(ctx context.Context, sessionID string, report *models.Report) error
	GetReport(ctx context.Context, sessionID string) (*models.Report, error)

	Ping(ctx context.Context) error
}
