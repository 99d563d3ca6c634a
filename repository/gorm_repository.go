package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/krshsl/mockinterview/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const uniqueViolation = "23505"

type GORMRepository struct {
	db *gorm.DB
}

func NewGORMRepository(db *gorm.DB) *GORMRepository {
	return &GORMRepository{db: db}
}

// AutoMigrate runs database migrations
func (r *GORMRepository) AutoMigrate() error {
	return r.db.AutoMigrate(
		&models.Session{},
		&models.Interaction{},
		&models.ReportRecord{},
	)
}

func (r *GORMRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql db: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

// Session operations
func (r *GORMRepository) CreateSession(ctx context.Context, session *models.Session) error {
	if session.ID == "" {
		session.ID = uuid.New().String()
	}
	if err := r.db.WithContext(ctx).Create(session).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateCode
		}
		slog.Error("Failed to create session", "error", err)
		return fmt.Errorf("failed to create session: %w", err)
	}
	slog.Info("Session created", "session_id", session.ID, "code", session.Code)
	return nil
}

func (r *GORMRepository) GetSession(ctx context.Context, id string) (*models.Session, error) {
	var session models.Session
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&session).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		slog.Error("Failed to get session by ID", "error", err, "session_id", id)
		return nil, err
	}
	return &session, nil
}

func (r *GORMRepository) GetSessionByCode(ctx context.Context, code string) (*models.Session, error) {
	var session models.Session
	if err := r.db.WithContext(ctx).Where("code = ?", code).First(&session).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		slog.Error("Failed to get session by code", "error", err, "code", code)
		return nil, err
	}
	return &session, nil
}

func (r *GORMRepository) SaveProfile(ctx context.Context, id string, profile models.Profile, status models.SessionStatus) error {
	return r.updateSession(ctx, id, map[string]interface{}{
		"name":                      profile.Name,
		"age":                       profile.Age,
		"gender":                    profile.Gender,
		"email":                     profile.Email,
		"phone":                     profile.Phone,
		"education_school":          profile.Education.School,
		"education_major":           profile.Education.Major,
		"education_degree":          profile.Education.Degree,
		"education_graduation_year": profile.Education.GraduationYear,
		"status":                    status,
	})
}

func (r *GORMRepository) SaveInterviewInfo(ctx context.Context, id string, info models.InterviewInfo, status models.SessionStatus) error {
	return r.updateSession(ctx, id, map[string]interface{}{
		"company":    info.Company,
		"position":   info.Position,
		"self_intro": info.SelfIntro,
		"status":     status,
	})
}

func (r *GORMRepository) SavePersona(ctx context.Context, id string, persona models.Persona, status models.SessionStatus) error {
	return r.updateSession(ctx, id, map[string]interface{}{
		"persona_name":        persona.Name,
		"persona_department":  persona.Department,
		"persona_description": persona.Description,
		"status":              status,
	})
}

func (r *GORMRepository) SaveQuestions(ctx context.Context, id string, questions []models.Question, status models.SessionStatus) error {
	return r.updateSession(ctx, id, map[string]interface{}{
		"questions": datatypes.NewJSONSlice(questions),
		"status":    status,
	})
}

func (r *GORMRepository) UpdateStatus(ctx context.Context, id string, status models.SessionStatus) error {
	return r.updateSession(ctx, id, map[string]interface{}{"status": status})
}

// updateSession writes only the given columns so concurrent edits of unrelated
// fields do not clobber each other.
func (r *GORMRepository) updateSession(ctx context.Context, id string, fields map[string]interface{}) error {
	result := r.db.WithContext(ctx).Model(&models.Session{}).Where("id = ?", id).Updates(fields)
	if result.Error != nil {
		slog.Error("Failed to update session", "error", result.Error, "session_id", id)
		return fmt.Errorf("failed to update session: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Report operations
func (r *GORMRepository) SaveReport(ctx context.Context, sessionID string, report *models.Report) error {
	record := models.ReportRecord{
		SessionID: sessionID,
		Data:      datatypes.NewJSONType(*report),
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "session_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"data", "updated_at"}),
	}).Create(&record).Error
	if err != nil {
		slog.Error("Failed to save report", "error", err, "session_id", sessionID)
		return fmt.Errorf("failed to save report: %w", err)
	}
	slog.Info("Report saved", "session_id", sessionID, "total_score", report.TotalScore)
	return nil
}

func (r *GORMRepository) GetReport(ctx context.Context, sessionID string) (*models.Report, error) {
	var record models.ReportRecord
	if err := r.db.WithContext(ctx).Where("session_id = ?", sessionID).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		slog.Error("Failed to get report", "error", err, "session_id", sessionID)
		return nil, err
	}
	report := record.Data.Data()
	return &report, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == uniqueViolation
	}
	return errors.Is(err, gorm.ErrDuplicatedKey)
}
