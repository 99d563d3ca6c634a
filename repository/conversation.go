package repository

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/krshsl/mockinterview/models"
)

// AppendInteraction adds one exchange to the session's log using GORM
func (r *GORMRepository) AppendInteraction(ctx context.Context, interaction *models.Interaction) error {
	if err := r.db.WithContext(ctx).Create(interaction).Error; err != nil {
		slog.Error("Failed to append interaction", "error", err, "session_id", interaction.SessionID, "turn", interaction.Turn)
		return fmt.Errorf("failed to append interaction: %w", err)
	}

	slog.Info("Interaction saved", "session_id", interaction.SessionID, "turn", interaction.Turn, "followup", interaction.FollowUp)
	return nil
}

// ListInteractions returns the session's log in append order
func (r *GORMRepository) ListInteractions(ctx context.Context, sessionID string) ([]models.Interaction, error) {
	var interactions []models.Interaction

	query := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("id ASC")

	if err := query.Find(&interactions).Error; err != nil {
		slog.Error("Failed to list interactions", "error", err, "session_id", sessionID)
		return nil, fmt.Errorf("failed to list interactions: %w", err)
	}

	slog.Info("Interactions retrieved", "session_id", sessionID, "count", len(interactions))
	return interactions, nil
}
