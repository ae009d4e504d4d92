package repositories

import (
	"context"
	"time"

	"tontinehub/internal/adapters/persistence/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// participantRepository implements ParticipantRepository interface
type participantRepository struct {
	db *gorm.DB
}

// NewParticipantRepository creates a new participant repository
func NewParticipantRepository(db *gorm.DB) ParticipantRepository {
	return &participantRepository{db: db}
}

// ResetForRound creates fresh UNANSWERED rows for every notified member and
// stamps notified_at. Upsert keeps the call idempotent if a round restarts
// after an aborted window.
func (r *participantRepository) ResetForRound(ctx context.Context, poolID uint, roundNumber int, userIDs []uint) error {
	now := time.Now()
	rows := make([]models.RoundParticipant, 0, len(userIDs))
	for _, userID := range userIDs {
		rows = append(rows, models.RoundParticipant{
			PoolID:      poolID,
			RoundNumber: roundNumber,
			UserID:      userID,
			Decision:    models.DecisionUnanswered,
			NotifiedAt:  &now,
		})
	}

	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "pool_id"}, {Name: "round_number"}, {Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"decision":      models.DecisionUnanswered,
			"notified_at":   now,
			"opted_in_at":   nil,
			"auto_enrolled": false,
		}),
	}).Create(&rows).Error
}

// SetDecision records one member's response. Single-row update, last write
// wins; different members never contend.
func (r *participantRepository) SetDecision(ctx context.Context, poolID uint, roundNumber int, userID uint, decision string, autoEnrolled bool) error {
	updates := map[string]interface{}{
		"decision":      decision,
		"auto_enrolled": autoEnrolled,
	}
	if decision != models.DecisionUnanswered && !autoEnrolled {
		updates["opted_in_at"] = time.Now()
	}

	return r.db.WithContext(ctx).Model(&models.RoundParticipant{}).
		Where("pool_id = ? AND round_number = ? AND user_id = ?", poolID, roundNumber, userID).
		Updates(updates).Error
}

// GetByRound returns all participant rows for a round in stable order
func (r *participantRepository) GetByRound(ctx context.Context, poolID uint, roundNumber int) ([]models.RoundParticipant, error) {
	var participants []models.RoundParticipant
	err := r.db.WithContext(ctx).
		Preload("User").
		Where("pool_id = ? AND round_number = ?", poolID, roundNumber).
		Order("user_id ASC").
		Find(&participants).Error
	return participants, err
}
