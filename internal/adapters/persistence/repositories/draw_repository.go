package repositories

import (
	"context"
	"errors"
	"time"

	"tontinehub/internal/adapters/persistence/models"
	"tontinehub/internal/core/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// drawRepository implements DrawRepository — the round ledger.
type drawRepository struct {
	db *gorm.DB
}

// NewDrawRepository creates a new draw repository
func NewDrawRepository(db *gorm.DB) DrawRepository {
	return &drawRepository{db: db}
}

// NextRoundNumber returns max(round_number) + 1 for a pool, starting at 1
func (r *drawRepository) NextRoundNumber(ctx context.Context, poolID uint) (int, error) {
	var max int
	err := r.db.WithContext(ctx).Model(&models.Draw{}).
		Where("pool_id = ?", poolID).
		Select("COALESCE(MAX(round_number), 0)").
		Scan(&max).Error
	if err != nil {
		return 0, err
	}
	return max + 1, nil
}

// CommitDraw is the single safety-critical write of the draw engine. Inside
// one transaction it takes a pessimistic lock on the pool row, re-checks the
// round number and the no-repeat-winner invariant, inserts the draw and flips
// the winner's has_won flag. Two concurrent commits for the same pool
// serialize on the lock; the second one fails with *domain.RoundConflictError
// and no side effects. The composite unique index on (pool_id, round_number)
// is the backstop beneath the in-transaction check.
func (r *drawRepository) CommitDraw(ctx context.Context, draw *models.Draw) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Pool-level exclusivity: SELECT ... FOR UPDATE
		var pool models.Pool
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&pool, draw.PoolID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrPoolNotFound
			}
			return err
		}

		// Round number must still be free
		var existing int64
		if err := tx.Model(&models.Draw{}).
			Where("pool_id = ? AND round_number = ?", draw.PoolID, draw.RoundNumber).
			Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return &domain.RoundConflictError{
				PoolID:      draw.PoolID,
				RoundNumber: draw.RoundNumber,
				Reason:      "round number already committed by a concurrent draw",
			}
		}

		// No-repeat-winner backstop beneath the eligibility evaluator
		var member models.PoolMember
		if err := tx.Where("pool_id = ? AND user_id = ?", draw.PoolID, draw.WinnerID).
			First(&member).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrNotPoolMember
			}
			return err
		}
		if member.HasWon {
			return &domain.RoundConflictError{
				PoolID:      draw.PoolID,
				RoundNumber: draw.RoundNumber,
				Reason:      "winner already won a previous round",
			}
		}

		if err := tx.Create(draw).Error; err != nil {
			return err
		}

		now := time.Now()
		return tx.Model(&models.PoolMember{}).
			Where("pool_id = ? AND user_id = ?", draw.PoolID, draw.WinnerID).
			Updates(map[string]interface{}{
				"has_won":    true,
				"won_at":     now,
				"won_amount": draw.Amount,
			}).Error
	})
}

// GetByID returns a draw by ID
func (r *drawRepository) GetByID(ctx context.Context, id uint) (*models.Draw, error) {
	var draw models.Draw
	err := r.db.WithContext(ctx).Preload("Winner").First(&draw, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrDrawNotFound
	}
	if err != nil {
		return nil, err
	}
	return &draw, nil
}

// GetByRound returns the draw record for a pool round
func (r *drawRepository) GetByRound(ctx context.Context, poolID uint, roundNumber int) (*models.Draw, error) {
	var draw models.Draw
	err := r.db.WithContext(ctx).
		Preload("Winner").
		Where("pool_id = ? AND round_number = ?", poolID, roundNumber).
		First(&draw).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrDrawNotFound
	}
	if err != nil {
		return nil, err
	}
	return &draw, nil
}

// ListByPool returns draw history for a pool, newest round first
func (r *drawRepository) ListByPool(ctx context.Context, poolID uint, offset, limit int) ([]*models.Draw, int64, error) {
	var draws []*models.Draw
	var total int64

	if err := r.db.WithContext(ctx).Model(&models.Draw{}).Where("pool_id = ?", poolID).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := r.db.WithContext(ctx).
		Preload("Winner").
		Where("pool_id = ?", poolID).
		Order("round_number DESC").
		Offset(offset).Limit(limit).
		Find(&draws).Error
	if err != nil {
		return nil, 0, err
	}

	return draws, total, nil
}

// Cancel flips the cancellation flag exactly once. The ledger entry stays;
// subsequent rounds are never renumbered.
func (r *drawRepository) Cancel(ctx context.Context, drawID uint, reason string, cancelledBy uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var draw models.Draw
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&draw, drawID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrDrawNotFound
			}
			return err
		}
		if draw.IsCancelled() {
			return domain.ErrDrawAlreadyCancelled
		}

		now := time.Now()
		return tx.Model(&draw).Updates(map[string]interface{}{
			"status":        models.DrawStatusCancelled,
			"cancel_reason": reason,
			"cancelled_by":  cancelledBy,
			"cancelled_at":  now,
		}).Error
	})
}

// LatestByPool returns the most recent draw for a pool, or nil when the pool
// has no draws yet (used by the round scheduler)
func (r *drawRepository) LatestByPool(ctx context.Context, poolID uint) (*models.Draw, error) {
	var draw models.Draw
	err := r.db.WithContext(ctx).
		Where("pool_id = ?", poolID).
		Order("round_number DESC").
		First(&draw).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &draw, nil
}
