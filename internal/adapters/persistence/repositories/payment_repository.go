package repositories

import (
	"context"
	"time"

	"tontinehub/internal/adapters/persistence/models"

	"gorm.io/gorm"
)

// paymentRepository implements PaymentRepository interface
type paymentRepository struct {
	db *gorm.DB
}

// NewPaymentRepository creates a new payment repository
func NewPaymentRepository(db *gorm.DB) PaymentRepository {
	return &paymentRepository{db: db}
}

// Create records a cotization payment (intake, PENDING until validated)
func (r *paymentRepository) Create(ctx context.Context, payment *models.Payment) error {
	return r.db.WithContext(ctx).Create(payment).Error
}

// GetByID returns a payment by ID
func (r *paymentRepository) GetByID(ctx context.Context, id uint) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.WithContext(ctx).Preload("User").First(&payment, id).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// ListByPool lists payments for a pool, newest first
func (r *paymentRepository) ListByPool(ctx context.Context, poolID uint, offset, limit int) ([]*models.Payment, int64, error) {
	var payments []*models.Payment
	var total int64

	if err := r.db.WithContext(ctx).Model(&models.Payment{}).Where("pool_id = ?", poolID).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := r.db.WithContext(ctx).
		Preload("User").
		Where("pool_id = ?", poolID).
		Order("created_at DESC").
		Offset(offset).Limit(limit).
		Find(&payments).Error
	if err != nil {
		return nil, 0, err
	}

	return payments, total, nil
}

// UpdateStatus validates or rejects a payment
func (r *paymentRepository) UpdateStatus(ctx context.Context, id uint, status string, validatedBy uint, reason string) error {
	now := time.Now()
	updates := map[string]interface{}{
		"status":       status,
		"validated_by": validatedBy,
		"validated_at": now,
	}
	if status == models.PaymentStatusRejected {
		updates["rejected_for"] = reason
	}
	return r.db.WithContext(ctx).Model(&models.Payment{}).Where("id = ?", id).Updates(updates).Error
}

// ValidatedUserIDsForInstallment returns the set of members with a VALIDATED
// payment for the given installment. This is the payment-ledger contract the
// eligibility evaluator consumes.
func (r *paymentRepository) ValidatedUserIDsForInstallment(ctx context.Context, poolID uint, installment int) (map[uint]bool, error) {
	var userIDs []uint
	err := r.db.WithContext(ctx).Model(&models.Payment{}).
		Where("pool_id = ? AND installment = ? AND status = ?", poolID, installment, models.PaymentStatusValidated).
		Distinct().
		Pluck("user_id", &userIDs).Error
	if err != nil {
		return nil, err
	}

	paid := make(map[uint]bool, len(userIDs))
	for _, id := range userIDs {
		paid[id] = true
	}
	return paid, nil
}
