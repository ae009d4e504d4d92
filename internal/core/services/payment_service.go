package services

import (
	"context"
	"log"

	"tontinehub/internal/adapters/persistence/models"
	"tontinehub/internal/adapters/persistence/repositories"
	"tontinehub/internal/core/domain"
)

// PaymentService handles cotization intake and treasurer validation
type PaymentService struct {
	paymentRepo repositories.PaymentRepository
	poolRepo    repositories.PoolRepository
	dispatcher  *AsyncDispatcher
}

// NewPaymentService creates a new payment service
func NewPaymentService(paymentRepo repositories.PaymentRepository, poolRepo repositories.PoolRepository, dispatcher *AsyncDispatcher) *PaymentService {
	return &PaymentService{
		paymentRepo: paymentRepo,
		poolRepo:    poolRepo,
		dispatcher:  dispatcher,
	}
}

// RecordPayment registers a pending cotization payment for an installment
func (s *PaymentService) RecordPayment(ctx context.Context, input *RecordPaymentInput) (*models.Payment, error) {
	if input.Installment <= 0 || input.Amount <= 0 {
		return nil, domain.ErrInvalidInput
	}

	if _, err := s.poolRepo.GetByID(ctx, input.PoolID); err != nil {
		return nil, domain.ErrPoolNotFound
	}
	member, err := s.poolRepo.GetMember(ctx, input.PoolID, input.UserID)
	if err != nil {
		return nil, err
	}
	if member == nil {
		return nil, domain.ErrNotPoolMember
	}

	payment := &models.Payment{
		PoolID:      input.PoolID,
		UserID:      input.UserID,
		Installment: input.Installment,
		Amount:      input.Amount,
		Status:      models.PaymentStatusPending,
		Reference:   input.Reference,
	}
	if err := s.paymentRepo.Create(ctx, payment); err != nil {
		return nil, err
	}

	log.Printf("💰 Payment recorded: pool %d user %d installment %d (%d)",
		payment.PoolID, payment.UserID, payment.Installment, payment.Amount)
	return payment, nil
}

// Validate marks a pending payment as validated (treasurer action)
func (s *PaymentService) Validate(ctx context.Context, paymentID, validatedBy uint) (*models.Payment, error) {
	payment, err := s.paymentRepo.GetByID(ctx, paymentID)
	if err != nil {
		return nil, domain.ErrNotFound
	}
	if payment.Status != models.PaymentStatusPending {
		return nil, domain.ErrInvalidInput
	}

	if err := s.paymentRepo.UpdateStatus(ctx, paymentID, models.PaymentStatusValidated, validatedBy, ""); err != nil {
		return nil, err
	}

	payment, _ = s.paymentRepo.GetByID(ctx, paymentID)
	log.Printf("✅ Payment %d validated by user %d", paymentID, validatedBy)
	return payment, nil
}

// Reject marks a pending payment as rejected with a reason
func (s *PaymentService) Reject(ctx context.Context, paymentID, rejectedBy uint, reason string) (*models.Payment, error) {
	payment, err := s.paymentRepo.GetByID(ctx, paymentID)
	if err != nil {
		return nil, domain.ErrNotFound
	}
	if payment.Status != models.PaymentStatusPending {
		return nil, domain.ErrInvalidInput
	}

	if err := s.paymentRepo.UpdateStatus(ctx, paymentID, models.PaymentStatusRejected, rejectedBy, reason); err != nil {
		return nil, err
	}

	s.dispatcher.Dispatch(payment.UserID, NotifyKindReminder, map[string]interface{}{
		"pool_id":     payment.PoolID,
		"installment": payment.Installment,
		"reason":      reason,
	})

	payment, _ = s.paymentRepo.GetByID(ctx, paymentID)
	log.Printf("❌ Payment %d rejected by user %d: %s", paymentID, rejectedBy, reason)
	return payment, nil
}

// ListByPool returns payment history for a pool
func (s *PaymentService) ListByPool(ctx context.Context, poolID uint, offset, limit int) ([]*models.Payment, int64, error) {
	return s.paymentRepo.ListByPool(ctx, poolID, offset, limit)
}
