package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"tontinehub/internal/adapters/persistence/models"
	"tontinehub/internal/core/domain"
)

// PaymentRepository is an in-memory payment ledger
type PaymentRepository struct {
	mu       sync.RWMutex
	nextID   uint
	payments map[uint]*models.Payment
}

func NewPaymentRepository() *PaymentRepository {
	return &PaymentRepository{
		nextID:   1,
		payments: make(map[uint]*models.Payment),
	}
}

func (r *PaymentRepository) Create(ctx context.Context, payment *models.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	payment.ID = r.nextID
	r.nextID++
	payment.CreatedAt = time.Now()
	if payment.Status == "" {
		payment.Status = models.PaymentStatusPending
	}
	r.payments[payment.ID] = payment
	return nil
}

func (r *PaymentRepository) GetByID(ctx context.Context, id uint) (*models.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	payment, ok := r.payments[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *payment
	return &cp, nil
}

func (r *PaymentRepository) ListByPool(ctx context.Context, poolID uint, offset, limit int) ([]*models.Payment, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var all []*models.Payment
	for _, p := range r.payments {
		if p.PoolID == poolID {
			cp := *p
			all = append(all, &cp)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })

	total := int64(len(all))
	if offset >= len(all) {
		return nil, total, nil
	}
	end := len(all)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return all[offset:end], total, nil
}

func (r *PaymentRepository) UpdateStatus(ctx context.Context, id uint, status string, validatedBy uint, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	payment, ok := r.payments[id]
	if !ok {
		return domain.ErrNotFound
	}
	now := time.Now()
	payment.Status = status
	payment.ValidatedBy = &validatedBy
	payment.ValidatedAt = &now
	if status == models.PaymentStatusRejected {
		payment.RejectedFor = reason
	}
	return nil
}

func (r *PaymentRepository) ValidatedUserIDsForInstallment(ctx context.Context, poolID uint, installment int) (map[uint]bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	paid := make(map[uint]bool)
	for _, p := range r.payments {
		if p.PoolID == poolID && p.Installment == installment && p.Status == models.PaymentStatusValidated {
			paid[p.UserID] = true
		}
	}
	return paid, nil
}
