package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tontinehub/internal/adapters/persistence/models"
	"tontinehub/internal/adapters/persistence/repositories/memory"
	"tontinehub/internal/core/domain"
)

func newPaymentFixture(t *testing.T) (*PaymentService, *memory.PaymentRepository, *models.Pool) {
	t.Helper()
	ctx := context.Background()

	pools := memory.NewPoolRepository()
	payments := memory.NewPaymentRepository()
	dispatcher := NewAsyncDispatcher(&recordingNotifier{}, nil)
	service := NewPaymentService(payments, pools, dispatcher)

	pool := &models.Pool{Name: "p", Amount: 1000, Status: models.PoolStatusActive, CreatedBy: 1}
	require.NoError(t, pools.Create(ctx, pool))
	require.NoError(t, pools.AddMember(ctx, &models.PoolMember{PoolID: pool.ID, UserID: 1, Position: 1}))

	return service, payments, pool
}

func TestRecordPayment(t *testing.T) {
	service, _, pool := newPaymentFixture(t)
	ctx := context.Background()

	payment, err := service.RecordPayment(ctx, &RecordPaymentInput{
		PoolID:      pool.ID,
		UserID:      1,
		Installment: 1,
		Amount:      1000,
		Reference:   "TXN-001",
	})
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPending, payment.Status)

	// non-members cannot pay into the pool
	_, err = service.RecordPayment(ctx, &RecordPaymentInput{PoolID: pool.ID, UserID: 9, Installment: 1, Amount: 1000})
	assert.ErrorIs(t, err, domain.ErrNotPoolMember)

	_, err = service.RecordPayment(ctx, &RecordPaymentInput{PoolID: 99, UserID: 1, Installment: 1, Amount: 1000})
	assert.ErrorIs(t, err, domain.ErrPoolNotFound)

	_, err = service.RecordPayment(ctx, &RecordPaymentInput{PoolID: pool.ID, UserID: 1, Installment: 0, Amount: 1000})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestValidatePaymentFeedsEligibility(t *testing.T) {
	service, payments, pool := newPaymentFixture(t)
	ctx := context.Background()

	payment, err := service.RecordPayment(ctx, &RecordPaymentInput{
		PoolID:      pool.ID,
		UserID:      1,
		Installment: 1,
		Amount:      1000,
	})
	require.NoError(t, err)

	// pending payments do not count
	paid, err := payments.ValidatedUserIDsForInstallment(ctx, pool.ID, 1)
	require.NoError(t, err)
	assert.False(t, paid[1])

	validated, err := service.Validate(ctx, payment.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusValidated, validated.Status)

	paid, err = payments.ValidatedUserIDsForInstallment(ctx, pool.ID, 1)
	require.NoError(t, err)
	assert.True(t, paid[1])

	// validation is single-shot
	_, err = service.Validate(ctx, payment.ID, 2)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestRejectPayment(t *testing.T) {
	service, payments, pool := newPaymentFixture(t)
	ctx := context.Background()

	payment, err := service.RecordPayment(ctx, &RecordPaymentInput{
		PoolID:      pool.ID,
		UserID:      1,
		Installment: 1,
		Amount:      1000,
	})
	require.NoError(t, err)

	rejected, err := service.Reject(ctx, payment.ID, 2, "amount mismatch")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusRejected, rejected.Status)

	// rejected payments never reach the eligibility set
	paid, err := payments.ValidatedUserIDsForInstallment(ctx, pool.ID, 1)
	require.NoError(t, err)
	assert.False(t, paid[1])

	_, err = service.Reject(ctx, payment.ID, 2, "again")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = service.Validate(ctx, 999, 2)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
