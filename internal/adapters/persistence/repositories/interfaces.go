package repositories

import (
	"context"

	"tontinehub/internal/adapters/persistence/models"
)

// UserRepository defines user repository interface
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uint) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByMembNo(ctx context.Context, membNo string) (*models.User, error)
	List(ctx context.Context, offset, limit int) ([]*models.User, int64, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
}

// PoolRepository defines pool + roster repository interface
type PoolRepository interface {
	Create(ctx context.Context, pool *models.Pool) error
	GetByID(ctx context.Context, id uint) (*models.Pool, error)
	GetByName(ctx context.Context, name string) (*models.Pool, error)
	List(ctx context.Context, offset, limit int) ([]*models.Pool, int64, error)
	ListByStatus(ctx context.Context, status string) ([]*models.Pool, error)
	UpdateStatus(ctx context.Context, poolID uint, status string) error
	Update(ctx context.Context, pool *models.Pool) error

	AddMember(ctx context.Context, member *models.PoolMember) error
	GetMembers(ctx context.Context, poolID uint) ([]models.PoolMember, error)
	GetMember(ctx context.Context, poolID, userID uint) (*models.PoolMember, error)
	CountMembers(ctx context.Context, poolID uint) (int64, error)
	CountNonWinners(ctx context.Context, poolID uint) (int64, error)
}

// ParticipantRepository stores per-member opt-in state, one row per
// (pool, round, user) so concurrent member writes never touch the same row
type ParticipantRepository interface {
	ResetForRound(ctx context.Context, poolID uint, roundNumber int, userIDs []uint) error
	SetDecision(ctx context.Context, poolID uint, roundNumber int, userID uint, decision string, autoEnrolled bool) error
	GetByRound(ctx context.Context, poolID uint, roundNumber int) ([]models.RoundParticipant, error)
}

// PaymentRepository defines the payment ledger contract consumed by the
// eligibility evaluator (read side) plus the intake/validation write side
type PaymentRepository interface {
	Create(ctx context.Context, payment *models.Payment) error
	GetByID(ctx context.Context, id uint) (*models.Payment, error)
	ListByPool(ctx context.Context, poolID uint, offset, limit int) ([]*models.Payment, int64, error)
	UpdateStatus(ctx context.Context, id uint, status string, validatedBy uint, reason string) error
	ValidatedUserIDsForInstallment(ctx context.Context, poolID uint, installment int) (map[uint]bool, error)
}

// DrawRepository is the round ledger: append-only draw records with
// pool-level exclusivity at commit time
type DrawRepository interface {
	NextRoundNumber(ctx context.Context, poolID uint) (int, error)
	// CommitDraw atomically inserts the draw and flips the winner's has_won
	// flag. Exactly one of two concurrent commits for the same pool
	// succeeds; the loser gets *domain.RoundConflictError.
	CommitDraw(ctx context.Context, draw *models.Draw) error
	GetByID(ctx context.Context, id uint) (*models.Draw, error)
	GetByRound(ctx context.Context, poolID uint, roundNumber int) (*models.Draw, error)
	ListByPool(ctx context.Context, poolID uint, offset, limit int) ([]*models.Draw, int64, error)
	// Cancel flips the status flag once; a second call fails with
	// domain.ErrDrawAlreadyCancelled. Round numbers are never reused.
	Cancel(ctx context.Context, drawID uint, reason string, cancelledBy uint) error
	LatestByPool(ctx context.Context, poolID uint) (*models.Draw, error)
}
