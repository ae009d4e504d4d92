package services

import (
	"context"
	"log"
	"time"

	"tontinehub/internal/adapters/persistence/models"
	"tontinehub/internal/adapters/persistence/repositories"
	"tontinehub/internal/core/domain"
)

// PoolService handles pool lifecycle and roster management
type PoolService struct {
	poolRepo      repositories.PoolRepository
	userRepo      repositories.UserRepository
	minRosterSize int
}

// NewPoolService creates a new pool service
func NewPoolService(poolRepo repositories.PoolRepository, userRepo repositories.UserRepository, minRosterSize int) *PoolService {
	if minRosterSize < 2 {
		minRosterSize = 3
	}
	return &PoolService{
		poolRepo:      poolRepo,
		userRepo:      userRepo,
		minRosterSize: minRosterSize,
	}
}

// CreatePool creates a pool in PENDING status
func (s *PoolService) CreatePool(ctx context.Context, createdBy uint, input *CreatePoolInput) (*models.Pool, error) {
	if input.Name == "" || input.Amount <= 0 {
		return nil, domain.ErrInvalidInput
	}
	if _, err := s.poolRepo.GetByName(ctx, input.Name); err == nil {
		return nil, domain.ErrPoolNameTaken
	}

	frequency := input.Frequency
	if frequency != models.FrequencyWeekly {
		frequency = models.FrequencyMonthly
	}
	windowMin := input.OptInWindowMin
	if windowMin == 0 {
		windowMin = models.OptInWindowDefaultMins
	}
	if windowMin < models.OptInWindowMinMins || windowMin > models.OptInWindowMaxMins {
		return nil, domain.ErrInvalidWindowMins
	}

	pool := &models.Pool{
		Name:           input.Name,
		Amount:         input.Amount,
		Frequency:      frequency,
		Status:         models.PoolStatusPending,
		OptInWindowMin: windowMin,
		PenaltyRate:    input.PenaltyRate,
		CreatedBy:      createdBy,
	}
	if err := s.poolRepo.Create(ctx, pool); err != nil {
		return nil, err
	}

	log.Printf("✅ Pool created: %s (amount %d, %s)", pool.Name, pool.Amount, pool.Frequency)
	return pool, nil
}

// GetPool returns a pool with its roster
func (s *PoolService) GetPool(ctx context.Context, poolID uint) (*models.Pool, error) {
	pool, err := s.poolRepo.GetByID(ctx, poolID)
	if err != nil {
		return nil, domain.ErrPoolNotFound
	}
	return pool, nil
}

// ListPools lists pools with pagination
func (s *PoolService) ListPools(ctx context.Context, offset, limit int) ([]*models.Pool, int64, error) {
	return s.poolRepo.List(ctx, offset, limit)
}

// AddMember adds a user to a pending pool's roster
func (s *PoolService) AddMember(ctx context.Context, poolID uint, input *AddMemberInput) (*models.PoolMember, error) {
	pool, err := s.poolRepo.GetByID(ctx, poolID)
	if err != nil {
		return nil, domain.ErrPoolNotFound
	}
	if pool.Status != models.PoolStatusPending {
		return nil, domain.ErrPoolNotPending
	}

	if _, err := s.userRepo.GetByID(ctx, input.UserID); err != nil {
		return nil, domain.ErrUserNotFound
	}

	existing, err := s.poolRepo.GetMember(ctx, poolID, input.UserID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, domain.ErrAlreadyMember
	}

	member := &models.PoolMember{
		PoolID:   poolID,
		UserID:   input.UserID,
		Position: input.Position,
	}
	if err := s.poolRepo.AddMember(ctx, member); err != nil {
		return nil, err
	}

	log.Printf("✅ User %d joined pool %s", input.UserID, pool.Name)
	return member, nil
}

// SetTreasurer assigns the treasurer, required before activation
func (s *PoolService) SetTreasurer(ctx context.Context, poolID, userID uint) error {
	pool, err := s.poolRepo.GetByID(ctx, poolID)
	if err != nil {
		return domain.ErrPoolNotFound
	}

	member, err := s.poolRepo.GetMember(ctx, poolID, userID)
	if err != nil {
		return err
	}
	if member == nil {
		return domain.ErrNotPoolMember
	}

	pool.TreasurerID = &userID
	pool.Members = nil
	return s.poolRepo.Update(ctx, pool)
}

// Activate moves a pool to ACTIVE. Requires the minimum roster size and an
// assigned treasurer.
func (s *PoolService) Activate(ctx context.Context, poolID uint) (*models.Pool, error) {
	pool, err := s.poolRepo.GetByID(ctx, poolID)
	if err != nil {
		return nil, domain.ErrPoolNotFound
	}
	if pool.Status != models.PoolStatusPending {
		return nil, domain.ErrPoolNotPending
	}

	count, err := s.poolRepo.CountMembers(ctx, poolID)
	if err != nil {
		return nil, err
	}
	if count < int64(s.minRosterSize) {
		return nil, domain.ErrRosterTooSmall
	}
	if pool.TreasurerID == nil {
		return nil, domain.ErrNoTreasurer
	}

	now := time.Now()
	pool.Status = models.PoolStatusActive
	pool.ActivatedAt = &now
	pool.Members = nil
	if err := s.poolRepo.Update(ctx, pool); err != nil {
		return nil, err
	}

	log.Printf("🚀 Pool activated: %s (%d members)", pool.Name, count)
	return pool, nil
}

// Suspend pauses an active pool; no draws can start while suspended
func (s *PoolService) Suspend(ctx context.Context, poolID uint) error {
	pool, err := s.poolRepo.GetByID(ctx, poolID)
	if err != nil {
		return domain.ErrPoolNotFound
	}
	if pool.Status != models.PoolStatusActive {
		return domain.ErrPoolNotActive
	}
	return s.poolRepo.UpdateStatus(ctx, poolID, models.PoolStatusSuspended)
}

// Resume reactivates a suspended pool
func (s *PoolService) Resume(ctx context.Context, poolID uint) error {
	pool, err := s.poolRepo.GetByID(ctx, poolID)
	if err != nil {
		return domain.ErrPoolNotFound
	}
	if pool.Status != models.PoolStatusSuspended {
		return domain.ErrInvalidInput
	}
	return s.poolRepo.UpdateStatus(ctx, poolID, models.PoolStatusActive)
}
