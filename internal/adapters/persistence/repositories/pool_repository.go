package repositories

import (
	"context"

	"tontinehub/internal/adapters/persistence/models"

	"gorm.io/gorm"
)

// poolRepository implements PoolRepository interface
type poolRepository struct {
	db *gorm.DB
}

// NewPoolRepository creates a new pool repository
func NewPoolRepository(db *gorm.DB) PoolRepository {
	return &poolRepository{db: db}
}

// ============================================================
// Pool Queries
// ============================================================

// Create creates a new pool
func (r *poolRepository) Create(ctx context.Context, pool *models.Pool) error {
	return r.db.WithContext(ctx).Create(pool).Error
}

// GetByID returns a pool with its roster preloaded
func (r *poolRepository) GetByID(ctx context.Context, id uint) (*models.Pool, error) {
	var pool models.Pool
	err := r.db.WithContext(ctx).
		Preload("Members", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC, user_id ASC")
		}).
		Preload("Members.User").
		Preload("Treasurer").
		First(&pool, id).Error
	if err != nil {
		return nil, err
	}
	return &pool, nil
}

// GetByName returns a pool by its unique name
func (r *poolRepository) GetByName(ctx context.Context, name string) (*models.Pool, error) {
	var pool models.Pool
	err := r.db.WithContext(ctx).Where("name = ?", name).First(&pool).Error
	if err != nil {
		return nil, err
	}
	return &pool, nil
}

// List lists pools with pagination
func (r *poolRepository) List(ctx context.Context, offset, limit int) ([]*models.Pool, int64, error) {
	var pools []*models.Pool
	var total int64

	if err := r.db.WithContext(ctx).Model(&models.Pool{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := r.db.WithContext(ctx).
		Preload("Treasurer").
		Order("id ASC").
		Offset(offset).Limit(limit).
		Find(&pools).Error
	if err != nil {
		return nil, 0, err
	}

	return pools, total, nil
}

// ListByStatus returns all pools in a given status (used by the scheduler)
func (r *poolRepository) ListByStatus(ctx context.Context, status string) ([]*models.Pool, error) {
	var pools []*models.Pool
	err := r.db.WithContext(ctx).Where("status = ?", status).Order("id ASC").Find(&pools).Error
	return pools, err
}

// UpdateStatus updates pool lifecycle status
func (r *poolRepository) UpdateStatus(ctx context.Context, poolID uint, status string) error {
	return r.db.WithContext(ctx).Model(&models.Pool{}).Where("id = ?", poolID).Update("status", status).Error
}

// Update saves the pool
func (r *poolRepository) Update(ctx context.Context, pool *models.Pool) error {
	return r.db.WithContext(ctx).Save(pool).Error
}

// ============================================================
// Roster Queries
// ============================================================

// AddMember adds a roster entry
func (r *poolRepository) AddMember(ctx context.Context, member *models.PoolMember) error {
	return r.db.WithContext(ctx).Create(member).Error
}

// GetMembers returns the roster in stable candidate order
func (r *poolRepository) GetMembers(ctx context.Context, poolID uint) ([]models.PoolMember, error) {
	var members []models.PoolMember
	err := r.db.WithContext(ctx).
		Preload("User").
		Where("pool_id = ?", poolID).
		Order("position ASC, user_id ASC").
		Find(&members).Error
	return members, err
}

// GetMember returns a single roster entry
func (r *poolRepository) GetMember(ctx context.Context, poolID, userID uint) (*models.PoolMember, error) {
	var member models.PoolMember
	err := r.db.WithContext(ctx).
		Where("pool_id = ? AND user_id = ?", poolID, userID).
		First(&member).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &member, nil
}

// CountMembers returns roster size
func (r *poolRepository) CountMembers(ctx context.Context, poolID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.PoolMember{}).Where("pool_id = ?", poolID).Count(&count).Error
	return count, err
}

// CountNonWinners returns how many members have not won yet
func (r *poolRepository) CountNonWinners(ctx context.Context, poolID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.PoolMember{}).
		Where("pool_id = ? AND has_won = ?", poolID, false).
		Count(&count).Error
	return count, err
}
