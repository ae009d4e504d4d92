package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"tontinehub/internal/adapters/persistence/models"
	"tontinehub/internal/core/domain"
)

// PoolRepository is an in-memory pool + roster store
type PoolRepository struct {
	mu      sync.RWMutex
	nextID  uint
	pools   map[uint]*models.Pool
	members map[uint][]*models.PoolMember // keyed by pool ID
}

func NewPoolRepository() *PoolRepository {
	return &PoolRepository{
		nextID:  1,
		pools:   make(map[uint]*models.Pool),
		members: make(map[uint][]*models.PoolMember),
	}
}

func (r *PoolRepository) Create(ctx context.Context, pool *models.Pool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, p := range r.pools {
		if p.Name == pool.Name {
			return domain.ErrPoolNameTaken
		}
	}
	pool.ID = r.nextID
	r.nextID++
	pool.CreatedAt = time.Now()
	r.pools[pool.ID] = pool
	return nil
}

func (r *PoolRepository) GetByID(ctx context.Context, id uint) (*models.Pool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	pool, ok := r.pools[id]
	if !ok {
		return nil, domain.ErrPoolNotFound
	}
	cp := *pool
	cp.Members = r.sortedMembersLocked(id)
	return &cp, nil
}

func (r *PoolRepository) GetByName(ctx context.Context, name string) (*models.Pool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.pools {
		if p.Name == name {
			cp := *p
			return &cp, nil
		}
	}
	return nil, domain.ErrPoolNotFound
}

func (r *PoolRepository) List(ctx context.Context, offset, limit int) ([]*models.Pool, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]uint, 0, len(r.pools))
	for id := range r.pools {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	total := int64(len(ids))
	var pools []*models.Pool
	for i, id := range ids {
		if i < offset {
			continue
		}
		if limit > 0 && len(pools) >= limit {
			break
		}
		cp := *r.pools[id]
		pools = append(pools, &cp)
	}
	return pools, total, nil
}

func (r *PoolRepository) ListByStatus(ctx context.Context, status string) ([]*models.Pool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var pools []*models.Pool
	for _, p := range r.pools {
		if p.Status == status {
			cp := *p
			pools = append(pools, &cp)
		}
	}
	sort.Slice(pools, func(i, j int) bool { return pools[i].ID < pools[j].ID })
	return pools, nil
}

func (r *PoolRepository) UpdateStatus(ctx context.Context, poolID uint, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	pool, ok := r.pools[poolID]
	if !ok {
		return domain.ErrPoolNotFound
	}
	pool.Status = status
	return nil
}

func (r *PoolRepository) Update(ctx context.Context, pool *models.Pool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.pools[pool.ID]; !ok {
		return domain.ErrPoolNotFound
	}
	cp := *pool
	cp.Members = nil
	r.pools[pool.ID] = &cp
	return nil
}

func (r *PoolRepository) AddMember(ctx context.Context, member *models.PoolMember) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, m := range r.members[member.PoolID] {
		if m.UserID == member.UserID {
			return domain.ErrAlreadyMember
		}
	}
	member.JoinedAt = time.Now()
	r.members[member.PoolID] = append(r.members[member.PoolID], member)
	return nil
}

func (r *PoolRepository) GetMembers(ctx context.Context, poolID uint) ([]models.PoolMember, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sortedMembersLocked(poolID), nil
}

func (r *PoolRepository) GetMember(ctx context.Context, poolID, userID uint) (*models.PoolMember, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, m := range r.members[poolID] {
		if m.UserID == userID {
			cp := *m
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *PoolRepository) CountMembers(ctx context.Context, poolID uint) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.members[poolID])), nil
}

func (r *PoolRepository) CountNonWinners(ctx context.Context, poolID uint) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var count int64
	for _, m := range r.members[poolID] {
		if !m.HasWon {
			count++
		}
	}
	return count, nil
}

// markWon is used by DrawRepository.CommitDraw to flip the winner flag inside
// its own critical section
func (r *PoolRepository) markWon(poolID, userID uint, amount int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, m := range r.members[poolID] {
		if m.UserID == userID {
			now := time.Now()
			m.HasWon = true
			m.WonAt = &now
			m.WonAmount = &amount
		}
	}
}

func (r *PoolRepository) hasWon(poolID, userID uint) (won, found bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, m := range r.members[poolID] {
		if m.UserID == userID {
			return m.HasWon, true
		}
	}
	return false, false
}

func (r *PoolRepository) sortedMembersLocked(poolID uint) []models.PoolMember {
	out := make([]models.PoolMember, 0, len(r.members[poolID]))
	for _, m := range r.members[poolID] {
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Position != out[j].Position {
			return out[i].Position < out[j].Position
		}
		return out[i].UserID < out[j].UserID
	})
	return out
}
