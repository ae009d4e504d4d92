package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"tontinehub/internal/adapters/persistence/models"
	"tontinehub/internal/core/domain"
)

// DrawRepository is an in-memory round ledger. A single mutex plays the role
// of the per-pool row lock: commits serialize, exactly one of two concurrent
// commits for the same (pool, round) succeeds.
type DrawRepository struct {
	mu     sync.Mutex
	nextID uint
	draws  map[uint]*models.Draw
	pools  *PoolRepository // winner flag lives on the roster
}

func NewDrawRepository(pools *PoolRepository) *DrawRepository {
	return &DrawRepository{
		nextID: 1,
		draws:  make(map[uint]*models.Draw),
		pools:  pools,
	}
}

func (r *DrawRepository) NextRoundNumber(ctx context.Context, poolID uint) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	max := 0
	for _, d := range r.draws {
		if d.PoolID == poolID && d.RoundNumber > max {
			max = d.RoundNumber
		}
	}
	return max + 1, nil
}

func (r *DrawRepository) CommitDraw(ctx context.Context, draw *models.Draw) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, d := range r.draws {
		if d.PoolID == draw.PoolID && d.RoundNumber == draw.RoundNumber {
			return &domain.RoundConflictError{
				PoolID:      draw.PoolID,
				RoundNumber: draw.RoundNumber,
				Reason:      "round number already committed by a concurrent draw",
			}
		}
	}

	won, found := r.pools.hasWon(draw.PoolID, draw.WinnerID)
	if !found {
		return domain.ErrNotPoolMember
	}
	if won {
		return &domain.RoundConflictError{
			PoolID:      draw.PoolID,
			RoundNumber: draw.RoundNumber,
			Reason:      "winner already won a previous round",
		}
	}

	draw.ID = r.nextID
	r.nextID++
	draw.CreatedAt = time.Now()
	if draw.Status == "" {
		draw.Status = models.DrawStatusCompleted
	}
	r.draws[draw.ID] = draw

	r.pools.markWon(draw.PoolID, draw.WinnerID, draw.Amount)
	return nil
}

func (r *DrawRepository) GetByID(ctx context.Context, id uint) (*models.Draw, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	draw, ok := r.draws[id]
	if !ok {
		return nil, domain.ErrDrawNotFound
	}
	cp := *draw
	return &cp, nil
}

func (r *DrawRepository) GetByRound(ctx context.Context, poolID uint, roundNumber int) (*models.Draw, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, d := range r.draws {
		if d.PoolID == poolID && d.RoundNumber == roundNumber {
			cp := *d
			return &cp, nil
		}
	}
	return nil, domain.ErrDrawNotFound
}

func (r *DrawRepository) ListByPool(ctx context.Context, poolID uint, offset, limit int) ([]*models.Draw, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var all []*models.Draw
	for _, d := range r.draws {
		if d.PoolID == poolID {
			cp := *d
			all = append(all, &cp)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].RoundNumber > all[j].RoundNumber })

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

func (r *DrawRepository) Cancel(ctx context.Context, drawID uint, reason string, cancelledBy uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	draw, ok := r.draws[drawID]
	if !ok {
		return domain.ErrDrawNotFound
	}
	if draw.IsCancelled() {
		return domain.ErrDrawAlreadyCancelled
	}

	now := time.Now()
	draw.Status = models.DrawStatusCancelled
	draw.CancelReason = reason
	draw.CancelledBy = &cancelledBy
	draw.CancelledAt = &now
	return nil
}

func (r *DrawRepository) LatestByPool(ctx context.Context, poolID uint) (*models.Draw, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var latest *models.Draw
	for _, d := range r.draws {
		if d.PoolID == poolID && (latest == nil || d.RoundNumber > latest.RoundNumber) {
			latest = d
		}
	}
	if latest == nil {
		return nil, nil
	}
	cp := *latest
	return &cp, nil
}
