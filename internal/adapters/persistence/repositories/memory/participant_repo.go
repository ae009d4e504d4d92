package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"tontinehub/internal/adapters/persistence/models"
)

type roundKey struct {
	poolID uint
	round  int
}

// ParticipantRepository is an in-memory per-member opt-in store
type ParticipantRepository struct {
	mu   sync.RWMutex
	rows map[roundKey]map[uint]*models.RoundParticipant // keyed (pool, round) then user
}

func NewParticipantRepository() *ParticipantRepository {
	return &ParticipantRepository{
		rows: make(map[roundKey]map[uint]*models.RoundParticipant),
	}
}

func (r *ParticipantRepository) ResetForRound(ctx context.Context, poolID uint, roundNumber int, userIDs []uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	key := roundKey{poolID, roundNumber}
	r.rows[key] = make(map[uint]*models.RoundParticipant, len(userIDs))
	for _, userID := range userIDs {
		notified := now
		r.rows[key][userID] = &models.RoundParticipant{
			PoolID:      poolID,
			RoundNumber: roundNumber,
			UserID:      userID,
			Decision:    models.DecisionUnanswered,
			NotifiedAt:  &notified,
		}
	}
	return nil
}

func (r *ParticipantRepository) SetDecision(ctx context.Context, poolID uint, roundNumber int, userID uint, decision string, autoEnrolled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	row, ok := r.rows[roundKey{poolID, roundNumber}][userID]
	if !ok {
		return nil
	}
	row.Decision = decision
	row.AutoEnrolled = autoEnrolled
	if decision != models.DecisionUnanswered && !autoEnrolled {
		now := time.Now()
		row.OptedInAt = &now
	}
	return nil
}

func (r *ParticipantRepository) GetByRound(ctx context.Context, poolID uint, roundNumber int) ([]models.RoundParticipant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []models.RoundParticipant
	for _, row := range r.rows[roundKey{poolID, roundNumber}] {
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}
