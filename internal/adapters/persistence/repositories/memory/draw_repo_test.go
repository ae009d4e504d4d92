package memory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tontinehub/internal/adapters/persistence/models"
	"tontinehub/internal/core/domain"
)

func seedLedger(t *testing.T) (*DrawRepository, *PoolRepository, *models.Pool) {
	t.Helper()
	ctx := context.Background()

	pools := NewPoolRepository()
	draws := NewDrawRepository(pools)

	pool := &models.Pool{Name: "ledger", Amount: 1000, Status: models.PoolStatusActive, CreatedBy: 1}
	require.NoError(t, pools.Create(ctx, pool))
	for i := 1; i <= 3; i++ {
		require.NoError(t, pools.AddMember(ctx, &models.PoolMember{PoolID: pool.ID, UserID: uint(i), Position: i}))
	}
	return draws, pools, pool
}

func TestCommitDrawRejectsDuplicateRound(t *testing.T) {
	draws, _, pool := seedLedger(t)
	ctx := context.Background()

	require.NoError(t, draws.CommitDraw(ctx, &models.Draw{
		Reference: "a", PoolID: pool.ID, RoundNumber: 1, WinnerID: 1, Amount: 3000,
	}))

	err := draws.CommitDraw(ctx, &models.Draw{
		Reference: "b", PoolID: pool.ID, RoundNumber: 1, WinnerID: 2, Amount: 3000,
	})
	var conflict *domain.RoundConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, 1, conflict.RoundNumber)
}

func TestCommitDrawRejectsRepeatWinner(t *testing.T) {
	draws, pools, pool := seedLedger(t)
	ctx := context.Background()

	require.NoError(t, draws.CommitDraw(ctx, &models.Draw{
		Reference: "a", PoolID: pool.ID, RoundNumber: 1, WinnerID: 1, Amount: 3000,
	}))

	member, err := pools.GetMember(ctx, pool.ID, 1)
	require.NoError(t, err)
	assert.True(t, member.HasWon)

	err = draws.CommitDraw(ctx, &models.Draw{
		Reference: "b", PoolID: pool.ID, RoundNumber: 2, WinnerID: 1, Amount: 3000,
	})
	var conflict *domain.RoundConflictError
	assert.True(t, errors.As(err, &conflict))

	err = draws.CommitDraw(ctx, &models.Draw{
		Reference: "c", PoolID: pool.ID, RoundNumber: 2, WinnerID: 9, Amount: 3000,
	})
	assert.ErrorIs(t, err, domain.ErrNotPoolMember)
}

func TestCommitDrawConcurrentSameRound(t *testing.T) {
	draws, _, pool := seedLedger(t)

	const writers = 3
	errs := make(chan error, writers)
	var wg sync.WaitGroup
	for i := 1; i <= writers; i++ {
		wg.Add(1)
		go func(winner uint) {
			defer wg.Done()
			errs <- draws.CommitDraw(context.Background(), &models.Draw{
				Reference: "r", PoolID: pool.ID, RoundNumber: 1, WinnerID: winner, Amount: 3000,
			})
		}(uint(i))
	}
	wg.Wait()
	close(errs)

	committed := 0
	for err := range errs {
		if err == nil {
			committed++
		}
	}
	assert.Equal(t, 1, committed)
}

func TestNextRoundNumberMonotonic(t *testing.T) {
	draws, _, pool := seedLedger(t)
	ctx := context.Background()

	n, err := draws.NextRoundNumber(ctx, pool.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, draws.CommitDraw(ctx, &models.Draw{
		Reference: "a", PoolID: pool.ID, RoundNumber: 1, WinnerID: 1, Amount: 3000,
	}))

	n, err = draws.NextRoundNumber(ctx, pool.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestCancelKeepsLedgerEntry(t *testing.T) {
	draws, _, pool := seedLedger(t)
	ctx := context.Background()

	draw := &models.Draw{Reference: "a", PoolID: pool.ID, RoundNumber: 1, WinnerID: 1, Amount: 3000}
	require.NoError(t, draws.CommitDraw(ctx, draw))

	require.NoError(t, draws.Cancel(ctx, draw.ID, "recorded against the wrong pool", 7))

	got, err := draws.GetByID(ctx, draw.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DrawStatusCancelled, got.Status)
	assert.Equal(t, "recorded against the wrong pool", got.CancelReason)

	// cancellation is not deletion: the round number stays burned
	n, err := draws.NextRoundNumber(ctx, pool.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	assert.ErrorIs(t, draws.Cancel(ctx, draw.ID, "again", 7), domain.ErrDrawAlreadyCancelled)
	assert.ErrorIs(t, draws.Cancel(ctx, 999, "missing", 7), domain.ErrDrawNotFound)
}
