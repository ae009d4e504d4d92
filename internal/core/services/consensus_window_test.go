package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tontinehub/internal/adapters/persistence/models"
	"tontinehub/internal/adapters/persistence/repositories/memory"
	"tontinehub/internal/core/domain"
)

func testCandidates(userIDs ...uint) []Candidate {
	out := make([]Candidate, 0, len(userIDs))
	for i, id := range userIDs {
		out = append(out, Candidate{UserID: id, Position: i + 1})
	}
	return out
}

func openTestWindow(t *testing.T, poolID uint, duration time.Duration, userIDs ...uint) (*ConsensusWindow, *memory.ParticipantRepository) {
	t.Helper()
	participants := memory.NewParticipantRepository()
	registry := NewWindowRegistry()

	window, err := registry.Open(context.Background(), poolID, 1, testCandidates(userIDs...), duration, participants)
	require.NoError(t, err)
	return window, participants
}

func TestWindowClosesWhenAllRespond(t *testing.T) {
	window, _ := openTestWindow(t, 1, time.Hour, 1, 2, 3)
	ctx := context.Background()

	assert.Equal(t, WindowAwaiting, window.State())

	require.NoError(t, window.Respond(ctx, 1, true))
	require.NoError(t, window.Respond(ctx, 2, true))
	assert.Equal(t, WindowAwaiting, window.State())

	require.NoError(t, window.Respond(ctx, 3, false))
	assert.Equal(t, WindowClosed, window.State())
	assert.Equal(t, CloseReasonAllResponded, window.CloseReason())

	select {
	case <-window.Done():
	default:
		t.Fatal("done channel not closed")
	}

	finalized, err := window.Finalize()
	require.NoError(t, err)
	require.Len(t, finalized, 2)
	assert.Equal(t, uint(1), finalized[0].UserID)
	assert.Equal(t, uint(2), finalized[1].UserID)
	assert.False(t, finalized[0].AutoEnrolled)
}

func TestWindowDeadlineAutoEnrolls(t *testing.T) {
	window, participants := openTestWindow(t, 1, 50*time.Millisecond, 1, 2, 3)
	ctx := context.Background()

	// user 2 explicitly opts out before the deadline
	require.NoError(t, window.Respond(ctx, 2, false))

	select {
	case <-window.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("window did not close on deadline")
	}
	assert.Equal(t, CloseReasonDeadline, window.CloseReason())

	finalized, err := window.Finalize()
	require.NoError(t, err)
	require.Len(t, finalized, 2)

	// unanswered members are auto-enrolled, the opt-out is preserved
	assert.Equal(t, uint(1), finalized[0].UserID)
	assert.True(t, finalized[0].AutoEnrolled)
	assert.Equal(t, uint(3), finalized[1].UserID)
	assert.True(t, finalized[1].AutoEnrolled)

	rows, err := participants.GetByRound(ctx, 1, 1)
	require.NoError(t, err)
	byUser := make(map[uint]models.RoundParticipant)
	for _, row := range rows {
		byUser[row.UserID] = row
	}
	assert.Equal(t, models.DecisionOptedOut, byUser[2].Decision)
	assert.Equal(t, models.DecisionOptedIn, byUser[1].Decision)
	assert.True(t, byUser[1].AutoEnrolled)
	assert.False(t, byUser[2].AutoEnrolled)
}

func TestWindowRejectsLateResponse(t *testing.T) {
	window, _ := openTestWindow(t, 1, time.Hour, 1, 2)
	ctx := context.Background()

	require.NoError(t, window.Respond(ctx, 1, true))
	require.NoError(t, window.Respond(ctx, 2, true))
	require.Equal(t, WindowClosed, window.State())

	err := window.Respond(ctx, 1, false)
	assert.ErrorIs(t, err, domain.ErrWindowClosed)
}

func TestWindowRejectsUnnotifiedUser(t *testing.T) {
	window, _ := openTestWindow(t, 1, time.Hour, 1, 2)

	err := window.Respond(context.Background(), 99, true)
	assert.ErrorIs(t, err, domain.ErrNotPoolMember)
}

func TestWindowLastWriteWins(t *testing.T) {
	window, participants := openTestWindow(t, 1, time.Hour, 1, 2)
	ctx := context.Background()

	require.NoError(t, window.Respond(ctx, 1, false))
	require.NoError(t, window.Respond(ctx, 1, true))
	require.NoError(t, window.Respond(ctx, 2, true))

	finalized, err := window.Finalize()
	require.NoError(t, err)
	require.Len(t, finalized, 2)

	rows, err := participants.GetByRound(ctx, 1, 1)
	require.NoError(t, err)
	for _, row := range rows {
		assert.Equal(t, models.DecisionOptedIn, row.Decision)
	}
}

func TestWindowFinalizeBeforeClose(t *testing.T) {
	window, _ := openTestWindow(t, 1, time.Hour, 1, 2)

	_, err := window.Finalize()
	assert.ErrorIs(t, err, domain.ErrWindowNotClosed)
}

func TestWindowAbortSkipsAutoEnroll(t *testing.T) {
	window, _ := openTestWindow(t, 1, time.Hour, 1, 2, 3)
	ctx := context.Background()

	require.NoError(t, window.Respond(ctx, 1, true))
	window.Abort()

	assert.Equal(t, WindowClosed, window.State())
	assert.Equal(t, CloseReasonAborted, window.CloseReason())

	// nobody unanswered was enrolled
	finalized, err := window.Finalize()
	require.NoError(t, err)
	require.Len(t, finalized, 1)
	assert.Equal(t, uint(1), finalized[0].UserID)
}

func TestRegistryOnePerPool(t *testing.T) {
	participants := memory.NewParticipantRepository()
	registry := NewWindowRegistry()
	ctx := context.Background()

	window, err := registry.Open(ctx, 1, 1, testCandidates(1, 2), time.Hour, participants)
	require.NoError(t, err)

	_, err = registry.Open(ctx, 1, 2, testCandidates(1, 2), time.Hour, participants)
	assert.ErrorIs(t, err, domain.ErrRoundInProgress)

	// a different pool is unaffected
	_, err = registry.Open(ctx, 2, 1, testCandidates(5, 6), time.Hour, participants)
	require.NoError(t, err)

	// closing alone does not free the pool; the round task has to detach
	// the window once its commit settled
	window.Abort()
	_, err = registry.Open(ctx, 1, 2, testCandidates(1, 2), time.Hour, participants)
	assert.ErrorIs(t, err, domain.ErrRoundInProgress)

	registry.Remove(1, window)
	next, err := registry.Open(ctx, 1, 2, testCandidates(1, 2), time.Hour, participants)
	require.NoError(t, err)

	// a stale detach from the finished round must not evict the live window
	registry.Remove(1, window)
	got, ok := registry.Get(1)
	require.True(t, ok)
	assert.Same(t, next, got)
}
