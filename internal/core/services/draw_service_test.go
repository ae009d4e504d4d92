package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tontinehub/internal/adapters/persistence/models"
	"tontinehub/internal/adapters/persistence/repositories"
	"tontinehub/internal/adapters/persistence/repositories/memory"
	"tontinehub/internal/core/domain"
)

// gatedLedger holds CommitDraw until the gate opens, exposing the span
// between window close and ledger commit
type gatedLedger struct {
	repositories.DrawRepository
	gate chan struct{}
}

func (g *gatedLedger) CommitDraw(ctx context.Context, draw *models.Draw) error {
	<-g.gate
	return g.DrawRepository.CommitDraw(ctx, draw)
}

// recordingNotifier captures dispatched notifications for assertions
type recordingNotifier struct {
	mu    sync.Mutex
	calls []notifyCall
}

type notifyCall struct {
	userID uint
	kind   string
}

func (n *recordingNotifier) Notify(userID uint, kind string, payload map[string]interface{}) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, notifyCall{userID: userID, kind: kind})
	return nil
}

func (n *recordingNotifier) count(kind string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	total := 0
	for _, c := range n.calls {
		if c.kind == kind {
			total++
		}
	}
	return total
}

type drawFixture struct {
	service      *DrawService
	pools        *memory.PoolRepository
	draws        *memory.DrawRepository
	payments     *memory.PaymentRepository
	participants *memory.ParticipantRepository
	notifier     *recordingNotifier
	poolSeq      int
}

func newDrawFixture(t *testing.T, policy string, src RandomSource) *drawFixture {
	t.Helper()

	pools := memory.NewPoolRepository()
	draws := memory.NewDrawRepository(pools)
	payments := memory.NewPaymentRepository()
	participants := memory.NewParticipantRepository()
	notifier := &recordingNotifier{}

	service := NewDrawService(
		pools,
		draws,
		payments,
		participants,
		NewEligibilityService(policy),
		NewSelector(src),
		NewAsyncDispatcher(notifier, nil),
		nil,
		10*time.Millisecond,
	)

	return &drawFixture{
		service:      service,
		pools:        pools,
		draws:        draws,
		payments:     payments,
		participants: participants,
		notifier:     notifier,
	}
}

// activePool seeds an ACTIVE pool with members 1..n, all paid for installment 1
func (f *drawFixture) activePool(t *testing.T, n int) *models.Pool {
	t.Helper()
	ctx := context.Background()

	f.poolSeq++
	pool := &models.Pool{
		Name:           fmt.Sprintf("family-%s-%d", t.Name(), f.poolSeq),
		Amount:         1000,
		Frequency:      models.FrequencyMonthly,
		Status:         models.PoolStatusActive,
		OptInWindowMin: models.OptInWindowDefaultMins,
		CreatedBy:      1,
	}
	require.NoError(t, f.pools.Create(ctx, pool))

	for i := 1; i <= n; i++ {
		require.NoError(t, f.pools.AddMember(ctx, &models.PoolMember{
			PoolID:   pool.ID,
			UserID:   uint(i),
			Position: i,
		}))
	}
	f.payInstallment(t, pool.ID, 1, membersRange(n)...)
	return pool
}

func (f *drawFixture) payInstallment(t *testing.T, poolID uint, installment int, userIDs ...uint) {
	t.Helper()
	for _, userID := range userIDs {
		require.NoError(t, f.payments.Create(context.Background(), &models.Payment{
			PoolID:      poolID,
			UserID:      userID,
			Installment: installment,
			Amount:      1000,
			Status:      models.PaymentStatusValidated,
		}))
	}
}

func (f *drawFixture) waitForDraw(t *testing.T, poolID uint, round int) *models.Draw {
	t.Helper()
	var draw *models.Draw
	require.Eventually(t, func() bool {
		d, err := f.draws.GetByRound(context.Background(), poolID, round)
		if err != nil {
			return false
		}
		draw = d
		return true
	}, 2*time.Second, 10*time.Millisecond, "draw for round %d never committed", round)
	return draw
}

func (f *drawFixture) waitForIdle(t *testing.T, poolID uint) {
	t.Helper()
	require.Eventually(t, func() bool {
		_, ok := f.service.windows.Get(poolID)
		return !ok
	}, 2*time.Second, 10*time.Millisecond, "round task never finished")
}

func membersRange(n int) []uint {
	out := make([]uint, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, uint(i))
	}
	return out
}

func TestStartRoundHappyPath(t *testing.T) {
	f := newDrawFixture(t, PolicyStrict, fixedSource{0})
	pool := f.activePool(t, 3)
	ctx := context.Background()

	handle, err := f.service.StartRound(ctx, pool.ID, 42)
	require.NoError(t, err)
	assert.Equal(t, 1, handle.RoundNumber)
	assert.Equal(t, 3, handle.Notified)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), handle.Deadline, 5*time.Second)

	// everyone opts in, which closes the window early
	for _, userID := range membersRange(3) {
		require.NoError(t, f.service.Respond(ctx, pool.ID, userID, true))
	}

	draw := f.waitForDraw(t, pool.ID, 1)
	assert.Equal(t, uint(1), draw.WinnerID)
	assert.Equal(t, int64(3000), draw.Amount) // 3 members x 1000
	assert.Equal(t, models.DrawMethodRandom, draw.Method)
	assert.Equal(t, models.DrawStatusCompleted, draw.Status)
	assert.NotEmpty(t, draw.Reference)

	// audit payload replays the draw
	var audit models.DrawAudit
	require.NoError(t, json.Unmarshal([]byte(draw.Audit), &audit))
	assert.Len(t, audit.Candidates, 3)
	assert.Equal(t, 0, audit.RandomValue)
	assert.Equal(t, PolicyStrict, audit.Policy)
	assert.Equal(t, uint(42), audit.StartedBy)

	// winner flag flipped on the roster
	member, err := f.pools.GetMember(ctx, pool.ID, draw.WinnerID)
	require.NoError(t, err)
	assert.True(t, member.HasWon)
	require.NotNil(t, member.WonAmount)
	assert.Equal(t, int64(3000), *member.WonAmount)
}

func TestStartRoundRejectsSecondRound(t *testing.T) {
	f := newDrawFixture(t, PolicyStrict, fixedSource{0})
	pool := f.activePool(t, 3)
	ctx := context.Background()

	_, err := f.service.StartRound(ctx, pool.ID, 1)
	require.NoError(t, err)

	_, err = f.service.StartRound(ctx, pool.ID, 1)
	assert.ErrorIs(t, err, domain.ErrRoundInProgress)
}

func TestStartRoundConcurrent(t *testing.T) {
	f := newDrawFixture(t, PolicyStrict, fixedSource{0})
	pool := f.activePool(t, 3)

	const attempts = 8
	errs := make(chan error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.service.StartRound(context.Background(), pool.ID, 1)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	started := 0
	for err := range errs {
		if err == nil {
			started++
		} else {
			assert.ErrorIs(t, err, domain.ErrRoundInProgress)
		}
	}
	assert.Equal(t, 1, started)
}

func TestPoolStaysBusyUntilCommitSettles(t *testing.T) {
	f := newDrawFixture(t, PolicyStrict, fixedSource{0})
	gate := make(chan struct{})
	f.service.drawRepo = &gatedLedger{DrawRepository: f.draws, gate: gate}
	pool := f.activePool(t, 2)
	ctx := context.Background()

	_, err := f.service.StartRound(ctx, pool.ID, 1)
	require.NoError(t, err)
	for _, userID := range membersRange(2) {
		require.NoError(t, f.service.Respond(ctx, pool.ID, userID, true))
	}

	// the window is closed but the commit is still in flight; the pool must
	// stay busy or the next round would take the same round number and its
	// live window would get detached by the finishing round task
	require.Eventually(t, func() bool {
		w, ok := f.service.windows.Get(pool.ID)
		return ok && w.State() == WindowClosed
	}, 2*time.Second, 10*time.Millisecond)

	_, err = f.service.StartRound(ctx, pool.ID, 1)
	assert.ErrorIs(t, err, domain.ErrRoundInProgress)

	close(gate)
	f.waitForDraw(t, pool.ID, 1)
	f.waitForIdle(t, pool.ID)

	// the next round opens cleanly and keeps accepting responses
	f.payInstallment(t, pool.ID, 2, 1, 2)
	handle, err := f.service.StartRound(ctx, pool.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, handle.RoundNumber)
	require.NoError(t, f.service.Respond(ctx, pool.ID, 2, true))
}

func TestStartRoundInsufficientPayments(t *testing.T) {
	f := newDrawFixture(t, PolicyStrict, fixedSource{0})
	pool := f.activePool(t, 4)
	ctx := context.Background()

	// burn round 1, then try round 2 with only half the pool paid
	_, err := f.service.StartRound(ctx, pool.ID, 1)
	require.NoError(t, err)
	for _, userID := range membersRange(4) {
		require.NoError(t, f.service.Respond(ctx, pool.ID, userID, true))
	}
	f.waitForDraw(t, pool.ID, 1)
	f.waitForIdle(t, pool.ID)

	f.payInstallment(t, pool.ID, 2, 2, 3)

	_, err = f.service.StartRound(ctx, pool.ID, 1)
	var insufficient *domain.InsufficientPaymentsError
	require.True(t, errors.As(err, &insufficient))
	assert.Equal(t, pool.ID, insufficient.PoolID)
	assert.Equal(t, 2, insufficient.Validated)
	assert.Equal(t, 3, insufficient.Required)
}

func TestStartRoundPoolNotActive(t *testing.T) {
	f := newDrawFixture(t, PolicyStrict, fixedSource{0})
	ctx := context.Background()

	pool := &models.Pool{Name: "pending-pool", Amount: 500, Status: models.PoolStatusPending, CreatedBy: 1}
	require.NoError(t, f.pools.Create(ctx, pool))

	_, err := f.service.StartRound(ctx, pool.ID, 1)
	assert.ErrorIs(t, err, domain.ErrPoolNotActive)

	_, err = f.service.StartRound(ctx, 999, 1)
	assert.ErrorIs(t, err, domain.ErrPoolNotFound)
}

func TestOptOutExcludedFromDraw(t *testing.T) {
	f := newDrawFixture(t, PolicyStrict, fixedSource{0})
	pool := f.activePool(t, 3)
	ctx := context.Background()

	_, err := f.service.StartRound(ctx, pool.ID, 1)
	require.NoError(t, err)

	require.NoError(t, f.service.Respond(ctx, pool.ID, 1, false))
	require.NoError(t, f.service.Respond(ctx, pool.ID, 2, true))
	require.NoError(t, f.service.Respond(ctx, pool.ID, 3, true))

	draw := f.waitForDraw(t, pool.ID, 1)
	assert.Equal(t, uint(2), draw.WinnerID)

	var audit models.DrawAudit
	require.NoError(t, json.Unmarshal([]byte(draw.Audit), &audit))
	assert.Len(t, audit.Candidates, 2)
}

func TestDeadlineAutoEnrollRecordedInAudit(t *testing.T) {
	f := newDrawFixture(t, PolicyStrict, fixedSource{0})
	f.service.windowOverride = 200 * time.Millisecond
	pool := f.activePool(t, 3)
	ctx := context.Background()

	_, err := f.service.StartRound(ctx, pool.ID, 1)
	require.NoError(t, err)

	// users 1 and 2 answer, user 3 lets the deadline pass
	require.NoError(t, f.service.Respond(ctx, pool.ID, 1, true))
	require.NoError(t, f.service.Respond(ctx, pool.ID, 2, true))

	draw := f.waitForDraw(t, pool.ID, 1)

	var audit models.DrawAudit
	require.NoError(t, json.Unmarshal([]byte(draw.Audit), &audit))
	require.Len(t, audit.Candidates, 3)

	byUser := make(map[uint]models.AuditCandidate)
	for _, c := range audit.Candidates {
		byUser[c.UserID] = c
	}
	assert.False(t, byUser[1].AutoEnrolled)
	assert.False(t, byUser[2].AutoEnrolled)
	assert.True(t, byUser[3].AutoEnrolled, "non-responder missing the auto-enroll flag")
}

func TestAllOptOutCommitsNothing(t *testing.T) {
	f := newDrawFixture(t, PolicyStrict, fixedSource{0})
	pool := f.activePool(t, 2)
	ctx := context.Background()

	_, err := f.service.StartRound(ctx, pool.ID, 1)
	require.NoError(t, err)

	require.NoError(t, f.service.Respond(ctx, pool.ID, 1, false))
	require.NoError(t, f.service.Respond(ctx, pool.ID, 2, false))

	f.waitForIdle(t, pool.ID)

	_, err = f.draws.GetByRound(ctx, pool.ID, 1)
	assert.ErrorIs(t, err, domain.ErrDrawNotFound)

	// the failed round does not block the next one
	_, err = f.service.StartRound(ctx, pool.ID, 1)
	require.NoError(t, err)
}

func TestAbortRound(t *testing.T) {
	f := newDrawFixture(t, PolicyStrict, fixedSource{0})
	pool := f.activePool(t, 3)
	ctx := context.Background()

	_, err := f.service.StartRound(ctx, pool.ID, 1)
	require.NoError(t, err)
	require.NoError(t, f.service.Respond(ctx, pool.ID, 1, true))

	require.NoError(t, f.service.AbortRound(ctx, pool.ID))
	f.waitForIdle(t, pool.ID)

	_, err = f.draws.GetByRound(ctx, pool.ID, 1)
	assert.ErrorIs(t, err, domain.ErrDrawNotFound)

	err = f.service.AbortRound(ctx, pool.ID)
	assert.ErrorIs(t, err, domain.ErrNoOpenWindow)
}

func TestRespondWithoutOpenWindow(t *testing.T) {
	f := newDrawFixture(t, PolicyStrict, fixedSource{0})
	pool := f.activePool(t, 3)

	err := f.service.Respond(context.Background(), pool.ID, 1, true)
	assert.ErrorIs(t, err, domain.ErrNoOpenWindow)
}

func TestFullRotationClosesPool(t *testing.T) {
	f := newDrawFixture(t, PolicyStrict, fixedSource{0})
	pool := f.activePool(t, 3)
	ctx := context.Background()

	winners := make(map[uint]bool)
	for round := 1; round <= 3; round++ {
		if round > 1 {
			f.payInstallment(t, pool.ID, round, membersRange(3)...)
		}

		_, err := f.service.StartRound(ctx, pool.ID, 1)
		require.NoError(t, err, "round %d", round)

		for _, userID := range membersRange(3) {
			err := f.service.Respond(ctx, pool.ID, userID, true)
			if !errors.Is(err, domain.ErrNotPoolMember) {
				require.NoError(t, err)
			}
		}

		draw := f.waitForDraw(t, pool.ID, round)
		assert.False(t, winners[draw.WinnerID], "user %d won twice", draw.WinnerID)
		winners[draw.WinnerID] = true
		f.waitForIdle(t, pool.ID)
	}

	require.Len(t, winners, 3)

	// every member has won once, so the pool closes
	require.Eventually(t, func() bool {
		p, err := f.pools.GetByID(ctx, pool.ID)
		return err == nil && p.Status == models.PoolStatusClosed
	}, 2*time.Second, 10*time.Millisecond)

	_, err := f.service.StartRound(ctx, pool.ID, 1)
	assert.ErrorIs(t, err, domain.ErrPoolNotActive)
}

func TestRoundNotifications(t *testing.T) {
	f := newDrawFixture(t, PolicyStrict, fixedSource{0})
	pool := f.activePool(t, 3)
	ctx := context.Background()

	_, err := f.service.StartRound(ctx, pool.ID, 1)
	require.NoError(t, err)
	for _, userID := range membersRange(3) {
		require.NoError(t, f.service.Respond(ctx, pool.ID, userID, true))
	}
	f.waitForDraw(t, pool.ID, 1)

	require.Eventually(t, func() bool {
		return f.notifier.count(NotifyKindConfirm) == 3 &&
			f.notifier.count(NotifyKindWinner) == 1 &&
			f.notifier.count(NotifyKindResult) == 2
	}, 2*time.Second, 10*time.Millisecond)
}

func TestCancelDraw(t *testing.T) {
	f := newDrawFixture(t, PolicyStrict, fixedSource{0})
	pool := f.activePool(t, 2)
	ctx := context.Background()

	_, err := f.service.StartRound(ctx, pool.ID, 1)
	require.NoError(t, err)
	require.NoError(t, f.service.Respond(ctx, pool.ID, 1, true))
	require.NoError(t, f.service.Respond(ctx, pool.ID, 2, true))
	draw := f.waitForDraw(t, pool.ID, 1)

	err = f.service.CancelDraw(ctx, draw.ID, "oops", 7)
	assert.ErrorIs(t, err, domain.ErrCancelReasonTooShort)

	reason := "winner left the pool before payout"
	require.NoError(t, f.service.CancelDraw(ctx, draw.ID, reason, 7))

	cancelled, err := f.draws.GetByID(ctx, draw.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DrawStatusCancelled, cancelled.Status)
	assert.True(t, cancelled.IsCancelled())

	err = f.service.CancelDraw(ctx, draw.ID, reason, 7)
	assert.ErrorIs(t, err, domain.ErrDrawAlreadyCancelled)

	err = f.service.CancelDraw(ctx, 999, reason, 7)
	assert.ErrorIs(t, err, domain.ErrDrawNotFound)
}

func TestManualDraw(t *testing.T) {
	f := newDrawFixture(t, PolicyStrict, fixedSource{0})
	pool := f.activePool(t, 3)
	ctx := context.Background()

	result, err := f.service.CommitManualDraw(ctx, pool.ID, 2, 7)
	require.NoError(t, err)
	assert.Equal(t, models.DrawMethodManual, result.Draw.Method)
	assert.Equal(t, uint(2), result.Draw.WinnerID)
	assert.Equal(t, 1, result.Draw.RoundNumber)

	// the ledger invariant holds for manual draws too
	_, err = f.service.CommitManualDraw(ctx, pool.ID, 2, 7)
	assert.ErrorIs(t, err, domain.ErrWinnerAlreadyWon)

	_, err = f.service.CommitManualDraw(ctx, pool.ID, 99, 7)
	assert.ErrorIs(t, err, domain.ErrNotPoolMember)
}

func TestAutoStartDueRounds(t *testing.T) {
	f := newDrawFixture(t, PolicyStrict, fixedSource{0})
	ctx := context.Background()

	due := f.activePool(t, 3)
	activated := time.Now().Add(-45 * 24 * time.Hour)
	p, err := f.pools.GetByID(ctx, due.ID)
	require.NoError(t, err)
	p.ActivatedAt = &activated
	require.NoError(t, f.pools.Update(ctx, p))

	fresh := f.activePool(t, 3)
	now := time.Now()
	p2, err := f.pools.GetByID(ctx, fresh.ID)
	require.NoError(t, err)
	p2.ActivatedAt = &now
	require.NoError(t, f.pools.Update(ctx, p2))

	f.service.AutoStartDueRounds(ctx)

	_, dueStarted := f.service.windows.Get(due.ID)
	assert.True(t, dueStarted, "overdue pool should have a round started")

	_, freshStarted := f.service.windows.Get(fresh.ID)
	assert.False(t, freshStarted, "recently activated pool should be skipped")
}
