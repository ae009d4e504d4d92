package services

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strings"
	"time"

	"tontinehub/internal/adapters/persistence/models"
	"tontinehub/internal/adapters/persistence/repositories"
	"tontinehub/internal/core/domain"
	"tontinehub/internal/pkg/metrics"

	"github.com/google/uuid"
)

// CancelReasonMinLen is the minimum length of a post-commit cancellation reason
const CancelReasonMinLen = 10

// RoundHandle is returned to the caller when a round starts successfully.
// The rest of the round runs asynchronously.
type RoundHandle struct {
	PoolID      uint      `json:"pool_id"`
	RoundNumber int       `json:"round_number"`
	Notified    int       `json:"notified"`
	Deadline    time.Time `json:"deadline"`
}

// RoundResult is a draw record with its decoded audit payload
type RoundResult struct {
	Draw  *models.Draw      `json:"draw"`
	Audit *models.DrawAudit `json:"audit"`
}

// DrawService drives the full round lifecycle: eligibility, consensus
// window, selection, ledger commit and notifications. One round per pool at
// a time; rounds for different pools run concurrently with no coordination.
type DrawService struct {
	poolRepo        repositories.PoolRepository
	drawRepo        repositories.DrawRepository
	paymentRepo     repositories.PaymentRepository
	participantRepo repositories.ParticipantRepository

	eligibility *EligibilityService
	selector    *Selector
	windows     *WindowRegistry
	dispatcher  *AsyncDispatcher
	metrics     *metrics.DrawMetrics

	pollInterval time.Duration

	// windowOverride shortens the opt-in window in tests; zero means the
	// pool's configured duration applies
	windowOverride time.Duration
}

// NewDrawService creates the draw orchestrator. metrics may be nil.
func NewDrawService(
	poolRepo repositories.PoolRepository,
	drawRepo repositories.DrawRepository,
	paymentRepo repositories.PaymentRepository,
	participantRepo repositories.ParticipantRepository,
	eligibility *EligibilityService,
	selector *Selector,
	dispatcher *AsyncDispatcher,
	m *metrics.DrawMetrics,
	pollInterval time.Duration,
) *DrawService {
	if pollInterval <= 0 {
		pollInterval = 3 * time.Second
	}
	return &DrawService{
		poolRepo:        poolRepo,
		drawRepo:        drawRepo,
		paymentRepo:     paymentRepo,
		participantRepo: participantRepo,
		eligibility:     eligibility,
		selector:        selector,
		windows:         NewWindowRegistry(),
		dispatcher:      dispatcher,
		metrics:         m,
		pollInterval:    pollInterval,
	}
}

// ============================================================
// Start round
// ============================================================

// StartRound validates the preconditions, opens the opt-in window, notifies
// the candidates and launches the asynchronous round task. Precondition
// failures (pool not active, insufficient payments, no eligible members) are
// returned synchronously with actionable detail.
func (s *DrawService) StartRound(ctx context.Context, poolID uint, startedBy uint) (*RoundHandle, error) {
	pool, err := s.poolRepo.GetByID(ctx, poolID)
	if err != nil {
		return nil, domain.ErrPoolNotFound
	}
	if !pool.IsActive() {
		return nil, domain.ErrPoolNotActive
	}

	// A registered window means the previous round is still settling, even
	// when already closed; starting now would take a stale round number.
	if _, ok := s.windows.Get(poolID); ok {
		return nil, domain.ErrRoundInProgress
	}

	roundNumber, err := s.drawRepo.NextRoundNumber(ctx, poolID)
	if err != nil {
		return nil, err
	}

	paid, err := s.paymentRepo.ValidatedUserIDsForInstallment(ctx, poolID, roundNumber)
	if err != nil {
		return nil, err
	}

	members := pool.Members
	if len(members) == 0 {
		members, err = s.poolRepo.GetMembers(ctx, poolID)
		if err != nil {
			return nil, err
		}
		pool.Members = members // pot size is amount x roster size
	}

	candidates, err := s.eligibility.Evaluate(members, roundNumber, paid)
	if err != nil {
		var insufficient *domain.InsufficientPaymentsError
		if errors.As(err, &insufficient) {
			insufficient.PoolID = poolID
		}
		return nil, err
	}

	duration := clampWindowMinutes(pool.OptInWindowMin)
	if s.windowOverride > 0 {
		duration = s.windowOverride
	}
	window, err := s.windows.Open(ctx, poolID, roundNumber, candidates, duration, s.participantRepo)
	if err != nil {
		return nil, err
	}

	s.metrics.IncRoundsStarted()
	log.Printf("🎲 Round %d started for pool %s (%d candidates, window %s)",
		roundNumber, pool.Name, len(candidates), duration)

	// Opt-in requests are best-effort; a failed dispatch never blocks the round
	for _, c := range candidates {
		s.dispatcher.Dispatch(c.UserID, NotifyKindConfirm, map[string]interface{}{
			"pool_id":      poolID,
			"pool_name":    pool.Name,
			"round_number": roundNumber,
			"deadline":     window.Deadline(),
		})
	}

	go s.runRound(pool, roundNumber, window, startedBy)

	return &RoundHandle{
		PoolID:      poolID,
		RoundNumber: roundNumber,
		Notified:    len(candidates),
		Deadline:    window.Deadline(),
	}, nil
}

// runRound waits for the window to close, then selects, commits and
// notifies. Runs as a long-lived task per round; the Done channel makes the
// wait event-driven, the ticker is only a watchdog.
func (s *DrawService) runRound(pool *models.Pool, roundNumber int, window *ConsensusWindow, startedBy uint) {
	defer s.windows.Remove(pool.ID, window)

	openedAt := time.Now()
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for window.State() != WindowClosed {
		select {
		case <-window.Done():
		case <-ticker.C:
		}
	}
	s.metrics.ObserveWindowDuration(time.Since(openedAt).Seconds())

	if window.CloseReason() == CloseReasonAborted {
		s.metrics.IncRoundsAborted()
		log.Printf("🛑 Round %d for pool %s aborted by operator", roundNumber, pool.Name)
		return
	}

	ctx := context.Background()

	finalized, err := window.Finalize()
	if err != nil {
		// Unreachable after the wait loop; treated as fatal for the round
		s.metrics.IncRoundsAborted()
		log.Printf("❌ Round %d finalize failed for pool %s: %v", roundNumber, pool.Name, err)
		return
	}
	if len(finalized) == 0 {
		s.metrics.IncRoundsAborted()
		log.Printf("🛑 Round %d for pool %s: %v", roundNumber, pool.Name, domain.ErrNoParticipants)
		return
	}

	result, err := s.selector.Pick(finalized)
	if err != nil {
		s.metrics.IncRoundsAborted()
		log.Printf("❌ Round %d selection failed for pool %s: %v", roundNumber, pool.Name, err)
		return
	}

	draw, err := s.commit(ctx, pool, roundNumber, result, models.DrawMethodRandom, startedBy)
	if err != nil {
		// Commit rejection is the sole safety-critical check: abort with no
		// side effects, no notifications sent.
		s.metrics.IncRoundsAborted()
		log.Printf("❌ Round %d commit rejected for pool %s: %v", roundNumber, pool.Name, err)
		return
	}

	s.announceResult(ctx, pool, draw, result)
}

// commit builds the immutable draw record and writes it through the ledger
func (s *DrawService) commit(ctx context.Context, pool *models.Pool, roundNumber int, result *SelectionResult, method string, startedBy uint) (*models.Draw, error) {
	audit := models.DrawAudit{
		Candidates:  result.Candidates,
		RandomValue: result.RandomValue,
		Policy:      s.eligibility.Policy(),
		StartedBy:   startedBy,
	}
	auditJSON, err := json.Marshal(audit)
	if err != nil {
		return nil, err
	}

	draw := &models.Draw{
		Reference:   uuid.NewString(),
		PoolID:      pool.ID,
		RoundNumber: roundNumber,
		WinnerID:    result.Winner.UserID,
		Amount:      pool.Amount * int64(memberCount(pool)),
		Method:      method,
		Status:      models.DrawStatusCompleted,
		Audit:       string(auditJSON),
	}

	if err := s.drawRepo.CommitDraw(ctx, draw); err != nil {
		return nil, err
	}

	s.metrics.IncRoundsCommitted()
	log.Printf("🏆 Round %d committed for pool %s: winner user %d (draw %s)",
		roundNumber, pool.Name, draw.WinnerID, draw.Reference)
	return draw, nil
}

// announceResult notifies the winner and the other participants, then closes
// the pool once every member has won.
func (s *DrawService) announceResult(ctx context.Context, pool *models.Pool, draw *models.Draw, result *SelectionResult) {
	s.dispatcher.Dispatch(draw.WinnerID, NotifyKindWinner, map[string]interface{}{
		"pool_id":      pool.ID,
		"pool_name":    pool.Name,
		"round_number": draw.RoundNumber,
		"amount":       draw.Amount,
	})

	var losers []uint
	for _, c := range result.Candidates {
		if c.UserID != draw.WinnerID {
			losers = append(losers, c.UserID)
		}
	}
	s.dispatcher.DispatchAll(losers, NotifyKindResult, map[string]interface{}{
		"pool_id":      pool.ID,
		"pool_name":    pool.Name,
		"round_number": draw.RoundNumber,
		"winner_id":    draw.WinnerID,
	})

	remaining, err := s.poolRepo.CountNonWinners(ctx, pool.ID)
	if err == nil && remaining == 0 {
		if err := s.poolRepo.UpdateStatus(ctx, pool.ID, models.PoolStatusClosed); err != nil {
			log.Printf("❌ Failed to close pool %s: %v", pool.Name, err)
		} else {
			log.Printf("🏁 Pool %s closed: every member has won once", pool.Name)
		}
	}
}

// ============================================================
// Member response / abort
// ============================================================

// Respond records one member's opt-in decision for the current round.
// Rejected when no window is open or the window already closed.
func (s *DrawService) Respond(ctx context.Context, poolID, userID uint, wants bool) error {
	window, ok := s.windows.Get(poolID)
	if !ok {
		return domain.ErrNoOpenWindow
	}
	return window.Respond(ctx, userID, wants)
}

// AbortRound cancels the in-flight round before commit. After commit only
// CancelDraw is allowed.
func (s *DrawService) AbortRound(ctx context.Context, poolID uint) error {
	window, ok := s.windows.Get(poolID)
	if !ok || window.State() == WindowClosed {
		return domain.ErrNoOpenWindow
	}
	window.Abort()
	return nil
}

// ============================================================
// Queries
// ============================================================

// GetRoundResult returns the draw record for a round with its audit payload
func (s *DrawService) GetRoundResult(ctx context.Context, poolID uint, roundNumber int) (*RoundResult, error) {
	draw, err := s.drawRepo.GetByRound(ctx, poolID, roundNumber)
	if err != nil {
		return nil, err
	}
	return decorateDraw(draw), nil
}

// ListRounds returns draw history for a pool
func (s *DrawService) ListRounds(ctx context.Context, poolID uint, offset, limit int) ([]*RoundResult, int64, error) {
	draws, total, err := s.drawRepo.ListByPool(ctx, poolID, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	results := make([]*RoundResult, 0, len(draws))
	for _, d := range draws {
		results = append(results, decorateDraw(d))
	}
	return results, total, nil
}

func decorateDraw(draw *models.Draw) *RoundResult {
	result := &RoundResult{Draw: draw}
	if draw.Audit != "" {
		var audit models.DrawAudit
		if err := json.Unmarshal([]byte(draw.Audit), &audit); err == nil {
			result.Audit = &audit
		}
	}
	return result
}

// ============================================================
// Cancellation (post-commit) & manual draws
// ============================================================

// CancelDraw flips a committed draw to CANCELLED with a mandatory reason.
// The ledger entry stays and subsequent rounds keep their numbers.
func (s *DrawService) CancelDraw(ctx context.Context, drawID uint, reason string, cancelledBy uint) error {
	if len(strings.TrimSpace(reason)) < CancelReasonMinLen {
		return domain.ErrCancelReasonTooShort
	}
	if err := s.drawRepo.Cancel(ctx, drawID, reason, cancelledBy); err != nil {
		return err
	}
	log.Printf("🗑️ Draw %d cancelled by user %d: %s", drawID, cancelledBy, reason)
	return nil
}

// CommitManualDraw records an operator-chosen winner. Skips the consensus
// window but goes through the same ledger invariants as a random draw.
func (s *DrawService) CommitManualDraw(ctx context.Context, poolID, winnerID, by uint) (*RoundResult, error) {
	pool, err := s.poolRepo.GetByID(ctx, poolID)
	if err != nil {
		return nil, domain.ErrPoolNotFound
	}
	if !pool.IsActive() {
		return nil, domain.ErrPoolNotActive
	}
	if _, ok := s.windows.Get(poolID); ok {
		return nil, domain.ErrRoundInProgress
	}

	member, err := s.poolRepo.GetMember(ctx, poolID, winnerID)
	if err != nil {
		return nil, err
	}
	if member == nil {
		return nil, domain.ErrNotPoolMember
	}
	if member.HasWon {
		return nil, domain.ErrWinnerAlreadyWon
	}

	roundNumber, err := s.drawRepo.NextRoundNumber(ctx, poolID)
	if err != nil {
		return nil, err
	}

	result := &SelectionResult{
		Winner:      models.AuditCandidate{UserID: winnerID},
		RandomValue: 0,
		Candidates:  []models.AuditCandidate{{UserID: winnerID}},
	}
	draw, err := s.commit(ctx, pool, roundNumber, result, models.DrawMethodManual, by)
	if err != nil {
		return nil, err
	}

	s.announceResult(ctx, pool, draw, result)
	return decorateDraw(draw), nil
}

// ============================================================
// Scheduler hook
// ============================================================

// AutoStartDueRounds starts a round for every active pool whose frequency
// period has elapsed since the last draw. Precondition failures are logged
// and skipped, never retried in a loop.
func (s *DrawService) AutoStartDueRounds(ctx context.Context) {
	pools, err := s.poolRepo.ListByStatus(ctx, models.PoolStatusActive)
	if err != nil {
		log.Printf("❌ Scheduler pool query failed: %v", err)
		return
	}

	now := time.Now()
	for _, pool := range pools {
		if _, ok := s.windows.Get(pool.ID); ok {
			continue
		}

		last, err := s.drawRepo.LatestByPool(ctx, pool.ID)
		if err != nil {
			log.Printf("❌ Scheduler ledger query failed for pool %s: %v", pool.Name, err)
			continue
		}

		since := pool.CreatedAt
		if pool.ActivatedAt != nil {
			since = *pool.ActivatedAt
		}
		if last != nil {
			since = last.CreatedAt
		}
		if now.Sub(since) < frequencyPeriod(pool.Frequency) {
			continue
		}

		if _, err := s.StartRound(ctx, pool.ID, 0); err != nil {
			log.Printf("⏭️ Scheduler skipped pool %s: %v", pool.Name, err)
		}
	}
}

// ============================================================
// Helpers
// ============================================================

func clampWindowMinutes(mins int) time.Duration {
	if mins < models.OptInWindowMinMins || mins > models.OptInWindowMaxMins {
		mins = models.OptInWindowDefaultMins
	}
	return time.Duration(mins) * time.Minute
}

func frequencyPeriod(frequency string) time.Duration {
	if frequency == models.FrequencyWeekly {
		return 7 * 24 * time.Hour
	}
	return 30 * 24 * time.Hour
}

func memberCount(pool *models.Pool) int {
	return len(pool.Members)
}
