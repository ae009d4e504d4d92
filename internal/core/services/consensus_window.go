package services

import (
	"context"
	"log"
	"sync"
	"time"

	"tontinehub/internal/adapters/persistence/models"
	"tontinehub/internal/adapters/persistence/repositories"
	"tontinehub/internal/core/domain"
)

// Window states
const (
	WindowNotStarted = "NOT_STARTED"
	WindowNotified   = "NOTIFIED"
	WindowAwaiting   = "AWAITING_RESPONSES"
	WindowClosed     = "CLOSED"
)

// Close reasons
const (
	CloseReasonAllResponded = "all_responded"
	CloseReasonDeadline     = "deadline"
	CloseReasonAborted      = "aborted"
)

type windowEntry struct {
	userID       uint
	membNo       string
	decision     string
	autoEnrolled bool
}

// ConsensusWindow tracks the opt-in state of one round for one pool.
// It closes either when every notified member has responded (checked on each
// response event, not on a poll tick) or when the deadline timer fires,
// whichever comes first. On deadline, unanswered members are auto-enrolled;
// explicit opt-outs are never overridden.
type ConsensusWindow struct {
	mu          sync.Mutex
	poolID      uint
	roundNumber int
	state       string
	deadline    time.Time
	entries     map[uint]*windowEntry
	order       []uint // stable candidate order
	done        chan struct{}
	timer       *time.Timer
	closeReason string

	participants repositories.ParticipantRepository
}

func newConsensusWindow(poolID uint, roundNumber int, participants repositories.ParticipantRepository) *ConsensusWindow {
	return &ConsensusWindow{
		poolID:       poolID,
		roundNumber:  roundNumber,
		state:        WindowNotStarted,
		entries:      make(map[uint]*windowEntry),
		done:         make(chan struct{}),
		participants: participants,
	}
}

// open notifies the candidates: stamps notified_at, resets every decision to
// unanswered and arms the deadline timer.
func (w *ConsensusWindow) open(ctx context.Context, candidates []Candidate, duration time.Duration) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	userIDs := make([]uint, 0, len(candidates))
	for _, c := range candidates {
		w.entries[c.UserID] = &windowEntry{
			userID:   c.UserID,
			membNo:   c.MembNo,
			decision: models.DecisionUnanswered,
		}
		w.order = append(w.order, c.UserID)
		userIDs = append(userIDs, c.UserID)
	}

	w.state = WindowNotified
	if err := w.participants.ResetForRound(ctx, w.poolID, w.roundNumber, userIDs); err != nil {
		return err
	}

	w.deadline = time.Now().Add(duration)
	w.timer = time.AfterFunc(duration, w.closeOnDeadline)
	w.state = WindowAwaiting
	return nil
}

// Respond records one member's decision. Last write wins until the window
// closes; afterwards the response is rejected.
func (w *ConsensusWindow) Respond(ctx context.Context, userID uint, wants bool) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state == WindowClosed {
		return domain.ErrWindowClosed
	}

	entry, ok := w.entries[userID]
	if !ok {
		return domain.ErrNotPoolMember
	}

	decision := models.DecisionOptedOut
	if wants {
		decision = models.DecisionOptedIn
	}
	entry.decision = decision
	entry.autoEnrolled = false

	if err := w.participants.SetDecision(ctx, w.poolID, w.roundNumber, userID, decision, false); err != nil {
		return err
	}

	if w.allRespondedLocked() {
		w.closeLocked(CloseReasonAllResponded)
	}
	return nil
}

// closeOnDeadline fires from the timer: every still-unanswered member is
// auto-enrolled, explicit opt-outs stay as they are.
func (w *ConsensusWindow) closeOnDeadline() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state == WindowClosed {
		return
	}

	ctx := context.Background()
	for _, userID := range w.order {
		entry := w.entries[userID]
		if entry.decision != models.DecisionUnanswered {
			continue
		}
		entry.decision = models.DecisionOptedIn
		entry.autoEnrolled = true
		if err := w.participants.SetDecision(ctx, w.poolID, w.roundNumber, userID, models.DecisionOptedIn, true); err != nil {
			log.Printf("❌ Auto-enroll persist failed (pool %d round %d user %d): %v", w.poolID, w.roundNumber, userID, err)
		}
	}

	w.closeLocked(CloseReasonDeadline)
}

// Abort closes the window without auto-enrollment (operator abort before commit)
func (w *ConsensusWindow) Abort() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state == WindowClosed {
		return
	}
	w.closeLocked(CloseReasonAborted)
}

func (w *ConsensusWindow) closeLocked(reason string) {
	w.state = WindowClosed
	w.closeReason = reason
	if w.timer != nil {
		w.timer.Stop()
	}
	close(w.done)
}

func (w *ConsensusWindow) allRespondedLocked() bool {
	for _, entry := range w.entries {
		if entry.decision == models.DecisionUnanswered {
			return false
		}
	}
	return true
}

// Done is closed when the window reaches CLOSED, letting the orchestrator
// wait on the event instead of busy-polling.
func (w *ConsensusWindow) Done() <-chan struct{} {
	return w.done
}

// State returns the current window state
func (w *ConsensusWindow) State() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Deadline returns when the window will close at the latest
func (w *ConsensusWindow) Deadline() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.deadline
}

// CloseReason reports why the window closed (empty while open)
func (w *ConsensusWindow) CloseReason() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeReason
}

// Finalize returns the frozen candidate set: every notified member whose
// final decision is opted-in, in stable order with auto-enrollment flags.
// Fails while the window is still open.
func (w *ConsensusWindow) Finalize() ([]models.AuditCandidate, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state != WindowClosed {
		return nil, domain.ErrWindowNotClosed
	}

	var out []models.AuditCandidate
	for _, userID := range w.order {
		entry := w.entries[userID]
		if entry.decision != models.DecisionOptedIn {
			continue
		}
		out = append(out, models.AuditCandidate{
			UserID:       entry.userID,
			MembNo:       entry.membNo,
			AutoEnrolled: entry.autoEnrolled,
		})
	}
	return out, nil
}

// ============================================================
// Window Registry — one open window per pool
// ============================================================

// WindowRegistry owns the open consensus windows, keyed by pool ID
type WindowRegistry struct {
	mu      sync.Mutex
	windows map[uint]*ConsensusWindow
}

// NewWindowRegistry creates an empty registry
func NewWindowRegistry() *WindowRegistry {
	return &WindowRegistry{
		windows: make(map[uint]*ConsensusWindow),
	}
}

// Open creates and opens the window for a round. Fails with
// ErrRoundInProgress while the pool has a window registered, open or not: a
// closed window stays registered until its round task detaches it, so the
// round number it took cannot be taken again before its commit settles.
func (r *WindowRegistry) Open(ctx context.Context, poolID uint, roundNumber int, candidates []Candidate, duration time.Duration, participants repositories.ParticipantRepository) (*ConsensusWindow, error) {
	r.mu.Lock()
	if _, ok := r.windows[poolID]; ok {
		r.mu.Unlock()
		return nil, domain.ErrRoundInProgress
	}
	window := newConsensusWindow(poolID, roundNumber, participants)
	r.windows[poolID] = window
	r.mu.Unlock()

	if err := window.open(ctx, candidates, duration); err != nil {
		r.Remove(poolID, window)
		return nil, err
	}
	return window, nil
}

// Get returns the window for a pool, if any
func (r *WindowRegistry) Get(poolID uint) (*ConsensusWindow, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	window, ok := r.windows[poolID]
	return window, ok
}

// Remove detaches a finished window. Compare-and-delete: a stale detach from
// an earlier round must not evict a window the next round already registered.
func (r *WindowRegistry) Remove(poolID uint, window *ConsensusWindow) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.windows[poolID] == window {
		delete(r.windows, poolID)
	}
}
