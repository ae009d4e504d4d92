package domain

import (
	"errors"
	"fmt"
)

// Common domain errors
var (
	ErrNotFound           = errors.New("resource not found")
	ErrInvalidInput       = errors.New("invalid input")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrInternalServer     = errors.New("internal server error")
	ErrDuplicateEntry     = errors.New("duplicate entry")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrTokenExpired       = errors.New("token expired")
	ErrTokenInvalid       = errors.New("token invalid")
)

// UserErrors
var (
	ErrUserNotFound      = errors.New("user not found")
	ErrUserAlreadyExists = errors.New("user already exists")
	ErrInvalidPassword   = errors.New("invalid password")
	ErrUserInactive      = errors.New("user account is inactive")
	ErrWeakPassword      = errors.New("password does not meet requirements")
)

// PoolErrors
var (
	ErrPoolNotFound      = errors.New("pool not found")
	ErrPoolNameTaken     = errors.New("pool name already in use")
	ErrPoolNotActive     = errors.New("pool is not active")
	ErrPoolNotPending    = errors.New("pool is not pending")
	ErrRosterTooSmall    = errors.New("pool roster below minimum size")
	ErrNoTreasurer       = errors.New("pool has no assigned treasurer")
	ErrAlreadyMember     = errors.New("user is already a member of this pool")
	ErrNotPoolMember     = errors.New("user is not a member of this pool")
	ErrInvalidWindowMins = errors.New("opt-in window duration out of bounds")
)

// DrawErrors — precondition failures are synchronous and never retried,
// conflicts are safe to retry, integrity breaches are fatal for the round.
var (
	ErrNoEligibleMembers    = errors.New("no eligible members for this round")
	ErrNoParticipants       = errors.New("no participants opted in for this round")
	ErrRoundInProgress      = errors.New("a round is already in progress for this pool")
	ErrNoOpenWindow         = errors.New("no open opt-in window for this pool")
	ErrWindowClosed         = errors.New("opt-in window is closed")
	ErrWindowNotClosed      = errors.New("opt-in window is still open")
	ErrDrawNotFound         = errors.New("draw not found")
	ErrDrawAlreadyCancelled = errors.New("draw already cancelled")
	ErrCancelReasonTooShort = errors.New("cancellation reason too short")
	ErrWinnerAlreadyWon     = errors.New("winner already won a previous round")
)

// InsufficientPaymentsError reports how far the pool is from the strict
// payment requirement for a round. Validated/Required lets callers surface
// "3/4" style shortfalls; MissingUserIDs names who is still pending.
type InsufficientPaymentsError struct {
	PoolID         uint
	RoundNumber    int
	Validated      int
	Required       int
	MissingUserIDs []uint
}

func (e *InsufficientPaymentsError) Error() string {
	return fmt.Sprintf("insufficient payments: %d/%d validated for round %d", e.Validated, e.Required, e.RoundNumber)
}

// RoundConflictError signals that a ledger commit lost to a concurrent round.
// No side effects happened before commit, so callers may retry later.
type RoundConflictError struct {
	PoolID      uint
	RoundNumber int
	Reason      string
}

func (e *RoundConflictError) Error() string {
	return fmt.Sprintf("round %d aborted for pool %d: %s", e.RoundNumber, e.PoolID, e.Reason)
}

// IntegrityError marks an invariant breach upstream (e.g. duplicate member in
// a finalized candidate set). Fatal for the round, surfaced loudly.
type IntegrityError struct {
	Detail string
}

func (e *IntegrityError) Error() string {
	return "data integrity violation: " + e.Detail
}
