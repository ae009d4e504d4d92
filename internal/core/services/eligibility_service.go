package services

import (
	"tontinehub/internal/adapters/persistence/models"
	"tontinehub/internal/core/domain"
)

// Eligibility policies. Strict is the active default: a round cannot proceed
// unless every non-winning member has a validated payment for the
// installment. Relaxed only requires candidates themselves to be paid up.
const (
	PolicyStrict  = "strict"
	PolicyRelaxed = "relaxed"
)

// Candidate is one member allowed to compete in a round
type Candidate struct {
	UserID   uint
	MembNo   string
	Position int
}

// EligibilityService decides who may compete in a round. Pure computation
// over a roster snapshot and the validated-payment set; no I/O.
type EligibilityService struct {
	policy string
}

// NewEligibilityService creates an evaluator with the given policy.
// Unknown values fall back to strict.
func NewEligibilityService(policy string) *EligibilityService {
	if policy != PolicyRelaxed {
		policy = PolicyStrict
	}
	return &EligibilityService{policy: policy}
}

// Policy returns the active policy name (stored in every draw audit)
func (s *EligibilityService) Policy() string {
	return s.policy
}

// Evaluate returns the ordered candidate set for a round: members who have
// not yet won and satisfy the payment requirement for installment ==
// roundNumber. Order is stable (roster position, then user ID).
//
// Failure is explicit: *domain.InsufficientPaymentsError carries the
// validated/required counts and the still-missing member IDs, so callers can
// surface "3/4" rather than an empty set.
func (s *EligibilityService) Evaluate(members []models.PoolMember, roundNumber int, paid map[uint]bool) ([]Candidate, error) {
	var nonWinners []models.PoolMember
	for _, m := range members {
		if !m.HasWon {
			nonWinners = append(nonWinners, m)
		}
	}
	if len(nonWinners) == 0 {
		return nil, domain.ErrNoEligibleMembers
	}

	var missing []uint
	var candidates []Candidate
	for _, m := range nonWinners {
		if !paid[m.UserID] {
			missing = append(missing, m.UserID)
			continue
		}
		c := Candidate{UserID: m.UserID, Position: m.Position}
		if m.User != nil {
			c.MembNo = m.User.MembNo
		}
		candidates = append(candidates, c)
	}

	switch s.policy {
	case PolicyRelaxed:
		// Only candidates need be paid up, but a round with zero paid
		// members is still a payment failure, not an empty set.
		if len(candidates) == 0 {
			return nil, &domain.InsufficientPaymentsError{
				RoundNumber:    roundNumber,
				Validated:      0,
				Required:       len(nonWinners),
				MissingUserIDs: missing,
			}
		}
	default:
		if len(missing) > 0 {
			return nil, &domain.InsufficientPaymentsError{
				RoundNumber:    roundNumber,
				Validated:      len(nonWinners) - len(missing),
				Required:       len(nonWinners),
				MissingUserIDs: missing,
			}
		}
	}

	return candidates, nil
}
