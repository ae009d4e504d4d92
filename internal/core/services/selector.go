package services

import (
	"errors"
	"math/rand"

	"tontinehub/internal/adapters/persistence/models"
	"tontinehub/internal/core/domain"
)

// ErrEmptyCandidateSet means the orchestrator called the selector without
// candidates. That is a caller bug, never a user-facing condition.
var ErrEmptyCandidateSet = errors.New("selection over empty candidate set")

// RandomSource abstracts the randomness behind the draw so tests can inject
// a deterministic source. Production uses the process-level math/rand source,
// which is deliberately NOT seeded deterministically: selections are uniform
// at call time but not reproducible across runs.
type RandomSource interface {
	Intn(n int) int
}

type processRandomSource struct{}

func (processRandomSource) Intn(n int) int {
	return rand.Intn(n)
}

// SelectionResult records everything needed to replay a draw
type SelectionResult struct {
	Winner      models.AuditCandidate
	RandomValue int                     // raw draw over [0, len(candidates))
	Candidates  []models.AuditCandidate // frozen list, stable order
}

// Selector picks exactly one winner uniformly over a finalized candidate set
type Selector struct {
	src RandomSource
}

// NewSelector creates a selector; a nil source means the process-level one
func NewSelector(src RandomSource) *Selector {
	if src == nil {
		src = processRandomSource{}
	}
	return &Selector{src: src}
}

// Pick draws one uniformly-random index over the candidate list. The raw
// random value and the exact candidate list go into the audit payload. A
// duplicate member in the set is an invariant breach upstream and aborts the
// round.
func (s *Selector) Pick(candidates []models.AuditCandidate) (*SelectionResult, error) {
	if len(candidates) == 0 {
		return nil, ErrEmptyCandidateSet
	}

	seen := make(map[uint]bool, len(candidates))
	for _, c := range candidates {
		if seen[c.UserID] {
			return nil, &domain.IntegrityError{Detail: "duplicate member in finalized candidate set"}
		}
		seen[c.UserID] = true
	}

	idx := s.src.Intn(len(candidates))
	frozen := make([]models.AuditCandidate, len(candidates))
	copy(frozen, candidates)

	return &SelectionResult{
		Winner:      frozen[idx],
		RandomValue: idx,
		Candidates:  frozen,
	}, nil
}
