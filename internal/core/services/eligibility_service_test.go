package services

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tontinehub/internal/adapters/persistence/models"
	"tontinehub/internal/core/domain"
)

func roster(n int) []models.PoolMember {
	members := make([]models.PoolMember, 0, n)
	for i := 1; i <= n; i++ {
		members = append(members, models.PoolMember{
			PoolID:   1,
			UserID:   uint(i),
			Position: i,
		})
	}
	return members
}

func paidSet(userIDs ...uint) map[uint]bool {
	paid := make(map[uint]bool)
	for _, id := range userIDs {
		paid[id] = true
	}
	return paid
}

func TestEligibilityStrictAllPaid(t *testing.T) {
	svc := NewEligibilityService(PolicyStrict)

	candidates, err := svc.Evaluate(roster(4), 1, paidSet(1, 2, 3, 4))
	require.NoError(t, err)
	require.Len(t, candidates, 4)

	// roster position order is preserved
	for i, c := range candidates {
		assert.Equal(t, uint(i+1), c.UserID)
		assert.Equal(t, i+1, c.Position)
	}
}

func TestEligibilityStrictShortfall(t *testing.T) {
	svc := NewEligibilityService(PolicyStrict)

	// 3 of 4 paid
	_, err := svc.Evaluate(roster(4), 2, paidSet(1, 2, 4))
	require.Error(t, err)

	var insufficient *domain.InsufficientPaymentsError
	require.True(t, errors.As(err, &insufficient))
	assert.Equal(t, 3, insufficient.Validated)
	assert.Equal(t, 4, insufficient.Required)
	assert.Equal(t, 2, insufficient.RoundNumber)
	assert.Equal(t, []uint{3}, insufficient.MissingUserIDs)
}

func TestEligibilityExcludesPastWinners(t *testing.T) {
	svc := NewEligibilityService(PolicyStrict)

	members := roster(4)
	members[0].HasWon = true

	// the winner's payment status is irrelevant
	candidates, err := svc.Evaluate(members, 2, paidSet(2, 3, 4))
	require.NoError(t, err)
	require.Len(t, candidates, 3)
	for _, c := range candidates {
		assert.NotEqual(t, uint(1), c.UserID)
	}
}

func TestEligibilityAllWon(t *testing.T) {
	svc := NewEligibilityService(PolicyStrict)

	members := roster(3)
	for i := range members {
		members[i].HasWon = true
	}

	_, err := svc.Evaluate(members, 4, paidSet(1, 2, 3))
	assert.ErrorIs(t, err, domain.ErrNoEligibleMembers)
}

func TestEligibilityRelaxedSkipsUnpaid(t *testing.T) {
	svc := NewEligibilityService(PolicyRelaxed)

	candidates, err := svc.Evaluate(roster(4), 1, paidSet(2, 4))
	require.NoError(t, err)
	require.Len(t, candidates, 2)
	assert.Equal(t, uint(2), candidates[0].UserID)
	assert.Equal(t, uint(4), candidates[1].UserID)
}

func TestEligibilityRelaxedNobodyPaid(t *testing.T) {
	svc := NewEligibilityService(PolicyRelaxed)

	_, err := svc.Evaluate(roster(3), 1, paidSet())
	require.Error(t, err)

	var insufficient *domain.InsufficientPaymentsError
	require.True(t, errors.As(err, &insufficient))
	assert.Equal(t, 0, insufficient.Validated)
	assert.Equal(t, 3, insufficient.Required)
	assert.Len(t, insufficient.MissingUserIDs, 3)
}

func TestEligibilityUnknownPolicyFallsBackToStrict(t *testing.T) {
	svc := NewEligibilityService("lenient")
	assert.Equal(t, PolicyStrict, svc.Policy())
}

func TestEligibilityCarriesMembNo(t *testing.T) {
	svc := NewEligibilityService(PolicyStrict)

	members := roster(2)
	members[0].User = &models.User{MembNo: "M001"}
	members[1].User = &models.User{MembNo: "M002"}

	candidates, err := svc.Evaluate(members, 1, paidSet(1, 2))
	require.NoError(t, err)
	assert.Equal(t, "M001", candidates[0].MembNo)
	assert.Equal(t, "M002", candidates[1].MembNo)
}
