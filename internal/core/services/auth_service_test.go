package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tontinehub/internal/adapters/persistence/models"
	"tontinehub/internal/adapters/persistence/repositories/memory"
	"tontinehub/internal/config"
	"tontinehub/internal/core/domain"
	"tontinehub/internal/pkg/jwt"
)

func newAuthFixture(t *testing.T) (*AuthService, *config.Config) {
	t.Helper()
	cfg := &config.Config{
		JWT: config.JWTConfig{Secret: "test-secret", AccessTokenMins: 15},
	}
	return NewAuthService(memory.NewUserRepository(), cfg), cfg
}

func TestRegisterAndLogin(t *testing.T) {
	service, cfg := newAuthFixture(t)
	ctx := context.Background()

	user, err := service.Register(ctx, &RegisterInput{
		MembNo:   "M001",
		Username: "alice",
		Email:    "alice@example.com",
		Password: "supersecret",
	})
	require.NoError(t, err)
	assert.Equal(t, models.RoleMember, user.Role)
	assert.NotEqual(t, "supersecret", user.Password) // stored hashed

	result, err := service.Login(ctx, &LoginInput{Username: "alice", Password: "supersecret"})
	require.NoError(t, err)
	require.NotEmpty(t, result.AccessToken)

	claims, err := jwt.ValidateAccessToken(result.AccessToken, cfg.JWT.Secret)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, "M001", claims.MembNo)
	assert.Equal(t, models.RoleMember, claims.Role)
}

func TestRegisterRejectsWeakPasswordAndDuplicates(t *testing.T) {
	service, _ := newAuthFixture(t)
	ctx := context.Background()

	_, err := service.Register(ctx, &RegisterInput{
		MembNo: "M001", Username: "bob", Email: "bob@example.com", Password: "short",
	})
	assert.ErrorIs(t, err, domain.ErrWeakPassword)

	_, err = service.Register(ctx, &RegisterInput{
		MembNo: "M001", Username: "bob", Email: "bob@example.com", Password: "longenough",
	})
	require.NoError(t, err)

	_, err = service.Register(ctx, &RegisterInput{
		MembNo: "M002", Username: "bob", Email: "other@example.com", Password: "longenough",
	})
	assert.ErrorIs(t, err, domain.ErrUserAlreadyExists)
}

func TestRegisterSanitizesRole(t *testing.T) {
	service, _ := newAuthFixture(t)
	ctx := context.Background()

	user, err := service.Register(ctx, &RegisterInput{
		MembNo: "M001", Username: "eve", Email: "eve@example.com", Password: "longenough", Role: "SUPERUSER",
	})
	require.NoError(t, err)
	assert.Equal(t, models.RoleMember, user.Role)

	treasurer, err := service.Register(ctx, &RegisterInput{
		MembNo: "M002", Username: "treas", Email: "treas@example.com", Password: "longenough", Role: models.RoleTreasurer,
	})
	require.NoError(t, err)
	assert.Equal(t, models.RoleTreasurer, treasurer.Role)
}

func TestLoginFailures(t *testing.T) {
	service, _ := newAuthFixture(t)
	ctx := context.Background()

	_, err := service.Register(ctx, &RegisterInput{
		MembNo: "M001", Username: "carol", Email: "carol@example.com", Password: "longenough",
	})
	require.NoError(t, err)

	_, err = service.Login(ctx, &LoginInput{Username: "carol", Password: "wrongpass"})
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)

	_, err = service.Login(ctx, &LoginInput{Username: "nobody", Password: "longenough"})
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
}
