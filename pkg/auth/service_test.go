package auth

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tomebooks/tome/pkg/config"
	"github.com/tomebooks/tome/pkg/migrations"
	"github.com/tomebooks/tome/pkg/models"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

func newTestDB(t *testing.T) *bun.DB {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)

	db := bun.NewDB(sqldb, sqlitedialect.New())

	_, err = migrations.BringUpToDate(context.Background(), db)
	require.NoError(t, err)

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

func newTestService(t *testing.T) *Service {
	t.Helper()
	cfg := &config.Config{
		JWTSecret:   "test-secret",
		TokenExpiry: time.Hour,
		BcryptCost:  4,
	}
	return NewService(newTestDB(t), cfg)
}

func TestService_Register(t *testing.T) {
	t.Parallel()
	svc := newTestService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, "Test User", "test@example.com", "Sup3rSecret!")
	require.NoError(t, err)

	assert.NotZero(t, user.ID)
	assert.Equal(t, "Test User", user.Name)
	assert.Equal(t, "test@example.com", user.Email)
	assert.Equal(t, models.RoleUser, user.Role)
	assert.True(t, user.IsActive)
	assert.NotEqual(t, "Sup3rSecret!", user.PasswordHash)
	assert.True(t, CheckPassword("Sup3rSecret!", user.PasswordHash))
}

func TestService_RegisterDuplicateEmail(t *testing.T) {
	t.Parallel()
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "Test User", "test@example.com", "Sup3rSecret!")
	require.NoError(t, err)

	// Same address with different casing is still a duplicate.
	_, err = svc.Register(ctx, "Other User", "TEST@example.com", "An0therPass!")
	require.Error(t, err)
	assert.ErrorContains(t, err, "Email already registered")
}

func TestService_Authenticate(t *testing.T) {
	t.Parallel()
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "Test User", "test@example.com", "Sup3rSecret!")
	require.NoError(t, err)

	user, err := svc.Authenticate(ctx, "test@example.com", "Sup3rSecret!")
	require.NoError(t, err)
	assert.Equal(t, "test@example.com", user.Email)

	_, err = svc.Authenticate(ctx, "test@example.com", "WrongPass!")
	require.Error(t, err)
	assert.ErrorContains(t, err, "Invalid email or password")

	// Unknown email reads the same as a wrong password.
	_, err = svc.Authenticate(ctx, "nobody@example.com", "Sup3rSecret!")
	require.Error(t, err)
	assert.ErrorContains(t, err, "Invalid email or password")
}

func TestService_AuthenticateInactiveUser(t *testing.T) {
	t.Parallel()
	svc := newTestService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, "Test User", "test@example.com", "Sup3rSecret!")
	require.NoError(t, err)

	_, err = svc.db.NewUpdate().
		Model((*models.User)(nil)).
		Set("is_active = ?", false).
		Where("id = ?", user.ID).
		Exec(ctx)
	require.NoError(t, err)

	_, err = svc.Authenticate(ctx, "test@example.com", "Sup3rSecret!")
	require.Error(t, err)
	assert.ErrorContains(t, err, "Invalid email or password")
}

func TestService_TokenRoundTrip(t *testing.T) {
	t.Parallel()
	svc := newTestService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, "Test User", "test@example.com", "Sup3rSecret!")
	require.NoError(t, err)

	token, err := svc.GenerateToken(user)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, user.Email, claims.Email)
}

func TestService_ValidateTokenRejectsTampered(t *testing.T) {
	t.Parallel()
	svc := newTestService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, "Test User", "test@example.com", "Sup3rSecret!")
	require.NoError(t, err)

	token, err := svc.GenerateToken(user)
	require.NoError(t, err)

	_, err = svc.ValidateToken(token + "x")
	assert.Error(t, err)

	other := NewService(svc.db, &config.Config{JWTSecret: "different-secret", TokenExpiry: time.Hour})
	_, err = other.ValidateToken(token)
	assert.Error(t, err)
}

func TestService_ValidateTokenExpired(t *testing.T) {
	t.Parallel()
	svc := newTestService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, "Test User", "test@example.com", "Sup3rSecret!")
	require.NoError(t, err)

	expired := NewService(svc.db, &config.Config{JWTSecret: "test-secret", TokenExpiry: -time.Hour, BcryptCost: 4})
	token, err := expired.GenerateToken(user)
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	assert.Error(t, err)
}
