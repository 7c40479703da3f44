package passwords

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tomebooks/tome/pkg/auth"
	"github.com/tomebooks/tome/pkg/config"
	"github.com/tomebooks/tome/pkg/errcodes"
	"github.com/tomebooks/tome/pkg/mailer"
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

func newTestConfig() *config.Config {
	return &config.Config{
		Environment:          "test",
		BaseURL:              "http://localhost:4180",
		BcryptCost:           4,
		BcryptResetCost:      4,
		ResetTokenTTL:        time.Hour,
		ResetRateLimit:       3,
		ResetRateLimitWindow: time.Hour,
	}
}

// recordingSender captures sent messages; failingSender always errors.
type recordingSender struct {
	sent []mailer.Message
}

func (s *recordingSender) Send(_ context.Context, msg mailer.Message) error {
	s.sent = append(s.sent, msg)
	return nil
}

type failingSender struct{}

func (s *failingSender) Send(_ context.Context, _ mailer.Message) error {
	return errors.New("smtp unreachable")
}

func createTestUser(t *testing.T, db *bun.DB, id int, email, password string, verified bool) {
	t.Helper()
	hash, err := auth.HashPassword(password, 4)
	require.NoError(t, err)
	_, err = db.ExecContext(context.Background(),
		`INSERT INTO users (id, name, email, password_hash, is_verified, is_active, role) VALUES (?, 'Test User', ?, ?, ?, 1, 'USER')`,
		id, email, hash, verified)
	require.NoError(t, err)
}

func issueToken(t *testing.T, svc *Service) string {
	t.Helper()
	// A failing sender forces the dev-mode fallback, which hands the raw
	// token back instead of emailing it.
	svc.sender = &failingSender{}
	result, err := svc.InitiateForgot(context.Background(), "test@example.com")
	require.NoError(t, err)
	require.NotEmpty(t, result.Token)
	return result.Token
}

func TestValidateStrength(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		password string
		score    int
		feedback []string
	}{
		{"strong", "Sup3rSecret!", 5, []string{}},
		{"empty", "", 0, []string{
			"Password must be at least 8 characters long.",
			"Password must contain at least one uppercase letter.",
			"Password must contain at least one lowercase letter.",
			"Password must contain at least one number.",
			"Password must contain at least one special character.",
		}},
		{"short but varied", "Ab1!", 4, []string{"Password must be at least 8 characters long."}},
		{"no symbol", "Abcdefg1", 4, []string{"Password must contain at least one special character."}},
		{"no uppercase", "abcdefg1!", 4, []string{"Password must contain at least one uppercase letter."}},
		{"lowercase only", "abcdefgh", 2, []string{
			"Password must contain at least one uppercase letter.",
			"Password must contain at least one number.",
			"Password must contain at least one special character.",
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			res := ValidateStrength(tt.password)
			assert.Equal(t, tt.score, res.Score)
			assert.Equal(t, tt.score == 5, res.IsValid)
			assert.Equal(t, tt.feedback, res.Feedback)

			// Identical input always yields identical output.
			assert.Equal(t, res, ValidateStrength(tt.password))
		})
	}
}

func TestService_InitiateForgot(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	sender := &recordingSender{}
	svc := NewService(db, newTestConfig(), sender)
	createTestUser(t, db, 1, "test@example.com", "OldPass123!", true)

	result, err := svc.InitiateForgot(context.Background(), "test@example.com")
	require.NoError(t, err)

	assert.Equal(t, genericForgotMessage, result.Message)
	assert.Empty(t, result.Token)

	require.Len(t, sender.sent, 1)
	assert.Equal(t, "test@example.com", sender.sent[0].To)
	assert.Contains(t, sender.sent[0].Body, "/reset-password?token=")

	reset := &models.PasswordReset{}
	err = db.NewSelect().Model(reset).Where("user_id = ?", 1).Scan(context.Background())
	require.NoError(t, err)
	assert.Len(t, reset.Token, 64)
	assert.False(t, reset.Used)
	assert.True(t, reset.ExpiresAt.After(time.Now()))
}

func TestService_InitiateForgotUnknownEmail(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	sender := &recordingSender{}
	svc := NewService(db, newTestConfig(), sender)

	// Same generic response as the known-email path, so the endpoint can't
	// be used to probe which accounts exist.
	result, err := svc.InitiateForgot(context.Background(), "nobody@example.com")
	require.NoError(t, err)
	assert.Equal(t, genericForgotMessage, result.Message)
	assert.Empty(t, result.Token)
	assert.Empty(t, sender.sent)
}

func TestService_InitiateForgotUnverified(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	svc := NewService(db, newTestConfig(), &recordingSender{})
	createTestUser(t, db, 1, "test@example.com", "OldPass123!", false)

	_, err := svc.InitiateForgot(context.Background(), "test@example.com")
	require.Error(t, err)
	assert.ErrorContains(t, err, "verify your email")
}

func TestService_InitiateForgotRateLimit(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	svc := NewService(db, newTestConfig(), &recordingSender{})
	createTestUser(t, db, 1, "test@example.com", "OldPass123!", true)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := svc.InitiateForgot(ctx, "test@example.com")
		require.NoError(t, err)
	}

	_, err := svc.InitiateForgot(ctx, "test@example.com")
	require.Error(t, err)
	assert.ErrorContains(t, err, "Too many password reset requests")

	var errcode *errcodes.Error
	require.ErrorAs(t, err, &errcode)
	assert.Equal(t, 429, errcode.HTTPCode)
}

func TestService_InitiateForgotRateLimitWindowElapses(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	svc := NewService(db, newTestConfig(), &recordingSender{})
	createTestUser(t, db, 1, "test@example.com", "OldPass123!", true)
	ctx := context.Background()

	// Three old rows outside the trailing window must not count.
	old := time.Now().Add(-2 * time.Hour)
	for i := 0; i < 3; i++ {
		_, err := db.ExecContext(ctx,
			`INSERT INTO password_resets (user_id, token, expires_at, used, created_at) VALUES (1, ?, ?, 0, ?)`,
			"old-token-"+string(rune('a'+i)), old.Add(time.Hour), old)
		require.NoError(t, err)
	}

	_, err := svc.InitiateForgot(ctx, "test@example.com")
	require.NoError(t, err)
}

func TestService_InitiateForgotSendFailureDevFallback(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	svc := NewService(db, newTestConfig(), &failingSender{})
	createTestUser(t, db, 1, "test@example.com", "OldPass123!", true)

	result, err := svc.InitiateForgot(context.Background(), "test@example.com")
	require.NoError(t, err)
	assert.Len(t, result.Token, 64)
	assert.Contains(t, result.Message, "Email delivery failed")
}

func TestService_InitiateForgotSendFailureProduction(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	cfg := newTestConfig()
	cfg.Environment = "production"
	svc := NewService(db, cfg, &failingSender{})
	createTestUser(t, db, 1, "test@example.com", "OldPass123!", true)

	_, err := svc.InitiateForgot(context.Background(), "test@example.com")
	require.Error(t, err)
	assert.ErrorContains(t, err, "contact support")
	assert.NotContains(t, err.Error(), "token")
}

func TestService_Reset(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	svc := NewService(db, newTestConfig(), &recordingSender{})
	createTestUser(t, db, 1, "test@example.com", "OldPass123!", true)
	ctx := context.Background()

	token := issueToken(t, svc)

	require.NoError(t, svc.Reset(ctx, token, "NewPass123!"))

	user := &models.User{}
	err := db.NewSelect().Model(user).Where("u.id = ?", 1).Scan(ctx)
	require.NoError(t, err)
	assert.True(t, auth.CheckPassword("NewPass123!", user.PasswordHash))
	assert.False(t, auth.CheckPassword("OldPass123!", user.PasswordHash))

	reset := &models.PasswordReset{}
	err = db.NewSelect().Model(reset).Where("user_id = ?", 1).Scan(ctx)
	require.NoError(t, err)
	assert.True(t, reset.Used)
}

func TestService_ResetTokenSingleUse(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	svc := NewService(db, newTestConfig(), &recordingSender{})
	createTestUser(t, db, 1, "test@example.com", "OldPass123!", true)
	ctx := context.Background()

	token := issueToken(t, svc)

	require.NoError(t, svc.Reset(ctx, token, "NewPass123!"))

	// Replaying the same token must fail even with a valid password.
	err := svc.Reset(ctx, token, "Another123!")
	require.Error(t, err)
	assert.ErrorContains(t, err, "Invalid or expired reset token.")

	user := &models.User{}
	require.NoError(t, db.NewSelect().Model(user).Where("u.id = ?", 1).Scan(ctx))
	assert.True(t, auth.CheckPassword("NewPass123!", user.PasswordHash))
}

func TestService_ResetUnknownToken(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	svc := NewService(db, newTestConfig(), &recordingSender{})

	err := svc.Reset(context.Background(), "doesnotexist", "NewPass123!")
	require.Error(t, err)
	assert.ErrorContains(t, err, "Invalid or expired reset token.")
}

func TestService_ResetExpiredToken(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	svc := NewService(db, newTestConfig(), &recordingSender{})
	createTestUser(t, db, 1, "test@example.com", "OldPass123!", true)
	ctx := context.Background()

	_, err := db.ExecContext(ctx,
		`INSERT INTO password_resets (user_id, token, expires_at, used, created_at) VALUES (1, 'expired-token', ?, 0, ?)`,
		time.Now().Add(-time.Minute), time.Now().Add(-time.Hour))
	require.NoError(t, err)

	err = svc.Reset(ctx, "expired-token", "NewPass123!")
	require.Error(t, err)
	// Expired reads the same as wrong or used.
	assert.ErrorContains(t, err, "Invalid or expired reset token.")
}

func TestService_ResetWeakPassword(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	svc := NewService(db, newTestConfig(), &recordingSender{})
	createTestUser(t, db, 1, "test@example.com", "OldPass123!", true)

	token := issueToken(t, svc)

	err := svc.Reset(context.Background(), token, "weak")
	require.Error(t, err)
	assert.ErrorContains(t, err, "at least 8 characters")
	assert.ErrorContains(t, err, "uppercase letter")
}

func TestService_Change(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	svc := NewService(db, newTestConfig(), &recordingSender{})
	createTestUser(t, db, 1, "test@example.com", "OldPass123!", true)
	ctx := context.Background()

	require.NoError(t, svc.Change(ctx, 1, "OldPass123!", "NewPass123!"))

	user := &models.User{}
	require.NoError(t, db.NewSelect().Model(user).Where("u.id = ?", 1).Scan(ctx))
	assert.True(t, auth.CheckPassword("NewPass123!", user.PasswordHash))
}

func TestService_ChangeWrongCurrent(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	svc := NewService(db, newTestConfig(), &recordingSender{})
	createTestUser(t, db, 1, "test@example.com", "OldPass123!", true)

	err := svc.Change(context.Background(), 1, "WrongPass123!", "NewPass123!")
	require.Error(t, err)
	assert.ErrorContains(t, err, "Current password is incorrect")
}

func TestService_ChangeSamePassword(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	svc := NewService(db, newTestConfig(), &recordingSender{})
	createTestUser(t, db, 1, "test@example.com", "OldPass123!", true)

	err := svc.Change(context.Background(), 1, "OldPass123!", "OldPass123!")
	require.Error(t, err)
	assert.ErrorContains(t, err, "must be different")
}

func TestService_ChangeWeakSamePassword(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	svc := NewService(db, newTestConfig(), &recordingSender{})
	createTestUser(t, db, 1, "test@example.com", "weakpass", true)

	// A weak new password gets itemized strength feedback even when it also
	// matches the current one.
	err := svc.Change(context.Background(), 1, "weakpass", "weakpass")
	require.Error(t, err)
	assert.ErrorContains(t, err, "Password must contain at least one uppercase letter.")
	assert.NotContains(t, err.Error(), "must be different")
}

func TestService_ChangeUnknownUser(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	svc := NewService(db, newTestConfig(), &recordingSender{})

	err := svc.Change(context.Background(), 42, "OldPass123!", "NewPass123!")
	assert.ErrorIs(t, err, errcodes.NotFound("User"))
}

func TestService_CleanupExpired(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	svc := NewService(db, newTestConfig(), &recordingSender{})
	createTestUser(t, db, 1, "test@example.com", "OldPass123!", true)
	ctx := context.Background()

	now := time.Now()
	rows := []struct {
		token   string
		expires time.Time
		used    bool
	}{
		{"fresh", now.Add(time.Hour), false},
		{"used", now.Add(time.Hour), true},
		{"expired", now.Add(-time.Minute), false},
	}
	for _, r := range rows {
		_, err := db.ExecContext(ctx,
			`INSERT INTO password_resets (user_id, token, expires_at, used, created_at) VALUES (1, ?, ?, ?, ?)`,
			r.token, r.expires, r.used, now)
		require.NoError(t, err)
	}

	deleted, err := svc.CleanupExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)

	count, err := db.NewSelect().Model((*models.PasswordReset)(nil)).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	remaining := &models.PasswordReset{}
	require.NoError(t, db.NewSelect().Model(remaining).Scan(ctx))
	assert.Equal(t, "fresh", remaining.Token)
}
