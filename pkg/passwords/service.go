package passwords

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/tomebooks/tome/pkg/auth"
	"github.com/tomebooks/tome/pkg/config"
	"github.com/tomebooks/tome/pkg/errcodes"
	"github.com/tomebooks/tome/pkg/mailer"
	"github.com/tomebooks/tome/pkg/models"
	"github.com/uptrace/bun"
)

// Service owns the password recovery workflow: strength scoring, rate-limited
// reset initiation, single-use token redemption, and authenticated password
// changes.
type Service struct {
	db     *bun.DB
	cfg    *config.Config
	sender mailer.Sender
	log    logger.Logger
}

// NewService creates a new passwords service.
func NewService(db *bun.DB, cfg *config.Config, sender mailer.Sender) *Service {
	return &Service{
		db:     db,
		cfg:    cfg,
		sender: sender,
		log:    logger.New(),
	}
}

// ForgotResult is the outcome of initiating a password reset. Token is only
// populated in non-production environments when email delivery fails, so
// local setups without SMTP can still complete the flow.
type ForgotResult struct {
	Message string `json:"message"`
	Token   string `json:"reset_token,omitempty"`
}

// genericForgotMessage is returned whether or not the account exists, so the
// endpoint can't be used to enumerate registered emails.
const genericForgotMessage = "If an account with that email exists, a password reset link has been sent."

// CheckRateLimit reports whether the user may request another password reset:
// fewer than the configured number of reset rows created within the trailing
// window. The count-then-insert is not atomic; this is a soft limit.
func (svc *Service) CheckRateLimit(ctx context.Context, userID int) (bool, error) {
	cutoff := time.Now().Add(-svc.cfg.ResetRateLimitWindow)
	count, err := svc.db.NewSelect().
		Model((*models.PasswordReset)(nil)).
		Where("user_id = ?", userID).
		Where("created_at > ?", cutoff).
		Count(ctx)
	if err != nil {
		return false, errors.WithStack(err)
	}
	return count < svc.cfg.ResetRateLimit, nil
}

// InitiateForgot starts the reset workflow for an email address. Unknown
// emails get the same generic success as delivered ones.
func (svc *Service) InitiateForgot(ctx context.Context, email string) (*ForgotResult, error) {
	user := &models.User{}
	err := svc.db.NewSelect().
		Model(user).
		Where("email = ? COLLATE NOCASE", email).
		Where("is_active = ?", true).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &ForgotResult{Message: genericForgotMessage}, nil
		}
		return nil, errors.WithStack(err)
	}

	if !user.IsVerified {
		return nil, errcodes.ValidationError("Please verify your email address before requesting a password reset.")
	}

	allowed, err := svc.CheckRateLimit(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, errcodes.TooManyRequests("Too many password reset requests. Please try again later.")
	}

	token, err := generateToken()
	if err != nil {
		return nil, err
	}

	reset := &models.PasswordReset{
		UserID:    user.ID,
		Token:     token,
		ExpiresAt: time.Now().Add(svc.cfg.ResetTokenTTL),
		CreatedAt: time.Now(),
	}
	if _, err := svc.db.NewInsert().Model(reset).Exec(ctx); err != nil {
		return nil, errors.WithStack(err)
	}

	link := fmt.Sprintf("%s/reset-password?token=%s", svc.cfg.BaseURL, token)
	msg := mailer.Message{
		To:      user.Email,
		Subject: "Reset your password",
		Body:    fmt.Sprintf("Hi %s,\n\nA password reset was requested for your account. Use the link below within the next hour:\n\n%s\n\nIf you didn't request this, you can ignore this email.\n", user.Name, link),
	}
	if err := svc.sender.Send(ctx, msg); err != nil {
		svc.log.Err(err).Error("failed to send password reset email")
		if !svc.cfg.IsProduction() {
			// Local fallback so the flow stays testable without SMTP.
			return &ForgotResult{
				Message: "Email delivery failed; use the token below to reset your password.",
				Token:   token,
			}, nil
		}
		return nil, &errcodes.Error{
			HTTPCode: http.StatusInternalServerError,
			Message:  "We couldn't send the reset email. Please contact support.",
			Code:     "email_delivery_failed",
		}
	}

	return &ForgotResult{Message: genericForgotMessage}, nil
}

// Reset redeems a reset token and sets a new password. Wrong, expired, and
// already-used tokens all fail with the same message. The used flag flips via
// a conditional update in the same transaction as the password write, so a
// token can never be redeemed twice even under concurrent requests.
func (svc *Service) Reset(ctx context.Context, token, newPassword string) error {
	if strength := ValidateStrength(newPassword); !strength.IsValid {
		return errcodes.ValidationError(strings.Join(strength.Feedback, " "))
	}

	hash, err := auth.HashPassword(newPassword, svc.cfg.BcryptResetCost)
	if err != nil {
		return err
	}

	return svc.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		reset := &models.PasswordReset{}
		err := tx.NewSelect().
			Model(reset).
			Where("token = ?", token).
			Where("used = ?", false).
			Where("expires_at > ?", time.Now()).
			Scan(ctx)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return errcodes.ValidationError("Invalid or expired reset token.")
			}
			return errors.WithStack(err)
		}

		res, err := tx.NewUpdate().
			Model((*models.PasswordReset)(nil)).
			Set("used = ?", true).
			Where("id = ?", reset.ID).
			Where("used = ?", false).
			Where("expires_at > ?", time.Now()).
			Exec(ctx)
		if err != nil {
			return errors.WithStack(err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return errcodes.ValidationError("Invalid or expired reset token.")
		}

		_, err = tx.NewUpdate().
			Model((*models.User)(nil)).
			Set("password_hash = ?", hash).
			Set("updated_at = CURRENT_TIMESTAMP").
			Where("id = ?", reset.UserID).
			Exec(ctx)
		return errors.WithStack(err)
	})
}

// Change updates an authenticated user's password after verifying the current
// one.
func (svc *Service) Change(ctx context.Context, userID int, currentPassword, newPassword string) error {
	user := &models.User{}
	err := svc.db.NewSelect().
		Model(user).
		Where("u.id = ?", userID).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return errcodes.NotFound("User")
		}
		return errors.WithStack(err)
	}

	if !auth.CheckPassword(currentPassword, user.PasswordHash) {
		return errcodes.Unauthorized("Current password is incorrect")
	}
	// Strength feedback first; the sameness check only matters for passwords
	// that would otherwise be accepted.
	if strength := ValidateStrength(newPassword); !strength.IsValid {
		return errcodes.ValidationError(strings.Join(strength.Feedback, " "))
	}
	if auth.CheckPassword(newPassword, user.PasswordHash) {
		return errcodes.ValidationError("New password must be different from your current password.")
	}

	hash, err := auth.HashPassword(newPassword, svc.cfg.BcryptCost)
	if err != nil {
		return err
	}

	_, err = svc.db.NewUpdate().
		Model((*models.User)(nil)).
		Set("password_hash = ?", hash).
		Set("updated_at = CURRENT_TIMESTAMP").
		Where("id = ?", userID).
		Exec(ctx)
	return errors.WithStack(err)
}

// CleanupExpired deletes reset rows that are used or past expiry. Returns the
// number of rows removed.
func (svc *Service) CleanupExpired(ctx context.Context) (int, error) {
	res, err := svc.db.NewDelete().
		Model((*models.PasswordReset)(nil)).
		WhereGroup(" AND ", func(q *bun.DeleteQuery) *bun.DeleteQuery {
			return q.
				Where("used = ?", true).
				WhereOr("expires_at <= ?", time.Now())
		}).
		Exec(ctx)
	if err != nil {
		return 0, errors.WithStack(err)
	}
	deleted, _ := res.RowsAffected()
	return int(deleted), nil
}

// generateToken returns a 32-byte cryptographically random token, hex-encoded.
func generateToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", errors.WithStack(err)
	}
	return hex.EncodeToString(buf), nil
}
