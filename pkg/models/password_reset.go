package models

import (
	"time"

	"github.com/uptrace/bun"
)

type PasswordReset struct {
	bun.BaseModel `bun:"table:password_resets,alias:pr"`

	ID        int       `bun:",pk,nullzero" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UserID    int       `json:"user_id"`
	Token     string    `bun:",nullzero" json:"-"` // opaque, single-use; never serialized
	ExpiresAt time.Time `json:"expires_at"`
	Used      bool      `json:"used"`

	User *User `bun:"rel:belongs-to,join:user_id=id" json:"user,omitempty"`
}

// Redeemable reports whether the token can still be consumed at the given
// time. The conditional UPDATE in the passwords service is the authoritative
// check; this is for display and tests.
func (pr *PasswordReset) Redeemable(now time.Time) bool {
	return !pr.Used && pr.ExpiresAt.After(now)
}
