package models

import (
	"time"

	"github.com/uptrace/bun"
)

type Book struct {
	bun.BaseModel `bun:"table:books,alias:b"`

	ID           int       `bun:",pk,nullzero" json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	Title        string    `bun:",nullzero" json:"title"`
	Author       string    `bun:",nullzero" json:"author"`
	Description  *string   `json:"description,omitempty"`
	ThumbnailURL *string   `json:"thumbnail_url,omitempty"`
	Rating       *float64  `json:"rating,omitempty"`
	UploaderID   int       `json:"uploader_id"`

	// IsAvailable is false while exactly one APPROVED booking holds this
	// book. Only the bookings service mutates it.
	IsAvailable bool `json:"is_available"`

	Uploader *User `bun:"rel:belongs-to,join:uploader_id=id" json:"uploader,omitempty"`
}
