package books

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"
	"github.com/tomebooks/tome/pkg/errcodes"
	"github.com/tomebooks/tome/pkg/models"
	"github.com/uptrace/bun"
)

// Service handles catalog reads and writes. Availability is not touched here;
// the bookings service owns that flag.
type Service struct {
	db *bun.DB
}

// NewService creates a new books service.
func NewService(db *bun.DB) *Service {
	return &Service{db: db}
}

// CreateOptions contains options for adding a book to the catalog.
type CreateOptions struct {
	Title        string
	Author       string
	Description  *string
	ThumbnailURL *string
	Rating       *float64
	UploaderID   int
}

// Create adds a book to the catalog. New books start available.
func (svc *Service) Create(ctx context.Context, opts CreateOptions) (*models.Book, error) {
	now := time.Now()
	book := &models.Book{
		CreatedAt:    now,
		UpdatedAt:    now,
		Title:        opts.Title,
		Author:       opts.Author,
		Description:  opts.Description,
		ThumbnailURL: opts.ThumbnailURL,
		Rating:       opts.Rating,
		UploaderID:   opts.UploaderID,
		IsAvailable:  true,
	}

	if _, err := svc.db.NewInsert().Model(book).Exec(ctx); err != nil {
		return nil, errors.WithStack(err)
	}

	return svc.Retrieve(ctx, book.ID)
}

// Retrieve gets a book by ID with its uploader.
func (svc *Service) Retrieve(ctx context.Context, id int) (*models.Book, error) {
	book := &models.Book{}
	err := svc.db.NewSelect().
		Model(book).
		Relation("Uploader").
		Where("b.id = ?", id).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errcodes.NotFound("Book")
		}
		return nil, errors.WithStack(err)
	}
	return book, nil
}

// ListOptions contains options for listing books.
type ListOptions struct {
	// Search matches title or author, case-insensitive substring.
	Search      *string
	IsAvailable *bool
	Page        int
	Limit       int
}

// List returns a page of books plus the total count.
func (svc *Service) List(ctx context.Context, opts ListOptions) ([]*models.Book, int, error) {
	if opts.Page < 1 {
		opts.Page = 1
	}
	if opts.Limit < 1 {
		opts.Limit = 10
	}
	if opts.Limit > 100 {
		opts.Limit = 100
	}

	books := []*models.Book{}

	q := svc.db.NewSelect().
		Model(&books).
		Relation("Uploader").
		Order("b.created_at DESC").
		Limit(opts.Limit).
		Offset((opts.Page - 1) * opts.Limit)

	if opts.Search != nil && *opts.Search != "" {
		pattern := "%" + *opts.Search + "%"
		q = q.WhereGroup(" AND ", func(sq *bun.SelectQuery) *bun.SelectQuery {
			return sq.
				Where("b.title LIKE ? COLLATE NOCASE", pattern).
				WhereOr("b.author LIKE ? COLLATE NOCASE", pattern)
		})
	}
	if opts.IsAvailable != nil {
		q = q.Where("b.is_available = ?", *opts.IsAvailable)
	}

	total, err := q.ScanAndCount(ctx)
	if err != nil {
		return nil, 0, errors.WithStack(err)
	}

	return books, total, nil
}

// UpdateOptions contains options for updating a book. Nil fields are left
// unchanged.
type UpdateOptions struct {
	Title        *string
	Author       *string
	Description  *string
	ThumbnailURL *string
	Rating       *float64
}

// Update applies a partial update to a book.
func (svc *Service) Update(ctx context.Context, id int, opts UpdateOptions) (*models.Book, error) {
	book, err := svc.Retrieve(ctx, id)
	if err != nil {
		return nil, err
	}

	if opts.Title != nil {
		book.Title = *opts.Title
	}
	if opts.Author != nil {
		book.Author = *opts.Author
	}
	if opts.Description != nil {
		book.Description = opts.Description
	}
	if opts.ThumbnailURL != nil {
		book.ThumbnailURL = opts.ThumbnailURL
	}
	if opts.Rating != nil {
		book.Rating = opts.Rating
	}
	book.UpdatedAt = time.Now()

	if _, err := svc.db.NewUpdate().Model(book).WherePK().Exec(ctx); err != nil {
		return nil, errors.WithStack(err)
	}

	return svc.Retrieve(ctx, id)
}

// Delete removes a book from the catalog. Books with active bookings can't be
// removed; the bookings must resolve first.
func (svc *Service) Delete(ctx context.Context, id int) error {
	return svc.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		exists, err := tx.NewSelect().
			Model((*models.Book)(nil)).
			Where("b.id = ?", id).
			Exists(ctx)
		if err != nil {
			return errors.WithStack(err)
		}
		if !exists {
			return errcodes.NotFound("Book")
		}

		active, err := tx.NewSelect().
			Model((*models.Booking)(nil)).
			Where("book_id = ?", id).
			Where("status IN (?)", bun.In([]models.BookingStatus{models.BookingPending, models.BookingApproved, models.BookingOverdue})).
			Exists(ctx)
		if err != nil {
			return errors.WithStack(err)
		}
		if active {
			return errcodes.Conflict("Book has active bookings and cannot be deleted.")
		}

		_, err = tx.NewDelete().
			Model((*models.Book)(nil)).
			Where("id = ?", id).
			Exec(ctx)
		return errors.WithStack(err)
	})
}
