package bookings

import (
	"context"
	"database/sql"
	"math"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/tomebooks/tome/pkg/config"
	"github.com/tomebooks/tome/pkg/errcodes"
	"github.com/tomebooks/tome/pkg/models"
	"github.com/uptrace/bun"
)

// Service owns the booking lifecycle and the paired book availability flag.
// All multi-row transitions run in a single transaction so a crash can never
// leave a book unavailable without an approved booking, or the reverse.
type Service struct {
	db  *bun.DB
	cfg *config.Config
}

// NewService creates a new bookings service.
func NewService(db *bun.DB, cfg *config.Config) *Service {
	return &Service{db: db, cfg: cfg}
}

// CreateOptions contains options for creating a booking.
type CreateOptions struct {
	UserID     int
	BookID     int
	BorrowDate time.Time
	ReturnDate time.Time
}

// Create requests a booking for a book. The booking starts PENDING and the
// book stays available to other users; approval is the reservation commit
// point. The partial unique index on (user_id, book_id) for active statuses
// backs the duplicate check under concurrent requests.
func (svc *Service) Create(ctx context.Context, opts CreateOptions) (*models.Booking, error) {
	if !opts.ReturnDate.After(opts.BorrowDate) {
		return nil, errcodes.ValidationError(`"return_date" must be after "borrow_date"`)
	}

	booking := &models.Booking{
		UserID:     opts.UserID,
		BookID:     opts.BookID,
		Status:     models.BookingPending,
		BorrowDate: opts.BorrowDate,
		ReturnDate: opts.ReturnDate,
	}

	err := svc.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		book := &models.Book{}
		err := tx.NewSelect().
			Model(book).
			Where("b.id = ?", opts.BookID).
			Scan(ctx)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return errcodes.NotFound("Book")
			}
			return errors.WithStack(err)
		}

		if !book.IsAvailable {
			return errcodes.Conflict("Book is not available for booking.")
		}

		exists, err := tx.NewSelect().
			Model((*models.Booking)(nil)).
			Where("user_id = ?", opts.UserID).
			Where("book_id = ?", opts.BookID).
			Where("status IN (?)", bun.In([]models.BookingStatus{models.BookingPending, models.BookingApproved})).
			Exists(ctx)
		if err != nil {
			return errors.WithStack(err)
		}
		if exists {
			return errcodes.Conflict("You already have a pending or approved booking for this book.")
		}

		now := time.Now()
		booking.CreatedAt = now
		booking.UpdatedAt = now

		_, err = tx.NewInsert().Model(booking).Exec(ctx)
		if err != nil {
			// The partial unique index catches the race the existence check
			// can miss between concurrent requests.
			if isUniqueViolation(err) {
				return errcodes.Conflict("You already have a pending or approved booking for this book.")
			}
			return errors.WithStack(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return svc.Retrieve(ctx, booking.ID)
}

// UpdateStatus transitions a PENDING booking to APPROVED or REJECTED.
// Approval reserves the book with a conditional write in the same
// transaction, so of several pending bookings on one book only the first
// approval wins. Rejection never touches availability: a pending booking
// holds no reservation to release.
func (svc *Service) UpdateStatus(ctx context.Context, id int, status models.BookingStatus) (*models.Booking, error) {
	if status != models.BookingApproved && status != models.BookingRejected {
		return nil, errcodes.ValidationError(`"status" must be one of the following: "APPROVED", "REJECTED"`)
	}

	err := svc.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		booking := &models.Booking{}
		err := tx.NewSelect().
			Model(booking).
			Where("bkg.id = ?", id).
			Scan(ctx)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return errcodes.NotFound("Booking")
			}
			return errors.WithStack(err)
		}

		switch booking.Status {
		case models.BookingPending:
			// the only status an admin decision applies to
		case models.BookingApproved, models.BookingRejected, models.BookingReturned, models.BookingOverdue:
			return errcodes.InvalidState("Only pending bookings can be approved or rejected.")
		}

		if status == models.BookingApproved {
			res, err := tx.NewUpdate().
				Model((*models.Book)(nil)).
				Set("is_available = ?", false).
				Set("updated_at = CURRENT_TIMESTAMP").
				Where("id = ?", booking.BookID).
				Where("is_available = ?", true).
				Exec(ctx)
			if err != nil {
				return errors.WithStack(err)
			}
			reserved, err := res.RowsAffected()
			if err != nil {
				return errors.WithStack(err)
			}
			if reserved == 0 {
				return errcodes.Conflict("Book is not available for booking.")
			}
		}

		_, err = tx.NewUpdate().
			Model((*models.Booking)(nil)).
			Set("status = ?", status).
			Set("updated_at = CURRENT_TIMESTAMP").
			Where("id = ?", id).
			Exec(ctx)
		return errors.WithStack(err)
	})
	if err != nil {
		return nil, err
	}

	return svc.Retrieve(ctx, id)
}

// ReturnOptions contains options for returning a booking.
type ReturnOptions struct {
	// ActualReturnDate defaults to the current time.
	ActualReturnDate *time.Time
}

// Return completes an APPROVED (or swept OVERDUE) booking: records the actual
// return date, computes the overdue fee, and frees the book. One transaction.
func (svc *Service) Return(ctx context.Context, id int, opts ReturnOptions) (*models.Booking, error) {
	actual := time.Now()
	if opts.ActualReturnDate != nil {
		actual = *opts.ActualReturnDate
	}

	err := svc.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		booking := &models.Booking{}
		err := tx.NewSelect().
			Model(booking).
			Where("bkg.id = ?", id).
			Scan(ctx)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return errcodes.NotFound("Booking")
			}
			return errors.WithStack(err)
		}

		switch booking.Status {
		case models.BookingApproved, models.BookingOverdue:
			// returnable
		case models.BookingPending, models.BookingRejected, models.BookingReturned:
			return errcodes.InvalidState("Only approved bookings can be returned.")
		}

		fee := OverdueFee(booking.ReturnDate, actual, svc.cfg.OverdueFeePerDay)

		_, err = tx.NewUpdate().
			Model((*models.Booking)(nil)).
			Set("status = ?", models.BookingReturned).
			Set("actual_return_date = ?", actual).
			Set("overdue_fee = ?", fee).
			Set("updated_at = CURRENT_TIMESTAMP").
			Where("id = ?", id).
			Exec(ctx)
		if err != nil {
			return errors.WithStack(err)
		}

		_, err = tx.NewUpdate().
			Model((*models.Book)(nil)).
			Set("is_available = ?", true).
			Set("updated_at = CURRENT_TIMESTAMP").
			Where("id = ?", booking.BookID).
			Exec(ctx)
		return errors.WithStack(err)
	})
	if err != nil {
		return nil, err
	}

	return svc.Retrieve(ctx, id)
}

// Delete cancels a booking. Only PENDING bookings can be cancelled; a pending
// booking never altered the book's availability, so no book write is needed.
// NotFound and InvalidState are distinct so callers can tell them apart.
func (svc *Service) Delete(ctx context.Context, id int) error {
	return svc.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		booking := &models.Booking{}
		err := tx.NewSelect().
			Model(booking).
			Where("bkg.id = ?", id).
			Scan(ctx)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return errcodes.NotFound("Booking")
			}
			return errors.WithStack(err)
		}

		if booking.Status != models.BookingPending {
			return errcodes.InvalidState("Only pending bookings can be cancelled.")
		}

		_, err = tx.NewDelete().
			Model((*models.Booking)(nil)).
			Where("id = ?", id).
			Exec(ctx)
		return errors.WithStack(err)
	})
}

// Retrieve gets a booking by ID with its user and book.
func (svc *Service) Retrieve(ctx context.Context, id int) (*models.Booking, error) {
	booking := &models.Booking{}
	err := svc.db.NewSelect().
		Model(booking).
		Relation("User").
		Relation("Book").
		Where("bkg.id = ?", id).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errcodes.NotFound("Booking")
		}
		return nil, errors.WithStack(err)
	}
	return booking, nil
}

// ListOptions contains options for listing bookings.
type ListOptions struct {
	UserID *int
	BookID *int
	Status *models.BookingStatus
	// Search matches user name/email or book title/author, case-insensitive.
	Search *string
	Page   int
	Limit  int
}

// List returns a page of bookings plus the total count.
func (svc *Service) List(ctx context.Context, opts ListOptions) ([]*models.Booking, int, error) {
	if opts.Page < 1 {
		opts.Page = 1
	}
	if opts.Limit < 1 {
		opts.Limit = 10
	}
	if opts.Limit > 100 {
		opts.Limit = 100
	}

	bookings := []*models.Booking{}

	q := svc.db.NewSelect().
		Model(&bookings).
		Relation("User").
		Relation("Book").
		Order("bkg.created_at DESC").
		Limit(opts.Limit).
		Offset((opts.Page - 1) * opts.Limit)

	if opts.UserID != nil {
		q = q.Where("bkg.user_id = ?", *opts.UserID)
	}
	if opts.BookID != nil {
		q = q.Where("bkg.book_id = ?", *opts.BookID)
	}
	if opts.Status != nil {
		q = q.Where("bkg.status = ?", *opts.Status)
	}
	if opts.Search != nil && *opts.Search != "" {
		pattern := "%" + *opts.Search + "%"
		q = q.
			Join("JOIN users AS usr ON usr.id = bkg.user_id").
			Join("JOIN books AS bk ON bk.id = bkg.book_id").
			WhereGroup(" AND ", func(sq *bun.SelectQuery) *bun.SelectQuery {
				return sq.
					Where("usr.name LIKE ? COLLATE NOCASE", pattern).
					WhereOr("usr.email LIKE ? COLLATE NOCASE", pattern).
					WhereOr("bk.title LIKE ? COLLATE NOCASE", pattern).
					WhereOr("bk.author LIKE ? COLLATE NOCASE", pattern)
			})
	}

	total, err := q.ScanAndCount(ctx)
	if err != nil {
		return nil, 0, errors.WithStack(err)
	}

	return bookings, total, nil
}

// MarkOverdue transitions APPROVED bookings whose return date has passed to
// OVERDUE. Availability is untouched; the book is still out. Returns the
// number of bookings marked.
func (svc *Service) MarkOverdue(ctx context.Context, now time.Time) (int, error) {
	res, err := svc.db.NewUpdate().
		Model((*models.Booking)(nil)).
		Set("status = ?", models.BookingOverdue).
		Set("updated_at = CURRENT_TIMESTAMP").
		Where("status = ?", models.BookingApproved).
		Where("return_date < ?", now).
		Exec(ctx)
	if err != nil {
		return 0, errors.WithStack(err)
	}
	marked, _ := res.RowsAffected()
	return int(marked), nil
}

// OverdueFee computes the fee for returning a book after its due date.
// Partial days count as full days late; on-time returns owe nothing.
func OverdueFee(due, actual time.Time, perDay float64) float64 {
	if !actual.After(due) {
		return 0
	}
	days := math.Ceil(actual.Sub(due).Hours() / 24)
	return days * perDay
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
