package bookings

import (
	"time"

	"github.com/tomebooks/tome/pkg/models"
)

type CreateBookingPayload struct {
	BookID     int       `json:"book_id" validate:"required,min=1"`
	BorrowDate time.Time `json:"borrow_date" validate:"required"`
	ReturnDate time.Time `json:"return_date" validate:"required,gtfield=BorrowDate"`
}

type UpdateBookingStatusPayload struct {
	Status models.BookingStatus `json:"status" validate:"required,oneof=APPROVED REJECTED"`
}

type ReturnBookingPayload struct {
	// ActualReturnDate defaults to now when omitted.
	ActualReturnDate *time.Time `json:"actual_return_date,omitempty"`
}

type ListBookingsQuery struct {
	Page   int                   `query:"page" json:"page,omitempty" default:"1" validate:"min=1"`
	Limit  int                   `query:"limit" json:"limit,omitempty" default:"10" validate:"min=1,max=100"`
	Status *models.BookingStatus `query:"status" json:"status,omitempty" validate:"omitempty,oneof=PENDING APPROVED REJECTED RETURNED OVERDUE"`
	UserID *int                  `query:"user_id" json:"user_id,omitempty" validate:"omitempty,min=1"`
	BookID *int                  `query:"book_id" json:"book_id,omitempty" validate:"omitempty,min=1"`
	Search *string               `query:"search" json:"search,omitempty" validate:"omitempty,max=100"`
}
