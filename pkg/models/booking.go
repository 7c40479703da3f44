package models

import (
	"time"

	"github.com/uptrace/bun"
)

// BookingStatus is a closed set of booking lifecycle states.
//
//	PENDING --approve--> APPROVED --return--> RETURNED
//	PENDING --reject---> REJECTED
//	PENDING --cancel---> (deleted)
//	APPROVED --sweep---> OVERDUE --return--> RETURNED
type BookingStatus string

const (
	BookingPending  BookingStatus = "PENDING"
	BookingApproved BookingStatus = "APPROVED"
	BookingRejected BookingStatus = "REJECTED"
	BookingReturned BookingStatus = "RETURNED"
	BookingOverdue  BookingStatus = "OVERDUE"
)

// ValidBookingStatus reports whether s is one of the defined statuses.
func ValidBookingStatus(s BookingStatus) bool {
	switch s {
	case BookingPending, BookingApproved, BookingRejected, BookingReturned, BookingOverdue:
		return true
	}
	return false
}

// Active reports whether the status still lays claim to a book. A user may
// hold at most one active booking per book.
func (s BookingStatus) Active() bool {
	return s == BookingPending || s == BookingApproved
}

// Terminal reports whether no further transitions are expected.
func (s BookingStatus) Terminal() bool {
	return s == BookingRejected || s == BookingReturned
}

type Booking struct {
	bun.BaseModel `bun:"table:bookings,alias:bkg"`

	ID               int           `bun:",pk,nullzero" json:"id"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
	UserID           int           `json:"user_id"`
	BookID           int           `json:"book_id"`
	Status           BookingStatus `bun:",nullzero" json:"status"`
	BorrowDate       time.Time     `json:"borrow_date"`
	ReturnDate       time.Time     `json:"return_date"`
	ActualReturnDate *time.Time    `json:"actual_return_date,omitempty"`
	OverdueFee       float64       `json:"overdue_fee"`

	User *User `bun:"rel:belongs-to,join:user_id=id" json:"user,omitempty"`
	Book *Book `bun:"rel:belongs-to,join:book_id=id" json:"book,omitempty"`
}
