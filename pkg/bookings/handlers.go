package bookings

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/tomebooks/tome/pkg/auth"
	"github.com/tomebooks/tome/pkg/errcodes"
	"github.com/tomebooks/tome/pkg/models"
)

type handler struct {
	bookingService *Service
}

// create requests a booking for the authenticated user.
func (h *handler) create(c echo.Context) error {
	ctx := c.Request().Context()

	userID, ok := auth.UserIDFromContext(c)
	if !ok {
		return errcodes.Unauthorized("Authentication required")
	}

	params := CreateBookingPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	booking, err := h.bookingService.Create(ctx, CreateOptions{
		UserID:     userID,
		BookID:     params.BookID,
		BorrowDate: params.BorrowDate,
		ReturnDate: params.ReturnDate,
	})
	if err != nil {
		return err
	}

	return errors.WithStack(c.JSON(http.StatusCreated, booking))
}

// list returns bookings across all users. Admin only.
func (h *handler) list(c echo.Context) error {
	ctx := c.Request().Context()

	params := ListBookingsQuery{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	bookings, total, err := h.bookingService.List(ctx, ListOptions{
		UserID: params.UserID,
		BookID: params.BookID,
		Status: params.Status,
		Search: params.Search,
		Page:   params.Page,
		Limit:  params.Limit,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, buildListResponse(bookings, total, params.Page, params.Limit)))
}

// listMine returns the authenticated user's own bookings.
func (h *handler) listMine(c echo.Context) error {
	ctx := c.Request().Context()

	userID, ok := auth.UserIDFromContext(c)
	if !ok {
		return errcodes.Unauthorized("Authentication required")
	}

	params := ListBookingsQuery{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	bookings, total, err := h.bookingService.List(ctx, ListOptions{
		UserID: &userID,
		Status: params.Status,
		Page:   params.Page,
		Limit:  params.Limit,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, buildListResponse(bookings, total, params.Page, params.Limit)))
}

// retrieve returns a single booking. Users only see their own; admins see any.
func (h *handler) retrieve(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errcodes.NotFound("Booking")
	}

	booking, err := h.bookingService.Retrieve(ctx, id)
	if err != nil {
		return err
	}

	user, ok := auth.UserFromContext(c)
	if !ok {
		return errcodes.Unauthorized("Authentication required")
	}
	// Hide other users' bookings rather than acknowledging they exist.
	if !user.IsAdmin() && booking.UserID != user.ID {
		return errcodes.NotFound("Booking")
	}

	return errors.WithStack(c.JSON(http.StatusOK, booking))
}

// updateStatus approves or rejects a pending booking. Admin only.
func (h *handler) updateStatus(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errcodes.NotFound("Booking")
	}

	params := UpdateBookingStatusPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	booking, err := h.bookingService.UpdateStatus(ctx, id, params.Status)
	if err != nil {
		return err
	}

	return errors.WithStack(c.JSON(http.StatusOK, booking))
}

// returnBooking marks a booking as returned and frees the book.
func (h *handler) returnBooking(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errcodes.NotFound("Booking")
	}

	c.Set("disallow_empty_body", false)
	params := ReturnBookingPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	booking, err := h.bookingService.Retrieve(ctx, id)
	if err != nil {
		return err
	}

	user, ok := auth.UserFromContext(c)
	if !ok {
		return errcodes.Unauthorized("Authentication required")
	}
	if !user.IsAdmin() && booking.UserID != user.ID {
		return errcodes.NotFound("Booking")
	}

	booking, err = h.bookingService.Return(ctx, id, ReturnOptions{
		ActualReturnDate: params.ActualReturnDate,
	})
	if err != nil {
		return err
	}

	return errors.WithStack(c.JSON(http.StatusOK, booking))
}

// cancel deletes a pending booking.
func (h *handler) cancel(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errcodes.NotFound("Booking")
	}

	booking, err := h.bookingService.Retrieve(ctx, id)
	if err != nil {
		return err
	}

	user, ok := auth.UserFromContext(c)
	if !ok {
		return errcodes.Unauthorized("Authentication required")
	}
	if !user.IsAdmin() && booking.UserID != user.ID {
		return errcodes.NotFound("Booking")
	}

	if err := h.bookingService.Delete(ctx, id); err != nil {
		return err
	}

	return errors.WithStack(c.NoContent(http.StatusNoContent))
}

type listResponse struct {
	Bookings   []*models.Booking `json:"bookings"`
	Total      int               `json:"total"`
	Page       int               `json:"page"`
	Limit      int               `json:"limit"`
	TotalPages int               `json:"total_pages"`
}

func buildListResponse(bookings []*models.Booking, total, page, limit int) listResponse {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}
	totalPages := (total + limit - 1) / limit
	return listResponse{
		Bookings:   bookings,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: totalPages,
	}
}
