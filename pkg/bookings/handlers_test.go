package bookings

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tomebooks/tome/pkg/binder"
	"github.com/tomebooks/tome/pkg/errcodes"
	"github.com/tomebooks/tome/pkg/models"
)

func newTestContext(t *testing.T, payload, method, path string) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()

	e := echo.New()
	b, err := binder.New()
	require.NoError(t, err)
	e.Binder = b
	e.HTTPErrorHandler = errcodes.NewHandler().Handle

	req := httptest.NewRequest(method, path, strings.NewReader(payload))
	if payload != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rr := httptest.NewRecorder()
	return e.NewContext(req, rr), rr
}

func contextUser(id int, role models.Role) *models.User {
	return &models.User{
		ID:       id,
		Name:     fmt.Sprintf("User %d", id),
		Email:    fmt.Sprintf("user%d@example.com", id),
		IsActive: true,
		Role:     role,
	}
}

func TestHandler_Create(t *testing.T) {
	t.Parallel()
	svc, db := newTestService(t)
	createTestUser(t, db, 1)
	createTestBook(t, db, 1, true)
	h := &handler{bookingService: svc}

	payload := `{"book_id":1,"borrow_date":"2024-01-01T00:00:00Z","return_date":"2024-01-15T00:00:00Z"}`
	c, rr := newTestContext(t, payload, http.MethodPost, "/bookings")
	c.Set("user_id", 1)
	c.Set("user", contextUser(1, models.RoleUser))

	require.NoError(t, h.create(c))
	assert.Equal(t, http.StatusCreated, rr.Code)

	var resp models.Booking
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, models.BookingPending, resp.Status)
	assert.Equal(t, 1, resp.BookID)
}

func TestHandler_CreateReturnDateBeforeBorrowDate(t *testing.T) {
	t.Parallel()
	svc, db := newTestService(t)
	createTestUser(t, db, 1)
	createTestBook(t, db, 1, true)
	h := &handler{bookingService: svc}

	payload := `{"book_id":1,"borrow_date":"2024-01-15T00:00:00Z","return_date":"2024-01-01T00:00:00Z"}`
	c, _ := newTestContext(t, payload, http.MethodPost, "/bookings")
	c.Set("user_id", 1)

	err := h.create(c)
	require.Error(t, err)

	var errResp *errcodes.Error
	require.ErrorAs(t, err, &errResp)
	assert.Equal(t, http.StatusUnprocessableEntity, errResp.HTTPCode)
}

func TestHandler_CreateDuplicateConflict(t *testing.T) {
	t.Parallel()
	svc, db := newTestService(t)
	createTestUser(t, db, 1)
	createTestBook(t, db, 1, true)
	h := &handler{bookingService: svc}

	mustCreateBooking(t, svc, 1, 1)

	payload := `{"book_id":1,"borrow_date":"2024-02-01T00:00:00Z","return_date":"2024-02-15T00:00:00Z"}`
	c, _ := newTestContext(t, payload, http.MethodPost, "/bookings")
	c.Set("user_id", 1)

	err := h.create(c)
	require.Error(t, err)

	var errResp *errcodes.Error
	require.ErrorAs(t, err, &errResp)
	assert.Equal(t, http.StatusConflict, errResp.HTTPCode)
	assert.Equal(t, "conflict", errResp.Code)
}

func TestHandler_RetrieveHidesOtherUsersBookings(t *testing.T) {
	t.Parallel()
	svc, db := newTestService(t)
	createTestUser(t, db, 1)
	createTestUser(t, db, 2)
	createTestBook(t, db, 1, true)
	h := &handler{bookingService: svc}

	booking := mustCreateBooking(t, svc, 1, 1)

	c, _ := newTestContext(t, "", http.MethodGet, fmt.Sprintf("/bookings/%d", booking.ID))
	c.SetParamNames("id")
	c.SetParamValues(fmt.Sprint(booking.ID))
	c.Set("user_id", 2)
	c.Set("user", contextUser(2, models.RoleUser))

	err := h.retrieve(c)
	require.Error(t, err)
	assert.ErrorIs(t, err, errcodes.NotFound("Booking"))
}

func TestHandler_RetrieveAdminSeesAll(t *testing.T) {
	t.Parallel()
	svc, db := newTestService(t)
	createTestUser(t, db, 1)
	createTestUser(t, db, 2)
	createTestBook(t, db, 1, true)
	h := &handler{bookingService: svc}

	booking := mustCreateBooking(t, svc, 1, 1)

	c, rr := newTestContext(t, "", http.MethodGet, fmt.Sprintf("/bookings/%d", booking.ID))
	c.SetParamNames("id")
	c.SetParamValues(fmt.Sprint(booking.ID))
	c.Set("user_id", 2)
	c.Set("user", contextUser(2, models.RoleAdmin))

	require.NoError(t, h.retrieve(c))
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestHandler_UpdateStatusValidation(t *testing.T) {
	t.Parallel()
	svc, db := newTestService(t)
	createTestUser(t, db, 1)
	createTestBook(t, db, 1, true)
	h := &handler{bookingService: svc}

	booking := mustCreateBooking(t, svc, 1, 1)

	// RETURNED is not an admin decision.
	payload := `{"status":"RETURNED"}`
	c, _ := newTestContext(t, payload, http.MethodPut, fmt.Sprintf("/bookings/%d/status", booking.ID))
	c.SetParamNames("id")
	c.SetParamValues(fmt.Sprint(booking.ID))

	err := h.updateStatus(c)
	require.Error(t, err)

	var errResp *errcodes.Error
	require.ErrorAs(t, err, &errResp)
	assert.Equal(t, http.StatusUnprocessableEntity, errResp.HTTPCode)
}

func TestHandler_ReturnWithoutBody(t *testing.T) {
	t.Parallel()
	svc, db := newTestService(t)
	createTestUser(t, db, 1)
	createTestBook(t, db, 1, true)
	h := &handler{bookingService: svc}

	booking := mustCreateBooking(t, svc, 1, 1)
	_, err := svc.UpdateStatus(context.Background(), booking.ID, models.BookingApproved)
	require.NoError(t, err)

	// An empty body means "returned now".
	c, rr := newTestContext(t, "", http.MethodPut, fmt.Sprintf("/bookings/%d/return", booking.ID))
	c.SetParamNames("id")
	c.SetParamValues(fmt.Sprint(booking.ID))
	c.Set("user_id", 1)
	c.Set("user", contextUser(1, models.RoleUser))

	require.NoError(t, h.returnBooking(c))
	assert.Equal(t, http.StatusOK, rr.Code)

	var resp models.Booking
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, models.BookingReturned, resp.Status)
	require.NotNil(t, resp.ActualReturnDate)
	assert.WithinDuration(t, time.Now(), *resp.ActualReturnDate, time.Minute)
}

func TestHandler_CancelOnlyOwn(t *testing.T) {
	t.Parallel()
	svc, db := newTestService(t)
	createTestUser(t, db, 1)
	createTestUser(t, db, 2)
	createTestBook(t, db, 1, true)
	h := &handler{bookingService: svc}

	booking := mustCreateBooking(t, svc, 1, 1)

	c, _ := newTestContext(t, "", http.MethodDelete, fmt.Sprintf("/bookings/%d", booking.ID))
	c.SetParamNames("id")
	c.SetParamValues(fmt.Sprint(booking.ID))
	c.Set("user_id", 2)
	c.Set("user", contextUser(2, models.RoleUser))

	err := h.cancel(c)
	require.Error(t, err)
	assert.ErrorIs(t, err, errcodes.NotFound("Booking"))

	// Owner can cancel.
	c, rr := newTestContext(t, "", http.MethodDelete, fmt.Sprintf("/bookings/%d", booking.ID))
	c.SetParamNames("id")
	c.SetParamValues(fmt.Sprint(booking.ID))
	c.Set("user_id", 1)
	c.Set("user", contextUser(1, models.RoleUser))

	require.NoError(t, h.cancel(c))
	assert.Equal(t, http.StatusNoContent, rr.Code)
}

func TestHandler_ListMine(t *testing.T) {
	t.Parallel()
	svc, db := newTestService(t)
	createTestUser(t, db, 1)
	createTestUser(t, db, 2)
	createTestBook(t, db, 1, true)
	createTestBook(t, db, 2, true)
	h := &handler{bookingService: svc}

	mine := mustCreateBooking(t, svc, 1, 1)
	mustCreateBooking(t, svc, 2, 2)

	c, rr := newTestContext(t, "", http.MethodGet, "/bookings/my")
	c.Set("user_id", 1)
	c.Set("user", contextUser(1, models.RoleUser))

	require.NoError(t, h.listMine(c))
	assert.Equal(t, http.StatusOK, rr.Code)

	var resp listResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Total)
	require.Len(t, resp.Bookings, 1)
	assert.Equal(t, mine.ID, resp.Bookings[0].ID)
}
