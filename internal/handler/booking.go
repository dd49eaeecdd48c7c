package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/serenispa/booking-engine/internal/booking"
	"github.com/serenispa/booking-engine/internal/ledger"
	"github.com/serenispa/booking-engine/internal/model"
)

// BookingHandler serves booking creation and self-service management.
// Management routes sit behind ManageAuth, so a request reaching Update
// or Cancel has already proven ownership of the :id booking.
type BookingHandler struct {
	Bookings *booking.Service
}

func NewBookingHandler(bookings *booking.Service) *BookingHandler {
	if bookings == nil {
		panic("nil booking service passed to NewBookingHandler")
	}
	return &BookingHandler{Bookings: bookings}
}

type createBookingRequest struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	Service    string `json:"service"`
	Category   string `json:"category"`
	Duration   int    `json:"duration_min"`
	Date       string `json:"date"`
	Time       string `json:"time"`
	TotalCents int64  `json:"total_cents"`
}

// Create handles POST /v1/bookings.  On success it returns 201 with the
// booking identifier the customer needs for any later management; a
// taken slot yields 409 so the client can refresh availability and
// offer alternatives.
func (h *BookingHandler) Create(c echo.Context) error {
	var body createBookingRequest
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	b, err := h.Bookings.Create(c.Request().Context(), booking.CreateInput{
		Name:        body.Name,
		Email:       body.Email,
		Phone:       body.Phone,
		Service:     body.Service,
		Category:    body.Category,
		DurationMin: body.Duration,
		Date:        body.Date,
		Time:        body.Time,
		TotalCents:  body.TotalCents,
	})
	if err != nil {
		return bookingError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"booking_id": b.BookingID,
		"status":     b.Status,
		"date":       b.Date,
		"time":       b.Time,
	})
}

// Get handles GET /v1/bookings/:id?email=.  The identifier and the
// email together form the ownership proof; a wrong pair returns the
// same 404 whether the booking exists or not.
func (h *BookingHandler) Get(c echo.Context) error {
	b, err := h.Bookings.Get(c.Request().Context(), c.Param("id"), c.QueryParam("email"))
	if err != nil {
		return bookingError(c, err)
	}
	return c.JSON(http.StatusOK, b)
}

type updateBookingRequest struct {
	Date     *string `json:"date"`
	Time     *string `json:"time"`
	Duration *int    `json:"duration_min"`
	Status   *string `json:"status"`
}

// Update handles PATCH /v1/bookings/:id behind manage auth.  Reschedules
// re-run the conflict check excluding the booking itself, so moving a
// booking within its own occupied window always works.
func (h *BookingHandler) Update(c echo.Context) error {
	ctx := c.Request().Context()
	b, err := h.Bookings.AdminGet(ctx, c.Param("id"))
	if err != nil {
		return bookingError(c, err)
	}
	var body updateBookingRequest
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	changes := model.BookingChanges{
		Date:        body.Date,
		Time:        body.Time,
		DurationMin: body.Duration,
		Status:      body.Status,
	}
	if changes.Empty() {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "no changes supplied"})
	}
	if err := h.Bookings.Update(ctx, b, changes); err != nil {
		return bookingError(c, err)
	}
	updated, err := h.Bookings.AdminGet(ctx, b.BookingID)
	if err != nil {
		return bookingError(c, err)
	}
	return c.JSON(http.StatusOK, updated)
}

// Cancel handles DELETE /v1/bookings/:id behind manage auth.  The
// record is kept with a Cancelled status; only the calendar mirror is
// removed.
func (h *BookingHandler) Cancel(c echo.Context) error {
	ctx := c.Request().Context()
	b, err := h.Bookings.AdminGet(ctx, c.Param("id"))
	if err != nil {
		return bookingError(c, err)
	}
	if err := h.Bookings.Cancel(ctx, b); err != nil {
		return bookingError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// AdminGet handles GET /v1/admin/bookings/:id behind admin auth.  No
// ownership proof is required.
func (h *BookingHandler) AdminGet(c echo.Context) error {
	b, err := h.Bookings.AdminGet(c.Request().Context(), c.Param("id"))
	if err != nil {
		return bookingError(c, err)
	}
	return c.JSON(http.StatusOK, b)
}

func bookingError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, booking.ErrValidation):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	case errors.Is(err, booking.ErrConflict):
		return c.JSON(http.StatusConflict, echo.Map{"error": "requested time is no longer available"})
	case errors.Is(err, booking.ErrForbidden):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "booking not found"})
	case errors.Is(err, ledger.ErrNotConfigured):
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "booking backend not configured"})
	default:
		c.Logger().Errorf("booking: %v", err)
		return c.JSON(http.StatusBadGateway, echo.Map{"error": "booking backend unavailable"})
	}
}
