package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/serenispa/booking-engine/internal/booking"
	"github.com/serenispa/booking-engine/internal/ledger"
)

// SlotsHandler exposes the availability surface.  Both endpoints are
// read only and sit behind the response cache.
type SlotsHandler struct {
	Bookings *booking.Service
}

func NewSlotsHandler(bookings *booking.Service) *SlotsHandler {
	if bookings == nil {
		panic("nil booking service passed to NewSlotsHandler")
	}
	return &SlotsHandler{Bookings: bookings}
}

// GetSlots handles GET /v1/slots?date=YYYY-MM-DD&duration=60.  It
// returns the ordered list of valid start times for the requested
// session length on that date.
func (h *SlotsHandler) GetSlots(c echo.Context) error {
	date := c.QueryParam("date")
	if date == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "date is required"})
	}
	duration, err := strconv.Atoi(c.QueryParam("duration"))
	if err != nil || duration <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "duration must be a positive integer of minutes"})
	}

	slots, err := h.Bookings.Slots(c.Request().Context(), date, duration)
	if err != nil {
		return slotsError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"date":     date,
		"duration": duration,
		"slots":    slots,
		"count":    len(slots),
	})
}

// GetSlotsBatch handles GET /v1/slots/batch?dates=d1,d2,...&duration=60.
// It returns per-date remaining capacity for a multi-day overview.
func (h *SlotsHandler) GetSlotsBatch(c echo.Context) error {
	raw := c.QueryParam("dates")
	if raw == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "dates is required"})
	}
	dates := make([]string, 0)
	for _, d := range strings.Split(raw, ",") {
		if d = strings.TrimSpace(d); d != "" {
			dates = append(dates, d)
		}
	}
	if len(dates) == 0 || len(dates) > 62 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "dates must list between 1 and 62 days"})
	}
	duration, err := strconv.Atoi(c.QueryParam("duration"))
	if err != nil || duration <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "duration must be a positive integer of minutes"})
	}

	days, err := h.Bookings.SlotsBatch(c.Request().Context(), dates, duration)
	if err != nil {
		return slotsError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"days": days})
}

func slotsError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, booking.ErrValidation):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	case errors.Is(err, ledger.ErrNotConfigured):
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "booking backend not configured"})
	default:
		c.Logger().Errorf("slots: %v", err)
		return c.JSON(http.StatusBadGateway, echo.Map{"error": "availability temporarily unavailable"})
	}
}
