package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/serenispa/booking-engine/internal/auth"
	"github.com/serenispa/booking-engine/internal/booking"
	"github.com/serenispa/booking-engine/internal/otp"
)

// VerifyHandler runs the one-time code exchange that turns knowledge of
// a booking identifier plus its email into a scoped manage token.
type VerifyHandler struct {
	Bookings  *booking.Service
	Codes     *otp.Service
	JWTSecret string
	ManageTTL time.Duration
}

func NewVerifyHandler(bookings *booking.Service, codes *otp.Service, jwtSecret string, manageTTL time.Duration) *VerifyHandler {
	if bookings == nil || codes == nil {
		panic("nil dependency passed to NewVerifyHandler")
	}
	return &VerifyHandler{Bookings: bookings, Codes: codes, JWTSecret: jwtSecret, ManageTTL: manageTTL}
}

// Request handles POST /v1/bookings/:id/verify.  A code is issued only
// when the identifier and email match a booking, but the response is
// 202 either way: the endpoint must not confirm whether a booking
// exists for someone probing identifiers.
func (h *VerifyHandler) Request(c echo.Context) error {
	var body struct {
		Email string `json:"email"`
	}
	if err := c.Bind(&body); err != nil || body.Email == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email is required"})
	}
	ctx := c.Request().Context()
	b, err := h.Bookings.Get(ctx, c.Param("id"), body.Email)
	if err != nil {
		if !errors.Is(err, booking.ErrForbidden) && !errors.Is(err, booking.ErrValidation) {
			c.Logger().Errorf("verify request: %v", err)
		}
	} else if err := h.Codes.Issue(ctx, b.BookingID, b.Email); err != nil {
		c.Logger().Errorf("verify request: issue code for %s: %v", b.BookingID, err)
	}
	return c.JSON(http.StatusAccepted, echo.Map{
		"message": "if the booking exists, a verification code has been sent",
	})
}

// Confirm handles POST /v1/bookings/:id/verify/confirm.  The correct
// code yields a short-lived manage token bound to this booking.
func (h *VerifyHandler) Confirm(c echo.Context) error {
	var body struct {
		Code string `json:"code"`
	}
	if err := c.Bind(&body); err != nil || body.Code == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "code is required"})
	}
	bookingID := c.Param("id")
	if err := h.Codes.Verify(c.Request().Context(), bookingID, body.Code); err != nil {
		if errors.Is(err, otp.ErrInvalidCode) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid or expired code"})
		}
		c.Logger().Errorf("verify confirm: %v", err)
		return c.JSON(http.StatusBadGateway, echo.Map{"error": "verification temporarily unavailable"})
	}
	tok, err := auth.NewManageToken(h.JWTSecret, bookingID, h.ManageTTL)
	if err != nil {
		c.Logger().Errorf("verify confirm: mint token: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "token issuance failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"token":      tok.Token,
		"expires_at": tok.Exp,
	})
}
