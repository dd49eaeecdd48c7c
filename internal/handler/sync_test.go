package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/serenispa/booking-engine/internal/booking"
	"github.com/serenispa/booking-engine/internal/model"
	"github.com/serenispa/booking-engine/internal/reconcile"
)

type syncLedger struct {
	bookings  []model.Booking
	cancelled []string
}

func (s *syncLedger) LinkedBookings(_ context.Context) ([]model.Booking, error) {
	return s.bookings, nil
}

func (s *syncLedger) UnlinkedBookings(_ context.Context) ([]model.Booking, error) {
	return nil, nil
}

func (s *syncLedger) SetBookingStatus(_ context.Context, recordID, status string) error {
	s.cancelled = append(s.cancelled, recordID)
	return nil
}

func (s *syncLedger) SetBookingEvent(_ context.Context, recordID, eventID string) error {
	return nil
}

func (s *syncLedger) RescheduleBooking(_ context.Context, recordID, date, timeOfDay string) error {
	return nil
}

type syncCal struct{ events []model.Event }

func (s *syncCal) ListEvents(_ context.Context, _, _ time.Time) ([]model.Event, error) {
	return s.events, nil
}

func (s *syncCal) EnsureEvent(_ context.Context, b model.Booking) (string, error) {
	return "ev-" + b.BookingID, nil
}

func (s *syncCal) InsertEvent(_ context.Context, ev model.Event) (model.Event, error) {
	ev.ID = "ev-inserted"
	return ev, nil
}

func syncEngine(led *syncLedger) *reconcile.Engine {
	return reconcile.NewEngine(led, nil, &syncCal{}, booking.Hours{Open: "08:00", Close: "20:00"}, time.UTC)
}

func webhookReq(state, channelID, token string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/v1/calendar/webhook", nil)
	req.Header.Set(headerResourceState, state)
	req.Header.Set(headerChannelID, channelID)
	if token != "" {
		req.Header.Set(headerChannelToken, token)
	}
	return req
}

func orphanedBooking() model.Booking {
	date := time.Now().UTC().AddDate(0, 0, 7).Format(model.DateLayout)
	return model.Booking{
		RecordID:  "recA",
		BookingID: "BK-1",
		Date:      date,
		Time:      "10:00",
		Status:    model.StatusConfirmed,
		EventID:   "ev-gone",
	}
}

func TestWebhookSyncHandshakeDoesNotReconcile(t *testing.T) {
	led := &syncLedger{bookings: []model.Booking{orphanedBooking()}}
	h := NewSyncHandler(syncEngine(led), nil, "")
	e := echo.New()
	e.POST("/v1/calendar/webhook", h.Webhook)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, webhookReq("sync", "chan-1", ""))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if len(led.cancelled) != 0 {
		t.Error("handshake notification caused ledger writes")
	}
}

func TestWebhookExistsTriggersReconcile(t *testing.T) {
	led := &syncLedger{bookings: []model.Booking{orphanedBooking()}}
	h := NewSyncHandler(syncEngine(led), nil, "")
	e := echo.New()
	e.POST("/v1/calendar/webhook", h.Webhook)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, webhookReq("exists", "chan-1", ""))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if len(led.cancelled) != 1 {
		t.Errorf("reconcile did not correct the orphaned booking: %v", led.cancelled)
	}
}

func TestWebhookTokenMismatchIsIgnoredWith200(t *testing.T) {
	led := &syncLedger{bookings: []model.Booking{orphanedBooking()}}
	h := NewSyncHandler(syncEngine(led), nil, "expected-token")
	e := echo.New()
	e.POST("/v1/calendar/webhook", h.Webhook)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, webhookReq("exists", "chan-1", "wrong-token"))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 even on token mismatch", rec.Code)
	}
	if len(led.cancelled) != 0 {
		t.Error("mismatched token still triggered a reconcile")
	}
}

func TestAdminSyncReturnsReport(t *testing.T) {
	led := &syncLedger{bookings: []model.Booking{orphanedBooking()}}
	h := NewSyncHandler(syncEngine(led), nil, "")
	e := echo.New()
	e.POST("/v1/admin/sync", h.AdminSync)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/admin/sync", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	body := decode(t, rec)
	cancelled, _ := body["cancelled"].([]any)
	if len(cancelled) != 1 || cancelled[0].(string) != "BK-1" {
		t.Errorf("report cancelled = %v, want [BK-1]", cancelled)
	}
}
