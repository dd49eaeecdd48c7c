package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

type sentMail struct {
	auth string
	req  mailRequest
}

func fakeProvider(t *testing.T, status int) (*httptest.Server, *[]sentMail) {
	t.Helper()
	var sent []sentMail
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req mailRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("provider got bad body: %v", err)
		}
		sent = append(sent, sentMail{auth: r.Header.Get("Authorization"), req: req})
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv, &sent
}

func TestSendBookingConfirmed(t *testing.T) {
	srv, sent := fakeProvider(t, http.StatusOK)
	m := NewMailClient(srv.URL, "key-123", "bookings@serenispa.example", time.Second)

	ev := BookingConfirmedEvent{
		BookingID: "BK-2025060210-AAAAAAAAAA",
		Name:      "Ada",
		Email:     "ada@example.com",
		Service:   "Deep Tissue",
		Date:      "2025-06-02",
		Time:      "10:00",
		Duration:  60,
	}
	if err := m.SendBookingConfirmed(context.Background(), ev); err != nil {
		t.Fatalf("SendBookingConfirmed: %v", err)
	}
	if len(*sent) != 1 {
		t.Fatalf("provider received %d messages, want 1", len(*sent))
	}
	got := (*sent)[0]
	if got.auth != "Bearer key-123" {
		t.Errorf("auth header = %q", got.auth)
	}
	if got.req.To != "ada@example.com" {
		t.Errorf("to = %q", got.req.To)
	}
	if !strings.Contains(got.req.Text, ev.BookingID) {
		t.Errorf("confirmation text missing booking reference: %q", got.req.Text)
	}
}

func TestSendOTPIncludesCodeAndExpiry(t *testing.T) {
	srv, sent := fakeProvider(t, http.StatusOK)
	m := NewMailClient(srv.URL, "key-123", "bookings@serenispa.example", time.Second)

	if err := m.SendOTP(context.Background(), "ada@example.com", "042137", 10*time.Minute); err != nil {
		t.Fatalf("SendOTP: %v", err)
	}
	text := (*sent)[0].req.Text
	if !strings.Contains(text, "042137") {
		t.Errorf("code missing from message: %q", text)
	}
	if !strings.Contains(text, "10 minutes") {
		t.Errorf("expiry missing from message: %q", text)
	}
}

func TestSendSurfacesProviderErrors(t *testing.T) {
	srv, _ := fakeProvider(t, http.StatusBadGateway)
	m := NewMailClient(srv.URL, "key-123", "bookings@serenispa.example", time.Second)

	if err := m.Send(context.Background(), "ada@example.com", "s", "t"); err == nil {
		t.Fatal("5xx from provider did not error")
	}
}

func TestSendNotConfigured(t *testing.T) {
	m := NewMailClient("", "", "", time.Second)
	err := m.Send(context.Background(), "ada@example.com", "s", "t")
	if !errors.Is(err, ErrMailNotConfigured) {
		t.Fatalf("err = %v, want ErrMailNotConfigured", err)
	}
}
