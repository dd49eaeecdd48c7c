// Package notify delivers customer-facing messages.  Publishing and
// delivery are decoupled through a message broker when one is
// configured: request handlers enqueue small JSON events and a
// background consumer turns them into outbound email.  Without a
// broker the dispatcher falls back to sending directly on a goroutine,
// keeping the fire-and-forget contract either way.
package notify

import "time"

// Queue names.  Durable, declared idempotently by both ends.
const (
	QueueBookingConfirmed = "booking.confirmed"
	QueueOTPIssued        = "otp.issued"
)

// BookingConfirmedEvent is published when a booking is created.  It
// carries enough for the consumer to compose the confirmation message
// without a ledger round trip.
type BookingConfirmedEvent struct {
	BookingID  string `json:"booking_id"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Service    string `json:"service"`
	Date       string `json:"date"`
	Time       string `json:"time"`
	Duration   int    `json:"duration_min"`
	TotalCents int64  `json:"total_cents,omitempty"`
	CreatedAt  string `json:"created_at"`
}

// OTPIssuedEvent is published when a one-time code is generated.  The
// plaintext code travels only through the broker to the consumer; it is
// never persisted.
type OTPIssuedEvent struct {
	Email     string `json:"email"`
	Code      string `json:"code"`
	TTLSec    int    `json:"ttl_sec"`
	IssuedAt  string `json:"issued_at"`
	BookingID string `json:"booking_id,omitempty"`
}

// TTL returns the code lifetime as a duration.
func (e OTPIssuedEvent) TTL() time.Duration {
	return time.Duration(e.TTLSec) * time.Second
}
