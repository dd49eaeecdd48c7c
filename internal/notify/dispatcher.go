package notify

import (
	"context"
	"log"
	"time"

	"github.com/serenispa/booking-engine/internal/model"
)

// Dispatcher is the single entry point for outbound messages.  With a
// broker URL it publishes events for the background consumer; without
// one it sends directly on a goroutine.  Either way the caller returns
// immediately and delivery failures only reach the log.
type Dispatcher struct {
	amqpURL string
	mail    *MailClient
}

func NewDispatcher(amqpURL string, mail *MailClient) *Dispatcher {
	return &Dispatcher{amqpURL: amqpURL, mail: mail}
}

// BookingConfirmed enqueues or sends the confirmation for a new booking.
func (d *Dispatcher) BookingConfirmed(ctx context.Context, b model.Booking) {
	ev := BookingConfirmedEvent{
		BookingID:  b.BookingID,
		Name:       b.Name,
		Email:      b.Email,
		Service:    b.Service,
		Date:       b.Date,
		Time:       b.Time,
		Duration:   b.DurationMin,
		TotalCents: b.TotalCents,
		CreatedAt:  time.Now().UTC().Format(time.RFC3339),
	}
	if d.amqpURL != "" {
		// Detach from the request context; the caller is not waiting.
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = publish(ctx, d.amqpURL, QueueBookingConfirmed, ev)
		}()
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := d.mail.SendBookingConfirmed(ctx, ev); err != nil {
			log.Printf("notify: booking confirmation for %s: %v", ev.BookingID, err)
		}
	}()
}

// SendOTP delivers a one-time code.  Unlike the confirmation this is
// synchronous when no broker is configured: the issuing flow must know
// delivery failed so it can drop the unanswerable challenge.
func (d *Dispatcher) SendOTP(ctx context.Context, email, code string, ttl time.Duration) error {
	if d.amqpURL != "" {
		ev := OTPIssuedEvent{
			Email:    email,
			Code:     code,
			TTLSec:   int(ttl / time.Second),
			IssuedAt: time.Now().UTC().Format(time.RFC3339),
		}
		return publish(ctx, d.amqpURL, QueueOTPIssued, ev)
	}
	return d.mail.SendOTP(ctx, email, code, ttl)
}
