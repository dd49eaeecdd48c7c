package model

import (
	"fmt"
	"time"
)

// Booking lifecycle statuses as stored in the ledger.  Cancelled is
// terminal for calendar purposes: the mirrored event is removed but the
// ledger record is retained for bookkeeping.
const (
	StatusPending   = "Pending"
	StatusConfirmed = "Confirmed"
	StatusCancelled = "Cancelled"
	StatusCompleted = "Completed"
)

// Layouts used for the schedule fields.  Date and time-of-day are kept
// as separate strings in the business timezone because that is how the
// ledger stores them and how operators read them.
const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// Booking is the unit of business value: one customer reserving one
// session.  RecordID is the ledger-assigned row identifier and is empty
// until the booking has been persisted.  EventID links the booking to
// its mirrored calendar event and stays empty until mirroring succeeds.
type Booking struct {
	RecordID    string    `json:"-"`
	BookingID   string    `json:"booking_id"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	Phone       string    `json:"phone,omitempty"`
	Service     string    `json:"service"`
	Category    string    `json:"category,omitempty"`
	DurationMin int       `json:"duration_min"`
	Date        string    `json:"date"`
	Time        string    `json:"time"`
	Status      string    `json:"status"`
	EventID     string    `json:"-"`
	TotalCents  int64     `json:"total_cents"`
	CreatedAt   time.Time `json:"created_at,omitempty"`
}

// BookingChanges carries a partial update to a booking.  Nil fields are
// left untouched in the ledger.
type BookingChanges struct {
	Date        *string `json:"date,omitempty"`
	Time        *string `json:"time,omitempty"`
	Status      *string `json:"status,omitempty"`
	DurationMin *int    `json:"duration_min,omitempty"`
}

// Empty reports whether the change set would touch nothing.
func (ch BookingChanges) Empty() bool {
	return ch.Date == nil && ch.Time == nil && ch.Status == nil && ch.DurationMin == nil
}

// Duration returns the session length as a time.Duration.
func (b Booking) Duration() time.Duration {
	return time.Duration(b.DurationMin) * time.Minute
}

// StartAt combines the booking's date and time-of-day into an absolute
// instant in the given business timezone.
func (b Booking) StartAt(loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout+" "+TimeLayout, b.Date+" "+b.Time, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("booking %s has invalid schedule %q %q: %w", b.BookingID, b.Date, b.Time, err)
	}
	return t, nil
}

// EndAt is StartAt plus the session duration.
func (b Booking) EndAt(loc *time.Location) (time.Time, error) {
	start, err := b.StartAt(loc)
	if err != nil {
		return time.Time{}, err
	}
	return start.Add(b.Duration()), nil
}
