package calendar

import (
	"context"
	"fmt"
	"time"

	"github.com/serenispa/booking-engine/internal/model"
)

// EnsureEvent creates the mirrored calendar event for a booking unless
// one already exists.  Before inserting it searches the target day for
// an event whose description embeds the same booking identifier and
// returns that identifier instead of creating a duplicate.  The
// check-then-insert is not atomic; true concurrent creation for the
// same booking can still produce duplicates, which the reconciliation
// sweep surfaces for manual resolution.
func (c *Client) EnsureEvent(ctx context.Context, b model.Booking) (string, error) {
	loc, err := c.location()
	if err != nil {
		return "", err
	}
	start, err := b.StartAt(loc)
	if err != nil {
		return "", err
	}

	dayStart := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, loc)
	existing, err := c.ListEvents(ctx, dayStart, dayStart.AddDate(0, 0, 1))
	if err != nil {
		return "", err
	}
	for _, ev := range existing {
		if model.ExtractBookingRef(ev.Description) == b.BookingID {
			return ev.ID, nil
		}
	}

	created, err := c.InsertEvent(ctx, EventForBooking(b, start))
	if err != nil {
		return "", err
	}
	return created.ID, nil
}

// EventForBooking renders the calendar mirror of a booking.  The
// description embeds the booking identifier verbatim; it is the only
// join key between the two stores.
func EventForBooking(b model.Booking, start time.Time) model.Event {
	return model.Event{
		Summary:     fmt.Sprintf("%s - %s", b.Service, b.Name),
		Description: fmt.Sprintf("%s\n%s (%s)", model.BookingRef(b.BookingID), b.Name, b.Email),
		Start:       start,
		End:         start.Add(b.Duration()),
	}
}

// EventForBlock renders the calendar mirror of a blocked interval with
// a distinguishable title so operators can tell blocks from bookings at
// a glance.
func EventForBlock(blk model.Block, start, end time.Time) model.Event {
	summary := "Blocked"
	if blk.Reason != "" {
		summary = "Blocked: " + blk.Reason
	}
	return model.Event{
		Summary:     summary,
		Description: model.BookingRef(blk.BlockID),
		Start:       start,
		End:         end,
	}
}
