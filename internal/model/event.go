package model

import (
	"strings"
	"time"
)

// Transparency values mirror the calendar API: opaque events block time,
// transparent events do not.
const (
	TransparencyOpaque      = "opaque"
	TransparencyTransparent = "transparent"
)

// bookingRefMarker prefixes the booking identifier embedded in an event
// description.  The embedded identifier is the only foreign key between
// the ledger and the calendar, so it must survive every mutation of the
// description verbatim.
const bookingRefMarker = "BookingID: "

// Event is the engine's uniform view of a calendar event.  The ID is
// opaque and assigned by the calendar service.
type Event struct {
	ID           string    `json:"id"`
	Summary      string    `json:"summary"`
	Description  string    `json:"description,omitempty"`
	Start        time.Time `json:"start"`
	End          time.Time `json:"end"`
	Transparency string    `json:"transparency,omitempty"`
}

// Busy reports whether the event blocks time on the calendar.  Events
// without an explicit transparency are treated as busy, matching the
// calendar service's default.
func (e Event) Busy() bool {
	return e.Transparency != TransparencyTransparent
}

// BookingRef renders the description line that embeds a booking
// identifier into an event.
func BookingRef(bookingID string) string {
	return bookingRefMarker + bookingID
}

// ExtractBookingRef pulls an embedded booking identifier out of an event
// description.  It returns the empty string when the description carries
// no marker.
func ExtractBookingRef(description string) string {
	i := strings.Index(description, bookingRefMarker)
	if i < 0 {
		return ""
	}
	rest := description[i+len(bookingRefMarker):]
	if j := strings.IndexAny(rest, " \t\r\n"); j >= 0 {
		rest = rest[:j]
	}
	return strings.TrimSpace(rest)
}
