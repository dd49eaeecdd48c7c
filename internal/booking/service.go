// Package booking implements the reservation operations: slot queries,
// conflict-checked creation, proof-of-ownership lookups, updates and
// cancellation.  The ledger is authoritative for existence and
// ownership; the calendar mirror is best effort and corrected later by
// reconciliation when a write to it fails.
package booking

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/serenispa/booking-engine/internal/availability"
	"github.com/serenispa/booking-engine/internal/calendar"
	"github.com/serenispa/booking-engine/internal/ledger"
	"github.com/serenispa/booking-engine/internal/model"
)

// ErrValidation marks malformed input; rejected before any side effect.
var ErrValidation = errors.New("booking: invalid input")

// ErrConflict marks a slot that is no longer free at write time.  The
// caller can retry against fresh availability.
var ErrConflict = errors.New("booking: slot conflict")

// ErrForbidden covers both "no such booking" and "wrong email" so a
// caller probing identifiers learns nothing from the difference.
var ErrForbidden = errors.New("booking: not found or not owned")

func validation(msg string) error {
	return fmt.Errorf("%w: %s", ErrValidation, msg)
}

// Ledger is the slice of the booking ledger the service needs.
type Ledger interface {
	CreateBooking(ctx context.Context, b model.Booking) (model.Booking, error)
	BookingByIDAndEmail(ctx context.Context, bookingID, email string) (model.Booking, error)
	BookingByID(ctx context.Context, bookingID string) (model.Booking, error)
	ActiveBookingsByDate(ctx context.Context, date string) ([]model.Booking, error)
	SetBookingStatus(ctx context.Context, recordID, status string) error
	SetBookingEvent(ctx context.Context, recordID, eventID string) error
	UpdateBooking(ctx context.Context, recordID string, changes model.BookingChanges) error
}

// Blocks is the slice of the blocked intervals table the service needs.
type Blocks interface {
	ActiveBlocksByDate(ctx context.Context, date string) ([]model.Block, error)
}

// Calendar is the slice of the calendar adapter the service needs.
type Calendar interface {
	ListEvents(ctx context.Context, from, to time.Time) ([]model.Event, error)
	EnsureEvent(ctx context.Context, b model.Booking) (string, error)
	PatchEvent(ctx context.Context, eventID string, ev model.Event) error
	DeleteEvent(ctx context.Context, eventID string) error
}

// Notifier delivers fire-and-forget customer notifications.  Failures
// never fail the caller's primary operation.
type Notifier interface {
	BookingConfirmed(ctx context.Context, b model.Booking)
}

// Hours describes the business day and slot grid.
type Hours struct {
	Open        string // "08:00"
	Close       string // "20:00"
	Granularity time.Duration
	Buffer      time.Duration
}

// Service wires the availability maths to the two external stores.
type Service struct {
	ledger   Ledger
	blocks   Blocks
	cal      Calendar
	notifier Notifier
	hours    Hours
	loc      *time.Location
}

func NewService(l Ledger, blocks Blocks, cal Calendar, notifier Notifier, hours Hours, loc *time.Location) *Service {
	return &Service{ledger: l, blocks: blocks, cal: cal, notifier: notifier, hours: hours, loc: loc}
}

// businessDay resolves open and close instants for one date.
func (s *Service) businessDay(date string) (open, close time.Time, err error) {
	open, err = time.ParseInLocation(model.DateLayout+" "+model.TimeLayout, date+" "+s.hours.Open, s.loc)
	if err != nil {
		return time.Time{}, time.Time{}, validation("invalid date")
	}
	close, err = time.ParseInLocation(model.DateLayout+" "+model.TimeLayout, date+" "+s.hours.Close, s.loc)
	if err != nil {
		return time.Time{}, time.Time{}, validation("invalid date")
	}
	return open, close, nil
}

// busyFromEvents converts the day's busy calendar events into buffered,
// clamped intervals.
func busyFromEvents(events []model.Event, buffer time.Duration, open, close time.Time) []availability.Interval {
	raw := make([]availability.Interval, 0, len(events))
	for _, ev := range events {
		if !ev.Busy() {
			continue
		}
		raw = append(raw, availability.Interval{Start: ev.Start, End: ev.End})
	}
	return availability.ExpandBusy(raw, buffer, open, close)
}

// busyFromLedger rebuilds the day's occupied intervals from ledger
// bookings and blocks, used when the calendar is unreachable.
func (s *Service) busyFromLedger(ctx context.Context, date string, open, close time.Time) ([]availability.Interval, error) {
	bookings, err := s.ledger.ActiveBookingsByDate(ctx, date)
	if err != nil {
		return nil, err
	}
	raw := make([]availability.Interval, 0, len(bookings))
	for _, b := range bookings {
		start, err := b.StartAt(s.loc)
		if err != nil {
			continue
		}
		raw = append(raw, availability.Interval{Start: start, End: start.Add(b.Duration())})
	}
	blocks, err := s.blocks.ActiveBlocksByDate(ctx, date)
	if err != nil && !errors.Is(err, ledger.ErrNotConfigured) {
		return nil, err
	}
	for _, blk := range blocks {
		iv, ok := s.blockInterval(blk, open, close)
		if ok {
			raw = append(raw, iv)
		}
	}
	return availability.ExpandBusy(raw, s.hours.Buffer, open, close), nil
}

func (s *Service) blockInterval(blk model.Block, open, close time.Time) (availability.Interval, bool) {
	if blk.AllDay {
		return availability.Interval{Start: open, End: close}, true
	}
	start, err1 := time.ParseInLocation(model.DateLayout+" "+model.TimeLayout, blk.Date+" "+blk.StartTime, s.loc)
	end, err2 := time.ParseInLocation(model.DateLayout+" "+model.TimeLayout, blk.Date+" "+blk.EndTime, s.loc)
	if err1 != nil || err2 != nil || !start.Before(end) {
		return availability.Interval{}, false
	}
	return availability.Interval{Start: start, End: end}, true
}

// Slots returns the valid start times for one date and session length,
// formatted as "15:04" in the business timezone.
func (s *Service) Slots(ctx context.Context, date string, durationMin int) ([]string, error) {
	if durationMin <= 0 {
		return nil, validation("duration must be positive")
	}
	open, close, err := s.businessDay(date)
	if err != nil {
		return nil, err
	}
	busy, err := s.busyForDay(ctx, date, open, close)
	if err != nil {
		return nil, err
	}
	session := time.Duration(durationMin) * time.Minute
	starts := availability.ComputeSlots(open, close, s.hours.Granularity, session, busy)
	out := make([]string, 0, len(starts))
	for _, t := range starts {
		out = append(out, t.Format(model.TimeLayout))
	}
	return out, nil
}

// busyForDay prefers the calendar (which carries out-of-band human
// edits) and falls back to the ledger when the calendar is unreachable
// or unconfigured.
func (s *Service) busyForDay(ctx context.Context, date string, open, close time.Time) ([]availability.Interval, error) {
	dayStart := time.Date(open.Year(), open.Month(), open.Day(), 0, 0, 0, 0, s.loc)
	events, err := s.cal.ListEvents(ctx, dayStart, dayStart.AddDate(0, 0, 1))
	if err != nil {
		log.Printf("booking: calendar fetch failed for %s, falling back to ledger: %v", date, err)
		return s.busyFromLedger(ctx, date, open, close)
	}
	return busyFromEvents(events, s.hours.Buffer, open, close), nil
}

// DayCapacity pairs a date with its remaining session capacity.
type DayCapacity struct {
	Date     string `json:"date"`
	Capacity int    `json:"capacity"`
}

// SlotsBatch computes the remaining capacity for several dates using a
// single calendar fetch over the whole window instead of one per date.
// The multi-day overview stays responsive that way even for a month of
// dates.
func (s *Service) SlotsBatch(ctx context.Context, dates []string, durationMin int) ([]DayCapacity, error) {
	if durationMin <= 0 {
		return nil, validation("duration must be positive")
	}
	if len(dates) == 0 {
		return []DayCapacity{}, nil
	}
	session := time.Duration(durationMin) * time.Minute

	var windowStart, windowEnd time.Time
	parsed := make(map[string]time.Time, len(dates))
	for _, date := range dates {
		day, err := time.ParseInLocation(model.DateLayout, date, s.loc)
		if err != nil {
			return nil, validation("invalid date " + date)
		}
		parsed[date] = day
		if windowStart.IsZero() || day.Before(windowStart) {
			windowStart = day
		}
		if day.After(windowEnd) {
			windowEnd = day
		}
	}

	events, err := s.cal.ListEvents(ctx, windowStart, windowEnd.AddDate(0, 0, 1))
	if err != nil {
		return nil, fmt.Errorf("booking: batch capacity fetch: %w", err)
	}
	byDate := make(map[string][]model.Event)
	for _, ev := range events {
		key := ev.Start.In(s.loc).Format(model.DateLayout)
		byDate[key] = append(byDate[key], ev)
	}

	out := make([]DayCapacity, 0, len(dates))
	for _, date := range dates {
		open, close, err := s.businessDay(date)
		if err != nil {
			return nil, err
		}
		busy := busyFromEvents(byDate[date], 0, open, close)
		out = append(out, DayCapacity{
			Date:     date,
			Capacity: availability.Capacity(open, close, session, s.hours.Buffer, busy),
		})
	}
	return out, nil
}

// CreateInput is a booking request after transport-level decoding.
type CreateInput struct {
	Name        string
	Email       string
	Phone       string
	Service     string
	Category    string
	DurationMin int
	Date        string
	Time        string
	TotalCents  int64
}

// Create validates the request, re-checks conflicts against a fresh
// same-day ledger query, persists the booking and mirrors it to the
// calendar.  The ledger write is the durability boundary: a calendar
// failure afterwards is logged and left for reconciliation, never
// surfaced to the customer as a booking failure.
func (s *Service) Create(ctx context.Context, in CreateInput) (model.Booking, error) {
	if strings.TrimSpace(in.Name) == "" {
		return model.Booking{}, validation("name is required")
	}
	if strings.TrimSpace(in.Email) == "" || !strings.Contains(in.Email, "@") {
		return model.Booking{}, validation("valid email is required")
	}
	if strings.TrimSpace(in.Service) == "" {
		return model.Booking{}, validation("service is required")
	}
	if in.DurationMin <= 0 {
		return model.Booking{}, validation("duration must be positive")
	}
	if in.Date == "" || in.Time == "" {
		return model.Booking{}, validation("date and time are required")
	}
	open, close, err := s.businessDay(in.Date)
	if err != nil {
		return model.Booking{}, err
	}
	start, err := time.ParseInLocation(model.DateLayout+" "+model.TimeLayout, in.Date+" "+in.Time, s.loc)
	if err != nil {
		return model.Booking{}, validation("invalid time")
	}
	session := time.Duration(in.DurationMin) * time.Minute
	if start.Before(open) || start.Add(session).After(close) {
		return model.Booking{}, validation("outside business hours")
	}

	// Conflict re-check at write time against a fresh query.  This
	// shrinks, but does not eliminate, the race between two customers
	// submitting the same slot; the reconciliation sweep surfaces any
	// duplicate that slips through.
	if err := s.checkConflict(ctx, in.Date, start, session, ""); err != nil {
		return model.Booking{}, err
	}

	id, err := GenerateID(start, start.Hour())
	if err != nil {
		return model.Booking{}, err
	}
	b := model.Booking{
		BookingID:   id,
		Name:        strings.TrimSpace(in.Name),
		Email:       strings.ToLower(strings.TrimSpace(in.Email)),
		Phone:       strings.TrimSpace(in.Phone),
		Service:     in.Service,
		Category:    in.Category,
		DurationMin: in.DurationMin,
		Date:        in.Date,
		Time:        in.Time,
		Status:      model.StatusConfirmed,
		TotalCents:  in.TotalCents,
	}
	created, err := s.ledger.CreateBooking(ctx, b)
	if err != nil {
		return model.Booking{}, fmt.Errorf("booking: ledger create: %w", err)
	}

	// Mirror to the calendar, best effort.
	if eventID, err := s.cal.EnsureEvent(ctx, created); err != nil {
		log.Printf("booking: calendar mirror failed for %s, reconciliation will correct: %v", created.BookingID, err)
	} else {
		created.EventID = eventID
		if err := s.ledger.SetBookingEvent(ctx, created.RecordID, eventID); err != nil {
			log.Printf("booking: storing event id for %s failed: %v", created.BookingID, err)
		}
	}

	if s.notifier != nil {
		s.notifier.BookingConfirmed(ctx, created)
	}
	return created, nil
}

// checkConflict enforces the no-overlap invariant against the ledger's
// non-cancelled same-day bookings and active blocks.  excludeID skips
// the booking being rescheduled.
func (s *Service) checkConflict(ctx context.Context, date string, start time.Time, session time.Duration, excludeID string) error {
	existing, err := s.ledger.ActiveBookingsByDate(ctx, date)
	if err != nil {
		if errors.Is(err, ledger.ErrNotConfigured) {
			log.Printf("booking: ledger unconfigured, skipping conflict check for %s", date)
			return nil
		}
		return fmt.Errorf("booking: conflict query: %w", err)
	}
	intervals := make([]availability.Interval, 0, len(existing))
	for _, other := range existing {
		if excludeID != "" && other.BookingID == excludeID {
			continue
		}
		otherStart, err := other.StartAt(s.loc)
		if err != nil {
			continue
		}
		intervals = append(intervals, availability.Interval{Start: otherStart, End: otherStart.Add(other.Duration())})
	}
	if s.blocks != nil {
		open, close, err := s.businessDay(date)
		if err == nil {
			blocks, err := s.blocks.ActiveBlocksByDate(ctx, date)
			if err == nil {
				for _, blk := range blocks {
					if iv, ok := s.blockInterval(blk, open, close); ok {
						intervals = append(intervals, iv)
					}
				}
			} else if !errors.Is(err, ledger.ErrNotConfigured) {
				return fmt.Errorf("booking: block query: %w", err)
			}
		}
	}
	if availability.HasConflict(start, session, s.hours.Buffer, intervals) {
		return ErrConflict
	}
	return nil
}

// Get returns a booking when the identifier and email jointly match a
// ledger record.  Both a missing identifier and a wrong email yield
// ErrForbidden.
func (s *Service) Get(ctx context.Context, bookingID, email string) (model.Booking, error) {
	if bookingID == "" || email == "" {
		return model.Booking{}, validation("booking id and email are required")
	}
	b, err := s.ledger.BookingByIDAndEmail(ctx, bookingID, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			return model.Booking{}, ErrForbidden
		}
		return model.Booking{}, err
	}
	return b, nil
}

// Update applies a partial change to a booking the caller has proven
// ownership of (or looked up administratively via AdminGet).  When the
// schedule moves, conflicts are re-checked excluding the booking itself
// and the mirrored event is patched; when the status moves to
// Cancelled, the mirrored event is removed.
func (s *Service) Update(ctx context.Context, b model.Booking, changes model.BookingChanges) error {
	if changes.Empty() {
		return validation("no changes")
	}
	date := b.Date
	if changes.Date != nil {
		date = *changes.Date
	}
	timeOfDay := b.Time
	if changes.Time != nil {
		timeOfDay = *changes.Time
	}
	durationMin := b.DurationMin
	if changes.DurationMin != nil {
		durationMin = *changes.DurationMin
	}
	if durationMin <= 0 {
		return validation("duration must be positive")
	}
	if changes.Status != nil && !validStatus(*changes.Status) {
		return validation("unknown status")
	}

	scheduleChanged := date != b.Date || timeOfDay != b.Time || durationMin != b.DurationMin
	if scheduleChanged {
		open, close, err := s.businessDay(date)
		if err != nil {
			return err
		}
		start, err := time.ParseInLocation(model.DateLayout+" "+model.TimeLayout, date+" "+timeOfDay, s.loc)
		if err != nil {
			return validation("invalid time")
		}
		session := time.Duration(durationMin) * time.Minute
		if start.Before(open) || start.Add(session).After(close) {
			return validation("outside business hours")
		}
		if err := s.checkConflict(ctx, date, start, session, b.BookingID); err != nil {
			return err
		}
	}

	if err := s.ledger.UpdateBooking(ctx, b.RecordID, changes); err != nil {
		return fmt.Errorf("booking: ledger update: %w", err)
	}

	if changes.Status != nil && *changes.Status == model.StatusCancelled {
		s.removeMirror(ctx, b)
		return nil
	}
	if scheduleChanged && b.EventID != "" {
		updated := b
		updated.Date, updated.Time, updated.DurationMin = date, timeOfDay, durationMin
		start, err := updated.StartAt(s.loc)
		if err == nil {
			if err := s.cal.PatchEvent(ctx, b.EventID, calendar.EventForBooking(updated, start)); err != nil {
				log.Printf("booking: event patch failed for %s, reconciliation will correct: %v", b.BookingID, err)
			}
		}
	}
	return nil
}

// Cancel marks a booking Cancelled and removes its mirrored event.  The
// ledger record is retained.
func (s *Service) Cancel(ctx context.Context, b model.Booking) error {
	if b.Status == model.StatusCancelled {
		return nil
	}
	if err := s.ledger.SetBookingStatus(ctx, b.RecordID, model.StatusCancelled); err != nil {
		return fmt.Errorf("booking: ledger cancel: %w", err)
	}
	s.removeMirror(ctx, b)
	return nil
}

func (s *Service) removeMirror(ctx context.Context, b model.Booking) {
	if b.EventID == "" {
		return
	}
	if err := s.cal.DeleteEvent(ctx, b.EventID); err != nil {
		log.Printf("booking: event delete failed for %s, reconciliation will correct: %v", b.BookingID, err)
	}
}

// AdminGet looks up a booking without proof of ownership, for
// administrative callers authenticated elsewhere.
func (s *Service) AdminGet(ctx context.Context, bookingID string) (model.Booking, error) {
	b, err := s.ledger.BookingByID(ctx, bookingID)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			return model.Booking{}, ErrForbidden
		}
		return model.Booking{}, err
	}
	return b, nil
}

func validStatus(status string) bool {
	switch status {
	case model.StatusPending, model.StatusConfirmed, model.StatusCancelled, model.StatusCompleted:
		return true
	}
	return false
}
