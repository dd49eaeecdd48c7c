// Package reconcile converges the booking ledger and the external
// calendar.  The two stores share no transaction, so the engine accepts
// eventual consistency: it diffs a bounded time window and overwrites
// whichever side is stale.  The ledger stays authoritative for
// existence and ownership; the calendar, being the surface a human is
// most likely to edit directly, wins on date and time.
package reconcile

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/serenispa/booking-engine/internal/booking"
	"github.com/serenispa/booking-engine/internal/calendar"
	"github.com/serenispa/booking-engine/internal/model"
)

// Default reconciliation window: far enough back to catch late edits,
// far enough forward to cover every open booking.
const (
	DefaultWindowPast   = 30 * 24 * time.Hour
	DefaultWindowFuture = 90 * 24 * time.Hour
)

// Notification channel states delivered by the calendar service.
const (
	stateSync      = "sync"
	stateNotExists = "not_exists"
)

// Ledger is the slice of the ledger the engine needs.
type Ledger interface {
	LinkedBookings(ctx context.Context) ([]model.Booking, error)
	UnlinkedBookings(ctx context.Context) ([]model.Booking, error)
	SetBookingStatus(ctx context.Context, recordID, status string) error
	SetBookingEvent(ctx context.Context, recordID, eventID string) error
	RescheduleBooking(ctx context.Context, recordID, date, timeOfDay string) error
}

// Blocks is the slice of the blocked intervals table the engine needs.
type Blocks interface {
	LinkedBlocks(ctx context.Context) ([]model.Block, error)
	UnlinkedBlocks(ctx context.Context) ([]model.Block, error)
	SetBlockEvent(ctx context.Context, recordID, eventID string) error
	ArchiveBlock(ctx context.Context, recordID string) error
}

// Calendar is the slice of the calendar adapter the engine needs.
type Calendar interface {
	ListEvents(ctx context.Context, from, to time.Time) ([]model.Event, error)
	EnsureEvent(ctx context.Context, b model.Booking) (string, error)
	InsertEvent(ctx context.Context, ev model.Event) (model.Event, error)
}

// Report summarises one reconciliation run for operator visibility.
// Drift is self-healing and never surfaced to end users; the report is
// what the administrative sync endpoint returns.  Duplicates are the
// exception: the engine flags them but leaves merging to a human,
// because it cannot tell which record the customer meant to keep.
type Report struct {
	WindowStart time.Time `json:"window_start"`
	WindowEnd   time.Time `json:"window_end"`
	Checked     int       `json:"checked"`
	Cancelled   []string  `json:"cancelled"`
	Updated     []string  `json:"updated"`
	Relinked    []string  `json:"relinked"`
	Archived    []string  `json:"archived_blocks"`
	Duplicates  []string  `json:"duplicates"`
	Errors      []string  `json:"errors"`
}

// Clean reports whether the run found no drift and made no writes.
func (r Report) Clean() bool {
	return len(r.Cancelled) == 0 && len(r.Updated) == 0 && len(r.Relinked) == 0 &&
		len(r.Archived) == 0 && len(r.Duplicates) == 0 && len(r.Errors) == 0
}

// Engine diffs ledger state against calendar state and applies
// corrective writes.  Re-running with no drift produces no writes.
type Engine struct {
	ledger Ledger
	blocks Blocks
	cal    Calendar
	hours  booking.Hours
	loc    *time.Location
}

func NewEngine(ledger Ledger, blocks Blocks, cal Calendar, hours booking.Hours, loc *time.Location) *Engine {
	return &Engine{ledger: ledger, blocks: blocks, cal: cal, hours: hours, loc: loc}
}

// Reconcile compares every non-cancelled booking against the events
// currently on the calendar inside the window.
//
// Per linked booking the drift classification is:
//   - event missing: the human deleted the calendar entry, which is
//     treated as authoritative cancellation intent; the booking is
//     marked Cancelled.
//   - event time changed: the calendar wins on schedule fields; the
//     booking's date and time are overwritten from the event.
//   - otherwise: no drift, no write.
//
// Bookings with no linked event are the other direction of drift: the
// ledger write succeeded but the mirror never landed.  Those get their
// event created and linked.  Duplicate linkage, either two bookings
// claiming one event or two events carrying one booking reference, is
// reported but never merged automatically.
func (e *Engine) Reconcile(ctx context.Context, windowStart, windowEnd time.Time) (Report, error) {
	report := Report{
		WindowStart: windowStart,
		WindowEnd:   windowEnd,
		Cancelled:   []string{},
		Updated:     []string{},
		Relinked:    []string{},
		Archived:    []string{},
		Duplicates:  []string{},
		Errors:      []string{},
	}

	bookings, err := e.ledger.LinkedBookings(ctx)
	if err != nil {
		return report, fmt.Errorf("reconcile: ledger fetch: %w", err)
	}
	events, err := e.cal.ListEvents(ctx, windowStart, windowEnd)
	if err != nil {
		return report, fmt.Errorf("reconcile: calendar fetch: %w", err)
	}
	byID := make(map[string]model.Event, len(events))
	refEvents := make(map[string][]string)
	for _, ev := range events {
		byID[ev.ID] = ev
		if ref := model.ExtractBookingRef(ev.Description); ref != "" {
			refEvents[ref] = append(refEvents[ref], ev.ID)
		}
	}

	owners := make(map[string][]string)
	for _, b := range bookings {
		start, err := b.StartAt(e.loc)
		if err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", b.BookingID, err))
			continue
		}
		// Only bookings inside the fetched window can be judged; an
		// absent event outside the window proves nothing.
		if start.Before(windowStart) || !start.Before(windowEnd) {
			continue
		}
		report.Checked++

		ev, present := byID[b.EventID]
		if !present {
			if err := e.ledger.SetBookingStatus(ctx, b.RecordID, model.StatusCancelled); err != nil {
				report.Errors = append(report.Errors, fmt.Sprintf("%s: cancel: %v", b.BookingID, err))
				continue
			}
			log.Printf("reconcile: event %s gone, cancelled booking %s", b.EventID, b.BookingID)
			report.Cancelled = append(report.Cancelled, b.BookingID)
			continue
		}
		owners[b.EventID] = append(owners[b.EventID], b.BookingID)

		evStart := ev.Start.In(e.loc)
		if evStart.Format(model.DateLayout) != b.Date || evStart.Format(model.TimeLayout) != b.Time {
			date := evStart.Format(model.DateLayout)
			timeOfDay := evStart.Format(model.TimeLayout)
			if err := e.ledger.RescheduleBooking(ctx, b.RecordID, date, timeOfDay); err != nil {
				report.Errors = append(report.Errors, fmt.Sprintf("%s: reschedule: %v", b.BookingID, err))
				continue
			}
			log.Printf("reconcile: booking %s moved to %s %s from calendar", b.BookingID, date, timeOfDay)
			report.Updated = append(report.Updated, b.BookingID)
		}
	}

	for evID, ids := range owners {
		if len(ids) > 1 {
			report.Duplicates = append(report.Duplicates,
				fmt.Sprintf("event %s claimed by bookings %s", evID, strings.Join(ids, ", ")))
		}
	}
	for ref, ids := range refEvents {
		if len(ids) > 1 {
			report.Duplicates = append(report.Duplicates,
				fmt.Sprintf("%s mirrored by events %s", ref, strings.Join(ids, ", ")))
		}
	}
	sort.Strings(report.Duplicates)

	e.relinkBookings(ctx, windowStart, windowEnd, &report)
	e.reconcileBlocks(ctx, byID, windowStart, windowEnd, &report)
	return report, nil
}

// relinkBookings re-mirrors bookings whose calendar write failed at
// create time.  Creation treats the ledger write as the durability
// boundary and leaves the event for later, so unlinked records are
// expected after any calendar outage.  EnsureEvent reuses an existing
// event carrying the booking reference before creating one, which
// keeps the repair idempotent when only the back-link was lost.
func (e *Engine) relinkBookings(ctx context.Context, windowStart, windowEnd time.Time, report *Report) {
	unlinked, err := e.ledger.UnlinkedBookings(ctx)
	if err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("unlinked fetch: %v", err))
		return
	}
	for _, b := range unlinked {
		start, err := b.StartAt(e.loc)
		if err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", b.BookingID, err))
			continue
		}
		if start.Before(windowStart) || !start.Before(windowEnd) {
			continue
		}
		eventID, err := e.cal.EnsureEvent(ctx, b)
		if err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("%s: ensure event: %v", b.BookingID, err))
			continue
		}
		if err := e.ledger.SetBookingEvent(ctx, b.RecordID, eventID); err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("%s: link event: %v", b.BookingID, err))
			continue
		}
		log.Printf("reconcile: restored missing event %s for booking %s", eventID, b.BookingID)
		report.Relinked = append(report.Relinked, b.BookingID)
	}
}

// reconcileBlocks archives blocks whose mirrored busy event a human has
// removed from the calendar, then re-mirrors active blocks that never
// got their event.
func (e *Engine) reconcileBlocks(ctx context.Context, byID map[string]model.Event, windowStart, windowEnd time.Time, report *Report) {
	if e.blocks == nil {
		return
	}
	blocks, err := e.blocks.LinkedBlocks(ctx)
	if err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("blocks: %v", err))
		return
	}
	for _, blk := range blocks {
		day, err := time.ParseInLocation(model.DateLayout, blk.Date, e.loc)
		if err != nil {
			continue
		}
		if day.Before(windowStart) || !day.Before(windowEnd) {
			continue
		}
		if _, present := byID[blk.EventID]; present {
			continue
		}
		if err := e.blocks.ArchiveBlock(ctx, blk.RecordID); err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("%s: archive: %v", blk.BlockID, err))
			continue
		}
		log.Printf("reconcile: block event %s gone, archived block %s", blk.EventID, blk.BlockID)
		report.Archived = append(report.Archived, blk.BlockID)
	}
	e.relinkBlocks(ctx, windowStart, windowEnd, report)
}

// relinkBlocks mirrors active blocks with no calendar event, the block
// analogue of relinkBookings.
func (e *Engine) relinkBlocks(ctx context.Context, windowStart, windowEnd time.Time, report *Report) {
	unlinked, err := e.blocks.UnlinkedBlocks(ctx)
	if err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("blocks: %v", err))
		return
	}
	for _, blk := range unlinked {
		start, end, err := e.blockBounds(blk)
		if err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", blk.BlockID, err))
			continue
		}
		if start.Before(windowStart) || !start.Before(windowEnd) {
			continue
		}
		ev, err := e.cal.InsertEvent(ctx, calendar.EventForBlock(blk, start, end))
		if err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("%s: insert event: %v", blk.BlockID, err))
			continue
		}
		if err := e.blocks.SetBlockEvent(ctx, blk.RecordID, ev.ID); err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("%s: link event: %v", blk.BlockID, err))
			continue
		}
		log.Printf("reconcile: restored missing event %s for block %s", ev.ID, blk.BlockID)
		report.Relinked = append(report.Relinked, blk.BlockID)
	}
}

// blockBounds resolves the busy interval a block should occupy on the
// calendar: the whole business day for all-day blocks, otherwise its
// stored range.
func (e *Engine) blockBounds(blk model.Block) (start, end time.Time, err error) {
	layout := model.DateLayout + " " + model.TimeLayout
	from, until := blk.StartTime, blk.EndTime
	if blk.AllDay {
		from, until = e.hours.Open, e.hours.Close
	}
	start, err = time.ParseInLocation(layout, blk.Date+" "+from, e.loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("bad block start: %w", err)
	}
	end, err = time.ParseInLocation(layout, blk.Date+" "+until, e.loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("bad block end: %w", err)
	}
	return start, end, nil
}

// ReconcileDefault runs Reconcile over the default window around now.
func (e *Engine) ReconcileDefault(ctx context.Context) (Report, error) {
	now := time.Now().In(e.loc)
	return e.Reconcile(ctx, now.Add(-DefaultWindowPast), now.Add(DefaultWindowFuture))
}

// HandleNotification processes a push notification from the calendar
// service.  The channel is a doorbell, not a diff feed: the payload
// carries no event-level detail, so anything signalling real change
// triggers a full-window reconcile.  The "sync" state is only the
// registration handshake and must short-circuit; "not_exists" refers to
// the subscription channel itself, not to calendar content, and is
// logged and ignored.  The returned bool reports whether a reconcile
// ran.
func (e *Engine) HandleNotification(ctx context.Context, state, channelID string) (bool, Report, error) {
	switch state {
	case stateSync:
		log.Printf("reconcile: channel %s handshake acknowledged", channelID)
		return false, Report{}, nil
	case stateNotExists:
		log.Printf("reconcile: channel %s reported resource deleted, ignoring", channelID)
		return false, Report{}, nil
	}
	report, err := e.ReconcileDefault(ctx)
	return true, report, err
}
