package ledger

import (
	"context"
	"fmt"

	"github.com/serenispa/booking-engine/internal/model"
)

// Field names of the bookings table.  The engine treats these names as
// its schema; renaming a column in the ledger is a breaking change.
const (
	fieldBookingID = "Booking ID"
	fieldName      = "Name"
	fieldEmail     = "Email"
	fieldPhone     = "Phone"
	fieldService   = "Service"
	fieldCategory  = "Category"
	fieldDuration  = "Duration"
	fieldDate      = "Date"
	fieldTime      = "Time"
	fieldStatus    = "Status"
	fieldEventID   = "Event ID"
	fieldTotal     = "Total"
)

// BookingRepo provides typed access to the bookings table.  All methods
// surface ErrNotConfigured when the ledger credentials are absent so the
// caller can fall back to "not persisted" behaviour.
type BookingRepo struct {
	client *Client
	table  string
}

// NewBookingRepo binds a repo to the given table name.
func NewBookingRepo(client *Client, table string) *BookingRepo {
	return &BookingRepo{client: client, table: table}
}

// Create persists a new booking and returns it with the ledger record id
// and creation timestamp filled in.
func (r *BookingRepo) CreateBooking(ctx context.Context, b model.Booking) (model.Booking, error) {
	fields := map[string]any{
		fieldBookingID: b.BookingID,
		fieldName:      b.Name,
		fieldEmail:     b.Email,
		fieldPhone:     b.Phone,
		fieldService:   b.Service,
		fieldCategory:  b.Category,
		fieldDuration:  b.DurationMin,
		fieldDate:      b.Date,
		fieldTime:      b.Time,
		fieldStatus:    b.Status,
		fieldTotal:     b.TotalCents,
	}
	if b.EventID != "" {
		fields[fieldEventID] = b.EventID
	}
	rec, err := r.client.Create(ctx, r.table, fields)
	if err != nil {
		return model.Booking{}, err
	}
	return bookingFromRecord(rec), nil
}

// BookingByIDAndEmail returns the booking matching both the identifier
// and the account email.  The pair is the customer's proof of ownership:
// a wrong email and a missing identifier both come back as ErrNotFound
// so callers cannot enumerate bookings.
func (r *BookingRepo) BookingByIDAndEmail(ctx context.Context, bookingID, email string) (model.Booking, error) {
	return r.one(ctx, And(Eq(fieldBookingID, bookingID), Eq(fieldEmail, email)))
}

// BookingByID returns a booking by identifier alone, for administrative
// callers that hold their own authorization.
func (r *BookingRepo) BookingByID(ctx context.Context, bookingID string) (model.Booking, error) {
	return r.one(ctx, Eq(fieldBookingID, bookingID))
}

// ActiveBookingsByDate returns all non-cancelled bookings scheduled on
// the given date.  This is the write-time conflict query.
func (r *BookingRepo) ActiveBookingsByDate(ctx context.Context, date string) ([]model.Booking, error) {
	recs, err := r.client.List(ctx, r.table, And(Eq(fieldDate, date), Ne(fieldStatus, model.StatusCancelled)))
	if err != nil {
		return nil, err
	}
	return bookingsFromRecords(recs), nil
}

// LinkedBookings returns every non-cancelled booking that carries a
// linked calendar event identifier.  The reconciliation engine diffs
// this set against the calendar.
func (r *BookingRepo) LinkedBookings(ctx context.Context) ([]model.Booking, error) {
	recs, err := r.client.List(ctx, r.table, And(Ne(fieldStatus, model.StatusCancelled), NotEmpty(fieldEventID)))
	if err != nil {
		return nil, err
	}
	return bookingsFromRecords(recs), nil
}

// UnlinkedBookings returns every non-cancelled booking with no calendar
// event recorded, usually because the mirror write failed at create
// time.  Reconciliation re-creates and links the missing events.
func (r *BookingRepo) UnlinkedBookings(ctx context.Context) ([]model.Booking, error) {
	recs, err := r.client.List(ctx, r.table, And(Ne(fieldStatus, model.StatusCancelled), Empty(fieldEventID)))
	if err != nil {
		return nil, err
	}
	return bookingsFromRecords(recs), nil
}

// SetBookingStatus patches only the status field.
func (r *BookingRepo) SetBookingStatus(ctx context.Context, recordID, status string) error {
	_, err := r.client.Patch(ctx, r.table, recordID, map[string]any{fieldStatus: status})
	return err
}

// SetBookingEvent stores the linked calendar event identifier.
func (r *BookingRepo) SetBookingEvent(ctx context.Context, recordID, eventID string) error {
	_, err := r.client.Patch(ctx, r.table, recordID, map[string]any{fieldEventID: eventID})
	return err
}

// RescheduleBooking overwrites the schedule fields, used when the
// calendar side wins a reconciliation diff.
func (r *BookingRepo) RescheduleBooking(ctx context.Context, recordID, date, timeOfDay string) error {
	_, err := r.client.Patch(ctx, r.table, recordID, map[string]any{fieldDate: date, fieldTime: timeOfDay})
	return err
}

// UpdateBooking applies an arbitrary set of booking field changes.
func (r *BookingRepo) UpdateBooking(ctx context.Context, recordID string, changes model.BookingChanges) error {
	fields := map[string]any{}
	if changes.Date != nil {
		fields[fieldDate] = *changes.Date
	}
	if changes.Time != nil {
		fields[fieldTime] = *changes.Time
	}
	if changes.Status != nil {
		fields[fieldStatus] = *changes.Status
	}
	if changes.DurationMin != nil {
		fields[fieldDuration] = *changes.DurationMin
	}
	if len(fields) == 0 {
		return nil
	}
	_, err := r.client.Patch(ctx, r.table, recordID, fields)
	return err
}

func (r *BookingRepo) one(ctx context.Context, formula string) (model.Booking, error) {
	recs, err := r.client.List(ctx, r.table, formula)
	if err != nil {
		return model.Booking{}, err
	}
	if len(recs) == 0 {
		return model.Booking{}, ErrNotFound
	}
	return bookingFromRecord(recs[0]), nil
}

func bookingsFromRecords(recs []Record) []model.Booking {
	out := make([]model.Booking, 0, len(recs))
	for _, rec := range recs {
		out = append(out, bookingFromRecord(rec))
	}
	return out
}

func bookingFromRecord(rec Record) model.Booking {
	return model.Booking{
		RecordID:    rec.ID,
		BookingID:   str(rec.Fields, fieldBookingID),
		Name:        str(rec.Fields, fieldName),
		Email:       str(rec.Fields, fieldEmail),
		Phone:       str(rec.Fields, fieldPhone),
		Service:     str(rec.Fields, fieldService),
		Category:    str(rec.Fields, fieldCategory),
		DurationMin: num(rec.Fields, fieldDuration),
		Date:        str(rec.Fields, fieldDate),
		Time:        str(rec.Fields, fieldTime),
		Status:      str(rec.Fields, fieldStatus),
		EventID:     str(rec.Fields, fieldEventID),
		TotalCents:  int64(num(rec.Fields, fieldTotal)),
		CreatedAt:   rec.CreatedTime,
	}
}

// str reads a string field, tolerating absent keys and non-string
// values the store may return for unconfigured columns.
func str(fields map[string]any, key string) string {
	switch v := fields[key].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

func num(fields map[string]any, key string) int {
	switch v := fields[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case int64:
		return int(v)
	default:
		return 0
	}
}
