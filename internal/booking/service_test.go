package booking

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/serenispa/booking-engine/internal/ledger"
	"github.com/serenispa/booking-engine/internal/model"
)

// fakeLedger keeps bookings in memory behind the Ledger interface.
type fakeLedger struct {
	bookings   map[string]model.Booking // keyed by record id
	nextRecord int
	failCreate error
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{bookings: map[string]model.Booking{}, nextRecord: 1}
}

func (f *fakeLedger) CreateBooking(_ context.Context, b model.Booking) (model.Booking, error) {
	if f.failCreate != nil {
		return model.Booking{}, f.failCreate
	}
	b.RecordID = "rec" + strconv.Itoa(f.nextRecord)
	f.nextRecord++
	b.CreatedAt = time.Now().UTC()
	f.bookings[b.RecordID] = b
	return b, nil
}

func (f *fakeLedger) BookingByIDAndEmail(_ context.Context, bookingID, email string) (model.Booking, error) {
	for _, b := range f.bookings {
		if b.BookingID == bookingID && b.Email == email {
			return b, nil
		}
	}
	return model.Booking{}, ledger.ErrNotFound
}

func (f *fakeLedger) BookingByID(_ context.Context, bookingID string) (model.Booking, error) {
	for _, b := range f.bookings {
		if b.BookingID == bookingID {
			return b, nil
		}
	}
	return model.Booking{}, ledger.ErrNotFound
}

func (f *fakeLedger) ActiveBookingsByDate(_ context.Context, date string) ([]model.Booking, error) {
	var out []model.Booking
	for _, b := range f.bookings {
		if b.Date == date && b.Status != model.StatusCancelled {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeLedger) SetBookingStatus(_ context.Context, recordID, status string) error {
	b, ok := f.bookings[recordID]
	if !ok {
		return ledger.ErrNotFound
	}
	b.Status = status
	f.bookings[recordID] = b
	return nil
}

func (f *fakeLedger) SetBookingEvent(_ context.Context, recordID, eventID string) error {
	b, ok := f.bookings[recordID]
	if !ok {
		return ledger.ErrNotFound
	}
	b.EventID = eventID
	f.bookings[recordID] = b
	return nil
}

func (f *fakeLedger) UpdateBooking(_ context.Context, recordID string, ch model.BookingChanges) error {
	b, ok := f.bookings[recordID]
	if !ok {
		return ledger.ErrNotFound
	}
	if ch.Date != nil {
		b.Date = *ch.Date
	}
	if ch.Time != nil {
		b.Time = *ch.Time
	}
	if ch.Status != nil {
		b.Status = *ch.Status
	}
	if ch.DurationMin != nil {
		b.DurationMin = *ch.DurationMin
	}
	f.bookings[recordID] = b
	return nil
}

type fakeBlocks struct {
	blocks []model.Block
}

func (f *fakeBlocks) ActiveBlocksByDate(_ context.Context, date string) ([]model.Block, error) {
	var out []model.Block
	for _, blk := range f.blocks {
		if blk.Date == date && blk.Status == model.BlockActive {
			out = append(out, blk)
		}
	}
	return out, nil
}

// fakeCal records mirror calls behind the Calendar interface.
type fakeCal struct {
	events     map[string]model.Event
	nextID     int
	failEnsure error
	deleted    []string
}

func newFakeCal() *fakeCal {
	return &fakeCal{events: map[string]model.Event{}, nextID: 1}
}

func (f *fakeCal) ListEvents(_ context.Context, from, to time.Time) ([]model.Event, error) {
	var out []model.Event
	for _, ev := range f.events {
		if ev.Start.Before(to) && ev.End.After(from) {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (f *fakeCal) EnsureEvent(_ context.Context, b model.Booking) (string, error) {
	if f.failEnsure != nil {
		return "", f.failEnsure
	}
	for id, ev := range f.events {
		if model.ExtractBookingRef(ev.Description) == b.BookingID {
			return id, nil
		}
	}
	id := "ev" + strconv.Itoa(f.nextID)
	f.nextID++
	start, _ := b.StartAt(time.UTC)
	f.events[id] = model.Event{
		ID:          id,
		Description: model.BookingRef(b.BookingID),
		Start:       start,
		End:         start.Add(b.Duration()),
	}
	return id, nil
}

func (f *fakeCal) PatchEvent(_ context.Context, eventID string, ev model.Event) error {
	stored, ok := f.events[eventID]
	if !ok {
		return errors.New("no such event")
	}
	stored.Start, stored.End, stored.Summary = ev.Start, ev.End, ev.Summary
	f.events[eventID] = stored
	return nil
}

func (f *fakeCal) DeleteEvent(_ context.Context, eventID string) error {
	delete(f.events, eventID)
	f.deleted = append(f.deleted, eventID)
	return nil
}

func testService(l *fakeLedger, blocks *fakeBlocks, cal *fakeCal) *Service {
	if blocks == nil {
		blocks = &fakeBlocks{}
	}
	return NewService(l, blocks, cal, nil, Hours{
		Open:        "08:00",
		Close:       "20:00",
		Granularity: 15 * time.Minute,
		Buffer:      30 * time.Minute,
	}, time.UTC)
}

func validInput() CreateInput {
	return CreateInput{
		Name:        "Dana",
		Email:       "Dana@Example.com",
		Service:     "Massage",
		DurationMin: 45,
		Date:        "2025-06-02",
		Time:        "10:00",
		TotalCents:  6500,
	}
}

func TestCreateRoundTrip(t *testing.T) {
	l := newFakeLedger()
	svc := testService(l, nil, newFakeCal())
	ctx := context.Background()

	created, err := svc.Create(ctx, validInput())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.BookingID == "" || created.EventID == "" {
		t.Fatalf("created booking missing ids: %+v", created)
	}
	if created.Status != model.StatusConfirmed {
		t.Errorf("status = %q", created.Status)
	}

	got, err := svc.Get(ctx, created.BookingID, "dana@example.com")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Date != "2025-06-02" || got.Time != "10:00" || got.DurationMin != 45 || got.TotalCents != 6500 {
		t.Errorf("round trip mismatch: %+v", got)
	}
}

func TestCreateValidation(t *testing.T) {
	svc := testService(newFakeLedger(), nil, newFakeCal())
	tests := []struct {
		name   string
		mutate func(*CreateInput)
	}{
		{"missing name", func(in *CreateInput) { in.Name = " " }},
		{"bad email", func(in *CreateInput) { in.Email = "nope" }},
		{"missing service", func(in *CreateInput) { in.Service = "" }},
		{"zero duration", func(in *CreateInput) { in.DurationMin = 0 }},
		{"missing date", func(in *CreateInput) { in.Date = "" }},
		{"outside hours", func(in *CreateInput) { in.Time = "19:45" }},
		{"before open", func(in *CreateInput) { in.Time = "07:00" }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			in := validInput()
			tc.mutate(&in)
			if _, err := svc.Create(context.Background(), in); !errors.Is(err, ErrValidation) {
				t.Errorf("err = %v, want ErrValidation", err)
			}
		})
	}
}

func TestCreateRejectsConflictAtWriteTime(t *testing.T) {
	l := newFakeLedger()
	svc := testService(l, nil, newFakeCal())
	ctx := context.Background()

	if _, err := svc.Create(ctx, validInput()); err != nil {
		t.Fatalf("first Create: %v", err)
	}

	// Within the buffered window of the 10:00-10:45 booking.
	in := validInput()
	in.Time = "11:00"
	if _, err := svc.Create(ctx, in); !errors.Is(err, ErrConflict) {
		t.Errorf("err = %v, want ErrConflict", err)
	}

	// First start clear of existing end + buffer.
	in.Time = "11:15"
	if _, err := svc.Create(ctx, in); err != nil {
		t.Errorf("Create at 11:15: %v, want success", err)
	}
}

func TestCreateBlockedByActiveBlock(t *testing.T) {
	blocks := &fakeBlocks{blocks: []model.Block{{
		BlockID: "BL-1", Date: "2025-06-02", AllDay: true, Status: model.BlockActive,
	}}}
	svc := testService(newFakeLedger(), blocks, newFakeCal())
	if _, err := svc.Create(context.Background(), validInput()); !errors.Is(err, ErrConflict) {
		t.Errorf("err = %v, want ErrConflict on blocked day", err)
	}
}

func TestCreateCalendarFailureIsNonFatal(t *testing.T) {
	l := newFakeLedger()
	cal := newFakeCal()
	cal.failEnsure = errors.New("calendar down")
	svc := testService(l, nil, cal)

	created, err := svc.Create(context.Background(), validInput())
	if err != nil {
		t.Fatalf("Create: %v, want success despite calendar failure", err)
	}
	if created.EventID != "" {
		t.Errorf("event id = %q, want empty when mirroring failed", created.EventID)
	}
	if len(l.bookings) != 1 {
		t.Errorf("ledger bookings = %d, want 1", len(l.bookings))
	}
}

func TestGetWrongEmailIndistinguishable(t *testing.T) {
	l := newFakeLedger()
	svc := testService(l, nil, newFakeCal())
	created, err := svc.Create(context.Background(), validInput())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	_, errWrongEmail := svc.Get(context.Background(), created.BookingID, "other@example.com")
	_, errNoBooking := svc.Get(context.Background(), "BK-2025060210-ZZZZZZZZZZ", "dana@example.com")
	if !errors.Is(errWrongEmail, ErrForbidden) || !errors.Is(errNoBooking, ErrForbidden) {
		t.Errorf("errors differ: wrong email %v, missing booking %v", errWrongEmail, errNoBooking)
	}
}

func TestUpdateReschedulePatchesEvent(t *testing.T) {
	l := newFakeLedger()
	cal := newFakeCal()
	svc := testService(l, nil, cal)
	ctx := context.Background()

	created, err := svc.Create(ctx, validInput())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	newTime := "14:00"
	if err := svc.Update(ctx, created, model.BookingChanges{Time: &newTime}); err != nil {
		t.Fatalf("Update: %v", err)
	}

	got, _ := svc.Get(ctx, created.BookingID, created.Email)
	if got.Time != "14:00" {
		t.Errorf("time after update = %q", got.Time)
	}
	ev := cal.events[created.EventID]
	if ev.Start.Hour() != 14 {
		t.Errorf("mirrored event start hour = %d, want 14", ev.Start.Hour())
	}
}

func TestUpdateRescheduleConflictExcludesSelf(t *testing.T) {
	l := newFakeLedger()
	svc := testService(l, nil, newFakeCal())
	ctx := context.Background()

	created, err := svc.Create(ctx, validInput())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	// Moving within its own buffered window must not self-conflict.
	newTime := "10:15"
	if err := svc.Update(ctx, created, model.BookingChanges{Time: &newTime}); err != nil {
		t.Errorf("Update onto own window: %v, want success", err)
	}
}

func TestCancelRemovesEventKeepsRecord(t *testing.T) {
	l := newFakeLedger()
	cal := newFakeCal()
	svc := testService(l, nil, cal)
	ctx := context.Background()

	created, err := svc.Create(ctx, validInput())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := svc.Cancel(ctx, created); err != nil {
		t.Fatalf("Cancel: %v", err)
	}

	stored := l.bookings[created.RecordID]
	if stored.Status != model.StatusCancelled {
		t.Errorf("status = %q, want Cancelled", stored.Status)
	}
	if len(cal.deleted) != 1 || cal.deleted[0] != created.EventID {
		t.Errorf("deleted events = %v, want [%s]", cal.deleted, created.EventID)
	}

	// The slot frees up for someone else.
	if _, err := svc.Create(ctx, validInput()); err != nil {
		t.Errorf("Create after cancel: %v, want success", err)
	}
}

func TestSlotsBatchFullDayBlockedIsZero(t *testing.T) {
	l := newFakeLedger()
	cal := newFakeCal()
	// Mirror of an all-day block: one opaque event covering business hours.
	cal.events["evblock"] = model.Event{
		ID:    "evblock",
		Start: time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC),
		End:   time.Date(2025, 6, 2, 20, 0, 0, 0, time.UTC),
	}
	svc := testService(l, nil, cal)

	caps, err := svc.SlotsBatch(context.Background(), []string{"2025-06-02", "2025-06-03"}, 45)
	if err != nil {
		t.Fatalf("SlotsBatch: %v", err)
	}
	if caps[0].Capacity != 0 {
		t.Errorf("blocked day capacity = %d, want 0", caps[0].Capacity)
	}
	if caps[1].Capacity == 0 {
		t.Error("open day capacity = 0, want positive")
	}

	slots, err := svc.Slots(context.Background(), "2025-06-02", 45)
	if err != nil {
		t.Fatalf("Slots: %v", err)
	}
	if len(slots) != 0 {
		t.Errorf("blocked day slots = %v, want empty", slots)
	}
}

func TestSlotsFallsBackToLedgerWhenCalendarFails(t *testing.T) {
	l := newFakeLedger()
	svc := testService(l, nil, newFakeCal())
	ctx := context.Background()
	if _, err := svc.Create(ctx, validInput()); err != nil {
		t.Fatalf("Create: %v", err)
	}

	// Swap in a calendar that refuses to list.
	svc.cal = failingCal{}
	slots, err := svc.Slots(ctx, "2025-06-02", 45)
	if err != nil {
		t.Fatalf("Slots with failing calendar: %v", err)
	}
	for _, slot := range slots {
		if slot == "10:00" {
			t.Error("ledger-known busy slot 10:00 offered despite fallback")
		}
	}
}

type failingCal struct{}

func (failingCal) ListEvents(context.Context, time.Time, time.Time) ([]model.Event, error) {
	return nil, errors.New("unreachable")
}
func (failingCal) EnsureEvent(context.Context, model.Booking) (string, error) {
	return "", errors.New("unreachable")
}
func (failingCal) PatchEvent(context.Context, string, model.Event) error {
	return errors.New("unreachable")
}
func (failingCal) DeleteEvent(context.Context, string) error {
	return errors.New("unreachable")
}
