package availability

import (
	"testing"
	"time"
)

func day(t *testing.T, hhmm string) time.Time {
	t.Helper()
	tm, err := time.Parse("2006-01-02 15:04", "2025-06-02 "+hhmm)
	if err != nil {
		t.Fatalf("parse %q: %v", hhmm, err)
	}
	return tm
}

func TestComputeSlotsOpenDay(t *testing.T) {
	open, close := day(t, "08:00"), day(t, "20:00")
	slots := ComputeSlots(open, close, 15*time.Minute, 45*time.Minute, nil)

	if len(slots) == 0 {
		t.Fatal("expected slots for an open day")
	}
	if !slots[0].Equal(day(t, "08:00")) {
		t.Errorf("first slot = %v, want 08:00", slots[0])
	}
	if last := slots[len(slots)-1]; !last.Equal(day(t, "19:15")) {
		t.Errorf("last slot = %v, want 19:15", last)
	}
	// 08:00 through 19:15 inclusive at 15-minute steps.
	if want := 46; len(slots) != want {
		t.Errorf("slot count = %d, want %d", len(slots), want)
	}
}

func TestComputeSlotsNeverPastClose(t *testing.T) {
	open, close := day(t, "09:00"), day(t, "18:00")
	for _, session := range []time.Duration{30 * time.Minute, 45 * time.Minute, 90 * time.Minute, 7 * time.Hour} {
		for _, slot := range ComputeSlots(open, close, 15*time.Minute, session, nil) {
			if slot.Add(session).After(close) {
				t.Errorf("session %v: slot %v extends past close", session, slot)
			}
		}
	}
}

func TestComputeSlotsRespectsBusyIntervals(t *testing.T) {
	open, close := day(t, "08:00"), day(t, "20:00")
	session := 45 * time.Minute
	buffer := 30 * time.Minute
	busy := ExpandBusy([]Interval{
		{Start: day(t, "10:00"), End: day(t, "10:45")},
		{Start: day(t, "14:00"), End: day(t, "15:30")},
	}, buffer, open, close)

	for _, slot := range ComputeSlots(open, close, 15*time.Minute, session, busy) {
		cand := Interval{Start: slot, End: slot.Add(session)}
		for _, iv := range busy {
			if cand.Overlaps(iv) {
				t.Errorf("slot %v overlaps buffered busy interval %v-%v", slot, iv.Start, iv.End)
			}
		}
	}
}

func TestComputeSlotsEdgeCases(t *testing.T) {
	open, close := day(t, "08:00"), day(t, "20:00")

	if got := ComputeSlots(open, close, 15*time.Minute, 13*time.Hour, nil); len(got) != 0 {
		t.Errorf("session longer than day: got %d slots, want 0", len(got))
	}

	fullDay := []Interval{{Start: day(t, "08:00"), End: day(t, "20:00")}}
	if got := ComputeSlots(open, close, 15*time.Minute, 45*time.Minute, fullDay); len(got) != 0 {
		t.Errorf("fully blocked day: got %d slots, want 0", len(got))
	}
}

func TestExpandBusyClampsToBusinessHours(t *testing.T) {
	open, close := day(t, "08:00"), day(t, "20:00")
	out := ExpandBusy([]Interval{
		{Start: day(t, "08:10"), End: day(t, "08:40")},
		{Start: day(t, "19:50"), End: day(t, "20:00")},
	}, 30*time.Minute, open, close)

	if len(out) != 2 {
		t.Fatalf("got %d intervals, want 2", len(out))
	}
	if !out[0].Start.Equal(open) {
		t.Errorf("first interval start = %v, want clamp to open", out[0].Start)
	}
	if !out[1].End.Equal(close) {
		t.Errorf("second interval end = %v, want clamp to close", out[1].End)
	}
}

func TestCapacity(t *testing.T) {
	open, close := day(t, "08:00"), day(t, "20:00")
	session := 45 * time.Minute
	buffer := 30 * time.Minute

	tests := []struct {
		name string
		busy []Interval
		want int
	}{
		{name: "empty day", busy: nil, want: 9}, // 720 min / 75 min
		{name: "full day blocked", busy: []Interval{{Start: day(t, "08:00"), End: day(t, "20:00")}}, want: 0},
		{
			name: "morning blocked",
			busy: []Interval{{Start: day(t, "08:00"), End: day(t, "14:00")}},
			want: 4, // 360 free minutes
		},
		{
			name: "overlapping blocks merge",
			busy: []Interval{
				{Start: day(t, "08:00"), End: day(t, "12:00")},
				{Start: day(t, "11:00"), End: day(t, "14:00")},
			},
			want: 4,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Capacity(open, close, session, buffer, tc.busy); got != tc.want {
				t.Errorf("Capacity = %d, want %d", got, tc.want)
			}
		})
	}
}
