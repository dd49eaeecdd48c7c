package availability

import (
	"testing"
	"time"
)

func TestHasConflictBuffered(t *testing.T) {
	session := 45 * time.Minute
	buffer := 30 * time.Minute
	existing := []Interval{{Start: day(t, "10:00"), End: day(t, "10:45")}}

	tests := []struct {
		candidate string
		want      bool
	}{
		{"08:00", false},
		{"08:45", false}, // ends 09:30, buffered end 10:00 == existing start
		{"09:00", true},
		{"09:15", true},
		{"10:00", true},
		{"10:30", true},
		{"11:00", true},
		{"11:15", false}, // existing end 10:45 + 30m buffer == 11:15
		{"12:00", false},
	}
	for _, tc := range tests {
		t.Run(tc.candidate, func(t *testing.T) {
			if got := HasConflict(day(t, tc.candidate), session, buffer, existing); got != tc.want {
				t.Errorf("HasConflict(%s) = %v, want %v", tc.candidate, got, tc.want)
			}
		})
	}
}

func TestHasConflictSymmetry(t *testing.T) {
	buffer := 30 * time.Minute
	starts := []string{"08:00", "09:30", "10:00", "11:15", "13:00", "16:45"}
	durations := []time.Duration{30 * time.Minute, 45 * time.Minute, 2 * time.Hour}

	for _, sa := range starts {
		for _, sb := range starts {
			for _, da := range durations {
				for _, db := range durations {
					a := day(t, sa)
					b := day(t, sb)
					ab := HasConflict(a, da, buffer, []Interval{{Start: b, End: b.Add(db)}})
					ba := HasConflict(b, db, buffer, []Interval{{Start: a, End: a.Add(da)}})
					if ab != ba {
						t.Errorf("asymmetric conflict: a=%s/%v b=%s/%v: %v vs %v", sa, da, sb, db, ab, ba)
					}
				}
			}
		}
	}
}

func TestHasConflictNoExisting(t *testing.T) {
	if HasConflict(day(t, "10:00"), 45*time.Minute, 30*time.Minute, nil) {
		t.Error("conflict reported against empty day")
	}
}
