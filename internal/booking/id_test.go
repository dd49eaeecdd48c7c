package booking

import (
	"regexp"
	"strings"
	"testing"
	"time"
)

func TestGenerateIDFormat(t *testing.T) {
	date := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	id, err := GenerateID(date, 9)
	if err != nil {
		t.Fatalf("GenerateID: %v", err)
	}
	pattern := regexp.MustCompile(`^BK-2025060209-[A-Z2-9]{10}$`)
	if !pattern.MatchString(id) {
		t.Errorf("id %q does not match %s", id, pattern)
	}
}

func TestGenerateIDSortsBySlot(t *testing.T) {
	date := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	early, _ := GenerateID(date, 8)
	late, _ := GenerateID(date.AddDate(0, 0, 1), 8)
	if !(early < late) {
		t.Errorf("ids not sortable by date: %q !< %q", early, late)
	}
	morning, _ := GenerateID(date, 9)
	evening, _ := GenerateID(date, 18)
	if !(morning < evening) {
		t.Errorf("ids not sortable by hour: %q !< %q", morning, evening)
	}
}

func TestGenerateIDUniqueness(t *testing.T) {
	date := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	seen := make(map[string]struct{}, 2000)
	for i := 0; i < 2000; i++ {
		id, err := GenerateID(date, 10)
		if err != nil {
			t.Fatalf("GenerateID: %v", err)
		}
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate id after %d generations: %s", i, id)
		}
		seen[id] = struct{}{}
		if suffix := id[len(id)-idSuffixLen:]; strings.ContainsAny(suffix, "01IO") {
			t.Fatalf("suffix %q contains an ambiguous character", suffix)
		}
	}
}
