package calendar

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/serenispa/booking-engine/internal/model"
)

// fakeCalendar is an in-memory stand-in for the calendar API, serving
// the token endpoint and the events collection.
type fakeCalendar struct {
	mu       sync.Mutex
	events   map[string]apiEvent
	nextID   int
	inserts  int
	refreshs int
}

func newFakeCalendar() *fakeCalendar {
	return &fakeCalendar{events: map[string]apiEvent{}, nextID: 1}
}

func (f *fakeCalendar) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.refreshs++
		f.mu.Unlock()
		if r.FormValue("grant_type") != "refresh_token" {
			http.Error(w, "bad grant", http.StatusBadRequest)
			return
		}
		json.NewEncoder(w).Encode(tokenResponse{AccessToken: "at-1", ExpiresIn: 3600})
	})
	mux.HandleFunc("/calendars/primary/events", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		switch r.Method {
		case http.MethodGet:
			list := apiEventList{Items: []apiEvent{}}
			for _, ev := range f.events {
				list.Items = append(list.Items, ev)
			}
			json.NewEncoder(w).Encode(list)
		case http.MethodPost:
			var ev apiEvent
			json.NewDecoder(r.Body).Decode(&ev)
			ev.ID = "ev" + string(rune('0'+f.nextID))
			f.nextID++
			f.inserts++
			f.events[ev.ID] = ev
			json.NewEncoder(w).Encode(ev)
		}
	})
	mux.HandleFunc("/calendars/primary/events/", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		id := strings.TrimPrefix(r.URL.Path, "/calendars/primary/events/")
		ev, ok := f.events[id]
		switch r.Method {
		case http.MethodGet:
			if !ok {
				http.Error(w, "not found", http.StatusNotFound)
				return
			}
			json.NewEncoder(w).Encode(ev)
		case http.MethodDelete:
			if !ok {
				http.Error(w, "gone", http.StatusGone)
				return
			}
			delete(f.events, id)
			w.WriteHeader(http.StatusNoContent)
		case http.MethodPatch:
			if !ok {
				http.Error(w, "not found", http.StatusNotFound)
				return
			}
			var patch apiEvent
			json.NewDecoder(r.Body).Decode(&patch)
			if patch.Start != nil {
				ev.Start = patch.Start
			}
			if patch.End != nil {
				ev.End = patch.End
			}
			if patch.Summary != "" {
				ev.Summary = patch.Summary
			}
			if patch.Description != "" {
				ev.Description = patch.Description
			}
			f.events[id] = ev
			json.NewEncoder(w).Encode(ev)
		}
	})
	return mux
}

func newTestClient(t *testing.T, fake *fakeCalendar) *Client {
	t.Helper()
	srv := httptest.NewServer(fake.handler())
	t.Cleanup(srv.Close)
	return NewClient(Config{
		APIURL:       srv.URL,
		TokenURL:     srv.URL + "/token",
		ClientID:     "cid",
		ClientSecret: "secret",
		RefreshToken: "rt",
		CalendarID:   "primary",
		Timezone:     "UTC",
	})
}

func testBooking() model.Booking {
	return model.Booking{
		BookingID:   "BK-2025060210-ABCDEFGHIJ",
		Name:        "Dana",
		Email:       "dana@example.com",
		Service:     "Massage",
		DurationMin: 45,
		Date:        "2025-06-02",
		Time:        "10:00",
		Status:      model.StatusConfirmed,
	}
}

func TestEnsureEventDuplicateGuard(t *testing.T) {
	fake := newFakeCalendar()
	c := newTestClient(t, fake)
	ctx := context.Background()

	first, err := c.EnsureEvent(ctx, testBooking())
	if err != nil {
		t.Fatalf("first EnsureEvent: %v", err)
	}
	second, err := c.EnsureEvent(ctx, testBooking())
	if err != nil {
		t.Fatalf("second EnsureEvent: %v", err)
	}
	if first != second {
		t.Errorf("EnsureEvent returned %q then %q, want identical ids", first, second)
	}
	if fake.inserts != 1 {
		t.Errorf("inserts = %d, want exactly 1", fake.inserts)
	}
}

func TestEnsureEventEmbedsBookingRef(t *testing.T) {
	fake := newFakeCalendar()
	c := newTestClient(t, fake)

	id, err := c.EnsureEvent(context.Background(), testBooking())
	if err != nil {
		t.Fatalf("EnsureEvent: %v", err)
	}
	ev, err := c.GetEvent(context.Background(), id)
	if err != nil {
		t.Fatalf("GetEvent: %v", err)
	}
	if got := model.ExtractBookingRef(ev.Description); got != "BK-2025060210-ABCDEFGHIJ" {
		t.Errorf("embedded booking ref = %q", got)
	}
	if want := 45 * time.Minute; ev.End.Sub(ev.Start) != want {
		t.Errorf("event duration = %v, want %v", ev.End.Sub(ev.Start), want)
	}
}

func TestDeleteEventGoneIsSuccess(t *testing.T) {
	fake := newFakeCalendar()
	c := newTestClient(t, fake)

	if err := c.DeleteEvent(context.Background(), "never-existed"); err != nil {
		t.Errorf("DeleteEvent on missing event: %v, want nil", err)
	}
}

func TestTokenIsCachedAcrossCalls(t *testing.T) {
	fake := newFakeCalendar()
	c := newTestClient(t, fake)
	ctx := context.Background()

	if _, err := c.ListEvents(ctx, time.Now(), time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	if _, err := c.ListEvents(ctx, time.Now(), time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	if fake.refreshs != 1 {
		t.Errorf("token refreshes = %d, want 1", fake.refreshs)
	}
}

func TestNotConfigured(t *testing.T) {
	c := NewClient(Config{})
	if _, err := c.ListEvents(context.Background(), time.Now(), time.Now()); err != ErrNotConfigured {
		t.Errorf("err = %v, want ErrNotConfigured", err)
	}
}
