// Package calendar wraps the external calendar service: the shared
// scheduling surface humans view and edit directly.  The adapter owns
// the OAuth refresh-token flow and exposes a uniform event
// representation to the rest of the engine.
package calendar

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/serenispa/booking-engine/internal/model"
)

// ErrNotConfigured is returned when calendar credentials are absent.
var ErrNotConfigured = errors.New("calendar: not configured")

// Config carries the connection parameters for one calendar.
type Config struct {
	APIURL       string // events API root, e.g. https://calendar.example/v3
	TokenURL     string // OAuth token endpoint
	ClientID     string
	ClientSecret string
	RefreshToken string
	CalendarID   string
	Timezone     string // IANA name of the business timezone
	Timeout      time.Duration
}

// Client is a calendar API client.  Access tokens are cached and
// refreshed transparently; a request failing with 401 is retried once
// with a fresh token.
type Client struct {
	cfg  Config
	http *http.Client

	tokens tokenSource
}

// NewClient builds a calendar client from the given configuration.
func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	httpClient := &http.Client{Timeout: cfg.Timeout}
	return &Client{
		cfg:    cfg,
		http:   httpClient,
		tokens: tokenSource{cfg: cfg, http: httpClient},
	}
}

// Configured reports whether the client has credentials to work with.
func (c *Client) Configured() bool {
	return c.cfg.RefreshToken != "" && c.cfg.ClientID != "" && c.cfg.CalendarID != ""
}

// wire representations of the calendar API

type apiEventTime struct {
	DateTime string `json:"dateTime,omitempty"`
	Date     string `json:"date,omitempty"`
	TimeZone string `json:"timeZone,omitempty"`
}

type apiEvent struct {
	ID           string        `json:"id,omitempty"`
	Status       string        `json:"status,omitempty"`
	Summary      string        `json:"summary,omitempty"`
	Description  string        `json:"description,omitempty"`
	Start        *apiEventTime `json:"start,omitempty"`
	End          *apiEventTime `json:"end,omitempty"`
	Transparency string        `json:"transparency,omitempty"`
}

type apiEventList struct {
	Items         []apiEvent `json:"items"`
	NextPageToken string     `json:"nextPageToken,omitempty"`
}

// ListEvents returns every non-cancelled event whose start falls inside
// [from, to), following pagination until the window is exhausted.
func (c *Client) ListEvents(ctx context.Context, from, to time.Time) ([]model.Event, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	loc, err := c.location()
	if err != nil {
		return nil, err
	}
	var out []model.Event
	pageToken := ""
	for {
		q := url.Values{}
		q.Set("timeMin", from.Format(time.RFC3339))
		q.Set("timeMax", to.Format(time.RFC3339))
		q.Set("singleEvents", "true")
		q.Set("orderBy", "startTime")
		if pageToken != "" {
			q.Set("pageToken", pageToken)
		}
		var page apiEventList
		if err := c.do(ctx, http.MethodGet, c.eventsURL("")+"?"+q.Encode(), nil, &page); err != nil {
			return nil, err
		}
		for _, item := range page.Items {
			if item.Status == "cancelled" {
				continue
			}
			ev, err := eventFromAPI(item, loc)
			if err != nil {
				continue
			}
			out = append(out, ev)
		}
		if page.NextPageToken == "" {
			return out, nil
		}
		pageToken = page.NextPageToken
	}
}

// GetEvent fetches a single event by identifier.
func (c *Client) GetEvent(ctx context.Context, eventID string) (model.Event, error) {
	if !c.Configured() {
		return model.Event{}, ErrNotConfigured
	}
	loc, err := c.location()
	if err != nil {
		return model.Event{}, err
	}
	var item apiEvent
	if err := c.do(ctx, http.MethodGet, c.eventsURL(eventID), nil, &item); err != nil {
		return model.Event{}, err
	}
	return eventFromAPI(item, loc)
}

// InsertEvent creates an event and returns it with the service-assigned
// identifier.
func (c *Client) InsertEvent(ctx context.Context, ev model.Event) (model.Event, error) {
	if !c.Configured() {
		return model.Event{}, ErrNotConfigured
	}
	loc, err := c.location()
	if err != nil {
		return model.Event{}, err
	}
	var created apiEvent
	if err := c.do(ctx, http.MethodPost, c.eventsURL(""), eventToAPI(ev, c.cfg.Timezone), &created); err != nil {
		return model.Event{}, err
	}
	return eventFromAPI(created, loc)
}

// PatchEvent updates an event's time, summary and description.  The
// embedded booking identifier in the description is the cross-store
// join key, so callers must pass descriptions that preserve it.
func (c *Client) PatchEvent(ctx context.Context, eventID string, ev model.Event) error {
	if !c.Configured() {
		return ErrNotConfigured
	}
	return c.do(ctx, http.MethodPatch, c.eventsURL(eventID), eventToAPI(ev, c.cfg.Timezone), nil)
}

// DeleteEvent removes an event.  "Already gone" (404 or 410) counts as
// success: the desired end state, no event, is already reached, and a
// human deleting the entry first must not surface as a failure.
func (c *Client) DeleteEvent(ctx context.Context, eventID string) error {
	if !c.Configured() {
		return ErrNotConfigured
	}
	err := c.do(ctx, http.MethodDelete, c.eventsURL(eventID), nil, nil)
	if isGone(err) {
		return nil
	}
	return err
}

type watchRequest struct {
	ID         string `json:"id"`
	Type       string `json:"type"`
	Address    string `json:"address"`
	Token      string `json:"token,omitempty"`
	Expiration int64  `json:"expiration,omitempty"`
}

type watchResponse struct {
	ID         string `json:"id"`
	ResourceID string `json:"resourceId"`
	Expiration int64  `json:"expiration"`
}

// Watch registers a push notification channel for the calendar.  The
// service delivers change signals to the given address until the
// returned expiration; the channel carries no event detail, only a
// doorbell.
func (c *Client) Watch(ctx context.Context, channelID, address, token string, expiration time.Time) (string, time.Time, error) {
	if !c.Configured() {
		return "", time.Time{}, ErrNotConfigured
	}
	req := watchRequest{
		ID:      channelID,
		Type:    "web_hook",
		Address: address,
		Token:   token,
	}
	if !expiration.IsZero() {
		req.Expiration = expiration.UnixMilli()
	}
	var resp watchResponse
	if err := c.do(ctx, http.MethodPost, c.eventsURL("watch"), req, &resp); err != nil {
		return "", time.Time{}, err
	}
	return resp.ID, time.UnixMilli(resp.Expiration).UTC(), nil
}

func (c *Client) eventsURL(suffix string) string {
	base := fmt.Sprintf("%s/calendars/%s/events", strings.TrimRight(c.cfg.APIURL, "/"), url.PathEscape(c.cfg.CalendarID))
	if suffix == "" {
		return base
	}
	return base + "/" + url.PathEscape(suffix)
}

func (c *Client) location() (*time.Location, error) {
	if c.cfg.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("calendar: invalid timezone %q: %w", c.cfg.Timezone, err)
	}
	return loc, nil
}

// statusError carries a non-2xx response so gone-is-success checks can
// inspect the code.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("calendar: status %d: %s", e.code, e.body)
}

func isGone(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		return se.code == http.StatusNotFound || se.code == http.StatusGone
	}
	return false
}

// do performs an authenticated request, refreshing the access token and
// retrying once when the service rejects it.
func (c *Client) do(ctx context.Context, method, endpoint string, body, out any) error {
	var raw []byte
	if body != nil {
		var err error
		raw, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("calendar: marshal request: %w", err)
		}
	}
	for attempt := 0; ; attempt++ {
		token, err := c.tokens.token(ctx, attempt > 0)
		if err != nil {
			return err
		}
		var payload io.Reader
		if raw != nil {
			payload = bytes.NewReader(raw)
		}
		req, err := http.NewRequestWithContext(ctx, method, endpoint, payload)
		if err != nil {
			return fmt.Errorf("calendar: build request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
		if raw != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		resp, err := c.http.Do(req)
		if err != nil {
			return fmt.Errorf("calendar: %s %s: %w", method, endpoint, err)
		}
		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return fmt.Errorf("calendar: read response: %w", err)
		}
		if resp.StatusCode == http.StatusUnauthorized && attempt == 0 {
			continue
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			msg := string(respBody)
			if len(msg) > 256 {
				msg = msg[:256] + "..."
			}
			return &statusError{code: resp.StatusCode, body: msg}
		}
		if out != nil && len(respBody) > 0 {
			if err := json.Unmarshal(respBody, out); err != nil {
				return fmt.Errorf("calendar: decode response: %w", err)
			}
		}
		return nil
	}
}

func eventToAPI(ev model.Event, timezone string) apiEvent {
	return apiEvent{
		Summary:      ev.Summary,
		Description:  ev.Description,
		Start:        &apiEventTime{DateTime: ev.Start.Format(time.RFC3339), TimeZone: timezone},
		End:          &apiEventTime{DateTime: ev.End.Format(time.RFC3339), TimeZone: timezone},
		Transparency: ev.Transparency,
	}
}

func eventFromAPI(item apiEvent, loc *time.Location) (model.Event, error) {
	start, err := parseEventTime(item.Start, loc)
	if err != nil {
		return model.Event{}, err
	}
	end, err := parseEventTime(item.End, loc)
	if err != nil {
		return model.Event{}, err
	}
	return model.Event{
		ID:           item.ID,
		Summary:      item.Summary,
		Description:  item.Description,
		Start:        start,
		End:          end,
		Transparency: item.Transparency,
	}, nil
}

// parseEventTime handles both timed events (dateTime) and all-day
// events (date), which a human creating a block by hand may produce.
func parseEventTime(et *apiEventTime, loc *time.Location) (time.Time, error) {
	if et == nil {
		return time.Time{}, errors.New("calendar: event missing time")
	}
	if et.DateTime != "" {
		t, err := time.Parse(time.RFC3339, et.DateTime)
		if err != nil {
			return time.Time{}, fmt.Errorf("calendar: bad dateTime %q: %w", et.DateTime, err)
		}
		return t.In(loc), nil
	}
	if et.Date != "" {
		t, err := time.ParseInLocation(model.DateLayout, et.Date, loc)
		if err != nil {
			return time.Time{}, fmt.Errorf("calendar: bad date %q: %w", et.Date, err)
		}
		return t, nil
	}
	return time.Time{}, errors.New("calendar: event missing time")
}
