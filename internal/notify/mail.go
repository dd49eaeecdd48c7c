package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrMailNotConfigured is returned when no mail provider credentials
// were supplied.  Delivery is optional in development; callers log and
// move on.
var ErrMailNotConfigured = errors.New("notify: mail provider not configured")

// MailClient sends transactional email through an HTTP provider API.
type MailClient struct {
	apiURL string
	apiKey string
	from   string
	http   *http.Client
}

func NewMailClient(apiURL, apiKey, from string, timeout time.Duration) *MailClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &MailClient{apiURL: apiURL, apiKey: apiKey, from: from, http: &http.Client{Timeout: timeout}}
}

// Configured reports whether provider credentials are present.
func (m *MailClient) Configured() bool {
	return m != nil && m.apiURL != "" && m.apiKey != ""
}

type mailRequest struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Text    string `json:"text"`
}

// Send posts one message to the provider.
func (m *MailClient) Send(ctx context.Context, to, subject, text string) error {
	if !m.Configured() {
		return ErrMailNotConfigured
	}
	body, err := json.Marshal(mailRequest{From: m.from, To: to, Subject: subject, Text: text})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.apiURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+m.apiKey)

	resp, err := m.http.Do(req)
	if err != nil {
		return fmt.Errorf("notify: mail request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("notify: mail provider returned %d: %s", resp.StatusCode, raw)
	}
	return nil
}

// SendBookingConfirmed composes and sends the confirmation message.
func (m *MailClient) SendBookingConfirmed(ctx context.Context, ev BookingConfirmedEvent) error {
	subject := fmt.Sprintf("Booking confirmed: %s on %s", ev.Service, ev.Date)
	text := fmt.Sprintf(
		"Hi %s,\n\nYour booking is confirmed.\n\nService: %s\nDate: %s\nTime: %s\nDuration: %d minutes\nReference: %s\n\nKeep the reference handy; you will need it together with your email address to manage the booking.\n",
		ev.Name, ev.Service, ev.Date, ev.Time, ev.Duration, ev.BookingID,
	)
	return m.Send(ctx, ev.Email, subject, text)
}

// SendOTP composes and sends a one-time code message.
func (m *MailClient) SendOTP(ctx context.Context, email, code string, ttl time.Duration) error {
	subject := "Your verification code"
	text := fmt.Sprintf(
		"Your verification code is %s.\n\nIt expires in %d minutes. If you did not request it, ignore this message.\n",
		code, int(ttl.Minutes()),
	)
	return m.Send(ctx, email, subject, text)
}
