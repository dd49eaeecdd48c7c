// Package watch keeps a calendar push notification channel alive.
// Channels expire (typically after seven days); the renewer registers a
// fresh channel on a schedule comfortably inside that lifetime so
// doorbell notifications keep arriving.  A renewal failure is not fatal
// because the periodic full reconcile still converges the stores; it is
// counted and logged instead.
package watch

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultInterval renews well before the service-side seven day
// channel expiry.
const DefaultInterval = 6 * 24 * time.Hour

// Subscriber registers a push channel with the calendar service.
type Subscriber interface {
	Watch(ctx context.Context, channelID, address, token string, expiration time.Time) (string, time.Time, error)
}

// Channel describes the currently registered push channel.
type Channel struct {
	ID        string    `json:"id"`
	Expires   time.Time `json:"expires"`
	RenewedAt time.Time `json:"renewed_at"`
}

// Renewer periodically re-registers the webhook channel.  Channel IDs
// are fresh UUIDs per registration so a stale channel can never be
// confused with the live one when notifications arrive.
type Renewer struct {
	sub      Subscriber
	address  string
	token    string
	interval time.Duration

	mu       sync.Mutex
	current  Channel
	failures int
}

func NewRenewer(sub Subscriber, address, token string, interval time.Duration) *Renewer {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Renewer{sub: sub, address: address, token: token, interval: interval}
}

// Renew registers a new channel immediately.
func (r *Renewer) Renew(ctx context.Context) error {
	id := uuid.NewString()
	expiration := time.Now().Add(r.interval + 24*time.Hour)
	registeredID, expires, err := r.sub.Watch(ctx, id, r.address, r.token, expiration)
	if err != nil {
		r.mu.Lock()
		r.failures++
		r.mu.Unlock()
		return err
	}
	r.mu.Lock()
	r.current = Channel{ID: registeredID, Expires: expires, RenewedAt: time.Now()}
	r.mu.Unlock()
	return nil
}

// Run renews once at startup and then on every interval tick until the
// context is cancelled.  Meant to be launched as a goroutine.
func (r *Renewer) Run(ctx context.Context) {
	if err := r.Renew(ctx); err != nil {
		log.Printf("watch: initial channel registration failed: %v", err)
	}
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.Renew(ctx); err != nil {
				log.Printf("watch: channel renewal failed: %v", err)
			}
		}
	}
}

// Current returns the active channel registration, zero valued when no
// registration has succeeded yet.
func (r *Renewer) Current() Channel {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// Failures returns how many renewal attempts have failed since start.
func (r *Renewer) Failures() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.failures
}

// Owns reports whether the given channel ID belongs to the live
// registration.  Notifications from superseded channels are still
// trustworthy doorbells, so callers typically log rather than reject on
// a false return.
func (r *Renewer) Owns(channelID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current.ID != "" && r.current.ID == channelID
}
