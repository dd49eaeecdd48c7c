package otp

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrNoEntry is returned when no code is pending for a key.
var ErrNoEntry = errors.New("otp: no pending code")

// Entry is a pending one-time code challenge.  Only the bcrypt hash of
// the code is stored; the plaintext exists solely in the outbound
// message to the customer.
type Entry struct {
	Hash      []byte    `json:"hash"`
	Attempts  int       `json:"attempts"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the challenge is past its lifetime.
func (e Entry) Expired(now time.Time) bool {
	return now.After(e.ExpiresAt)
}

// Store persists pending challenges keyed by booking ID.  Both an
// in-process map and a redis-backed implementation exist; single
// instance deployments need no extra infrastructure, while multiple
// replicas share challenges through redis.
type Store interface {
	Put(ctx context.Context, key string, e Entry) error
	Get(ctx context.Context, key string) (Entry, error)
	Delete(ctx context.Context, key string) error
}

// MemoryStore keeps challenges in a mutex-guarded map.  Entries are
// dropped lazily on read and swept periodically via Sweep.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]Entry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]Entry)}
}

func (s *MemoryStore) Put(ctx context.Context, key string, e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = e
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, key string) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		return Entry{}, ErrNoEntry
	}
	if e.Expired(time.Now()) {
		delete(s.entries, key)
		return Entry{}, ErrNoEntry
	}
	return e, nil
}

func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

// Sweep removes expired entries.  Run loops it until the context is
// cancelled; meant to be launched as a goroutine at startup.
func (s *MemoryStore) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for k, e := range s.entries {
		if e.Expired(now) {
			delete(s.entries, k)
			removed++
		}
	}
	return removed
}

func (s *MemoryStore) Run(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.Sweep(now)
		}
	}
}
