// Package limiter provides token bucket rate limiting behind a small
// store interface.  The public booking and code-request endpoints need
// abuse protection; a redis-backed bucket shares state across replicas,
// and an in-process bucket serves single-instance deployments without
// extra infrastructure.
package limiter

import (
	"context"
	"sync"
	"time"
)

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed    bool
	Remaining  int64
	RetryAfter time.Duration
}

// Config shapes a bucket: Capacity tokens, refilled RefillTokens at a
// time every RefillInterval.  TTL bounds how long an idle bucket is
// remembered.
type Config struct {
	Capacity       int
	RefillTokens   int
	RefillInterval time.Duration
	TTL            time.Duration
}

// Store spends one token from the bucket identified by key.
type Store interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

type bucket struct {
	tokens     int
	lastRefill time.Time
	touched    time.Time
}

// MemoryStore is a mutex-guarded in-process token bucket map.
type MemoryStore struct {
	cfg     Config
	mu      sync.Mutex
	buckets map[string]*bucket
	now     func() time.Time
}

func NewMemoryStore(cfg Config) *MemoryStore {
	return &MemoryStore{cfg: cfg, buckets: make(map[string]*bucket), now: time.Now}
}

func (s *MemoryStore) Allow(ctx context.Context, key string) (Decision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()

	b, ok := s.buckets[key]
	if !ok || (s.cfg.TTL > 0 && now.Sub(b.touched) > s.cfg.TTL) {
		b = &bucket{tokens: s.cfg.Capacity, lastRefill: now}
		s.buckets[key] = b
	}
	b.touched = now

	if s.cfg.RefillInterval > 0 && s.cfg.RefillTokens > 0 {
		intervals := int(now.Sub(b.lastRefill) / s.cfg.RefillInterval)
		if intervals > 0 {
			b.tokens += intervals * s.cfg.RefillTokens
			if b.tokens > s.cfg.Capacity {
				b.tokens = s.cfg.Capacity
			}
			b.lastRefill = b.lastRefill.Add(time.Duration(intervals) * s.cfg.RefillInterval)
		}
	}

	if b.tokens <= 0 {
		wait := s.cfg.RefillInterval - now.Sub(b.lastRefill)
		if wait < 0 {
			wait = 0
		}
		return Decision{Allowed: false, Remaining: 0, RetryAfter: wait}, nil
	}
	b.tokens--
	return Decision{Allowed: true, Remaining: int64(b.tokens)}, nil
}

// Sweep removes buckets idle past the TTL so per-client state does not
// grow without bound.  Run loops it until the context is cancelled;
// meant to be launched as a goroutine at startup.
func (s *MemoryStore) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cfg.TTL <= 0 {
		return 0
	}
	removed := 0
	for k, b := range s.buckets {
		if now.Sub(b.touched) > s.cfg.TTL {
			delete(s.buckets, k)
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
