// Package cache holds the chunks of the most recent upload for a short time,
// so questions can be generated before the vector index has caught up.
package cache

import (
	"log"
	"sync"
	"time"
)

// DefaultTTL is how long a put stays readable.
const DefaultTTL = 5 * time.Minute

// Store is the contract the orchestrator depends on.
type Store interface {
	Put(chunks []string)
	Get() ([]string, bool)
	Clear()
}

var _ Store = (*Recent)(nil)

// Recent is a single last-write-wins slot with lazy expiry.
type Recent struct {
	mu        sync.RWMutex
	chunks    []string
	writtenAt time.Time
	ttl       time.Duration
	now       func() time.Time
}

type Option func(*Recent)

// WithTTL overrides DefaultTTL. Non-positive values are ignored.
func WithTTL(ttl time.Duration) Option {
	return func(r *Recent) {
		if ttl > 0 {
			r.ttl = ttl
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(r *Recent) {
		if now != nil {
			r.now = now
		}
	}
}

func NewRecent(opts ...Option) *Recent {
	r := &Recent{ttl: DefaultTTL, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Put replaces the slot with a copy of chunks.
func (r *Recent) Put(chunks []string) {
	cp := make([]string, len(chunks))
	copy(cp, chunks)

	r.mu.Lock()
	r.chunks = cp
	r.writtenAt = r.now()
	r.mu.Unlock()

	log.Printf("recent chunks cached: %d", len(cp))
}

// Get returns the cached chunks if they are non-empty and not older than the TTL.
func (r *Recent) Get() ([]string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.chunks) == 0 || r.now().Sub(r.writtenAt) > r.ttl {
		return nil, false
	}
	cp := make([]string, len(r.chunks))
	copy(cp, r.chunks)
	return cp, true
}

func (r *Recent) Clear() {
	r.mu.Lock()
	r.chunks = nil
	r.writtenAt = time.Time{}
	r.mu.Unlock()
}

// TTL returns the configured time to live.
func (r *Recent) TTL() time.Duration { return r.ttl }
