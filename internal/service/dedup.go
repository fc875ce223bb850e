package service

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
)

// DuplicateTracker remembers which content was recently delivered to which
// phone.
type DuplicateTracker interface {
	Seen(ctx context.Context, phone, fingerprint string) (bool, error)
	Record(ctx context.Context, phone, fingerprint string) error
}

// Fingerprint hashes message content for duplicate detection.
func Fingerprint(text string) string {
	return strconv.FormatUint(xxhash.Sum64String(text), 16)
}

type dedupKey struct {
	phone       string
	fingerprint string
}

// MemoryDedupTracker keeps entries in process memory. Expired entries are
// evicted on every Seen call.
type MemoryDedupTracker struct {
	mu      sync.Mutex
	window  time.Duration
	entries map[dedupKey]time.Time
	now     func() time.Time
}

func NewMemoryDedupTracker(window time.Duration) *MemoryDedupTracker {
	return &MemoryDedupTracker{
		window:  window,
		entries: make(map[dedupKey]time.Time),
		now:     time.Now,
	}
}

func (t *MemoryDedupTracker) WithClock(now func() time.Time) *MemoryDedupTracker {
	t.now = now
	return t
}

func (t *MemoryDedupTracker) Seen(_ context.Context, phone, fingerprint string) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	for k, at := range t.entries {
		if now.Sub(at) >= t.window {
			delete(t.entries, k)
		}
	}
	_, ok := t.entries[dedupKey{phone, fingerprint}]
	return ok, nil
}

func (t *MemoryDedupTracker) Record(_ context.Context, phone, fingerprint string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.entries[dedupKey{phone, fingerprint}] = t.now()
	return nil
}

// Len reports the tracked entries, expired ones included.
func (t *MemoryDedupTracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}
