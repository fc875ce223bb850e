package cache

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/LeventeLantos/alarm-sms-dispatch/internal/service"
)

var _ service.DuplicateTracker = (*RedisDedupTracker)(nil)

func newTracker(t *testing.T, ttl time.Duration) (*RedisDedupTracker, *miniredis.Miniredis) {
	t.Helper()

	// Start in-memory Redis
	mr := miniredis.RunT(t)

	rdb := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
	t.Cleanup(func() { _ = rdb.Close() })

	return NewRedisDedupTracker(rdb, ttl, "sms:dedup:"), mr
}

func TestRedisDedupTracker_RecordThenSeen(t *testing.T) {
	t.Parallel()

	tracker, mr := newTracker(t, 5*time.Minute)
	sentAt := time.Date(2026, 3, 7, 10, 0, 0, 0, time.UTC)
	tracker.now = func() time.Time { return sentAt }
	ctx := context.Background()

	seen, err := tracker.Seen(ctx, "0501", "abc")
	if err != nil {
		t.Fatalf("Seen() error: %v", err)
	}
	if seen {
		t.Fatalf("expected unseen before Record")
	}

	if err := tracker.Record(ctx, "0501", "abc"); err != nil {
		t.Fatalf("Record() error: %v", err)
	}

	key := "sms:dedup:0501:abc"
	if !mr.Exists(key) {
		t.Fatalf("expected key %q to exist", key)
	}
	if ttl := mr.TTL(key); ttl <= 0 || ttl > 5*time.Minute {
		t.Fatalf("expected TTL within the window, got %v", ttl)
	}

	raw, err := mr.Get(key)
	if err != nil {
		t.Fatalf("failed to get key %q: %v", key, err)
	}
	var got sentValue
	if err := json.Unmarshal([]byte(raw), &got); err != nil {
		t.Fatalf("failed to unmarshal value: %v", err)
	}
	if !got.SentAt.Equal(sentAt) {
		t.Fatalf("expected SentAt %v, got %v", sentAt, got.SentAt)
	}

	seen, err = tracker.Seen(ctx, "0501", "abc")
	if err != nil || !seen {
		t.Fatalf("expected seen after Record, got %v (err=%v)", seen, err)
	}
	if seen, _ := tracker.Seen(ctx, "0502", "abc"); seen {
		t.Fatalf("expected other phone unseen")
	}
}

func TestRedisDedupTracker_StoredSendTimeBoundsWindow(t *testing.T) {
	t.Parallel()

	tracker, mr := newTracker(t, 5*time.Minute)
	sentAt := time.Date(2026, 3, 7, 10, 0, 0, 0, time.UTC)
	ctx := context.Background()

	// Marker left behind by a deployment with a longer window.
	b, _ := json.Marshal(sentValue{SentAt: sentAt})
	key := "sms:dedup:0501:abc"
	if err := mr.Set(key, string(b)); err != nil {
		t.Fatalf("failed to seed key: %v", err)
	}
	mr.SetTTL(key, time.Hour)

	tracker.now = func() time.Time { return sentAt.Add(4 * time.Minute) }
	if seen, err := tracker.Seen(ctx, "0501", "abc"); err != nil || !seen {
		t.Fatalf("expected seen inside the window, got %v (err=%v)", seen, err)
	}

	tracker.now = func() time.Time { return sentAt.Add(5 * time.Minute) }
	if seen, err := tracker.Seen(ctx, "0501", "abc"); err != nil || seen {
		t.Fatalf("expected unseen once the window passed, got %v (err=%v)", seen, err)
	}
}

func TestRedisDedupTracker_UnreadableMarkerCountsAsSeen(t *testing.T) {
	t.Parallel()

	tracker, mr := newTracker(t, 5*time.Minute)
	if err := mr.Set("sms:dedup:0501:abc", "1"); err != nil {
		t.Fatalf("failed to seed key: %v", err)
	}

	if seen, err := tracker.Seen(context.Background(), "0501", "abc"); err != nil || !seen {
		t.Fatalf("expected seen, got %v (err=%v)", seen, err)
	}
}

func TestRedisDedupTracker_ExpiresAfterWindow(t *testing.T) {
	t.Parallel()

	tracker, mr := newTracker(t, time.Minute)
	ctx := context.Background()

	if err := tracker.Record(ctx, "0501", "abc"); err != nil {
		t.Fatalf("Record() error: %v", err)
	}

	mr.FastForward(time.Minute + time.Second)

	seen, err := tracker.Seen(ctx, "0501", "abc")
	if err != nil {
		t.Fatalf("Seen() error: %v", err)
	}
	if seen {
		t.Fatalf("expected marker expired")
	}
}

func TestRedisDedupTracker_ContextCanceled(t *testing.T) {
	t.Parallel()

	tracker, _ := newTracker(t, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := tracker.Record(ctx, "0501", "x"); err == nil {
		t.Fatalf("expected error due to canceled context, got nil")
	}
	if _, err := tracker.Seen(ctx, "0501", "x"); err == nil {
		t.Fatalf("expected error due to canceled context, got nil")
	}
}

func TestRedisDedupTracker_ServerDown(t *testing.T) {
	t.Parallel()

	tracker, mr := newTracker(t, time.Second)
	mr.Close()

	if err := tracker.Ping(context.Background()); err == nil {
		t.Fatalf("expected ping error with server down")
	}
}
