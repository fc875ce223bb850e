package service

import (
	"context"
	"testing"
	"time"
)

func TestMemoryDedupTracker_WindowAndEviction(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Date(2026, 3, 7, 10, 0, 0, 0, time.UTC)}
	tr := NewMemoryDedupTracker(5 * time.Minute).WithClock(clock.Now)
	ctx := context.Background()
	fp := Fingerprint("Pump failure")

	if seen, _ := tr.Seen(ctx, "0501", fp); seen {
		t.Fatalf("expected unseen before record")
	}
	if err := tr.Record(ctx, "0501", fp); err != nil {
		t.Fatalf("Record() error: %v", err)
	}

	clock.Set(clock.Now().Add(4*time.Minute + 59*time.Second))
	if seen, _ := tr.Seen(ctx, "0501", fp); !seen {
		t.Fatalf("expected seen inside the window")
	}
	if seen, _ := tr.Seen(ctx, "0502", fp); seen {
		t.Fatalf("expected other phone unseen")
	}
	if seen, _ := tr.Seen(ctx, "0501", Fingerprint("Pump restored")); seen {
		t.Fatalf("expected other content unseen")
	}

	clock.Set(clock.Now().Add(time.Second))
	if seen, _ := tr.Seen(ctx, "0501", fp); seen {
		t.Fatalf("expected entry expired at the window edge")
	}
	if tr.Len() != 0 {
		t.Fatalf("expected expired entry evicted, got %d entries", tr.Len())
	}
}

func TestFingerprint(t *testing.T) {
	t.Parallel()

	if Fingerprint("Pump failure") != Fingerprint("Pump failure") {
		t.Fatalf("expected stable fingerprint")
	}
	if Fingerprint("Pump failure") == Fingerprint("pump failure") {
		t.Fatalf("expected case sensitive fingerprint")
	}
}
