package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisDedupTracker keeps recent-send markers in Redis so they survive a
// restart. Each marker expires after the duplicate window.
type RedisDedupTracker struct {
	rdb    *redis.Client
	ttl    time.Duration
	prefix string
	now    func() time.Time
}

func NewRedisDedupTracker(rdb *redis.Client, ttl time.Duration, prefix string) *RedisDedupTracker {
	return &RedisDedupTracker{rdb: rdb, ttl: ttl, prefix: prefix, now: time.Now}
}

type sentValue struct {
	SentAt time.Time `json:"sentAt"`
}

func (c *RedisDedupTracker) key(phone, fingerprint string) string {
	return c.prefix + phone + ":" + fingerprint
}

// Seen reports whether a marker younger than the window exists. The stored
// send time is checked as well as the key TTL, so markers written under a
// longer window stop suppressing once the current window has passed.
func (c *RedisDedupTracker) Seen(ctx context.Context, phone, fingerprint string) (bool, error) {
	raw, err := c.rdb.Get(ctx, c.key(phone, fingerprint)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	var v sentValue
	if err := json.Unmarshal(raw, &v); err != nil || v.SentAt.IsZero() {
		return true, nil
	}
	return c.now().Sub(v.SentAt) < c.ttl, nil
}

func (c *RedisDedupTracker) Record(ctx context.Context, phone, fingerprint string) error {
	b, err := json.Marshal(sentValue{SentAt: c.now().UTC()})
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, c.key(phone, fingerprint), b, c.ttl).Err()
}

func (c *RedisDedupTracker) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}
