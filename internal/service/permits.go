package service

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// PermitPool gates provider calls. Acquire blocks until a permit is
// available or ctx is done; waited reports whether it had to block.
type PermitPool interface {
	Acquire(ctx context.Context) (waited bool, err error)
}

// WindowPermitPool hands out up to limit permits per wall-clock window.
// Permits are never returned; the pool is topped up to limit when the
// window rolls over, so a burst drains it and later sends trickle out one
// window at a time.
type WindowPermitPool struct {
	mu        sync.Mutex
	limit     int
	window    time.Duration
	available int
	bucket    time.Time

	now   func() time.Time
	after func(time.Duration) <-chan time.Time
}

func NewWindowPermitPool(limit int, window time.Duration) *WindowPermitPool {
	if limit <= 0 {
		limit = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &WindowPermitPool{
		limit:  limit,
		window: window,
		now:    time.Now,
		after:  time.After,
	}
}

// WithClock replaces the wall clock and the timer used while waiting.
func (p *WindowPermitPool) WithClock(now func() time.Time, after func(time.Duration) <-chan time.Time) *WindowPermitPool {
	p.now = now
	p.after = after
	return p
}

func (p *WindowPermitPool) Acquire(ctx context.Context) (bool, error) {
	waited := false
	for {
		p.mu.Lock()
		now := p.now()
		if b := now.Truncate(p.window); b.After(p.bucket) {
			p.bucket = b
			p.available = p.limit
		}
		if p.available > 0 {
			p.available--
			p.mu.Unlock()
			return waited, nil
		}
		wait := p.bucket.Add(p.window).Sub(now)
		p.mu.Unlock()

		waited = true
		select {
		case <-ctx.Done():
			return waited, ctx.Err()
		case <-p.after(wait):
		}
	}
}

// Available reports the permits left in the current window.
func (p *WindowPermitPool) Available() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.now().Truncate(p.window).After(p.bucket) {
		return p.limit
	}
	return p.available
}

// TokenBucketPool is the stricter alternative: a smooth token bucket with
// burst limit refilling at limit per window.
type TokenBucketPool struct {
	lim *rate.Limiter
}

func NewTokenBucketPool(limit int, window time.Duration) *TokenBucketPool {
	if limit <= 0 {
		limit = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &TokenBucketPool{
		lim: rate.NewLimiter(rate.Every(window/time.Duration(limit)), limit),
	}
}

func (p *TokenBucketPool) Acquire(ctx context.Context) (bool, error) {
	if p.lim.Allow() {
		return false, nil
	}
	return true, p.lim.Wait(ctx)
}
