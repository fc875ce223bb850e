package model

import "time"

// DispatchStatus is a point-in-time view of the dispatch engine.
type DispatchStatus struct {
	QueueDepth        int
	Sent              int64
	Failed            int64
	DuplicatesBlocked int64
	RateLimited       int64

	ServiceStart time.Time
	LastMessage  *time.Time

	RateLimit              int
	RateWindowSeconds      int
	DuplicateWindowMinutes int
}

func (s DispatchStatus) Uptime(now time.Time) time.Duration {
	return now.Sub(s.ServiceStart)
}
