package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
)

var parser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Parse accepts standard five-field cron specs, an optional leading seconds
// field, and descriptors such as "@daily" or "@every 6h".
func Parse(spec string) (cron.Schedule, error) {
	return parser.Parse(spec)
}

// Interval fires at a fixed period. Unlike cron.Every it keeps sub-second
// precision.
type Interval time.Duration

func (i Interval) Next(t time.Time) time.Time {
	return t.Add(time.Duration(i))
}

// Scheduler runs one job on a schedule in its own goroutine. The job also
// runs once immediately on Start.
type Scheduler struct {
	name     string
	schedule cron.Schedule
	tickFn   func(context.Context)
	log      *slog.Logger

	running atomic.Bool

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func New(name string, schedule cron.Schedule, tickFn func(context.Context), log *slog.Logger) (*Scheduler, error) {
	if schedule == nil {
		return nil, errors.New("schedule must not be nil")
	}
	if i, ok := schedule.(Interval); ok && i <= 0 {
		return nil, errors.New("interval must be > 0")
	}
	if tickFn == nil {
		return nil, errors.New("tickFn must not be nil")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Scheduler{
		name:     name,
		schedule: schedule,
		tickFn:   tickFn,
		log:      log.With(slog.String("job", name)),
		done:     make(chan struct{}),
	}, nil
}

func (s *Scheduler) Start() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running.Load() {
		return false
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running.Store(true)

	go func() {
		defer close(s.done)

		s.log.Info("scheduler started", slog.Time("next", s.schedule.Next(time.Now())))

		s.safeTick(ctx)

		for {
			next := s.schedule.Next(time.Now())
			if next.IsZero() {
				<-ctx.Done()
				return
			}

			timer := time.NewTimer(time.Until(next))
			select {
			case <-ctx.Done():
				timer.Stop()
				s.log.Info("scheduler stopping")
				return
			case <-timer.C:
				s.safeTick(ctx)
			}
		}
	}()

	return true
}

func (s *Scheduler) Stop() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running.Load() {
		return false
	}

	s.cancel()
	<-s.done
	s.running.Store(false)

	s.log.Info("scheduler stopped")
	return true
}

func (s *Scheduler) IsRunning() bool {
	return s.running.Load()
}

func (s *Scheduler) safeTick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("scheduler tick panic recovered", slog.Any("panic", r))
		}
	}()

	start := time.Now()
	s.tickFn(ctx)
	s.log.Info("scheduler tick completed", slog.Int64("duration_ms", time.Since(start).Milliseconds()))
}
