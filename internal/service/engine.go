package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/LeventeLantos/alarm-sms-dispatch/internal/audit"
	"github.com/LeventeLantos/alarm-sms-dispatch/internal/client"
	"github.com/LeventeLantos/alarm-sms-dispatch/internal/metrics"
	"github.com/LeventeLantos/alarm-sms-dispatch/internal/model"
)

const stampLayout = "02/01 15:04"

var ErrAlreadyRunning = errors.New("dispatch engine already running")

type Gateway interface {
	Send(ctx context.Context, message, phone string) model.SendResult
}

type RecipientResolver interface {
	Recipients(ctx context.Context, groupID int64) ([]model.Recipient, error)
}

type AuditLogger interface {
	Log(ctx context.Context, e audit.Entry) bool
}

type Config struct {
	RateLimit       int
	RateWindow      time.Duration
	DuplicateWindow time.Duration
	Location        *time.Location
	IdleDelay       time.Duration
	DrainTimeout    time.Duration
}

// Engine owns the pending queue and delivers each message to its group.
// One loop dequeues messages in FIFO order; recipients of a message are
// served concurrently, each gated by the permit pool.
type Engine struct {
	cfg      Config
	resolver RecipientResolver
	gateway  Gateway
	auditor  AuditLogger
	permits  PermitPool
	dedup    DuplicateTracker

	queue *messageQueue
	now   func() time.Time
	log   *slog.Logger

	running   atomic.Bool
	accepting atomic.Bool

	sent        atomic.Int64
	failed      atomic.Int64
	duplicates  atomic.Int64
	rateLimited atomic.Int64
	lastMessage atomic.Int64
	started     time.Time
}

func NewEngine(cfg Config, resolver RecipientResolver, gateway Gateway, auditor AuditLogger, log *slog.Logger) *Engine {
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 10
	}
	if cfg.RateWindow <= 0 {
		cfg.RateWindow = time.Minute
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.IdleDelay <= 0 {
		cfg.IdleDelay = 100 * time.Millisecond
	}
	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = 30 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}

	e := &Engine{
		cfg:      cfg,
		resolver: resolver,
		gateway:  gateway,
		auditor:  auditor,
		permits:  NewWindowPermitPool(cfg.RateLimit, cfg.RateWindow),
		queue:    newMessageQueue(),
		now:      time.Now,
		log:      log,
		started:  time.Now(),
	}
	if cfg.DuplicateWindow > 0 {
		e.dedup = NewMemoryDedupTracker(cfg.DuplicateWindow)
	}
	e.accepting.Store(true)
	return e
}

func (e *Engine) WithPermitPool(p PermitPool) *Engine {
	e.permits = p
	return e
}

// WithDuplicateTracker replaces the in-memory tracker. It has no effect when
// the duplicate window is zero.
func (e *Engine) WithDuplicateTracker(t DuplicateTracker) *Engine {
	if e.cfg.DuplicateWindow > 0 {
		e.dedup = t
	}
	return e
}

func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	e.started = now()
	return e
}

// Enqueue appends a message without blocking. It returns false only once
// the engine has stopped accepting work.
func (e *Engine) Enqueue(text string, groupID int64, alarmID string, priority model.Priority) bool {
	if !e.accepting.Load() {
		e.log.Warn("dispatch engine stopped, message rejected",
			slog.String("alarm_id", alarmID),
			slog.Int64("group_id", groupID),
		)
		return false
	}
	if priority == "" {
		priority = model.PriorityNormal
	}

	e.queue.push(model.QueuedMessage{
		Text:       text,
		GroupID:    groupID,
		AlarmID:    alarmID,
		Priority:   priority,
		EnqueuedAt: e.now(),
	})
	metrics.QueueDepth.Set(float64(e.queue.len()))

	e.log.Info("sms queued",
		slog.String("alarm_id", alarmID),
		slog.Int64("group_id", groupID),
		slog.String("priority", string(priority)),
		slog.Int("queue_size", e.queue.len()),
	)
	return true
}

func (e *Engine) Status() model.DispatchStatus {
	st := model.DispatchStatus{
		QueueDepth:        e.queue.len(),
		Sent:              e.sent.Load(),
		Failed:            e.failed.Load(),
		DuplicatesBlocked: e.duplicates.Load(),
		RateLimited:       e.rateLimited.Load(),
		ServiceStart:      e.started,
		RateLimit:         e.cfg.RateLimit,
		RateWindowSeconds: int(e.cfg.RateWindow / time.Second),
	}
	if e.dedup != nil {
		st.DuplicateWindowMinutes = int(e.cfg.DuplicateWindow / time.Minute)
	}
	if ns := e.lastMessage.Load(); ns != 0 {
		t := time.Unix(0, ns).In(e.cfg.Location)
		st.LastMessage = &t
	}
	return st
}

// DedupEnabled reports whether duplicate suppression is active.
func (e *Engine) DedupEnabled() bool {
	return e.dedup != nil
}

// Run drives the dispatch loop until ctx is done, then keeps draining the
// queue for the configured grace period. Messages still queued after that
// are dropped and logged. Permit waits are abandoned when the grace period
// ends; provider and audit calls already issued run to completion.
func (e *Engine) Run(ctx context.Context) error {
	if !e.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer e.running.Store(false)

	work, cancelWork := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelWork()

	go func() {
		select {
		case <-work.Done():
			return
		case <-ctx.Done():
		}
		e.accepting.Store(false)
		e.log.Info("dispatch engine stopping, draining queue",
			slog.Int("queue_size", e.queue.len()),
			slog.Duration("grace", e.cfg.DrainTimeout),
		)

		grace := time.NewTimer(e.cfg.DrainTimeout)
		defer grace.Stop()
		select {
		case <-grace.C:
			cancelWork()
		case <-work.Done():
		}
	}()

	e.log.Info("dispatch engine started",
		slog.Int("rate_limit", e.cfg.RateLimit),
		slog.Duration("rate_window", e.cfg.RateWindow),
		slog.Duration("duplicate_window", e.cfg.DuplicateWindow),
	)

	for work.Err() == nil {
		if e.ProcessNext(work) {
			continue
		}
		if ctx.Err() != nil {
			break
		}

		select {
		case <-ctx.Done():
		case <-e.queue.wake:
		case <-time.After(e.cfg.IdleDelay):
		}
	}

	e.accepting.Store(false)
	dropped := e.queue.clear()
	metrics.QueueDepth.Set(0)
	if len(dropped) > 0 {
		ids := make([]string, 0, len(dropped))
		for _, m := range dropped {
			ids = append(ids, m.AlarmID)
		}
		e.log.Warn("dispatch engine stopped with undelivered messages",
			slog.Int("dropped", len(dropped)),
			slog.String("alarm_ids", strings.Join(ids, ",")),
		)
		return nil
	}

	e.log.Info("dispatch engine stopped")
	return nil
}

// ProcessNext dispatches at most one queued message and reports whether
// there was one.
func (e *Engine) ProcessNext(ctx context.Context) bool {
	msg, ok := e.queue.pop()
	if !ok {
		return false
	}
	metrics.QueueDepth.Set(float64(e.queue.len()))

	e.dispatch(ctx, msg)
	return true
}

func (e *Engine) dispatch(ctx context.Context, msg model.QueuedMessage) {
	recipients, err := e.resolver.Recipients(ctx, msg.GroupID)
	if err != nil {
		e.log.Error("recipient resolution failed",
			slog.String("alarm_id", msg.AlarmID),
			slog.Int64("group_id", msg.GroupID),
			slog.Any("error", err),
		)
		recipients = nil
	}
	if len(recipients) == 0 {
		e.failed.Add(1)
		metrics.MessagesFailed.Inc()
		e.log.Warn("no sms recipients for group",
			slog.String("alarm_id", msg.AlarmID),
			slog.Int64("group_id", msg.GroupID),
		)
		return
	}

	text := e.stamp(msg.Text)
	fp := Fingerprint(msg.Text)

	e.log.Info("sending sms to group",
		slog.String("alarm_id", msg.AlarmID),
		slog.Int64("group_id", msg.GroupID),
		slog.Int("recipients", len(recipients)),
	)

	var g errgroup.Group
	g.SetLimit(e.cfg.RateLimit)
	for _, r := range recipients {
		g.Go(func() error {
			e.deliver(ctx, msg, text, fp, r)
			return nil
		})
	}
	_ = g.Wait()
}

func (e *Engine) stamp(text string) string {
	return "[" + e.now().In(e.cfg.Location).Format(stampLayout) + "] " + text
}

func (e *Engine) deliver(ctx context.Context, msg model.QueuedMessage, text, fp string, r model.Recipient) {
	defer func() {
		if p := recover(); p != nil {
			e.failed.Add(1)
			metrics.MessagesFailed.Inc()
			e.log.Error("panic delivering sms",
				slog.String("alarm_id", msg.AlarmID),
				slog.String("phone", client.MaskPhone(r.Phone)),
				slog.Any("panic", p),
			)
		}
	}()

	waited, err := e.permits.Acquire(ctx)
	if waited {
		e.rateLimited.Add(1)
		metrics.RateLimited.Inc()
	}
	if err != nil {
		e.log.Warn("delivery abandoned while waiting for a rate limit permit",
			slog.String("alarm_id", msg.AlarmID),
			slog.String("phone", client.MaskPhone(r.Phone)),
			slog.Any("error", err),
		)
		return
	}

	if e.dedup != nil {
		dup, err := e.dedup.Seen(ctx, r.Phone, fp)
		if err != nil {
			e.log.Warn("duplicate check failed, sending anyway",
				slog.String("phone", client.MaskPhone(r.Phone)),
				slog.Any("error", err),
			)
		}
		if dup {
			e.duplicates.Add(1)
			metrics.DuplicatesBlocked.Inc()
			e.log.Info("duplicate message blocked",
				slog.String("alarm_id", msg.AlarmID),
				slog.String("phone", client.MaskPhone(r.Phone)),
			)
			return
		}
	}

	// Issued calls are not cancelled by shutdown.
	callCtx := context.WithoutCancel(ctx)

	start := time.Now()
	res := e.send(callCtx, text, r.Phone)
	outcome := model.OutcomeFailed
	if res.Success {
		outcome = model.OutcomeSuccess
	}
	metrics.GatewayDuration.WithLabelValues(string(outcome)).Observe(time.Since(start).Seconds())

	e.record(callCtx, audit.Entry{
		AlarmID:     msg.AlarmID,
		UserID:      r.UserID,
		GroupID:     r.GroupID,
		Phone:       r.Phone,
		Message:     text,
		Outcome:     outcome,
		StatusText:  res.StatusText,
		RawResponse: res.RawResponse,
	})

	if !res.Success {
		e.failed.Add(1)
		metrics.MessagesFailed.Inc()
		return
	}

	if e.dedup != nil {
		if err := e.dedup.Record(callCtx, r.Phone, fp); err != nil {
			e.log.Warn("failed to record sent message for duplicate check",
				slog.String("phone", client.MaskPhone(r.Phone)),
				slog.Any("error", err),
			)
		}
	}
	e.sent.Add(1)
	e.lastMessage.Store(e.now().UnixNano())
	metrics.MessagesSent.Inc()
}

// record writes the audit entry. An audit panic is logged and never
// changes the delivery outcome.
func (e *Engine) record(ctx context.Context, entry audit.Entry) {
	defer func() {
		if p := recover(); p != nil {
			e.log.Error("panic writing audit record",
				slog.String("alarm_id", entry.AlarmID),
				slog.String("phone", client.MaskPhone(entry.Phone)),
				slog.Any("panic", p),
			)
		}
	}()
	e.auditor.Log(ctx, entry)
}

// send converts a gateway panic into a failed result so the attempt is
// still audited.
func (e *Engine) send(ctx context.Context, text, phone string) (res model.SendResult) {
	defer func() {
		if p := recover(); p != nil {
			e.log.Error("panic in sms gateway",
				slog.String("phone", client.MaskPhone(phone)),
				slog.Any("panic", p),
			)
			res = model.SendResult{
				Success:    false,
				StatusText: fmt.Sprintf("gateway panic: %v", p),
			}
		}
	}()
	return e.gateway.Send(ctx, text, phone)
}
