package audit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/LeventeLantos/alarm-sms-dispatch/internal/model"
)

const (
	maxStatusText  = 200
	maxRawResponse = 1000
	maxMessage     = 500
)

var ErrInvalidEntry = errors.New("invalid audit entry")

type Store interface {
	InsertDelivery(ctx context.Context, rec model.DeliveryRecord) (int64, error)
	DeliveriesByAlarm(ctx context.Context, alarmID string) ([]model.DeliveryRecord, error)
	RecentDeliveries(ctx context.Context, limit, offset int) ([]model.DeliveryRecord, error)
	OutcomeCounts(ctx context.Context, since time.Time) (map[model.Outcome]int, error)
	DeleteDeliveriesBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Entry is one delivery attempt to be recorded. Zero UserID or GroupID
// means unknown.
type Entry struct {
	AlarmID     string
	UserID      int64
	GroupID     int64
	Phone       string
	Message     string
	Outcome     model.Outcome
	StatusText  string
	RawResponse string
}

type Options struct {
	Attempts     int
	WriteTimeout time.Duration
	RetryDelay   time.Duration
}

// Recorder appends delivery records and serves the audit read side.
type Recorder struct {
	store Store
	opts  Options
	now   func() time.Time
	log   *slog.Logger
}

func NewRecorder(store Store, opts Options, log *slog.Logger) *Recorder {
	if opts.Attempts <= 0 {
		opts.Attempts = 3
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 5 * time.Second
	}
	if opts.RetryDelay < 0 {
		opts.RetryDelay = 0
	}
	if log == nil {
		log = slog.Default()
	}
	return &Recorder{store: store, opts: opts, now: time.Now, log: log}
}

func (e Entry) validate() error {
	var missing []string
	if strings.TrimSpace(e.AlarmID) == "" {
		missing = append(missing, "alarm_id")
	}
	if strings.TrimSpace(e.Phone) == "" {
		missing = append(missing, "phone")
	}
	if strings.TrimSpace(e.Message) == "" {
		missing = append(missing, "message")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrInvalidEntry, strings.Join(missing, ", "))
	}
	return nil
}

func (e Entry) record(at time.Time) model.DeliveryRecord {
	rec := model.DeliveryRecord{
		AlarmID:     e.AlarmID,
		Phone:       e.Phone,
		Message:     truncate(e.Message, maxMessage),
		Outcome:     e.Outcome,
		StatusText:  truncate(e.StatusText, maxStatusText),
		RawResponse: truncate(e.RawResponse, maxRawResponse),
		CreatedAt:   at,
	}
	if rec.Outcome == "" {
		rec.Outcome = model.OutcomeFailed
	}
	if e.UserID > 0 {
		id := e.UserID
		rec.UserID = &id
	}
	if e.GroupID > 0 {
		id := e.GroupID
		rec.GroupID = &id
	}
	return rec
}

// Log writes one record. It returns false when the entry is invalid or the
// write keeps failing; the delivery itself is unaffected either way.
func (r *Recorder) Log(ctx context.Context, e Entry) bool {
	if err := e.validate(); err != nil {
		r.log.Warn("audit entry rejected", slog.String("alarm_id", e.AlarmID), slog.Any("error", err))
		return false
	}

	rec := e.record(r.now())

	var err error
	for attempt := 1; attempt <= r.opts.Attempts; attempt++ {
		var id int64
		id, err = r.insert(ctx, rec)
		if err == nil {
			r.log.Debug("delivery audited",
				slog.Int64("id", id),
				slog.String("alarm_id", rec.AlarmID),
				slog.String("outcome", string(rec.Outcome)),
			)
			return true
		}
		if attempt == r.opts.Attempts || ctx.Err() != nil {
			break
		}
		r.log.Warn("audit write failed, retrying",
			slog.String("alarm_id", rec.AlarmID),
			slog.Int("attempt", attempt),
			slog.Any("error", err),
		)

		select {
		case <-ctx.Done():
		case <-time.After(r.opts.RetryDelay * time.Duration(attempt)):
		}
	}

	r.log.Error("audit write failed, delivery is unaudited",
		slog.String("alarm_id", rec.AlarmID),
		slog.Any("user_id", rec.UserID),
		slog.Any("group_id", rec.GroupID),
		slog.String("outcome", string(rec.Outcome)),
		slog.String("status_text", rec.StatusText),
		slog.Int("attempts", r.opts.Attempts),
		slog.Any("error", err),
	)
	return false
}

func (r *Recorder) insert(ctx context.Context, rec model.DeliveryRecord) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.opts.WriteTimeout)
	defer cancel()
	return r.store.InsertDelivery(ctx, rec)
}

func (r *Recorder) ByAlarm(ctx context.Context, alarmID string) ([]model.DeliveryRecord, error) {
	if strings.TrimSpace(alarmID) == "" {
		return nil, fmt.Errorf("%w: alarm_id is required", ErrInvalidEntry)
	}
	return r.store.DeliveriesByAlarm(ctx, alarmID)
}

func (r *Recorder) Recent(ctx context.Context, limit, offset int) ([]model.DeliveryRecord, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return r.store.RecentDeliveries(ctx, limit, offset)
}

// Stats counts records per outcome over the last days days. The "Total" key
// holds the sum.
func (r *Recorder) Stats(ctx context.Context, days int) (map[string]int, error) {
	if days <= 0 {
		days = 30
	}
	counts, err := r.store.OutcomeCounts(ctx, r.now().AddDate(0, 0, -days))
	if err != nil {
		return nil, err
	}

	out := map[string]int{
		string(model.OutcomeSuccess): 0,
		string(model.OutcomeFailed):  0,
	}
	total := 0
	for outcome, n := range counts {
		out[string(outcome)] = n
		total += n
	}
	out["Total"] = total
	return out, nil
}

// Purge deletes records older than days days.
func (r *Recorder) Purge(ctx context.Context, days int) (int64, error) {
	if days <= 0 {
		return 0, fmt.Errorf("retention days must be positive, got %d", days)
	}

	cutoff := r.now().AddDate(0, 0, -days)
	n, err := r.store.DeleteDeliveriesBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge audit: %w", err)
	}
	r.log.Info("audit records purged", slog.Int64("deleted", n), slog.Int("older_than_days", days))
	return n, nil
}

func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max-3]) + "..."
}
