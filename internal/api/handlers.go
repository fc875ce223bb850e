package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/LeventeLantos/alarm-sms-dispatch/internal/model"
	"github.com/LeventeLantos/alarm-sms-dispatch/internal/repo"
)

const (
	sourceAPI = "api"

	timestampLayout = "2006-01-02T15:04:05"
	maxBodyBytes    = 64 << 10
)

type Dispatcher interface {
	Submit(req model.EnqueueRequest, source string) (string, error)
	SubmitTest(req model.EnqueueRequest, source string) (string, error)
	Status() model.DispatchStatus
	DedupEnabled() bool
}

type AuditReader interface {
	ByAlarm(ctx context.Context, alarmID string) ([]model.DeliveryRecord, error)
	Recent(ctx context.Context, limit, offset int) ([]model.DeliveryRecord, error)
	Stats(ctx context.Context, days int) (map[string]int, error)
	Purge(ctx context.Context, days int) (int64, error)
}

type CalendarService interface {
	IsRestrictedDay(ctx context.Context, date time.Time) (bool, error)
	Populate(ctx context.Context, from time.Time, yearsAhead int) (int, error)
}

// CalendarTable exposes stored calendar rows, holiday names included.
type CalendarTable interface {
	CalendarDay(ctx context.Context, day time.Time) (model.CalendarDay, error)
}

type Options struct {
	HealthThreshold int
	Location        *time.Location
	RetentionDays   int
	YearsAhead      int
}

type Handler struct {
	dispatcher Dispatcher
	audit      AuditReader
	calendar   CalendarService
	directory  DirectoryAdmin
	days       CalendarTable
	opts       Options
	log        *slog.Logger
	now        func() time.Time
}

func NewHandler(d Dispatcher, a AuditReader, c CalendarService, opts Options, log *slog.Logger) *Handler {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.HealthThreshold <= 0 {
		opts.HealthThreshold = 100
	}
	if opts.RetentionDays <= 0 {
		opts.RetentionDays = 90
	}
	if opts.YearsAhead <= 0 {
		opts.YearsAhead = 10
	}
	if log == nil {
		log = slog.Default()
	}
	return &Handler{dispatcher: d, audit: a, calendar: c, opts: opts, log: log, now: time.Now}
}

func (h *Handler) WithClock(now func() time.Time) *Handler {
	h.now = now
	return h
}

// WithCalendarTable adds holiday names to calendar day lookups.
func (h *Handler) WithCalendarTable(t CalendarTable) *Handler {
	h.days = t
	return h
}

func (h *Handler) Enqueue(w http.ResponseWriter, r *http.Request) {
	var req model.EnqueueRequest
	if err := decodeBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "message": err.Error()})
		return
	}

	alarmID, err := h.dispatcher.Submit(req, sourceAPI)
	if err != nil {
		h.writeSubmitError(w, req, err)
		return
	}

	h.log.Info("sms queued via api", slog.Int64("group_id", req.GroupID), slog.String("alarm_id", alarmID))
	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"message":  "SMS queued successfully",
		"alarm_id": alarmID,
	})
}

func (h *Handler) TestSend(w http.ResponseWriter, r *http.Request) {
	var req model.EnqueueRequest
	if err := decodeBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "message": err.Error()})
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "message": "test message is required"})
		return
	}

	alarmID, err := h.dispatcher.SubmitTest(req, sourceAPI)
	if err != nil {
		h.writeSubmitError(w, req, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":       true,
		"message":       "Test SMS queued successfully",
		"test_alarm_id": alarmID,
		"note":          "Test messages are prefixed with [TEST] for identification",
	})
}

func (h *Handler) writeSubmitError(w http.ResponseWriter, req model.EnqueueRequest, err error) {
	var verr *model.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"success": false,
			"message": "invalid request",
			"errors":  verr.Problems,
		})
	default:
		h.log.Warn("failed to queue sms", slog.Int64("group_id", req.GroupID), slog.Any("err", err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"success": false,
			"message": "Failed to queue SMS",
		})
	}
}

func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.statusPayload(h.dispatcher.Status()))
}

// Health returns the status payload plus a status field, with 503 once the
// queue reaches the threshold.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	st := h.dispatcher.Status()

	status, code := "healthy", http.StatusOK
	if st.QueueDepth >= h.opts.HealthThreshold {
		status, code = "degraded", http.StatusServiceUnavailable
	}

	payload := h.statusPayload(st)
	payload["status"] = status
	payload["timestamp"] = h.now().In(h.opts.Location).Format(timestampLayout)
	writeJSON(w, code, payload)
}

func (h *Handler) statusPayload(st model.DispatchStatus) map[string]any {
	return map[string]any{
		"queue_size":            st.QueueDepth,
		"messages_sent":         st.Sent,
		"messages_failed":       st.Failed,
		"duplicates_blocked":    st.DuplicatesBlocked,
		"rate_limited":          st.RateLimited,
		"service_uptime":        formatUptime(st.Uptime(h.now())),
		"last_message_time":     h.formatLast(st.LastMessage),
		"deduplication_enabled": h.dispatcher.DedupEnabled(),
		"rate_limit":            st.RateLimit,
		"duplicate_window":      st.DuplicateWindowMinutes,
	}
}

func (h *Handler) ListDeliveries(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var (
		items []model.DeliveryRecord
		err   error
	)
	if alarmID := strings.TrimSpace(q.Get("alarm_id")); alarmID != "" {
		items, err = h.audit.ByAlarm(r.Context(), alarmID)
	} else {
		limit := parseInt(q.Get("limit"), 100)
		offset := parseInt(q.Get("offset"), 0)
		items, err = h.audit.Recent(r.Context(), limit, offset)
	}
	if err != nil {
		h.log.Error("audit query failed", slog.Any("err", err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if items == nil {
		items = []model.DeliveryRecord{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *Handler) DeliveryStats(w http.ResponseWriter, r *http.Request) {
	days := parseInt(r.URL.Query().Get("days"), 7)
	if days <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "days must be positive"})
		return
	}

	stats, err := h.audit.Stats(r.Context(), days)
	if err != nil {
		h.log.Error("audit stats failed", slog.Any("err", err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"days": days, "stats": stats})
}

func (h *Handler) PurgeDeliveries(w http.ResponseWriter, r *http.Request) {
	days := parseInt(r.URL.Query().Get("days"), h.opts.RetentionDays)
	if days <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "days must be positive"})
		return
	}

	n, err := h.audit.Purge(r.Context(), days)
	if err != nil {
		h.log.Error("audit purge failed", slog.Any("err", err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"deleted": n, "days": days})
}

func (h *Handler) PopulateCalendar(w http.ResponseWriter, r *http.Request) {
	years := parseInt(r.URL.Query().Get("years"), h.opts.YearsAhead)
	if years <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "years must be positive"})
		return
	}

	n, err := h.calendar.Populate(r.Context(), h.now().In(h.opts.Location), years)
	if err != nil {
		h.log.Error("calendar populate failed", slog.Any("err", err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"inserted": n})
}

func (h *Handler) CalendarDay(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "date")
	day, err := time.ParseInLocation(model.DayLayout, raw, h.opts.Location)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": fmt.Sprintf("date must be %s", model.DayLayout)})
		return
	}

	restricted, err := h.calendar.IsRestrictedDay(r.Context(), day)
	if err != nil {
		h.log.Error("calendar lookup failed", slog.String("date", raw), slog.Any("err", err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	resp := map[string]any{
		"date":       day.Format(model.DayLayout),
		"weekday":    day.Weekday().String(),
		"restricted": restricted,
	}
	if h.days != nil {
		row, err := h.days.CalendarDay(r.Context(), day)
		switch {
		case err == nil:
			if row.Holiday != "" {
				resp["holiday"] = row.Holiday
			}
		case errors.Is(err, repo.ErrNotFound):
		default:
			h.log.Warn("calendar row lookup failed", slog.String("date", raw), slog.Any("err", err))
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) formatLast(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.In(h.opts.Location).Format(timestampLayout)
}

// formatUptime renders d as days.hh:mm:ss.
func formatUptime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int64(d / time.Second)
	days := secs / 86400
	secs %= 86400
	return fmt.Sprintf("%d.%02d:%02d:%02d", days, secs/3600, (secs%3600)/60, secs%60)
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid json body: %w", err)
	}
	return nil
}

func parseInt(raw string, def int) int {
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
