package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/LeventeLantos/alarm-sms-dispatch/internal/model"
)

const auditColumns = `id, alarm_id, user_id, group_id, phone_number, message_text,
	outcome, status_text, raw_response, created_at`

// InsertDelivery appends one audit row outside of any caller transaction.
func (s *Store) InsertDelivery(ctx context.Context, rec model.DeliveryRecord) (int64, error) {
	var id int64
	err := s.db.QueryRowxContext(ctx, s.q(`
		INSERT INTO sms_audit (alarm_id, user_id, group_id, phone_number, message_text,
		                       outcome, status_text, raw_response, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`),
		rec.AlarmID, rec.UserID, rec.GroupID, rec.Phone, rec.Message,
		string(rec.Outcome), rec.StatusText, rec.RawResponse, rec.CreatedAt.UTC(),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert delivery: %w", err)
	}
	return id, nil
}

func (s *Store) DeliveriesByAlarm(ctx context.Context, alarmID string) ([]model.DeliveryRecord, error) {
	var out []model.DeliveryRecord
	err := s.db.SelectContext(ctx, &out, s.q(`
		SELECT `+auditColumns+`
		FROM sms_audit
		WHERE alarm_id = ?
		ORDER BY created_at DESC, id DESC
	`), alarmID)
	if err != nil {
		return nil, fmt.Errorf("deliveries by alarm: %w", err)
	}
	return out, nil
}

func (s *Store) RecentDeliveries(ctx context.Context, limit, offset int) ([]model.DeliveryRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	var out []model.DeliveryRecord
	err := s.db.SelectContext(ctx, &out, s.q(`
		SELECT `+auditColumns+`
		FROM sms_audit
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?
	`), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("recent deliveries: %w", err)
	}
	return out, nil
}

// OutcomeCounts groups audit rows created at or after since by outcome.
func (s *Store) OutcomeCounts(ctx context.Context, since time.Time) (map[model.Outcome]int, error) {
	rows, err := s.db.QueryxContext(ctx, s.q(`
		SELECT outcome, COUNT(*)
		FROM sms_audit
		WHERE created_at >= ?
		GROUP BY outcome
	`), since.UTC())
	if err != nil {
		return nil, fmt.Errorf("outcome counts: %w", err)
	}
	defer rows.Close()

	out := make(map[model.Outcome]int)
	for rows.Next() {
		var outcome string
		var n int
		if err := rows.Scan(&outcome, &n); err != nil {
			return nil, err
		}
		out[model.Outcome(outcome)] = n
	}
	return out, rows.Err()
}

func (s *Store) DeleteDeliveriesBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, s.q(`
		DELETE FROM sms_audit WHERE created_at < ?
	`), cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("delete deliveries: %w", err)
	}
	return res.RowsAffected()
}
