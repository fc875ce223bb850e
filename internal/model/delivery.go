package model

import "time"

type Outcome string

const (
	OutcomeSuccess Outcome = "SUCCESS"
	OutcomeFailed  Outcome = "FAILED"
)

// DeliveryRecord is one audited delivery attempt. Records are append-only.
type DeliveryRecord struct {
	ID          int64     `db:"id" json:"id"`
	AlarmID     string    `db:"alarm_id" json:"alarm_id"`
	UserID      *int64    `db:"user_id" json:"user_id,omitempty"`
	GroupID     *int64    `db:"group_id" json:"group_id,omitempty"`
	Phone       string    `db:"phone_number" json:"phone_number"`
	Message     string    `db:"message_text" json:"message_text"`
	Outcome     Outcome   `db:"outcome" json:"outcome"`
	StatusText  string    `db:"status_text" json:"status_text"`
	RawResponse string    `db:"raw_response" json:"raw_response"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}
