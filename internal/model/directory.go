package model

import "time"

type Group struct {
	ID          int64  `db:"id" json:"id"`
	Name        string `db:"name" json:"name"`
	Description string `db:"description" json:"description,omitempty"`
}

type User struct {
	ID                 int64  `db:"id" json:"id"`
	Name               string `db:"name" json:"name"`
	Phone              string `db:"phone_number" json:"phone_number"`
	SMSEnabled         bool   `db:"sms_enabled" json:"sms_enabled"`
	SpecialDaysEnabled bool   `db:"special_days_enabled" json:"special_days_enabled"`
}

// Recipient is a resolved delivery target for one group.
type Recipient struct {
	UserID  int64
	GroupID int64
	Phone   string
}

// CalendarDay is one row of the restricted-day table.
type CalendarDay struct {
	Day        time.Time
	Holiday    string
	Restricted bool
}

const DayLayout = "2006-01-02"
