package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/LeventeLantos/alarm-sms-dispatch/internal/model"
)

// LookupDay reports the stored restriction for a calendar day.
// found is false when the table has no row for that day.
func (s *Store) LookupDay(ctx context.Context, day time.Time) (restricted, found bool, err error) {
	err = s.db.QueryRowxContext(ctx, s.q(`
		SELECT restricted FROM calendar_days WHERE day = ?
	`), day.Format(model.DayLayout)).Scan(&restricted)
	if errors.Is(err, sql.ErrNoRows) {
		return false, false, nil
	}
	if err != nil {
		return false, false, fmt.Errorf("lookup day: %w", err)
	}
	return restricted, true, nil
}

func (s *Store) CalendarDay(ctx context.Context, day time.Time) (model.CalendarDay, error) {
	var row struct {
		Day        string `db:"day"`
		Holiday    string `db:"holiday"`
		Restricted bool   `db:"restricted"`
	}
	err := s.db.GetContext(ctx, &row, s.q(`
		SELECT day, holiday, restricted FROM calendar_days WHERE day = ?
	`), day.Format(model.DayLayout))
	if errors.Is(err, sql.ErrNoRows) {
		return model.CalendarDay{}, ErrNotFound
	}
	if err != nil {
		return model.CalendarDay{}, err
	}
	d, err := time.Parse(model.DayLayout, row.Day)
	if err != nil {
		return model.CalendarDay{}, fmt.Errorf("parse stored day %q: %w", row.Day, err)
	}
	return model.CalendarDay{Day: d, Holiday: row.Holiday, Restricted: row.Restricted}, nil
}

func (s *Store) CountDays(ctx context.Context) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM calendar_days`); err != nil {
		return 0, fmt.Errorf("count days: %w", err)
	}
	return n, nil
}

// InsertDays writes all rows in a single transaction.
func (s *Store) InsertDays(ctx context.Context, days []model.CalendarDay) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PreparexContext(ctx, s.q(`
		INSERT INTO calendar_days (day, holiday, restricted) VALUES (?, ?, ?)
	`))
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, d := range days {
		if _, err := stmt.ExecContext(ctx, d.Day.Format(model.DayLayout), d.Holiday, d.Restricted); err != nil {
			return fmt.Errorf("insert day %s: %w", d.Day.Format(model.DayLayout), err)
		}
	}
	return tx.Commit()
}
