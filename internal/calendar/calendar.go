package calendar

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/LeventeLantos/alarm-sms-dispatch/internal/model"
)

type Store interface {
	LookupDay(ctx context.Context, day time.Time) (restricted, found bool, err error)
	CountDays(ctx context.Context) (int, error)
	InsertDays(ctx context.Context, days []model.CalendarDay) error
}

// Calendar answers restricted-day questions from the precomputed day table.
type Calendar struct {
	store Store
	log   *slog.Logger
}

func New(store Store, log *slog.Logger) *Calendar {
	if log == nil {
		log = slog.Default()
	}
	return &Calendar{store: store, log: log}
}

// IsRestrictedDay reports whether the calendar day of date (in date's own
// location) is a Sabbath or rest-day holiday. A day missing from the table
// is restricted only when it is a Saturday.
func (c *Calendar) IsRestrictedDay(ctx context.Context, date time.Time) (bool, error) {
	day := dayOf(date)

	restricted, found, err := c.store.LookupDay(ctx, day)
	if err != nil {
		return false, err
	}
	if !found {
		return day.Weekday() == time.Saturday, nil
	}
	return restricted, nil
}

// Populate fills the table with every day from January 1 of from's year for
// yearsAhead years. It does nothing when the table already has rows and
// returns the number of rows written.
func (c *Calendar) Populate(ctx context.Context, from time.Time, yearsAhead int) (int, error) {
	if yearsAhead <= 0 {
		return 0, fmt.Errorf("years ahead must be positive, got %d", yearsAhead)
	}

	n, err := c.store.CountDays(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		c.log.Info("calendar already populated", slog.Int("rows", n))
		return 0, nil
	}

	days := Generate(from.Year(), yearsAhead)
	if err := c.store.InsertDays(ctx, days); err != nil {
		return 0, fmt.Errorf("populate calendar: %w", err)
	}

	c.log.Info("calendar populated",
		slog.Int("rows", len(days)),
		slog.Int("from_year", from.Year()),
		slog.Int("years", yearsAhead),
	)
	return len(days), nil
}

// Generate builds one row per day for the given range of Gregorian years.
func Generate(firstYear, years int) []model.CalendarDay {
	holidays := make(map[string]string)
	for y := firstYear; y < firstYear+years; y++ {
		for _, h := range Holidays(y) {
			holidays[h.Date.Format(model.DayLayout)] = h.Name
		}
	}

	start := time.Date(firstYear, time.January, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(years, 0, 0)

	out := make([]model.CalendarDay, 0, int(end.Sub(start).Hours()/24))
	for d := start; d.Before(end); d = d.AddDate(0, 0, 1) {
		name, holiday := holidays[d.Format(model.DayLayout)]
		out = append(out, model.CalendarDay{
			Day:        d,
			Holiday:    name,
			Restricted: holiday || d.Weekday() == time.Saturday,
		})
	}
	return out
}

func dayOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
