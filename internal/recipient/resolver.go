package recipient

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/LeventeLantos/alarm-sms-dispatch/internal/model"
)

type Directory interface {
	GroupMembers(ctx context.Context, groupID int64) ([]model.User, error)
}

type Calendar interface {
	IsRestrictedDay(ctx context.Context, date time.Time) (bool, error)
}

// Resolver turns a group id into the phones that should be notified right now.
type Resolver struct {
	dir Directory
	cal Calendar
	loc *time.Location
	now func() time.Time
	log *slog.Logger
}

func NewResolver(dir Directory, cal Calendar, loc *time.Location, log *slog.Logger) *Resolver {
	if loc == nil {
		loc = time.Local
	}
	if log == nil {
		log = slog.Default()
	}
	return &Resolver{dir: dir, cal: cal, loc: loc, now: time.Now, log: log}
}

// WithClock replaces the wall clock used to decide "today".
func (r *Resolver) WithClock(now func() time.Time) *Resolver {
	r.now = now
	return r
}

// Recipients returns sms-enabled members of the group. On a restricted day
// only members that opted into special days are kept. Phones are unique.
func (r *Resolver) Recipients(ctx context.Context, groupID int64) ([]model.Recipient, error) {
	members, err := r.dir.GroupMembers(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("group %d members: %w", groupID, err)
	}

	today := r.now().In(r.loc)
	restricted, err := r.cal.IsRestrictedDay(ctx, today)
	if err != nil {
		r.log.Warn("restricted day lookup failed, treating today as a regular day",
			slog.String("date", today.Format(model.DayLayout)),
			slog.Any("error", err),
		)
		restricted = false
	}

	seen := make(map[string]struct{}, len(members))
	out := make([]model.Recipient, 0, len(members))
	for _, u := range members {
		if !u.SMSEnabled {
			continue
		}
		if restricted && !u.SpecialDaysEnabled {
			continue
		}
		phone := strings.TrimSpace(u.Phone)
		if phone == "" {
			continue
		}
		if _, dup := seen[phone]; dup {
			continue
		}
		seen[phone] = struct{}{}
		out = append(out, model.Recipient{UserID: u.ID, GroupID: groupID, Phone: phone})
	}

	r.log.Debug("recipients resolved",
		slog.Int64("group_id", groupID),
		slog.Int("members", len(members)),
		slog.Int("recipients", len(out)),
		slog.Bool("restricted_day", restricted),
	)
	return out, nil
}
