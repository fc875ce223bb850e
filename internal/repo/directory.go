package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/LeventeLantos/alarm-sms-dispatch/internal/model"
)

func (s *Store) CreateUser(ctx context.Context, u model.User) (int64, error) {
	var id int64
	err := s.db.QueryRowxContext(ctx, s.q(`
		INSERT INTO users (name, phone_number, sms_enabled, special_days_enabled)
		VALUES (?, ?, ?, ?)
		RETURNING id
	`), u.Name, u.Phone, u.SMSEnabled, u.SpecialDaysEnabled).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create user: %w", err)
	}
	return id, nil
}

func (s *Store) CreateGroup(ctx context.Context, g model.Group) (int64, error) {
	var id int64
	err := s.db.QueryRowxContext(ctx, s.q(`
		INSERT INTO user_groups (name, description)
		VALUES (?, ?)
		RETURNING id
	`), g.Name, g.Description).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create group: %w", err)
	}
	return id, nil
}

// AddMember is idempotent on (group, user).
func (s *Store) AddMember(ctx context.Context, groupID, userID int64) error {
	_, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO group_members (group_id, user_id)
		VALUES (?, ?)
		ON CONFLICT (group_id, user_id) DO NOTHING
	`), groupID, userID)
	if err != nil {
		return fmt.Errorf("add member: %w", err)
	}
	return nil
}

func (s *Store) RemoveMember(ctx context.Context, groupID, userID int64) error {
	_, err := s.db.ExecContext(ctx, s.q(`
		DELETE FROM group_members WHERE group_id = ? AND user_id = ?
	`), groupID, userID)
	return err
}

// DeleteGroup removes the memberships and then the group in one transaction.
func (s *Store) DeleteGroup(ctx context.Context, groupID int64) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, s.q(`DELETE FROM group_members WHERE group_id = ?`), groupID); err != nil {
		return fmt.Errorf("delete memberships: %w", err)
	}
	res, err := tx.ExecContext(ctx, s.q(`DELETE FROM user_groups WHERE id = ?`), groupID)
	if err != nil {
		return fmt.Errorf("delete group: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return tx.Commit()
}

// GroupMembers returns every member of the group, opted in or not.
func (s *Store) GroupMembers(ctx context.Context, groupID int64) ([]model.User, error) {
	var users []model.User
	err := s.db.SelectContext(ctx, &users, s.q(`
		SELECT u.id, u.name, u.phone_number, u.sms_enabled, u.special_days_enabled
		FROM users u
		JOIN group_members gm ON gm.user_id = u.id
		WHERE gm.group_id = ?
		ORDER BY u.id
	`), groupID)
	if err != nil {
		return nil, fmt.Errorf("group members: %w", err)
	}
	return users, nil
}

func (s *Store) UserByPhone(ctx context.Context, phone string) (model.User, error) {
	var u model.User
	err := s.db.GetContext(ctx, &u, s.q(`
		SELECT id, name, phone_number, sms_enabled, special_days_enabled
		FROM users
		WHERE phone_number = ?
		ORDER BY id
		LIMIT 1
	`), phone)
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, ErrNotFound
	}
	if err != nil {
		return model.User{}, err
	}
	return u, nil
}
