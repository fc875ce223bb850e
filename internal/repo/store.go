package repo

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

//go:embed schema_postgres.sql schema_sqlite.sql
var schemaFS embed.FS

var ErrNotFound = errors.New("not found")

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

func init() {
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

// Store is the persistence layer for users, groups, memberships, the
// restricted-day calendar and the delivery audit. Queries are written with
// '?' placeholders and rebound for the active driver.
type Store struct {
	db     *sqlx.DB
	driver string
}

func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	var sqlDriver string
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case DriverPostgres, "postgresql", "pgx":
		driver, sqlDriver = DriverPostgres, "pgx"
	case DriverSQLite, "sqlite3":
		driver, sqlDriver = DriverSQLite, "sqlite"
	default:
		return nil, fmt.Errorf("unknown database driver: %s", driver)
	}

	db, err := sqlx.Open(sqlDriver, dsn)
	if err != nil {
		return nil, err
	}
	if driver == DriverSQLite {
		// SQLite prefers a single writer.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}
	if driver == DriverSQLite {
		_, _ = db.ExecContext(ctx, "PRAGMA foreign_keys = ON")
		_, _ = db.ExecContext(ctx, "PRAGMA busy_timeout = 5000")
	}

	return &Store{db: db, driver: driver}, nil
}

func (s *Store) Driver() string { return s.driver }

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Migrate applies the bundled schema. Statements are idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	b, err := schemaFS.ReadFile("schema_" + s.driver + ".sql")
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, string(b)); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func (s *Store) q(query string) string {
	return s.db.Rebind(query)
}
