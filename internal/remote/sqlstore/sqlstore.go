// Package sqlstore implements remote.Store on database/sql, for SQLite
// (modernc.org/sqlite) and PostgreSQL (pgx stdlib).
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"focussync/internal/remote"
)

type Dialect int

const (
	SQLite Dialect = iota
	Postgres
)

func (d Dialect) String() string {
	if d == Postgres {
		return "postgres"
	}
	return "sqlite"
}

// ParseDialect accepts the config driver names.
func ParseDialect(name string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "sqlite", "sqlite3":
		return SQLite, nil
	case "postgres", "postgresql", "pgx":
		return Postgres, nil
	}
	return SQLite, fmt.Errorf("unsupported sql dialect: %s", name)
}

// Open opens a database for the dialect and verifies connectivity.
func Open(ctx context.Context, d Dialect, dsn string) (*sql.DB, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("%s DSN is empty", d)
	}
	driver := "sqlite"
	if d == Postgres {
		driver = "pgx"
	} else if path := sqlitePath(dsn); path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	if d == SQLite {
		// One writer at a time; also keeps :memory: databases on one connection.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// OpenMemory opens a private in-memory SQLite database with the schema applied.
func OpenMemory(ctx context.Context) (*Store, error) {
	db, err := Open(ctx, SQLite, "file::memory:")
	if err != nil {
		return nil, err
	}
	s := New(db, SQLite)
	if err := s.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Store is a remote.Store backed by four SQL tables.
type Store struct {
	db      *sql.DB
	dialect Dialect
	now     func() int64
}

var _ remote.Store = (*Store)(nil)

func New(db *sql.DB, d Dialect) *Store {
	return &Store{db: db, dialect: d, now: nowMillis}
}

func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Settings() remote.Settings   { return &settingsTable{s: s} }
func (s *Store) Apps() remote.Apps           { return &appsTable{s: s} }
func (s *Store) Reminders() remote.Reminders { return &remindersTable{s: s} }
func (s *Store) Analytics() remote.Analytics { return &analyticsTable{s: s} }

func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// WithTx runs fn in a transaction, rolling back when fn fails.
func (s *Store) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return classify("begin", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return classify("commit", err)
	}
	return nil
}

// rebind rewrites ? placeholders into $n for postgres.
func (s *Store) rebind(query string) string {
	if s.dialect != Postgres {
		return query
	}
	var sb strings.Builder
	sb.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			sb.WriteByte('$')
			sb.WriteString(strconv.Itoa(n))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) exec(ctx context.Context, ex execer, op, query string, args ...any) error {
	if _, err := ex.ExecContext(ctx, s.rebind(query), args...); err != nil {
		return classify(op, err)
	}
	return nil
}

func (s *Store) count(ctx context.Context, table, userID string) (int, error) {
	var n int
	q := s.rebind(`SELECT COUNT(*) FROM ` + table + ` WHERE user_id = ?`)
	if err := s.db.QueryRowContext(ctx, q, userID).Scan(&n); err != nil {
		return 0, classify("count "+table, err)
	}
	return n, nil
}

func (s *Store) deleteUser(ctx context.Context, ex execer, table, userID string) error {
	return s.exec(ctx, ex, "delete "+table, `DELETE FROM `+table+` WHERE user_id = ?`, userID)
}

func sqlitePath(dsn string) string {
	p := strings.TrimPrefix(dsn, "file:")
	if i := strings.IndexByte(p, '?'); i >= 0 {
		p = p[:i]
	}
	if p == "" || strings.Contains(p, ":memory:") {
		return ""
	}
	return p
}
