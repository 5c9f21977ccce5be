// Package store persists notes and mentions in SQL (SQLite or PostgreSQL).
//
// The schema declares no foreign keys and no ON DELETE CASCADE: integrity
// between the two tables is maintained by the callers inside a transaction.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// ErrDuplicateID is returned when an insert collides with an existing id.
var ErrDuplicateID = errors.New("store: duplicate id")

const schemaSQL = `
CREATE TABLE IF NOT EXISTS notes (
	id         TEXT PRIMARY KEY,
	content    TEXT NOT NULL,
	parent_id  TEXT,
	depth      BIGINT NOT NULL DEFAULT 0,
	created_at BIGINT NOT NULL,
	updated_at BIGINT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_notes_parent ON notes(parent_id, created_at);
CREATE INDEX IF NOT EXISTS idx_notes_created ON notes(created_at);

CREATE TABLE IF NOT EXISTS mentions (
	id           TEXT PRIMARY KEY,
	from_note_id TEXT NOT NULL,
	to_note_id   TEXT NOT NULL,
	position     BIGINT NOT NULL,
	created_at   BIGINT NOT NULL,
	UNIQUE(from_note_id, to_note_id, position)
);

CREATE INDEX IF NOT EXISTS idx_mentions_from ON mentions(from_note_id);
CREATE INDEX IF NOT EXISTS idx_mentions_to ON mentions(to_note_id);
`

type dialect int

const (
	dialectSQLite dialect = iota
	dialectPostgres
)

// rebind rewrites ? placeholders to $n for PostgreSQL.
func (d dialect) rebind(query string) string {
	if d != dialectPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

// txOptions returns the isolation used for read-validate-write transactions.
// SQLite connections are opened with _txlock=immediate so BEGIN already takes
// the write lock.
func (d dialect) txOptions() *sql.TxOptions {
	if d == dialectPostgres {
		return &sql.TxOptions{Isolation: sql.LevelSerializable}
	}
	return nil
}

// Store wraps a sql.DB with note-specific operations.
type Store struct {
	repo
	db *sql.DB
}

// Open connects to the database for driver and applies the schema.
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	var (
		conn *sql.DB
		d    dialect
		err  error
	)
	switch driver {
	case DriverSQLite, "":
		conn, err = openSQLite(dsn)
		d = dialectSQLite
	case DriverPostgres:
		conn, err = openPostgres(dsn)
		d = dialectPostgres
	default:
		return nil, fmt.Errorf("store: unknown driver %q", driver)
	}
	if err != nil {
		return nil, fmt.Errorf("store: open db: %w", err)
	}
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	if _, err := conn.ExecContext(ctx, schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: apply core schema: %w", err)
	}
	if d == dialectSQLite {
		if err := initFTS(ctx, conn); err != nil {
			conn.Close()
			return nil, fmt.Errorf("store: apply fts schema: %w", err)
		}
	}
	return &Store{repo: repo{q: conn, d: d}, db: conn}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Tx is a unit of work. All reads made through it observe the transaction's
// snapshot, so validations and the writes they guard stay consistent.
type Tx struct {
	repo
}

// WithTx runs fn inside a transaction, committing when fn returns nil and
// rolling back otherwise.
func (s *Store) WithTx(ctx context.Context, fn func(tx *Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, s.d.txOptions())
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer sqlTx.Rollback() //nolint:errcheck // no-op after commit

	if err := fn(&Tx{repo: repo{q: sqlTx, d: s.d}}); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("store: commit: %w", err)
	}
	return nil
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type repo struct {
	q querier
	d dialect
}

func (r repo) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return r.q.ExecContext(ctx, r.d.rebind(query), args...)
}

func (r repo) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return r.q.QueryContext(ctx, r.d.rebind(query), args...)
}

func (r repo) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return r.q.QueryRowContext(ctx, r.d.rebind(query), args...)
}

func toUnix(t time.Time) int64 {
	return t.UnixNano()
}

func fromUnix(ns int64) time.Time {
	return time.Unix(0, ns).UTC()
}

// placeholders returns "?, ?, ?" with n entries.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?, ", n-1) + "?"
}

func stringArgs(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
