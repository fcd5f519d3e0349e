package history

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/unkn0wn-root/mizuview/internal/errdef"
)

const defaultMaxEntries = 200

// Entry is one query the user sent to the feed.
type Entry struct {
	ID         string
	Query      string
	ExecutedAt time.Time
	Server     string
}

// Store keeps the query history in a SQLite file. Queries are unique: sending
// the same query again moves it to the top instead of adding a row.
type Store struct {
	path       string
	maxEntries int

	mu sync.Mutex
	db *sql.DB
}

func NewStore(path string, maxEntries int) *Store {
	if maxEntries <= 0 {
		maxEntries = defaultMaxEntries
	}
	return &Store{path: path, maxEntries: maxEntries}
}

const schema = `
CREATE TABLE IF NOT EXISTS queries (
	id          TEXT PRIMARY KEY,
	query       TEXT NOT NULL UNIQUE,
	server      TEXT NOT NULL DEFAULT '',
	executed_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS queries_executed_at ON queries(executed_at DESC);
`

// Load opens the database, creating it and its directory when missing.
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ensureOpenLocked()
}

func (s *Store) ensureOpenLocked() error {
	if s.db != nil {
		return nil
	}
	if s.path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
			return errdef.Wrap(errdef.CodeHistory, err, "create history dir")
		}
	}
	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return errdef.Wrap(errdef.CodeHistory, err, "open history")
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return errdef.Wrap(errdef.CodeHistory, err, "create history schema")
	}
	s.db = db
	return nil
}

// Append records a query. Blank queries are ignored.
func (s *Store) Append(ctx context.Context, entry Entry) error {
	query := strings.TrimSpace(entry.Query)
	if query == "" {
		return nil
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.ExecutedAt.IsZero() {
		entry.ExecutedAt = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureOpenLocked(); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errdef.Wrap(errdef.CodeHistory, err, "begin history write")
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
INSERT INTO queries (id, query, server, executed_at) VALUES (?, ?, ?, ?)
ON CONFLICT(query) DO UPDATE SET executed_at = excluded.executed_at, server = excluded.server`,
		entry.ID, query, entry.Server, entry.ExecutedAt.UnixNano())
	if err != nil {
		return errdef.Wrap(errdef.CodeHistory, err, "record query")
	}
	_, err = tx.ExecContext(ctx, `
DELETE FROM queries WHERE id NOT IN (
	SELECT id FROM queries ORDER BY executed_at DESC, rowid DESC LIMIT ?
)`, s.maxEntries)
	if err != nil {
		return errdef.Wrap(errdef.CodeHistory, err, "trim history")
	}
	if err := tx.Commit(); err != nil {
		return errdef.Wrap(errdef.CodeHistory, err, "commit history write")
	}
	return nil
}

// Entries lists queries newest first.
func (s *Store) Entries(ctx context.Context) ([]Entry, error) {
	return s.list(ctx, "")
}

// Search lists queries containing term, newest first.
func (s *Store) Search(ctx context.Context, term string) ([]Entry, error) {
	return s.list(ctx, strings.TrimSpace(term))
}

func (s *Store) list(ctx context.Context, term string) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureOpenLocked(); err != nil {
		return nil, err
	}

	q := `SELECT id, query, server, executed_at FROM queries`
	var args []any
	if term != "" {
		q += ` WHERE instr(lower(query), lower(?)) > 0`
		args = append(args, term)
	}
	q += ` ORDER BY executed_at DESC, rowid DESC`

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, errdef.Wrap(errdef.CodeHistory, err, "list history")
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e  Entry
			at int64
		)
		if err := rows.Scan(&e.ID, &e.Query, &e.Server, &at); err != nil {
			return nil, errdef.Wrap(errdef.CodeHistory, err, "scan history")
		}
		e.ExecutedAt = time.Unix(0, at)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errdef.Wrap(errdef.CodeHistory, err, "list history")
	}
	return out, nil
}

func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureOpenLocked(); err != nil {
		return false, err
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM queries WHERE id = ?`, id)
	if err != nil {
		return false, errdef.Wrap(errdef.CodeHistory, err, "delete history entry")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errdef.Wrap(errdef.CodeHistory, err, "delete history entry")
	}
	return n > 0, nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	if err != nil && !errors.Is(err, sql.ErrConnDone) {
		return errdef.Wrap(errdef.CodeHistory, err, "close history")
	}
	return nil
}
