package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	retry "github.com/avast/retry-go/v4"
	_ "modernc.org/sqlite"
)

// SQLite is a DocStore backed by a single sqlite file. Each collection
// becomes a two-column table (id TEXT PRIMARY KEY, doc BLOB), which
// keeps the document schema identical across backends.
type SQLite struct {
	db *sql.DB

	mu      sync.Mutex
	created map[string]bool
}

var validCollection = regexp.MustCompile(`^[a-z]+_[0-9]+$`)

// OpenSQLite opens (creating if needed) an sqlite-backed DocStore at
// path. ":memory:" gives a throwaway database.
func OpenSQLite(path string) (*SQLite, error) {
	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	if path == ":memory:" {
		dsn = path
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: open sqlite: %v", ErrUnavailable, err)
	}
	// a single writer avoids most SQLITE_BUSY churn during builds
	db.SetMaxOpenConns(1)
	return &SQLite{db: db, created: make(map[string]bool)}, nil
}

func (s *SQLite) table(ctx context.Context, collection string) (string, error) {
	if !validCollection.MatchString(collection) {
		return "", fmt.Errorf("invalid collection name %q", collection)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.created[collection] {
		ddl := fmt.Sprintf(
			`CREATE TABLE IF NOT EXISTS %q (id TEXT PRIMARY KEY, doc BLOB NOT NULL)`, collection)
		if _, err := s.db.ExecContext(ctx, ddl); err != nil {
			return "", fmt.Errorf("%w: sqlite create %s: %v", ErrUnavailable, collection, err)
		}
		s.created[collection] = true
	}
	return collection, nil
}

func sqliteBusy(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "SQLITE_BUSY") ||
		strings.Contains(err.Error(), "database is locked"))
}

func (s *SQLite) Get(ctx context.Context, collection, id string) ([]byte, bool, error) {
	table, err := s.table(ctx, collection)
	if err != nil {
		return nil, false, err
	}
	var doc []byte
	query := fmt.Sprintf(`SELECT doc FROM %q WHERE id = ?`, table)
	err = s.db.QueryRowContext(ctx, query, id).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("%w: sqlite get %s/%s: %v", ErrUnavailable, collection, id, err)
	}
	return doc, true, nil
}

func (s *SQLite) Put(ctx context.Context, collection, id string, doc []byte) error {
	table, err := s.table(ctx, collection)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(
		`INSERT INTO %q (id, doc) VALUES (?, ?) ON CONFLICT(id) DO UPDATE SET doc = excluded.doc`, table)
	err = retry.Do(
		func() error {
			_, err := s.db.ExecContext(ctx, query, id, doc)
			return err
		},
		retry.RetryIf(sqliteBusy),
		retry.Attempts(5),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return fmt.Errorf("%w: sqlite put %s/%s: %v", ErrUnavailable, collection, id, err)
	}
	return nil
}

func (s *SQLite) Delete(ctx context.Context, collection, id string) error {
	table, err := s.table(ctx, collection)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`DELETE FROM %q WHERE id = ?`, table)
	if _, err := s.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("%w: sqlite delete %s/%s: %v", ErrUnavailable, collection, id, err)
	}
	return nil
}

func (s *SQLite) Scan(ctx context.Context, collection string, fn func(id string, doc []byte) error) error {
	table, err := s.table(ctx, collection)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`SELECT id, doc FROM %q ORDER BY id`, table)
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("%w: sqlite scan %s: %v", ErrUnavailable, collection, err)
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		var doc []byte
		if err := rows.Scan(&id, &doc); err != nil {
			return fmt.Errorf("%w: sqlite scan %s: %v", ErrUnavailable, collection, err)
		}
		if err := fn(id, doc); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("%w: sqlite scan %s: %v", ErrUnavailable, collection, err)
	}
	return nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
