package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements ObjectStore on a single sqlite table (pure Go driver
// modernc.org/sqlite). Useful for local runs without a cloud bucket.
type SQLiteStore struct {
	db       *sql.DB
	pageSize int
}

// NewSQLite opens (or creates) the database at path and applies the schema.
func NewSQLite(path string, logger *zap.SugaredLogger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, &Error{Op: "open", Key: path, Err: err}
	}

	// WAL lets readers (viewer, analytics) run next to the ingesting writer.
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil && logger != nil {
		logger.Warnw("could not set WAL mode", "path", path, "error", err)
	}

	schema := `CREATE TABLE IF NOT EXISTS objects (
        key TEXT PRIMARY KEY,
        body BLOB NOT NULL,
        content_type TEXT,
        size INTEGER NOT NULL,
        last_modified TEXT NOT NULL
    );`

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, &Error{Op: "open", Key: path, Err: err}
	}

	return &SQLiteStore{db: db, pageSize: DefaultPageSize}, nil
}

// SetPageSize changes the maximum number of objects per List call.
func (s *SQLiteStore) SetPageSize(n int) {
	if n > 0 {
		s.pageSize = n
	}
}

func (s *SQLiteStore) Put(ctx context.Context, key string, body []byte, contentType string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO objects(key, body, content_type, size, last_modified) VALUES(?,?,?,?,?)`,
		key, body, contentType, len(body), time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return &Error{Op: "put", Key: key, Err: err}
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, key string) ([]byte, error) {
	var body []byte
	err := s.db.QueryRowContext(ctx, `SELECT body FROM objects WHERE key = ?`, key).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &Error{Op: "get", Key: key, Err: ErrNotFound}
	}
	if err != nil {
		return nil, &Error{Op: "get", Key: key, Err: err}
	}
	return body, nil
}

// List pages through keys in lexical order; the token is the last key seen.
func (s *SQLiteStore) List(ctx context.Context, prefix, token string) (Page, error) {
	// substr avoids LIKE wildcard escaping for keys containing '_' or '%'.
	rows, err := s.db.QueryContext(ctx,
		`SELECT key, size, last_modified FROM objects
         WHERE substr(key, 1, length(?)) = ? AND key > ?
         ORDER BY key LIMIT ?`,
		prefix, prefix, token, s.pageSize+1)
	if err != nil {
		return Page{}, &Error{Op: "list", Key: prefix, Err: err}
	}
	defer rows.Close()

	var page Page
	for rows.Next() {
		var (
			obj ObjectInfo
			lm  string
		)
		if err := rows.Scan(&obj.Key, &obj.Size, &lm); err != nil {
			return Page{}, &Error{Op: "list", Key: prefix, Err: err}
		}
		if t, err := time.Parse(time.RFC3339Nano, lm); err == nil {
			obj.LastModified = t
		}
		page.Objects = append(page.Objects, obj)
	}
	if err := rows.Err(); err != nil {
		return Page{}, &Error{Op: "list", Key: prefix, Err: err}
	}

	if len(page.Objects) > s.pageSize {
		page.Objects = page.Objects[:s.pageSize]
		page.NextToken = page.Objects[len(page.Objects)-1].Key
	}
	return page, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
