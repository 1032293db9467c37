package cache

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// SQLite is a Backend on modernc.org/sqlite. It is scoped to one process
// session: opening it clears every entry, so season data never outlives the
// process that fetched it. Use it instead of Memory to keep large payloads
// off the heap.
type SQLite struct {
	db      *sql.DB
	session string
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS cache_entries (
	key        TEXT PRIMARY KEY,
	value      BLOB NOT NULL,
	session_id TEXT NOT NULL,
	written_at DATETIME NOT NULL
);
`

// NewSQLite opens the database at dsn, creates the schema and wipes any
// entries left by earlier sessions. An empty dsn opens a private in-memory
// database.
func NewSQLite(ctx context.Context, dsn string) (*SQLite, error) {
	if dsn == "" {
		dsn = ":memory:"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	// One connection keeps :memory: databases shared across calls and
	// serializes writers.
	db.SetMaxOpenConns(1)

	for _, stmt := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		sqliteSchema,
		"DELETE FROM cache_entries",
	} {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", stmt)
		}
	}

	s := &SQLite{db: db, session: uuid.NewString()}
	zap.L().Debug("sqlite cache opened", zap.String("dsn", dsn), zap.String("session", s.session))
	return s, nil
}

// Load implements Backend.
func (s *SQLite) Load(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM cache_entries WHERE key = ? AND session_id = ?`,
		key, s.session,
	).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, eris.Wrapf(err, "sqlite: load %s", key)
	}
	return value, true, nil
}

// Save implements Backend.
func (s *SQLite) Save(ctx context.Context, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO cache_entries (key, value, session_id, written_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, session_id = excluded.session_id, written_at = excluded.written_at`,
		key, value, s.session, time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: save %s", key)
}

// Delete implements Backend.
func (s *SQLite) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE key = ?`, key)
	return eris.Wrapf(err, "sqlite: delete %s", key)
}

// Close implements Backend.
func (s *SQLite) Close() error {
	return s.db.Close()
}
