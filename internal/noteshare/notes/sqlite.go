package notes

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore keeps notes in a single table. SQLite has no TTL, so expiry is
// a read filter plus PurgeExpired.
type SQLiteStore struct {
	db        *sql.DB
	retention time.Duration
	now       func() time.Time
}

// NewSQLite opens (and creates if needed) the database at dsn.
// Accepted forms: a file path, "sqlite://path", "file:..." or ":memory:".
func NewSQLite(dsn string, retention time.Duration, now func() time.Time) (*SQLiteStore, error) {
	if now == nil {
		now = time.Now
	}
	dsn = strings.TrimPrefix(strings.TrimPrefix(dsn, "sqlite3://"), "sqlite://")
	if dsn == "" {
		return nil, fmt.Errorf("sqlite: empty path")
	}
	if scheme, _, found := strings.Cut(dsn, "://"); found {
		return nil, fmt.Errorf("sqlite: unsupported scheme %q", scheme)
	}

	if dsn != ":memory:" && !strings.HasPrefix(dsn, "file:") {
		if err := os.MkdirAll(filepath.Dir(dsn), 0755); err != nil {
			return nil, err
		}
	}
	if !strings.Contains(dsn, "?") {
		dsn += "?_busy_timeout=5000"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	// one writer at a time; also keeps ":memory:" on a single connection
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{db: db, retention: retention, now: now}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// migrate creates the necessary tables
func (s *SQLiteStore) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS notes (
			id TEXT PRIMARY KEY,
			note_text TEXT NOT NULL,
			password_hash TEXT NOT NULL,
			created_at INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_notes_created_at ON notes(created_at);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("sqlite migrate: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Create(ctx context.Context, note *Note) (string, error) {
	createdAt := note.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.now()
	}

	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO notes (id, note_text, password_hash, created_at) VALUES (?, ?, ?, ?)`,
		id, note.Text, note.PasswordHash, createdAt.UnixNano(),
	)
	if err != nil {
		return "", fmt.Errorf("sqlite insert: %w", err)
	}
	return id, nil
}

func (s *SQLiteStore) FindByID(ctx context.Context, id string) (*Note, error) {
	var (
		n       Note
		created int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, note_text, password_hash, created_at FROM notes WHERE id = ? AND created_at >= ?`,
		id, s.cutoff(),
	).Scan(&n.ID, &n.Text, &n.PasswordHash, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite select: %w", err)
	}
	n.CreatedAt = time.Unix(0, created).UTC()
	return &n, nil
}

func (s *SQLiteStore) PurgeExpired(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM notes WHERE created_at < ?`, s.cutoff())
	if err != nil {
		return 0, fmt.Errorf("sqlite purge: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// cutoff is the oldest created_at still inside the retention window.
func (s *SQLiteStore) cutoff() int64 {
	return s.now().Add(-s.retention).UnixNano()
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
