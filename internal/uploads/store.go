// Package uploads persists chunked-upload sessions in a local SQLite
// database so interrupted uploads can resume and stale ones can be
// pruned. This ledger is strictly host-side bookkeeping: the driver
// itself keeps no upload state beyond the remote backing object.
package uploads

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite" // Pure Go SQLite driver, registers as "sqlite".
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// DefaultTTL is how long a session stays resumable before Prune removes
// it. Seven days is generous for uploads a human comes back to.
const DefaultTTL = 7 * 24 * time.Hour

// ErrNotFound is returned when no session matches the given ID or path.
var ErrNotFound = errors.New("uploads: session not found")

// Session is one in-flight chunked upload.
type Session struct {
	ID         string
	RemotePath string
	TotalSize  int64
	Offset     int64
	CreatedAt  time.Time
	ExpiresAt  time.Time
}

// Expired reports whether the session's TTL has passed at the given time.
func (s *Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// Store is a SQLite-backed session ledger. Use ":memory:" as the path
// in tests.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (creating if needed) the ledger database at dbPath and
// applies pending schema migrations.
func Open(ctx context.Context, dbPath string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("uploads: opening database: %w", err)
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("uploads: %s: %w", pragma, err)
		}
	}

	if err := runMigrations(ctx, db, logger); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db, logger: logger}, nil
}

// runMigrations applies all pending schema migrations using the goose v3
// Provider API (no global state, context-aware).
func runMigrations(ctx context.Context, db *sql.DB, logger *slog.Logger) error {
	subFS, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("uploads: creating migration sub-filesystem: %w", err)
	}

	provider, err := goose.NewProvider(goose.DialectSQLite3, db, subFS)
	if err != nil {
		return fmt.Errorf("uploads: creating migration provider: %w", err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("uploads: running migrations: %w", err)
	}

	for _, r := range results {
		logger.Info("applied migration",
			slog.String("source", r.Source.Path),
			slog.Int64("duration_ms", r.Duration.Milliseconds()),
		)
	}

	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Create records a new session for remotePath and returns it.
func (s *Store) Create(ctx context.Context, remotePath string, totalSize int64, ttl time.Duration) (*Session, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	now := time.Now().UTC()
	sess := &Session{
		ID:         uuid.NewString(),
		RemotePath: remotePath,
		TotalSize:  totalSize,
		CreatedAt:  now,
		ExpiresAt:  now.Add(ttl),
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO upload_sessions (id, remote_path, total_size, byte_offset, created_at, expires_at)
		 VALUES (?, ?, ?, 0, ?, ?)`,
		sess.ID, sess.RemotePath, sess.TotalSize, sess.CreatedAt.Unix(), sess.ExpiresAt.Unix(),
	)
	if err != nil {
		return nil, fmt.Errorf("uploads: creating session: %w", err)
	}

	s.logger.Info("upload session created",
		slog.String("id", sess.ID),
		slog.String("remote_path", remotePath),
		slog.Int64("total_size", totalSize),
	)

	return sess, nil
}

// Get returns the session with the given ID.
func (s *Store) Get(ctx context.Context, id string) (*Session, error) {
	return s.scanOne(s.db.QueryRowContext(ctx,
		`SELECT id, remote_path, total_size, byte_offset, created_at, expires_at
		 FROM upload_sessions WHERE id = ?`, id))
}

// ByPath returns the most recently created session for remotePath.
func (s *Store) ByPath(ctx context.Context, remotePath string) (*Session, error) {
	return s.scanOne(s.db.QueryRowContext(ctx,
		`SELECT id, remote_path, total_size, byte_offset, created_at, expires_at
		 FROM upload_sessions WHERE remote_path = ?
		 ORDER BY created_at DESC, rowid DESC LIMIT 1`, remotePath))
}

// SetOffset records the number of bytes committed so far.
func (s *Store) SetOffset(ctx context.Context, id string, offset int64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE upload_sessions SET byte_offset = ? WHERE id = ?`, offset, id)
	if err != nil {
		return fmt.Errorf("uploads: updating offset: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("uploads: updating offset: %w", err)
	}

	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	return nil
}

// Delete removes a session. Deleting an unknown ID is not an error —
// aborts and finishes race benignly.
func (s *Store) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM upload_sessions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("uploads: deleting session: %w", err)
	}

	return nil
}

// List returns all sessions ordered by creation time.
func (s *Store) List(ctx context.Context) ([]Session, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, remote_path, total_size, byte_offset, created_at, expires_at
		 FROM upload_sessions ORDER BY created_at, rowid`)
	if err != nil {
		return nil, fmt.Errorf("uploads: listing sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session

	for rows.Next() {
		var sess Session

		var created, expires int64
		if err := rows.Scan(&sess.ID, &sess.RemotePath, &sess.TotalSize,
			&sess.Offset, &created, &expires); err != nil {
			return nil, fmt.Errorf("uploads: scanning session: %w", err)
		}

		sess.CreatedAt = time.Unix(created, 0).UTC()
		sess.ExpiresAt = time.Unix(expires, 0).UTC()
		sessions = append(sessions, sess)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("uploads: listing sessions: %w", err)
	}

	return sessions, nil
}

// Prune deletes every session whose TTL passed before now and returns
// how many were removed.
func (s *Store) Prune(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM upload_sessions WHERE expires_at < ?`, now.UTC().Unix())
	if err != nil {
		return 0, fmt.Errorf("uploads: pruning sessions: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("uploads: pruning sessions: %w", err)
	}

	if n > 0 {
		s.logger.Info("pruned expired upload sessions", slog.Int64("count", n))
	}

	return n, nil
}

func (s *Store) scanOne(row *sql.Row) (*Session, error) {
	var sess Session

	var created, expires int64

	err := row.Scan(&sess.ID, &sess.RemotePath, &sess.TotalSize,
		&sess.Offset, &created, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("uploads: scanning session: %w", err)
	}

	sess.CreatedAt = time.Unix(created, 0).UTC()
	sess.ExpiresAt = time.Unix(expires, 0).UTC()

	return &sess, nil
}
