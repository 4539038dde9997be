// Package db is the relational half of persisted state: a WAL-mode SQLite
// store for sessions, messages, and uploads, grounded on
// custodia-labs-sercha-cli's internal/adapters/driven/storage/sqlite/store.go
// (WAL pragma, embedded-migration bootstrap, database/sql over a pure-Go
// driver) since the prior codebase itself uses Postgres for this role but
// this store is explicitly WAL-enabled — SQLite's defining trait.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"

	"github.com/lexigraph/lexigraph/internal/apperr"
	"github.com/lexigraph/lexigraph/internal/util"
	"github.com/lexigraph/lexigraph/pkg/session"
)

// Store is the SQLite-backed implementation of pkg/answer.History plus the
// Session and Upload lifecycle operations the HTTP façade needs.
type Store struct {
	db *sql.DB
}

// Open connects to dsn (DATABASE_URL) with WAL journaling and a busy
// timeout, then applies every pending migration.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)")
	if err != nil {
		return nil, fmt.Errorf("db: open: %w", err)
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite serialises writers; one conn avoids SQLITE_BUSY under WAL

	if err := migrateUp(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("db: migrate: %w", err)
	}
	return &Store{db: db}, nil
}

func migrateUp(db *sql.DB) error {
	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("sqlite3 driver: %w", err)
	}
	source, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		return fmt.Errorf("iofs source: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("migrate instance: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

func (s *Store) Close() error { return s.db.Close() }

// CreateSession inserts a new Session with a caller-supplied id.
func (s *Store) CreateSession(ctx context.Context, sess session.Session) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, name, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		sess.ID, sess.Name, sess.CreatedAt, sess.UpdatedAt)
	if err != nil {
		return apperr.New(apperr.Internal, "create session", err)
	}
	return nil
}

// GetSession returns apperr.SessionGone if no row matches id.
func (s *Store) GetSession(ctx context.Context, id string) (session.Session, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, name, created_at, updated_at FROM sessions WHERE id = ?`, id)
	var sess session.Session
	if err := row.Scan(&sess.ID, &sess.Name, &sess.CreatedAt, &sess.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return session.Session{}, apperr.New(apperr.SessionGone, "session not found", err)
		}
		return session.Session{}, apperr.New(apperr.Internal, "get session", err)
	}
	return sess, nil
}

// ListSessions returns every session ordered by most recently created.
func (s *Store) ListSessions(ctx context.Context) ([]session.Session, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, created_at, updated_at FROM sessions ORDER BY created_at DESC`)
	if err != nil {
		return nil, apperr.New(apperr.Internal, "list sessions", err)
	}
	defer rows.Close()

	var out []session.Session
	for rows.Next() {
		var sess session.Session
		if err := rows.Scan(&sess.ID, &sess.Name, &sess.CreatedAt, &sess.UpdatedAt); err != nil {
			return nil, apperr.New(apperr.Internal, "scan session", err)
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

// RenameSession updates a session's display name, returning the fresh row.
func (s *Store) RenameSession(ctx context.Context, id, name string) (session.Session, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `UPDATE sessions SET name = ?, updated_at = ? WHERE id = ?`, name, now, id)
	if err != nil {
		return session.Session{}, apperr.New(apperr.Internal, "rename session", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return session.Session{}, apperr.New(apperr.SessionGone, "session not found", nil)
	}
	return s.GetSession(ctx, id)
}

// DeleteSession removes the session and every record it transitively owns
// in the relational store; the graph half of the cascade lives in
// graphstore.Store.DeleteSession.
func (s *Store) DeleteSession(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperr.New(apperr.Internal, "begin delete", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE session_id = ?`, id); err != nil {
		return apperr.New(apperr.Internal, "delete messages", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM uploads WHERE session_id = ?`, id); err != nil {
		return apperr.New(apperr.Internal, "delete uploads", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return apperr.New(apperr.Internal, "delete session", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.New(apperr.SessionGone, "session not found", nil)
	}
	return tx.Commit()
}

// SessionExists is used by callers (ingest/answer entry points) that need
// to reject work against a deleted session before doing anything costly.
func (s *Store) SessionExists(ctx context.Context, id string) (bool, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM sessions WHERE id = ?`, id).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, apperr.New(apperr.Internal, "check session", err)
	}
	return true, nil
}

// Append satisfies pkg/answer.History: append-only writes, never an update.
func (s *Store) Append(ctx context.Context, msg session.Message) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (id, session_id, role, content, token_count, truncated, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		msg.ID, msg.SessionID, string(msg.Role), util.SanitizeText(msg.Content), msg.TokenCount, msg.Truncated, msg.CreatedAt)
	if err != nil {
		return apperr.New(apperr.Internal, "append message", err)
	}
	return nil
}

// Recent satisfies pkg/answer.History: the full chronological history for
// a session, oldest first, for clipHistory to trim from the tail.
func (s *Store) Recent(ctx context.Context, sessionID string) ([]session.Message, error) {
	return s.History(ctx, sessionID, 0)
}

// History returns the last limit messages (0 = unbounded), oldest first,
// backing GET /chat/history.
func (s *Store) History(ctx context.Context, sessionID string, limit int) ([]session.Message, error) {
	query := `SELECT id, session_id, role, content, token_count, truncated, created_at
		FROM messages WHERE session_id = ? ORDER BY created_at ASC`
	args := []any{sessionID}
	if limit > 0 {
		query = `SELECT id, session_id, role, content, token_count, truncated, created_at FROM (
			SELECT id, session_id, role, content, token_count, truncated, created_at
			FROM messages WHERE session_id = ? ORDER BY created_at DESC LIMIT ?
		) ORDER BY created_at ASC`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperr.New(apperr.Internal, "query history", err)
	}
	defer rows.Close()

	var out []session.Message
	for rows.Next() {
		var m session.Message
		var role string
		if err := rows.Scan(&m.ID, &m.SessionID, &role, &m.Content, &m.TokenCount, &m.Truncated, &m.CreatedAt); err != nil {
			return nil, apperr.New(apperr.Internal, "scan message", err)
		}
		m.Role = session.MessageRole(role)
		out = append(out, m)
	}
	return out, rows.Err()
}

// CreateUpload records an intake event. A duplicate (session_id, file_name,
// byte_size) violates the unique index and is reported as apperr.Conflict,
// which handlers map to HTTP 409.
func (s *Store) CreateUpload(ctx context.Context, up session.Upload) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO uploads (id, session_id, file_name, byte_size, created_at) VALUES (?, ?, ?, ?, ?)`,
		up.ID, up.SessionID, up.FileName, up.ByteSize, up.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return apperr.New(apperr.Conflict, "duplicate upload", err)
		}
		return apperr.New(apperr.Internal, "create upload", err)
	}
	return nil
}

// isUniqueViolation matches on message text: modernc.org/sqlite surfaces
// constraint failures as a plain error string, not a typed sentinel.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
