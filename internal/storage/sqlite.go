package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"shopbridge/internal/models"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS sessions (
	id TEXT PRIMARY KEY,
	shop TEXT NOT NULL,
	state TEXT NOT NULL DEFAULT '',
	is_online INTEGER NOT NULL DEFAULT 0,
	scope TEXT NOT NULL DEFAULT '',
	access_token TEXT NOT NULL DEFAULT '',
	expires TIMESTAMP,
	user_id INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sessions_shop ON sessions(shop);
`

// SQLiteStore implements the SessionStore interface using SQLite via the
// pure-Go modernc.org/sqlite driver. Suitable for single-instance
// deployments that need sessions to survive restarts.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite session store, creating the schema
// if it does not exist.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("path is required for SQLite storage")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Store saves or replaces a session by its ID (upsert pattern).
func (ss *SQLiteStore) Store(ctx context.Context, session *models.Session) error {
	session.UpdatedAt = time.Now().UTC()

	_, err := ss.db.ExecContext(ctx, `
		INSERT INTO sessions (id, shop, state, is_online, scope, access_token, expires, user_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			shop = excluded.shop,
			state = excluded.state,
			is_online = excluded.is_online,
			scope = excluded.scope,
			access_token = excluded.access_token,
			expires = excluded.expires,
			user_id = excluded.user_id,
			updated_at = excluded.updated_at`,
		session.ID, session.Shop, session.State, session.IsOnline, session.Scope,
		session.AccessToken, session.Expires, session.UserID, session.CreatedAt, session.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}
	return nil
}

// Load retrieves a session by its ID.
func (ss *SQLiteStore) Load(ctx context.Context, id string) (*models.Session, error) {
	row := ss.db.QueryRowContext(ctx, `
		SELECT id, shop, state, is_online, scope, access_token, expires, user_id, created_at, updated_at
		FROM sessions WHERE id = ?`, id)

	session, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	return session, nil
}

// LoadByShop returns all sessions for a shop domain, newest first.
func (ss *SQLiteStore) LoadByShop(ctx context.Context, shop string) ([]*models.Session, error) {
	rows, err := ss.db.QueryContext(ctx, `
		SELECT id, shop, state, is_online, scope, access_token, expires, user_id, created_at, updated_at
		FROM sessions WHERE shop = ? ORDER BY created_at DESC`, shop)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	sessions := []*models.Session{}
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sessions: %w", err)
	}

	return sessions, nil
}

// Delete removes a session by its ID.
func (ss *SQLiteStore) Delete(ctx context.Context, id string) error {
	res, err := ss.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if affected == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// DeleteByShop removes all sessions for a shop domain.
func (ss *SQLiteStore) DeleteByShop(ctx context.Context, shop string) error {
	if _, err := ss.db.ExecContext(ctx, `DELETE FROM sessions WHERE shop = ?`, shop); err != nil {
		return fmt.Errorf("failed to delete sessions for shop %s: %w", shop, err)
	}
	return nil
}

// Ping verifies the database is reachable.
func (ss *SQLiteStore) Ping(ctx context.Context) error {
	return ss.db.PingContext(ctx)
}

// Close closes the database connection.
func (ss *SQLiteStore) Close() error {
	return ss.db.Close()
}

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*models.Session, error) {
	var s models.Session
	var expires sql.NullTime
	err := row.Scan(&s.ID, &s.Shop, &s.State, &s.IsOnline, &s.Scope,
		&s.AccessToken, &expires, &s.UserID, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if expires.Valid {
		s.Expires = &expires.Time
	}
	return &s, nil
}
