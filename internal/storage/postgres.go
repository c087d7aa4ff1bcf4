package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"shopbridge/internal/models"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS sessions (
	id TEXT PRIMARY KEY,
	shop TEXT NOT NULL,
	state TEXT NOT NULL DEFAULT '',
	is_online BOOLEAN NOT NULL DEFAULT FALSE,
	scope TEXT NOT NULL DEFAULT '',
	access_token TEXT NOT NULL DEFAULT '',
	expires TIMESTAMPTZ,
	user_id BIGINT NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sessions_shop ON sessions(shop);
`

// PostgresStore implements the SessionStore interface using PostgreSQL
// via pgx. This is the recommended backend for multi-instance deployments.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL session store, creating the
// schema if it does not exist.
func NewPostgresStore(ctx context.Context, cfg models.DatabaseConfig) (*PostgresStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("dsn is required for PostgreSQL storage")
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to parse dsn: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		poolCfg.MaxConns = int32(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		poolCfg.MinConns = int32(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.ConnMaxLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

// Store saves or replaces a session by its ID (upsert pattern).
func (ps *PostgresStore) Store(ctx context.Context, session *models.Session) error {
	_, err := ps.pool.Exec(ctx, `
		INSERT INTO sessions (id, shop, state, is_online, scope, access_token, expires, user_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
		ON CONFLICT (id) DO UPDATE SET
			shop = EXCLUDED.shop,
			state = EXCLUDED.state,
			is_online = EXCLUDED.is_online,
			scope = EXCLUDED.scope,
			access_token = EXCLUDED.access_token,
			expires = EXCLUDED.expires,
			user_id = EXCLUDED.user_id,
			updated_at = NOW()`,
		session.ID, session.Shop, session.State, session.IsOnline, session.Scope,
		session.AccessToken, session.Expires, session.UserID, session.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}
	return nil
}

// Load retrieves a session by its ID.
func (ps *PostgresStore) Load(ctx context.Context, id string) (*models.Session, error) {
	row := ps.pool.QueryRow(ctx, `
		SELECT id, shop, state, is_online, scope, access_token, expires, user_id, created_at, updated_at
		FROM sessions WHERE id = $1`, id)

	session, err := scanSession(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	return session, nil
}

// LoadByShop returns all sessions for a shop domain, newest first.
func (ps *PostgresStore) LoadByShop(ctx context.Context, shop string) ([]*models.Session, error) {
	rows, err := ps.pool.Query(ctx, `
		SELECT id, shop, state, is_online, scope, access_token, expires, user_id, created_at, updated_at
		FROM sessions WHERE shop = $1 ORDER BY created_at DESC`, shop)
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
func (ps *PostgresStore) Delete(ctx context.Context, id string) error {
	tag, err := ps.pool.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// DeleteByShop removes all sessions for a shop domain.
func (ps *PostgresStore) DeleteByShop(ctx context.Context, shop string) error {
	if _, err := ps.pool.Exec(ctx, `DELETE FROM sessions WHERE shop = $1`, shop); err != nil {
		return fmt.Errorf("failed to delete sessions for shop %s: %w", shop, err)
	}
	return nil
}

// Ping verifies the database is reachable.
func (ps *PostgresStore) Ping(ctx context.Context) error {
	return ps.pool.Ping(ctx)
}

// Close closes the connection pool.
func (ps *PostgresStore) Close() error {
	ps.pool.Close()
	return nil
}
