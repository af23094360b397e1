package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"lattice-agent/internal/model"
)

// MySQLGrantRepository implements GrantRepository on a shared MySQL
// database, for networks running several servers against one grant store.
type MySQLGrantRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewMySQLGrantRepository wraps an open MySQL handle.
func NewMySQLGrantRepository(db *sql.DB) *MySQLGrantRepository {
	return &MySQLGrantRepository{db: db, now: time.Now}
}

// Migrate creates the grant tables if they do not exist.
func (r *MySQLGrantRepository) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS token_grants (
			token_id CHAR(32) PRIMARY KEY,
			actor_id VARCHAR(64) NOT NULL UNIQUE,
			bound_at BIGINT NOT NULL,
			expires_at BIGINT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS token_revocations (
			token_id CHAR(32) PRIMARY KEY,
			revoked_at BIGINT NOT NULL,
			expires_at BIGINT NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to migrate grant tables: %w", err)
		}
	}
	return nil
}

// Load returns unexpired grants and revocations.
func (r *MySQLGrantRepository) Load(ctx context.Context) (model.GrantState, error) {
	now := r.now().UnixNano()
	state := model.GrantState{}

	rows, err := r.db.QueryContext(ctx,
		`SELECT token_id, actor_id, bound_at, expires_at FROM token_grants WHERE expires_at > ?`, now)
	if err != nil {
		return state, fmt.Errorf("failed to query grants: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var g model.Grant
		var boundAt, expiresAt int64
		if err := rows.Scan(&g.TokenID, &g.BoundActorID, &boundAt, &expiresAt); err != nil {
			return state, fmt.Errorf("failed to scan grant: %w", err)
		}
		g.BoundAt = time.Unix(0, boundAt)
		g.ExpiresAt = time.Unix(0, expiresAt)
		state.Grants = append(state.Grants, g)
	}
	if err := rows.Err(); err != nil {
		return state, err
	}

	revRows, err := r.db.QueryContext(ctx,
		`SELECT token_id, revoked_at, expires_at FROM token_revocations WHERE expires_at > ?`, now)
	if err != nil {
		return state, fmt.Errorf("failed to query revocations: %w", err)
	}
	defer revRows.Close()

	for revRows.Next() {
		var rv model.Revocation
		var revokedAt, expiresAt int64
		if err := revRows.Scan(&rv.TokenID, &revokedAt, &expiresAt); err != nil {
			return state, fmt.Errorf("failed to scan revocation: %w", err)
		}
		rv.RevokedAt = time.Unix(0, revokedAt)
		rv.ExpiresAt = time.Unix(0, expiresAt)
		state.Revoked = append(state.Revoked, rv)
	}
	return state, revRows.Err()
}

// Save replaces the stored state in one transaction.
func (r *MySQLGrantRepository) Save(ctx context.Context, state model.GrantState) error {
	return replaceState(ctx, r.db, state)
}

// Close closes the database handle.
func (r *MySQLGrantRepository) Close() error {
	return r.db.Close()
}

var _ GrantRepository = (*MySQLGrantRepository)(nil)
