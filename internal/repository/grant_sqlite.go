package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"lattice-agent/internal/model"

	_ "modernc.org/sqlite" // Pure Go SQLite driver - no CGO required
)

// SQLiteGrantRepository implements GrantRepository using SQLite.
type SQLiteGrantRepository struct {
	db  *sql.DB
	mu  sync.Mutex
	now func() time.Time
}

// NewSQLiteGrantRepository opens (and creates if needed) the grant database.
func NewSQLiteGrantRepository(dbPath string, logger *slog.Logger) (*SQLiteGrantRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create grant db dir: %w", err)
	}
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", dbPath)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite: %w", err)
	}

	// SQLite only supports 1 writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := createGrantTables(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("grant store initialized", "component", "SQLiteGrantRepository", "path", dbPath)
	return &SQLiteGrantRepository{db: db, now: time.Now}, nil
}

func createGrantTables(db *sql.DB) error {
	query := `
	CREATE TABLE IF NOT EXISTS token_grants (
		token_id TEXT PRIMARY KEY,
		actor_id TEXT NOT NULL UNIQUE,
		bound_at INTEGER NOT NULL,
		expires_at INTEGER NOT NULL
	);
	CREATE TABLE IF NOT EXISTS token_revocations (
		token_id TEXT PRIMARY KEY,
		revoked_at INTEGER NOT NULL,
		expires_at INTEGER NOT NULL
	);
	`
	_, err := db.Exec(query)
	return err
}

// Load returns unexpired grants and revocations.
func (r *SQLiteGrantRepository) Load(ctx context.Context) (model.GrantState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

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

// Save replaces both tables in one transaction.
func (r *SQLiteGrantRepository) Save(ctx context.Context, state model.GrantState) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return replaceState(ctx, r.db, state)
}

// Close closes the database connection.
func (r *SQLiteGrantRepository) Close() error {
	return r.db.Close()
}

// replaceState rewrites the grant tables. Shared by the SQL backends.
func replaceState(ctx context.Context, db *sql.DB, state model.GrantState) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM token_grants`); err != nil {
		return fmt.Errorf("failed to clear grants: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM token_revocations`); err != nil {
		return fmt.Errorf("failed to clear revocations: %w", err)
	}

	for _, g := range state.Grants {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO token_grants (token_id, actor_id, bound_at, expires_at) VALUES (?, ?, ?, ?)`,
			g.TokenID, g.BoundActorID, g.BoundAt.UnixNano(), g.ExpiresAt.UnixNano())
		if err != nil {
			return fmt.Errorf("failed to insert grant %s: %w", g.TokenID, err)
		}
	}
	for _, rv := range state.Revoked {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO token_revocations (token_id, revoked_at, expires_at) VALUES (?, ?, ?)`,
			rv.TokenID, rv.RevokedAt.UnixNano(), rv.ExpiresAt.UnixNano())
		if err != nil {
			return fmt.Errorf("failed to insert revocation %s: %w", rv.TokenID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

var _ GrantRepository = (*SQLiteGrantRepository)(nil)
