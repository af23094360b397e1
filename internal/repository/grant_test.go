package repository

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"lattice-agent/internal/model"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 9, 1, 15, 0, 0, 0, time.UTC)

func sampleState() model.GrantState {
	midnight := time.Date(2026, 9, 2, 0, 0, 0, 0, time.UTC)
	return model.GrantState{
		Grants: []model.Grant{
			{TokenID: "aa", BoundActorID: "p1", BoundAt: fixedNow.Add(-time.Hour), ExpiresAt: midnight},
			{TokenID: "bb", BoundActorID: "p2", BoundAt: fixedNow.Add(-26 * time.Hour), ExpiresAt: fixedNow.Add(-time.Minute)},
		},
		Revoked: []model.Revocation{
			{TokenID: "cc", RevokedAt: fixedNow.Add(-time.Minute), ExpiresAt: midnight},
			{TokenID: "dd", RevokedAt: fixedNow.Add(-30 * time.Hour), ExpiresAt: fixedNow.Add(-time.Hour)},
		},
	}
}

func TestFileGrantRepositoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo, err := NewFileGrantRepository(filepath.Join(t.TempDir(), "nested", "grants.json"), nil)
	require.NoError(t, err)
	repo.now = func() time.Time { return fixedNow }

	require.NoError(t, repo.Save(ctx, sampleState()))

	state, err := repo.Load(ctx)
	require.NoError(t, err)
	require.Len(t, state.Grants, 1)
	assert.Equal(t, "p1", state.Grants[0].BoundActorID)
	require.Len(t, state.Revoked, 1)
	assert.Equal(t, "cc", state.Revoked[0].TokenID)
}

func TestFileGrantRepositoryMissingFileIsEmpty(t *testing.T) {
	repo, err := NewFileGrantRepository(filepath.Join(t.TempDir(), "grants.json"), nil)
	require.NoError(t, err)

	state, err := repo.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, state.Grants)
}

func TestFileGrantRepositoryCorruptFileIsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "grants.json")
	require.NoError(t, os.WriteFile(path, []byte("{{{"), 0o600))
	repo, err := NewFileGrantRepository(path, nil)
	require.NoError(t, err)

	state, err := repo.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, state.Grants)
}

func TestSQLiteGrantRepositoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo, err := NewSQLiteGrantRepository(filepath.Join(t.TempDir(), "grants.db"), nil)
	require.NoError(t, err)
	defer repo.Close()
	repo.now = func() time.Time { return fixedNow }

	require.NoError(t, repo.Save(ctx, sampleState()))

	state, err := repo.Load(ctx)
	require.NoError(t, err)
	require.Len(t, state.Grants, 1)
	assert.Equal(t, "aa", state.Grants[0].TokenID)
	assert.True(t, sampleState().Grants[0].ExpiresAt.Equal(state.Grants[0].ExpiresAt))
	require.Len(t, state.Revoked, 1)

	// Save replaces rather than appends.
	require.NoError(t, repo.Save(ctx, model.GrantState{}))
	state, err = repo.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, state.Grants)
	assert.Empty(t, state.Revoked)
}

func TestMySQLGrantRepositoryLoad(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	repo := NewMySQLGrantRepository(db)
	defer repo.Close()
	repo.now = func() time.Time { return fixedNow }

	expires := time.Date(2026, 9, 2, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT token_id, actor_id, bound_at, expires_at FROM token_grants WHERE expires_at > ?`)).
		WithArgs(fixedNow.UnixNano()).
		WillReturnRows(sqlmock.NewRows([]string{"token_id", "actor_id", "bound_at", "expires_at"}).
			AddRow("aa", "p1", fixedNow.UnixNano(), expires.UnixNano()))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT token_id, revoked_at, expires_at FROM token_revocations WHERE expires_at > ?`)).
		WithArgs(fixedNow.UnixNano()).
		WillReturnRows(sqlmock.NewRows([]string{"token_id", "revoked_at", "expires_at"}))

	state, err := repo.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, state.Grants, 1)
	assert.Equal(t, "p1", state.Grants[0].BoundActorID)
	assert.True(t, expires.Equal(state.Grants[0].ExpiresAt))
	assert.Empty(t, state.Revoked)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLGrantRepositorySave(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	repo := NewMySQLGrantRepository(db)
	defer repo.Close()

	g := sampleState().Grants[0]
	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM token_grants`).WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(`DELETE FROM token_revocations`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO token_grants`)).
		WithArgs(g.TokenID, g.BoundActorID, g.BoundAt.UnixNano(), g.ExpiresAt.UnixNano()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Save(context.Background(), model.GrantState{Grants: []model.Grant{g}}))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLGrantRepositorySaveRollsBackOnError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	repo := NewMySQLGrantRepository(db)
	defer repo.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM token_grants`).WillReturnError(assert.AnError)
	mock.ExpectRollback()

	err = repo.Save(context.Background(), sampleState())
	assert.ErrorIs(t, err, assert.AnError)
	require.NoError(t, mock.ExpectationsWereMet())
}
