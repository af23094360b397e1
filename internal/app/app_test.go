package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"lattice-agent/internal/command"
	"lattice-agent/internal/config"
	"lattice-agent/internal/host"
	"lattice-agent/internal/host/hosttest"
	"lattice-agent/internal/identity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T, ingestURL string) *config.Config {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("DATA_DIR", dir)
	t.Setenv("SPOOL_DIR", filepath.Join(dir, "spool"))
	t.Setenv("GRANT_FILE", filepath.Join(dir, "grants.json"))
	t.Setenv("INGEST_URL", ingestURL)
	t.Setenv("DELIVERY_FLUSH_TICK", "10ms")
	t.Setenv("DELIVERY_BATCH_INTERVAL", "10ms")
	t.Setenv("TOKEN_GATING_ENABLED", "true")
	t.Setenv("TOKEN_SECRET", "signing")
	t.Setenv("TOKEN_TIMEZONE", "UTC")

	cfg, err := config.Load()
	require.NoError(t, err)
	return cfg
}

func TestBuildRunsEndToEnd(t *testing.T) {
	var batches atomic.Int32
	ingest := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		batches.Add(1)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer ingest.Close()

	cfg := testConfig(t, ingest.URL)
	a, err := Build(context.Background(), cfg, nil)
	require.NoError(t, err)
	a.Start()

	raw, err := os.ReadFile(filepath.Join(cfg.App.DataDir, identity.FileName))
	require.NoError(t, err)
	assert.Contains(t, string(raw), a.ServerID)

	steve := hosttest.Player{UUID: "p-1", User: "Steve"}
	a.Agent.OnInteractionStart(steve, hosttest.Chest{Kind: "chest", Pos: "0,64,0"})
	rec := a.Agent.OnObjectCreated(steve, hosttest.NewItem("minecraft:diamond", 1, "h"), host.Source{Type: "container"})
	assert.Equal(t, "chest", rec.StorageKind)

	assert.Eventually(t, func() bool { return batches.Load() > 0 }, 2*time.Second, 10*time.Millisecond)

	issued, err := a.Tokens.Issue()
	require.NoError(t, err)
	player := hosttest.Source{Actor: "p-1", Level: command.LevelOwner}
	_, err = a.Dispatcher.Execute("lattice token apply "+issued.Token, player)
	require.NoError(t, err)
	assert.NoError(t, a.Tokens.CheckAccess("p-1"))

	srv := httptest.NewServer(a.Handler())
	defer srv.Close()
	resp, err := http.Get(srv.URL + "/api/v1/ready")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, a.Close(ctx))
}

func TestCloseSpoolsUndelivered(t *testing.T) {
	ingest := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer ingest.Close()

	cfg := testConfig(t, ingest.URL)
	a, err := Build(context.Background(), cfg, nil)
	require.NoError(t, err)

	steve := hosttest.Player{UUID: "p-1"}
	a.Agent.OnObjectCreated(steve, hosttest.NewItem("minecraft:dirt", 1, "h"), host.Source{Type: "pickup"})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, a.Close(ctx))

	entries, err := os.ReadDir(cfg.Spool.Dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestGrantsSurviveRebuild(t *testing.T) {
	cfg := testConfig(t, "http://127.0.0.1:1")

	a, err := Build(context.Background(), cfg, nil)
	require.NoError(t, err)
	issued, err := a.Tokens.Issue()
	require.NoError(t, err)
	_, err = a.Tokens.Apply(context.Background(), issued.Token, "alice")
	require.NoError(t, err)
	serverID := a.ServerID
	require.NoError(t, a.Close(context.Background()))

	b, err := Build(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer b.Close(context.Background())

	assert.Equal(t, serverID, b.ServerID)
	assert.NoError(t, b.Tokens.CheckAccess("alice"))
}
