package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"lattice-agent/internal/model"
	"lattice-agent/internal/spool"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func gatingEnv(t *testing.T) {
	t.Helper()
	t.Setenv("TOKEN_GATING_ENABLED", "true")
	t.Setenv("TOKEN_SECRET", "cli-secret")
	t.Setenv("TOKEN_TIMEZONE", "UTC")
}

func TestTokenIssueAndVerify(t *testing.T) {
	gatingEnv(t)

	out, err := run(t, "token", "issue")
	require.NoError(t, err)
	raw := strings.TrimSpace(out)
	assert.True(t, strings.HasPrefix(raw, "lattice.v2."))

	out, err = run(t, "token", "verify", raw)
	require.NoError(t, err)
	assert.Contains(t, out, "valid token")
}

func TestTokenIssueForDayJSON(t *testing.T) {
	gatingEnv(t)

	out, err := run(t, "--log-format", "json", "token", "issue", "--day", "20300101")
	require.NoError(t, err)

	var issued model.IssuedToken
	require.NoError(t, json.Unmarshal([]byte(out), &issued))
	assert.Equal(t, "20300101", issued.Day)
	assert.Len(t, issued.TokenID, 32)
}

func TestTokenVerifyFailures(t *testing.T) {
	gatingEnv(t)

	_, err := run(t, "token", "verify", "garbage")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MALFORMED")

	out, err := run(t, "token", "issue", "--day", "20200101")
	require.NoError(t, err)
	_, err = run(t, "token", "verify", strings.TrimSpace(out))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "EXPIRED")

	t.Setenv("TOKEN_SECRET", "rotated")
	_, err = run(t, "token", "verify", strings.TrimSpace(out))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BAD_SIGNATURE")
}

func TestTokenIssueRequiresSecret(t *testing.T) {
	t.Setenv("TOKEN_GATING_ENABLED", "true")
	t.Setenv("TOKEN_SECRET", "")

	_, err := run(t, "token", "issue")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TOKEN_SECRET")
}

func TestInvalidLogFormat(t *testing.T) {
	_, err := run(t, "--log-format", "xml", "spool", "stats")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log format")
}

func TestSpoolStats(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "spool")
	t.Setenv("SPOOL_DIR", dir)

	sp, err := spool.NewDirSpool(dir, nil)
	require.NoError(t, err)
	_, err = sp.Put(context.Background(), "gzip", []byte("batch-1"))
	require.NoError(t, err)
	_, err = sp.Put(context.Background(), "zstd", []byte("batch-22"))
	require.NoError(t, err)

	out, err := run(t, "--log-format", "json", "spool", "stats", "--limit", "1")
	require.NoError(t, err)

	var stats SpoolStats
	require.NoError(t, json.Unmarshal([]byte(out), &stats))
	assert.Equal(t, 2, stats.Pending)
	require.Len(t, stats.Oldest, 1)
	assert.Equal(t, "gzip", stats.Oldest[0].Encoding)
	assert.Equal(t, 7, stats.Oldest[0].Bytes)

	out, err = run(t, "spool", "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "dir spool: 2 pending")
}
