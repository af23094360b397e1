package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 5*time.Second, cfg.Tracking.ContextWindow)
	assert.Equal(t, 250*time.Millisecond, cfg.Delivery.FlushTick)
	assert.Equal(t, 5, cfg.Delivery.ResendCohort)
	assert.Equal(t, "dir", cfg.Spool.Type)
	assert.Equal(t, "file", cfg.Token.GrantStore)
	assert.Equal(t, "lattice", cfg.Token.Namespace)
	assert.False(t, cfg.Token.CanIssue())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("DELIVERY_BATCH_SIZE", "50")
	t.Setenv("SPOOL_TYPE", "redis")
	t.Setenv("TOKEN_GATING_ENABLED", "true")
	t.Setenv("TOKEN_SECRET", "s3cret")
	t.Setenv("TOKEN_TIMEZONE", "UTC")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 50, cfg.Delivery.BatchSize)
	assert.Equal(t, "redis", cfg.Spool.Type)
	assert.True(t, cfg.Token.CanIssue())

	loc, err := cfg.Token.Location()
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"batch size", "DELIVERY_BATCH_SIZE", "0"},
		{"capacity", "DELIVERY_BUFFER_CAPACITY", "-1"},
		{"compression", "DELIVERY_COMPRESSION", "brotli"},
		{"spool", "SPOOL_TYPE", "s3"},
		{"grant store", "GRANT_STORE", "postgres"},
		{"timezone", "TOKEN_TIMEZONE", "Mars/Olympus"},
		{"blank command prefix", "TOKEN_COMMAND_PREFIX", "   "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestAddresses(t *testing.T) {
	s := ServerConfig{Host: "0.0.0.0", Port: 9000}
	assert.Equal(t, "0.0.0.0:9000", s.Address())

	sp := SpoolConfig{RedisHost: "cache", RedisPort: 6380}
	assert.Equal(t, "cache:6380", sp.RedisAddress())

	tk := TokenConfig{MySQLUser: "u", MySQLPassword: "p", MySQLHost: "db", MySQLPort: 3306, MySQLName: "lat"}
	assert.Equal(t, "u:p@tcp(db:3306)/lat?parseTime=true", tk.MySQLDSN())
}

func TestAuthoritySecretFallsBackToTokenSecret(t *testing.T) {
	cfg := Config{Token: TokenConfig{Secret: "signing"}}
	assert.Equal(t, "signing", cfg.AuthoritySecret())

	cfg.Authority.Secret = "authority"
	assert.Equal(t, "authority", cfg.AuthoritySecret())
}
