package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

func init() {
	// Load .env file if it exists (silent fail if not)
	_ = godotenv.Load()
}

// Config holds all agent configuration loaded from environment variables.
type Config struct {
	Server    ServerConfig
	App       AppConfig
	Tracking  TrackingConfig
	Delivery  DeliveryConfig
	Spool     SpoolConfig
	Token     TokenConfig
	Notify    NotifyConfig
	Authority AuthorityConfig
}

// ServerConfig holds the inbound HTTP listener settings.
type ServerConfig struct {
	Host            string        `envconfig:"SERVER_HOST" default:"127.0.0.1"`
	Port            int           `envconfig:"SERVER_PORT" default:"8087"`
	ReadTimeout     time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"15s"`
	ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"10s"`
}

// AppConfig holds application-level settings.
type AppConfig struct {
	Name        string `envconfig:"APP_NAME" default:"lattice-agent"`
	Environment string `envconfig:"APP_ENV" default:"development"`
	Debug       bool   `envconfig:"APP_DEBUG" default:"false"`
	Version     string `envconfig:"APP_VERSION" default:"2.0.0"`
	LogFormat   string `envconfig:"APP_LOG_FORMAT" default:"text"` // text or json
	ServerID    string `envconfig:"SERVER_ID" default:""`
	DataDir     string `envconfig:"DATA_DIR" default:"./data"`
}

// TrackingConfig holds interaction attribution settings.
type TrackingConfig struct {
	ContextWindow time.Duration `envconfig:"TRACKING_CONTEXT_WINDOW" default:"5s"`
}

// DeliveryConfig holds ingest transmission settings.
type DeliveryConfig struct {
	IngestURL      string        `envconfig:"INGEST_URL" default:"http://127.0.0.1:8080/v2/ingest"`
	APIKey         string        `envconfig:"INGEST_API_KEY" default:""`
	BatchSize      int           `envconfig:"DELIVERY_BATCH_SIZE" default:"200"`
	BatchInterval  time.Duration `envconfig:"DELIVERY_BATCH_INTERVAL" default:"1s"`
	BufferCapacity int           `envconfig:"DELIVERY_BUFFER_CAPACITY" default:"10000"`
	FlushTick      time.Duration `envconfig:"DELIVERY_FLUSH_TICK" default:"250ms"`
	ResendCohort   int           `envconfig:"DELIVERY_RESEND_COHORT" default:"5"`
	RequestTimeout time.Duration `envconfig:"DELIVERY_REQUEST_TIMEOUT" default:"5s"`
	Compression    string        `envconfig:"DELIVERY_COMPRESSION" default:"gzip"` // gzip or zstd
}

// SpoolConfig holds settings for undelivered batch persistence.
type SpoolConfig struct {
	Type string `envconfig:"SPOOL_TYPE" default:"dir"` // dir or redis
	Dir  string `envconfig:"SPOOL_DIR" default:"./data/spool"`

	RedisHost     string `envconfig:"REDIS_HOST" default:"localhost"`
	RedisPort     int    `envconfig:"REDIS_PORT" default:"6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`
	RedisPrefix   string `envconfig:"SPOOL_REDIS_PREFIX" default:"lattice:spool"`
}

// TokenConfig holds command token gating settings.
type TokenConfig struct {
	Enabled         bool          `envconfig:"TOKEN_GATING_ENABLED" default:"false"`
	Secret          string        `envconfig:"TOKEN_SECRET" default:""`
	Namespace       string        `envconfig:"TOKEN_NAMESPACE" default:"lattice"`
	Timezone        string        `envconfig:"TOKEN_TIMEZONE" default:"Local"`
	CommandPrefix   string        `envconfig:"TOKEN_COMMAND_PREFIX" default:"lattice token"`
	PruneInterval   time.Duration `envconfig:"TOKEN_PRUNE_INTERVAL" default:"10m"`
	GrantStore      string        `envconfig:"GRANT_STORE" default:"file"` // file, sqlite, or mysql
	GrantFile       string        `envconfig:"GRANT_FILE" default:"./data/grants.json"`
	GrantSQLitePath string        `envconfig:"GRANT_SQLITE_PATH" default:"./data/grants.db"`

	// MySQL settings
	MySQLHost     string `envconfig:"GRANT_DB_HOST" default:"localhost"`
	MySQLPort     int    `envconfig:"GRANT_DB_PORT" default:"3306"`
	MySQLName     string `envconfig:"GRANT_DB_NAME" default:"lattice"`
	MySQLUser     string `envconfig:"GRANT_DB_USER" default:"root"`
	MySQLPassword string `envconfig:"GRANT_DB_PASS" default:""`
}

// NotifyConfig holds misuse alert settings.
type NotifyConfig struct {
	MisuseURL string        `envconfig:"MISUSE_URL" default:""`
	APIKey    string        `envconfig:"MISUSE_API_KEY" default:""`
	Rate      float64       `envconfig:"MISUSE_RATE" default:"1"`
	Burst     int           `envconfig:"MISUSE_BURST" default:"10"`
	Timeout   time.Duration `envconfig:"MISUSE_TIMEOUT" default:"5s"`
	QueueSize int           `envconfig:"MISUSE_QUEUE_SIZE" default:"64"`
}

// AuthorityConfig holds settings for requests from the remote issuing authority.
type AuthorityConfig struct {
	Issuer string `envconfig:"AUTHORITY_ISSUER" default:"lattice-authority"`
	// Secret verifies authority JWTs; the token signing secret is used when empty.
	Secret string `envconfig:"AUTHORITY_SECRET" default:""`
}

// Address returns the server address in host:port format.
func (s *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// RedisAddress returns the Redis address in host:port format.
func (s *SpoolConfig) RedisAddress() string {
	return fmt.Sprintf("%s:%d", s.RedisHost, s.RedisPort)
}

// MySQLDSN returns the MySQL data source name for the grant store.
func (t *TokenConfig) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
		t.MySQLUser, t.MySQLPassword, t.MySQLHost, t.MySQLPort, t.MySQLName)
}

// Location resolves the configured timezone used for token days.
func (t *TokenConfig) Location() (*time.Location, error) {
	if t.Timezone == "" || t.Timezone == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(t.Timezone)
}

// CanIssue reports whether issuance prerequisites are satisfied.
func (t *TokenConfig) CanIssue() bool {
	return t.Enabled && t.Secret != ""
}

// AuthoritySecret returns the key that authority JWTs are verified with.
func (c *Config) AuthoritySecret() string {
	if c.Authority.Secret != "" {
		return c.Authority.Secret
	}
	return c.Token.Secret
}

// IsDevelopment returns true if running in development mode.
func (a *AppConfig) IsDevelopment() bool {
	return a.Environment == "development"
}

// Validate rejects configurations the agent cannot run with.
func (c *Config) Validate() error {
	if c.Delivery.BatchSize <= 0 {
		return fmt.Errorf("DELIVERY_BATCH_SIZE must be positive, got %d", c.Delivery.BatchSize)
	}
	if c.Delivery.BufferCapacity <= 0 {
		return fmt.Errorf("DELIVERY_BUFFER_CAPACITY must be positive, got %d", c.Delivery.BufferCapacity)
	}
	if c.Delivery.FlushTick <= 0 {
		return fmt.Errorf("DELIVERY_FLUSH_TICK must be positive, got %s", c.Delivery.FlushTick)
	}
	if c.Delivery.ResendCohort <= 0 {
		return fmt.Errorf("DELIVERY_RESEND_COHORT must be positive, got %d", c.Delivery.ResendCohort)
	}
	switch c.Delivery.Compression {
	case "gzip", "zstd":
	default:
		return fmt.Errorf("unknown DELIVERY_COMPRESSION %q", c.Delivery.Compression)
	}
	switch c.Spool.Type {
	case "dir", "redis":
	default:
		return fmt.Errorf("unknown SPOOL_TYPE %q", c.Spool.Type)
	}
	switch c.Token.GrantStore {
	case "file", "sqlite", "mysql":
	default:
		return fmt.Errorf("unknown GRANT_STORE %q", c.Token.GrantStore)
	}
	if c.Tracking.ContextWindow <= 0 {
		return fmt.Errorf("TRACKING_CONTEXT_WINDOW must be positive, got %s", c.Tracking.ContextWindow)
	}
	if _, err := c.Token.Location(); err != nil {
		return fmt.Errorf("invalid TOKEN_TIMEZONE: %w", err)
	}
	if strings.Trim(strings.TrimSpace(c.Token.CommandPrefix), "/") == "" {
		return fmt.Errorf("TOKEN_COMMAND_PREFIX must not be blank")
	}
	return nil
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// MustLoad loads configuration or panics on error.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}
