// Package config loads the server configuration: defaults, then an optional
// TOML file, then POKER_* environment overrides. Every deployment concern
// lives here so the app wiring stays declarative.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/mk-gloamglozer/rusty-poker/internal/board"
)

// Duration decodes TOML and env duration strings ("5s", "100ms").
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

// Config is the whole server configuration.
type Config struct {
	HTTP      HTTPConfig       `toml:"http"`
	Heartbeat HeartbeatConfig  `toml:"heartbeat"`
	Store     StoreConfig      `toml:"store"`
	Broker    BrokerConfig     `toml:"broker"`
	Sidecar   SidecarConfig    `toml:"sidecar"`
	Retry     RetryConfig      `toml:"retry"`
	NATS      NATSConfig       `toml:"nats"`
	Log       LogConfig        `toml:"log"`
	VoteTypes []VoteTypeConfig `toml:"vote_types"`
}

type HTTPConfig struct {
	Addr string `toml:"addr"`
}

// HeartbeatConfig drives the WebSocket ping cycle. A client that misses
// every ping for PongTimeout is disconnected.
type HeartbeatConfig struct {
	PingInterval Duration `toml:"ping_interval"`
	PongTimeout  Duration `toml:"pong_timeout"`
}

// StoreConfig selects the event log backend.
type StoreConfig struct {
	Backend     string `toml:"backend"`
	SQLiteDSN   string `toml:"sqlite_dsn"`
	PostgresDSN string `toml:"postgres_dsn"`
}

type BrokerConfig struct {
	PollInterval Duration `toml:"poll_interval"`
}

type SidecarConfig struct {
	QueueSize int `toml:"queue_size"`
}

// RetryConfig shapes the command runner's conflict strategy. Zero attempts
// means conflicts abort immediately.
type RetryConfig struct {
	Attempts int      `toml:"attempts"`
	Delay    Duration `toml:"delay"`
}

// NATSConfig points the update notifier at a broker. An empty URL keeps
// signalling in-process only.
type NATSConfig struct {
	URL string `toml:"url"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// VoteTypeConfig is one configured vote type. Validation names the rule a
// vote against this type must satisfy.
type VoteTypeConfig struct {
	ID         string `toml:"id"`
	Validation string `toml:"validation"`
}

// Validation rule names accepted in configuration.
const ValidationAnyNumber = "any_number"

// Event maps the configured vote type onto its sourcing event.
func (v VoteTypeConfig) Event() board.VoteTypeAdded {
	var rule board.Validation
	switch v.Validation {
	case ValidationAnyNumber:
		rule = board.AnyNumber
	}
	return board.VoteTypeAdded{VoteTypeID: v.ID, Validation: rule}
}

// Store backends.
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// DefaultConfig is a complete local-development configuration: in-memory
// store, no NATS, one vote type accepting any number.
func DefaultConfig() Config {
	return Config{
		HTTP: HTTPConfig{
			Addr: ":8080",
		},
		Heartbeat: HeartbeatConfig{
			PingInterval: Duration{time.Second},
			PongTimeout:  Duration{5 * time.Second},
		},
		Store: StoreConfig{
			Backend:   BackendMemory,
			SQLiteDSN: "poker.db",
		},
		Broker: BrokerConfig{
			PollInterval: Duration{time.Second},
		},
		Sidecar: SidecarConfig{
			QueueSize: 256,
		},
		Retry: RetryConfig{
			Attempts: 3,
			Delay:    Duration{100 * time.Millisecond},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "auto",
		},
		VoteTypes: []VoteTypeConfig{
			{ID: "1", Validation: ValidationAnyNumber},
		},
	}
}

// Load builds the configuration: defaults, the TOML file at path when path
// is non-empty, then environment overrides. The result is validated.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return Config{}, fmt.Errorf("read config file %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyEnv overlays POKER_* environment variables. Unparseable values are
// ignored in favour of the current setting.
func (c *Config) applyEnv() {
	if addr := os.Getenv("POKER_HTTP_ADDR"); addr != "" {
		c.HTTP.Addr = addr
	}
	if v := os.Getenv("POKER_HEARTBEAT_PING_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Heartbeat.PingInterval = Duration{d}
		}
	}
	if v := os.Getenv("POKER_HEARTBEAT_PONG_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Heartbeat.PongTimeout = Duration{d}
		}
	}
	if backend := os.Getenv("POKER_STORE_BACKEND"); backend != "" {
		c.Store.Backend = backend
	}
	if dsn := os.Getenv("POKER_STORE_SQLITE_DSN"); dsn != "" {
		c.Store.SQLiteDSN = dsn
	}
	if dsn := os.Getenv("POKER_STORE_POSTGRES_DSN"); dsn != "" {
		c.Store.PostgresDSN = dsn
	}
	if v := os.Getenv("POKER_BROKER_POLL_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Broker.PollInterval = Duration{d}
		}
	}
	if v := os.Getenv("POKER_SIDECAR_QUEUE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Sidecar.QueueSize = n
		}
	}
	if v := os.Getenv("POKER_RETRY_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Retry.Attempts = n
		}
	}
	if v := os.Getenv("POKER_RETRY_DELAY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Retry.Delay = Duration{d}
		}
	}
	if url := os.Getenv("POKER_NATS_URL"); url != "" {
		c.NATS.URL = url
	}
	if level := os.Getenv("POKER_LOG_LEVEL"); level != "" {
		c.Log.Level = level
	}
	if format := os.Getenv("POKER_LOG_FORMAT"); format != "" {
		c.Log.Format = format
	}
}

// Validate rejects configurations that cannot run.
func (c *Config) Validate() error {
	if c.HTTP.Addr == "" {
		return fmt.Errorf("http addr cannot be empty")
	}

	if c.Heartbeat.PingInterval.Duration <= 0 {
		return fmt.Errorf("heartbeat ping interval must be positive")
	}
	if c.Heartbeat.PongTimeout.Duration <= 0 {
		return fmt.Errorf("heartbeat pong timeout must be positive")
	}
	if c.Heartbeat.PongTimeout.Duration <= c.Heartbeat.PingInterval.Duration {
		return fmt.Errorf("heartbeat pong timeout must exceed the ping interval")
	}

	switch c.Store.Backend {
	case BackendMemory:
	case BackendSQLite:
		if c.Store.SQLiteDSN == "" {
			return fmt.Errorf("sqlite backend requires store.sqlite_dsn")
		}
	case BackendPostgres:
		if c.Store.PostgresDSN == "" {
			return fmt.Errorf("postgres backend requires store.postgres_dsn")
		}
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}

	if c.Broker.PollInterval.Duration <= 0 {
		return fmt.Errorf("broker poll interval must be positive")
	}

	if c.Sidecar.QueueSize <= 0 {
		return fmt.Errorf("sidecar queue size must be positive")
	}

	if c.Retry.Attempts < 0 {
		return fmt.Errorf("retry attempts cannot be negative")
	}
	if c.Retry.Attempts > 0 && c.Retry.Delay.Duration <= 0 {
		return fmt.Errorf("retry delay must be positive when retries are enabled")
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "auto", "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.Log.Format)
	}

	if len(c.VoteTypes) == 0 {
		return fmt.Errorf("at least one vote type is required")
	}
	seen := make(map[string]bool, len(c.VoteTypes))
	for _, vt := range c.VoteTypes {
		if vt.ID == "" {
			return fmt.Errorf("vote type id cannot be empty")
		}
		if seen[vt.ID] {
			return fmt.Errorf("duplicate vote type id %q", vt.ID)
		}
		seen[vt.ID] = true
		if vt.Validation != ValidationAnyNumber {
			return fmt.Errorf("unknown vote type validation %q", vt.Validation)
		}
	}

	return nil
}
