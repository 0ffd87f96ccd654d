package config

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/kelseyhightower/envconfig"
)

// envPrefix namespaces every variable, e.g. NOMAD_ADDR, NOMAD_STORAGE_DRIVER.
const envPrefix = "NOMAD"

// Config is the full process configuration.
type Config struct {
	Addr      string `envconfig:"ADDR" default:":8080"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`

	Storage  Storage  `envconfig:"STORAGE"`
	Tracking Tracking `envconfig:"TRACKING"`
	Kafka    Kafka    `envconfig:"KAFKA"`
	Chat     Chat     `envconfig:"CHAT"`
}

// Storage selects and configures the persistence adapter.
type Storage struct {
	// Driver is one of memory, sqlite, redis, postgres.
	Driver      string `envconfig:"DRIVER" default:"sqlite"`
	SQLitePath  string `envconfig:"SQLITE_PATH" default:"./data/supernomad.db"`
	RedisURL    string `envconfig:"REDIS_URL"`
	RedisPrefix string `envconfig:"REDIS_PREFIX" default:"supernomad:"`
	PostgresDSN string `envconfig:"POSTGRES_DSN"`

	RedisPoolSize     int           `envconfig:"REDIS_POOL_SIZE" default:"10"`
	RedisMinIdleConns int           `envconfig:"REDIS_MIN_IDLE_CONNS" default:"1"`
	RedisDialTimeout  time.Duration `envconfig:"REDIS_DIAL_TIMEOUT" default:"5s"`
	RedisReadTimeout  time.Duration `envconfig:"REDIS_READ_TIMEOUT" default:"3s"`
	RedisWriteTimeout time.Duration `envconfig:"REDIS_WRITE_TIMEOUT" default:"3s"`
}

// Tracking holds the day-counting policy knobs.
type Tracking struct {
	// TimeZone decides where a calendar day starts for once-per-day accrual.
	TimeZone string `envconfig:"TIME_ZONE" default:"UTC"`
	// VPNSuspectThreshold is how long a VPN must have been active before a
	// sample needs user confirmation.
	VPNSuspectThreshold time.Duration `envconfig:"VPN_SUSPECT_THRESHOLD" default:"1h"`
	// TaxResidentNotify is "once" or "recurring".
	TaxResidentNotify string `envconfig:"TAX_RESIDENT_NOTIFY" default:"once"`
	QueueSize         int    `envconfig:"QUEUE_SIZE" default:"64"`
	FeedSize          int    `envconfig:"FEED_SIZE" default:"100"`
}

// Kafka enables the notification publisher when Brokers is set.
type Kafka struct {
	Brokers  []string `envconfig:"BROKERS"`
	Topic    string   `envconfig:"TOPIC" default:"nomad.notifications"`
	ClientID string   `envconfig:"CLIENT_ID" default:"supernomad"`
}

// Chat configures the LLM gateway proxy. An empty GatewayURL disables it.
type Chat struct {
	GatewayURL string `envconfig:"GATEWAY_URL"`
	GatewayKey string `envconfig:"GATEWAY_KEY"`
	Model      string `envconfig:"MODEL" default:"google/gemini-2.5-flash"`
	// Timeout bounds connecting and waiting for response headers. Streams
	// run until the client request ends.
	Timeout time.Duration `envconfig:"TIMEOUT" default:"60s"`
}

// Location resolves the tracking time zone.
func (t Tracking) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(t.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("load time zone %q: %w", t.TimeZone, err)
	}
	return loc, nil
}

// Enabled reports whether at least one broker is configured.
func (k Kafka) Enabled() bool {
	return len(k.Brokers) > 0
}

// FromEnv builds a Config from NOMAD_* environment variables and validates it
// so main stays lean.
func FromEnv() (Config, error) {
	var cfg Config
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to process environment variables: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cross-field requirements envconfig cannot express.
func (c *Config) Validate() error {
	c.Storage.Driver = strings.ToLower(strings.TrimSpace(c.Storage.Driver))
	switch c.Storage.Driver {
	case "memory":
	case "sqlite":
		if c.Storage.SQLitePath == "" {
			return fmt.Errorf("NOMAD_STORAGE_SQLITE_PATH is required for the sqlite driver")
		}
	case "redis":
		if c.Storage.RedisURL == "" {
			return fmt.Errorf("NOMAD_STORAGE_REDIS_URL is required for the redis driver")
		}
	case "postgres":
		if c.Storage.PostgresDSN == "" {
			return fmt.Errorf("NOMAD_STORAGE_POSTGRES_DSN is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unsupported NOMAD_STORAGE_DRIVER: %s", c.Storage.Driver)
	}

	switch c.Tracking.TaxResidentNotify {
	case "once", "recurring":
	default:
		return fmt.Errorf("NOMAD_TRACKING_TAX_RESIDENT_NOTIFY must be once or recurring, got %q", c.Tracking.TaxResidentNotify)
	}
	if c.Tracking.VPNSuspectThreshold < 0 {
		return fmt.Errorf("NOMAD_TRACKING_VPN_SUSPECT_THRESHOLD cannot be negative")
	}
	if c.Tracking.QueueSize <= 0 {
		return fmt.Errorf("NOMAD_TRACKING_QUEUE_SIZE must be positive")
	}
	if _, err := c.Tracking.Location(); err != nil {
		return err
	}

	brokers := c.Kafka.Brokers[:0]
	for _, b := range c.Kafka.Brokers {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	c.Kafka.Brokers = brokers
	return nil
}
