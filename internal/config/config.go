package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

const (
	BackendFile     = "file"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

type Config struct {
	AppEnv    string `env:"APP_ENV" default:"development"`
	Hostname  string `env:"HOSTNAME_BIND"`
	Port      string `env:"PORT" default:"8080"`
	TLSKey    string `env:"TLS_KEY_FILE"`
	TLSCert   string `env:"TLS_CERT_FILE"`
	LogLevel  string `env:"LOG_LEVEL" default:"info"`
	LogFormat string `env:"LOG_FORMAT" default:"text"`

	Checkboxes int `env:"CHECKBOXES" default:"1000000"`

	RateLimitMaxRequests  int           `env:"RATE_LIMIT_MAX_REQUESTS" default:"10"`
	RateLimitResetTimeout time.Duration `env:"RATE_LIMIT_RESET_TIMEOUT" default:"10s"`
	TrustProxy            bool          `env:"TRUST_PROXY" default:"false"`

	HeartbeatInterval     time.Duration `env:"HEARTBEAT_INTERVAL" default:"30s"`
	HeartbeatIntervalDiff time.Duration `env:"HEARTBEAT_INTERVAL_DIFF" default:"5s"`
	MaxMessageBytes       int64         `env:"MAX_MESSAGE_BYTES" default:"4096"`
	SendBufferSize        int           `env:"SEND_BUFFER_SIZE" default:"64"`

	SaveInterval time.Duration `env:"SAVE_INTERVAL" default:"30s"`
	StateBackend string        `env:"STATE_BACKEND" default:"file"`
	StateFile    string        `env:"STATE_FILE" default:"checkboxes.json"`
	RedisURL     string        `env:"REDIS_URL"`
	RedisKey     string        `env:"REDIS_KEY" default:"checkboxes:state"`
	DatabaseURL  string        `env:"DATABASE_URL"`
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Hostname, c.Port)
}

// TLSEnabled reports whether both a key and a certificate were configured.
func (c *Config) TLSEnabled() bool {
	return c.TLSKey != "" && c.TLSCert != ""
}

// HeartbeatTimeout is how long a connection may stay silent before it is closed.
func (c *Config) HeartbeatTimeout() time.Duration {
	return c.HeartbeatInterval + c.HeartbeatIntervalDiff
}

func validate(cfg *Config) error {
	positive := []struct {
		name  string
		value int64
	}{
		{"CHECKBOXES", int64(cfg.Checkboxes)},
		{"RATE_LIMIT_MAX_REQUESTS", int64(cfg.RateLimitMaxRequests)},
		{"RATE_LIMIT_RESET_TIMEOUT", int64(cfg.RateLimitResetTimeout)},
		{"HEARTBEAT_INTERVAL", int64(cfg.HeartbeatInterval)},
		{"SAVE_INTERVAL", int64(cfg.SaveInterval)},
		{"MAX_MESSAGE_BYTES", cfg.MaxMessageBytes},
		{"SEND_BUFFER_SIZE", int64(cfg.SendBufferSize)},
	}
	for _, p := range positive {
		if p.value <= 0 {
			return fmt.Errorf("%s must be positive", p.name)
		}
	}

	if cfg.HeartbeatIntervalDiff < 0 {
		return errors.New("HEARTBEAT_INTERVAL_DIFF must not be negative")
	}

	if (cfg.TLSKey == "") != (cfg.TLSCert == "") {
		return errors.New("TLS_KEY_FILE and TLS_CERT_FILE must be set together")
	}

	switch cfg.StateBackend {
	case BackendFile:
		if cfg.StateFile == "" {
			return errors.New("STATE_FILE is required for the file backend")
		}
	case BackendRedis:
		if cfg.RedisURL == "" {
			return errors.New("REDIS_URL is required for the redis backend")
		}
	case BackendPostgres:
		if cfg.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required for the postgres backend")
		}
	default:
		return fmt.Errorf("STATE_BACKEND must be one of file, redis, postgres, got %q", cfg.StateBackend)
	}

	return nil
}
