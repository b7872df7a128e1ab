// Package config reads client and development server settings from the
// environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Backend choices
const (
	BackendSupabase = "supabase"
	BackendMemory   = "memory"
)

// State store choices
const (
	StateMemory = "memory"
	StateFile   = "file"
	StateRedis  = "redis"
)

// Config holds the client settings
type Config struct {
	Backend         string `env:"ARENA_BACKEND" envDefault:"supabase"`
	SupabaseURL     string `env:"ARENA_SUPABASE_URL"`
	SupabaseAnonKey string `env:"ARENA_SUPABASE_ANON_KEY"`

	// State selects where the session and cached identity are kept
	State          string `env:"ARENA_STATE" envDefault:"file"`
	StateDir       string `env:"ARENA_STATE_DIR"`
	RedisURL       string `env:"ARENA_REDIS_URL"`
	RedisNamespace string `env:"ARENA_REDIS_NAMESPACE" envDefault:"default"`

	// ProfilesDatabaseURL reads profiles from Postgres instead of the REST gateway
	ProfilesDatabaseURL string `env:"ARENA_PROFILES_DATABASE_URL"`

	SignUpMaxAttempts int           `env:"ARENA_SIGNUP_MAX_ATTEMPTS" envDefault:"3"`
	SignUpRetryDelay  time.Duration `env:"ARENA_SIGNUP_RETRY_DELAY" envDefault:"1s"`

	LogLevel string `env:"ARENA_LOG_LEVEL" envDefault:"warn"`
}

// DevServer holds the development backend settings
type DevServer struct {
	Port                int    `env:"ARENA_DEV_PORT" envDefault:"54321"`
	AnonKey             string `env:"ARENA_DEV_ANON_KEY" envDefault:"arena-dev-anon-key"`
	JWTSecret           string `env:"ARENA_DEV_JWT_SECRET" envDefault:"arena-dev-secret"`
	ProfileLag          int    `env:"ARENA_DEV_PROFILE_LAG" envDefault:"0"`
	RequireConfirmation bool   `env:"ARENA_DEV_REQUIRE_CONFIRMATION" envDefault:"false"`
	LogLevel            string `env:"ARENA_LOG_LEVEL" envDefault:"info"`
}

// Load reads the client settings from the environment
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// LoadDevServer reads the development backend settings from the environment
func LoadDevServer() (DevServer, error) {
	var cfg DevServer
	if err := env.Parse(&cfg); err != nil {
		return DevServer{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// LoadDotEnv loads a .env file into the environment when one exists.
// It reports whether a file was loaded.
func LoadDotEnv(paths ...string) bool {
	return godotenv.Load(paths...) == nil
}

// Validate checks that the selected backend and state store are usable
func (c Config) Validate() error {
	var errs []error

	switch c.Backend {
	case BackendSupabase:
		if c.SupabaseURL == "" {
			errs = append(errs, errors.New("ARENA_SUPABASE_URL is required for the supabase backend"))
		}
		if c.SupabaseAnonKey == "" {
			errs = append(errs, errors.New("ARENA_SUPABASE_ANON_KEY is required for the supabase backend"))
		}
	case BackendMemory:
	default:
		errs = append(errs, fmt.Errorf("invalid backend %q: must be %q or %q", c.Backend, BackendSupabase, BackendMemory))
	}

	switch c.State {
	case StateMemory, StateFile:
	case StateRedis:
		if c.RedisURL == "" {
			errs = append(errs, errors.New("ARENA_REDIS_URL is required for redis state"))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid state store %q: must be memory, file or redis", c.State))
	}

	if c.SignUpMaxAttempts < 1 {
		errs = append(errs, errors.New("ARENA_SIGNUP_MAX_ATTEMPTS must be at least 1"))
	}
	if c.SignUpRetryDelay < 0 {
		errs = append(errs, errors.New("ARENA_SIGNUP_RETRY_DELAY must not be negative"))
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// ParseLogLevel maps debug, info, warn or error to a slog level
func ParseLogLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q", s)
	}
	return level, nil
}
