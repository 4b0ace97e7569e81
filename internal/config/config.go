package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // APP_TIMEZONE must resolve on hosts without zoneinfo
)

// Config aggregates application configuration values.
type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Auth     AuthConfig
	Storage  StorageConfig
	Notify   NotifyConfig
	Logging  LoggingConfig
}

// AppConfig governs the HTTP server and the practice's calendar.
type AppConfig struct {
	Env      string
	Port     int
	BaseURL  string
	Location *time.Location
}

// Dev reports whether the server runs in development mode.
func (a AppConfig) Dev() bool { return a.Env == "dev" }

// DatabaseConfig selects the gorm dialector.
type DatabaseConfig struct {
	Driver string // postgres|sqlite
	URL    string
}

// AuthConfig controls token signing and lifetimes.
type AuthConfig struct {
	JWTSecret    string
	SessionTTL   time.Duration
	LoginLinkTTL time.Duration
	ResetTTL     time.Duration
}

// Validate is checked by the HTTP server only; the CLI never signs tokens.
func (a AuthConfig) Validate() error {
	if a.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	return nil
}

// StorageConfig points at the Supabase Storage bucket holding case documents.
type StorageConfig struct {
	URL    string
	Key    string
	Bucket string
}

// NotifyConfig describes the outbound push endpoint.
type NotifyConfig struct {
	URL   string
	Token string
	Topic string
}

// LoggingConfig controls structured logging settings.
type LoggingConfig struct {
	Level  string
	Format string // text|json
}

const (
	defaultPort         = 3000
	defaultTimezone     = "America/Argentina/Buenos_Aires"
	defaultDriver       = "postgres"
	defaultSessionTTL   = 7 * 24 * time.Hour
	defaultLoginLinkTTL = 15 * time.Minute
	defaultResetTTL     = 30 * time.Minute
	defaultTopic        = "agenda"
	defaultLogLevel     = "info"
	defaultLogFormat    = "text"
)

// Load reads configuration from environment variables, applying defaults.
func Load() (Config, error) {
	cfg := Config{
		App: AppConfig{
			Env:     valueOrDefault("APP_ENV", "prod"),
			BaseURL: strings.TrimRight(valueOrDefault("APP_BASE_URL", "http://localhost:5173"), "/"),
		},
		Database: DatabaseConfig{
			Driver: strings.ToLower(valueOrDefault("DB_DRIVER", defaultDriver)),
			URL:    os.Getenv("DATABASE_URL"),
		},
		Auth: AuthConfig{
			JWTSecret: os.Getenv("JWT_SECRET"),
		},
		Storage: StorageConfig{
			URL:    os.Getenv("SUPABASE_URL"),
			Key:    os.Getenv("SUPABASE_SERVICE_KEY"),
			Bucket: os.Getenv("SUPABASE_BUCKET"),
		},
		Notify: NotifyConfig{
			URL:   os.Getenv("NOTIFY_URL"),
			Token: os.Getenv("NOTIFY_TOKEN"),
			Topic: valueOrDefault("NOTIFY_TOPIC", defaultTopic),
		},
		Logging: LoggingConfig{
			Level:  valueOrDefault("LOG_LEVEL", defaultLogLevel),
			Format: valueOrDefault("LOG_FORMAT", defaultLogFormat),
		},
	}

	port, err := parsePort("PORT", defaultPort)
	if err != nil {
		return Config{}, err
	}
	cfg.App.Port = port

	loc, err := time.LoadLocation(valueOrDefault("APP_TIMEZONE", defaultTimezone))
	if err != nil {
		return Config{}, fmt.Errorf("invalid APP_TIMEZONE: %w", err)
	}
	cfg.App.Location = loc

	if cfg.Database.Driver != "postgres" && cfg.Database.Driver != "sqlite" {
		return Config{}, fmt.Errorf("unsupported DB_DRIVER %q", cfg.Database.Driver)
	}
	for _, d := range []struct {
		key      string
		fallback time.Duration
		dst      *time.Duration
	}{
		{"SESSION_TTL", defaultSessionTTL, &cfg.Auth.SessionTTL},
		{"LOGIN_LINK_TTL", defaultLoginLinkTTL, &cfg.Auth.LoginLinkTTL},
		{"RESET_TTL", defaultResetTTL, &cfg.Auth.ResetTTL},
	} {
		v, err := parseDuration(d.key, d.fallback)
		if err != nil {
			return Config{}, err
		}
		*d.dst = v
	}

	return cfg, nil
}

func valueOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive", key)
	}
	return d, nil
}

func parsePort(key string, fallback int) (int, error) {
	if v := os.Getenv(key); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s value %q: %w", key, v, err)
		}
		if port <= 0 || port > 65535 {
			return 0, fmt.Errorf("port %d is out of range", port)
		}
		return port, nil
	}
	return fallback, nil
}
