package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/i474232898/air-quality-collector/internal/weather"
)

// ErrMissingSecret is returned when a required secret is unset or blank.
var ErrMissingSecret = errors.New("required secret is not set")

const (
	EnvDatabaseURL = "DATABASE_URL"
	EnvAPIKey      = "OPENWEATHER_API_KEY"
)

type AppConfig struct {
	DatabaseURL       string
	OpenWeatherAPIKey string

	// Cities to collect, in processing order. Always weather.DefaultCities.
	Cities []weather.City

	DBDriver       string
	DBMaxIdleConns int // 0 = fresh connection per persistence call

	// DryRunMaxHistory caps observations kept per city by `collect --dry-run` (0 = unlimited).
	DryRunMaxHistory int

	OpenWeatherBaseURL string
	HTTPTimeout        time.Duration // 0 = no client timeout

	// CollectInterval is the default for `collect --every` (0 = run once).
	CollectInterval time.Duration

	Port string

	AppEnv   string
	LogLevel slog.Level

	Influx InfluxConfig
}

// InfluxConfig configures the optional InfluxDB mirror. It is disabled when URL is empty.
type InfluxConfig struct {
	URL    string
	Token  string
	Org    string
	Bucket string
}

func (c InfluxConfig) Enabled() bool {
	return c.URL != ""
}

// Load reads the collector configuration. Both DATABASE_URL and
// OPENWEATHER_API_KEY must be set.
func Load() (*AppConfig, error) {
	return load(true)
}

// LoadReadOnly reads the configuration for commands that only query the
// database; the API key is optional.
func LoadReadOnly() (*AppConfig, error) {
	return load(false)
}

func load(requireAPIKey bool) (*AppConfig, error) {
	cfg := &AppConfig{}

	var err error
	if cfg.DatabaseURL, err = requireSecret(EnvDatabaseURL); err != nil {
		return nil, err
	}
	if requireAPIKey {
		if cfg.OpenWeatherAPIKey, err = requireSecret(EnvAPIKey); err != nil {
			return nil, err
		}
	} else {
		cfg.OpenWeatherAPIKey = strings.TrimSpace(os.Getenv(EnvAPIKey))
	}

	cfg.Cities = append([]weather.City(nil), weather.DefaultCities...)

	cfg.DBDriver = getenvDefault("DB_DRIVER", "pgx")
	switch cfg.DBDriver {
	case "pgx", "sqlite3":
	default:
		return nil, fmt.Errorf("invalid DB_DRIVER %q (allowed: pgx, sqlite3)", cfg.DBDriver)
	}
	cfg.DBMaxIdleConns = getenvInt("DB_MAX_IDLE_CONNS", 0)
	cfg.DryRunMaxHistory = getenvInt("DRY_RUN_MAX_HISTORY", 0)

	cfg.OpenWeatherBaseURL = getenvDefault("OPENWEATHER_BASE_URL", "https://api.openweathermap.org")

	if cfg.HTTPTimeout, err = getenvDuration("HTTP_TIMEOUT", "0s"); err != nil {
		return nil, err
	}
	if cfg.CollectInterval, err = getenvDuration("COLLECT_INTERVAL", "0s"); err != nil {
		return nil, err
	}

	cfg.Port = getenvDefault("PORT", "8080")

	cfg.AppEnv = getenvDefault("APP_ENV", "dev")
	switch cfg.AppEnv {
	case "dev", "prod":
	default:
		return nil, fmt.Errorf("invalid APP_ENV %q (allowed: dev, prod)", cfg.AppEnv)
	}
	if cfg.LogLevel, err = parseLogLevel(getenvDefault("LOG_LEVEL", "info")); err != nil {
		return nil, err
	}

	cfg.Influx = InfluxConfig{
		URL:    strings.TrimSpace(os.Getenv("INFLUX_URL")),
		Token:  strings.TrimSpace(os.Getenv("INFLUX_TOKEN")),
		Org:    strings.TrimSpace(os.Getenv("INFLUX_ORG")),
		Bucket: getenvDefault("INFLUX_BUCKET", "air_quality"),
	}

	return cfg, nil
}

func requireSecret(key string) (string, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return "", fmt.Errorf("%w: %s", ErrMissingSecret, key)
	}
	return v, nil
}

func getenvDefault(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getenvDuration(key, def string) (time.Duration, error) {
	s := getenvDefault(key, def)
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid %s: must not be negative", key)
	}
	return d, nil
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q (allowed: debug, info, warn, error)", s)
	}
}
