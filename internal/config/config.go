// Package config loads application configuration from defaults, an optional
// YAML file and APP_ environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/bissquit/incident-console/internal/domain"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	envPrefix         = "APP_"
	configPathEnv     = "CONFIG_PATH"
	defaultConfigPath = "config.yaml"
)

// Config is the root application configuration.
type Config struct {
	Server        ServerConfig        `koanf:"server"`
	Database      DatabaseConfig      `koanf:"database"`
	Log           LogConfig           `koanf:"log"`
	JWT           JWTConfig           `koanf:"jwt"`
	CORS          CORSConfig          `koanf:"cors"`
	SLA           SLAConfig           `koanf:"sla"`
	Seed          SeedConfig          `koanf:"seed"`
	Notifications NotificationsConfig `koanf:"notifications"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host              string        `koanf:"host"`
	Port              string        `koanf:"port"`
	MetricsPort       string        `koanf:"metrics_port"`
	ReadTimeout       time.Duration `koanf:"read_timeout"`
	ReadHeaderTimeout time.Duration `koanf:"read_header_timeout"`
	WriteTimeout      time.Duration `koanf:"write_timeout"`
	IdleTimeout       time.Duration `koanf:"idle_timeout"`
}

// DatabaseConfig contains PostgreSQL settings.
type DatabaseConfig struct {
	URL             string        `koanf:"url"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	ConnectTimeout  time.Duration `koanf:"connect_timeout"`
	ConnectAttempts int           `koanf:"connect_attempts"`
	AutoMigrate     bool          `koanf:"auto_migrate"`
}

// LogConfig contains logger settings.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// JWTConfig contains access token settings.
type JWTConfig struct {
	SecretKey           string        `koanf:"secret_key"`
	AccessTokenDuration time.Duration `koanf:"access_token_duration"`
}

// CORSConfig contains CORS settings.
type CORSConfig struct {
	AllowedOrigins []string `koanf:"allowed_origins"`
}

// SLAConfig contains the global severity budgets in hours.
type SLAConfig struct {
	Defaults      map[domain.Severity]int `koanf:"defaults"`
	FallbackHours int                     `koanf:"fallback_hours"`
}

// SeedConfig controls demo data.
type SeedConfig struct {
	Enabled bool `koanf:"enabled"`
}

// NotificationsConfig contains SLA breach alerting settings.
type NotificationsConfig struct {
	Enabled              bool    `koanf:"enabled"`
	MattermostWebhookURL string  `koanf:"mattermost_webhook_url"`
	BreachCheckSchedule  string  `koanf:"breach_check_schedule"`
	RateLimit            float64 `koanf:"rate_limit"`
	MaxAttempts          int     `koanf:"max_attempts"`
	BaseURL              string  `koanf:"base_url"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host:              "0.0.0.0",
			Port:              "8080",
			MetricsPort:       "9090",
			ReadTimeout:       15 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		Database: DatabaseConfig{
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: time.Hour,
			ConnectTimeout:  30 * time.Second,
			ConnectAttempts: 5,
			AutoMigrate:     true,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		JWT: JWTConfig{
			AccessTokenDuration: 12 * time.Hour,
		},
		CORS: CORSConfig{
			AllowedOrigins: []string{"http://localhost:3000"},
		},
		SLA: SLAConfig{
			Defaults: map[domain.Severity]int{
				domain.SeveritySEV1: 1,
				domain.SeveritySEV2: 4,
				domain.SeveritySEV3: 8,
				domain.SeveritySEV4: 24,
			},
			FallbackHours: 24,
		},
		Seed: SeedConfig{
			Enabled: true,
		},
		Notifications: NotificationsConfig{
			BreachCheckSchedule: "@every 1m",
			RateLimit:           1,
			MaxAttempts:         3,
		},
	}
}

// Load reads configuration. The YAML file named by CONFIG_PATH (default
// config.yaml) is optional; APP_ variables override it, with the first
// underscore after the prefix separating section and key, so
// APP_DATABASE_URL sets database.url. APP_SLA_DEFAULTS_SEV1 sets the SEV1
// budget and APP_CORS_ALLOWED_ORIGINS takes a comma-separated list.
func Load() (*Config, error) {
	path := os.Getenv(configPathEnv)
	explicit := path != ""
	if !explicit {
		path = defaultConfigPath
	}
	return LoadFrom(path, explicit)
}

// LoadFrom reads configuration from path. When required is false a missing
// file is skipped.
func LoadFrom(path string, required bool) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("load config file %s: %w", path, err)
			}
		} else if required || !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("stat config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.ProviderWithValue(envPrefix, ".", envValue), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// listKeys are loaded from comma-separated env values.
var listKeys = map[string]bool{
	"cors.allowed_origins": true,
}

const slaDefaultsKey = "sla.defaults_"

func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, envPrefix))
	key = strings.Replace(key, "_", ".", 1)
	// Severity labels are map keys and stay upper case.
	if sev, ok := strings.CutPrefix(key, slaDefaultsKey); ok && sev != "" {
		return "sla.defaults." + strings.ToUpper(sev)
	}
	return key
}

func envValue(name, value string) (string, any) {
	key := envKey(name)
	if !listKeys[key] {
		return key, value
	}

	parts := strings.Split(value, ",")
	items := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			items = append(items, p)
		}
	}
	return key, items
}

// Validate checks settings the application cannot start without.
func (c *Config) Validate() error {
	var errs []error

	if c.Database.URL == "" {
		errs = append(errs, errors.New("database.url is required"))
	}
	if c.JWT.SecretKey == "" {
		errs = append(errs, errors.New("jwt.secret_key is required"))
	}
	if c.JWT.AccessTokenDuration <= 0 {
		errs = append(errs, errors.New("jwt.access_token_duration must be positive"))
	}
	for sev, hours := range c.SLA.Defaults {
		if hours <= 0 {
			errs = append(errs, fmt.Errorf("sla.defaults.%s must be positive, got %d", sev, hours))
		}
	}
	if c.SLA.FallbackHours <= 0 {
		errs = append(errs, errors.New("sla.fallback_hours must be positive"))
	}
	if c.Notifications.Enabled {
		if c.Notifications.MattermostWebhookURL == "" {
			errs = append(errs, errors.New("notifications.mattermost_webhook_url is required when notifications are enabled"))
		}
		if c.Notifications.BreachCheckSchedule == "" {
			errs = append(errs, errors.New("notifications.breach_check_schedule is required when notifications are enabled"))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}
