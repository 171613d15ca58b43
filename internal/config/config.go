// Package config loads and validates employee service configuration via Viper.
package config

import (
	"fmt"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"

	"github.com/JakeFAU/employee-store/internal/employee"
)

// Storage backends accepted by storage.backend.
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Aggregate AggregateConfig `mapstructure:"aggregate"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port                   int `mapstructure:"port"`
	RequestTimeoutSeconds  int `mapstructure:"request_timeout_seconds"`
	ShutdownTimeoutSeconds int `mapstructure:"shutdown_timeout_seconds"`
}

// StorageConfig selects the storage engine.
type StorageConfig struct {
	Backend string       `mapstructure:"backend"`
	SQLite  SQLiteConfig `mapstructure:"sqlite"`
}

// SQLiteConfig locates the SQLite database file.
type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

// DatabaseConfig controls access to Postgres.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	Table           string        `mapstructure:"table"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

// AggregateConfig holds the default prefixes and threshold for ABC sums.
type AggregateConfig struct {
	Prefixes  []string `mapstructure:"prefixes"`
	Threshold int64    `mapstructure:"threshold"`
}

// LoggingConfig toggles zap development features and the minimum level.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// TelemetryConfig configures OpenTelemetry tracing.
type TelemetryConfig struct {
	ServiceName    string `mapstructure:"service_name"`
	TracingEnabled bool   `mapstructure:"tracing_enabled"`
	OTLPEndpoint   string `mapstructure:"otlp_endpoint"`
	OTLPInsecure   bool   `mapstructure:"otlp_insecure"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("EMPLOYEES")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.request_timeout_seconds", 15)
	v.SetDefault("server.shutdown_timeout_seconds", 10)
	v.SetDefault("storage.backend", BackendSQLite)
	v.SetDefault("storage.sqlite.path", "employees.db")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.table", "employees")
	v.SetDefault("database.max_conns", 4)
	v.SetDefault("database.min_conns", 0)
	v.SetDefault("database.max_conn_lifetime", time.Hour)
	v.SetDefault("aggregate.prefixes", []string{"A", "B", "C"})
	v.SetDefault("aggregate.threshold", 11171)
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")
	v.SetDefault("telemetry.service_name", "employee-store")
	v.SetDefault("telemetry.tracing_enabled", false)
	v.SetDefault("telemetry.otlp_endpoint", "")
	v.SetDefault("telemetry.otlp_insecure", false)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Server.RequestTimeoutSeconds <= 0 {
		return fmt.Errorf("server.request_timeout_seconds must be > 0")
	}
	if c.Server.ShutdownTimeoutSeconds < 0 {
		return fmt.Errorf("server.shutdown_timeout_seconds must be >= 0")
	}
	switch c.Storage.Backend {
	case BackendMemory:
	case BackendSQLite:
		if c.Storage.SQLite.Path == "" {
			return fmt.Errorf("storage.sqlite.path is required for the sqlite backend")
		}
	case BackendPostgres:
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required for the postgres backend")
		}
		if c.Database.MinConns > c.Database.MaxConns && c.Database.MaxConns > 0 {
			return fmt.Errorf("database.min_conns must be <= database.max_conns")
		}
	default:
		return fmt.Errorf("storage.backend %q must be one of memory, sqlite, postgres", c.Storage.Backend)
	}
	for _, p := range c.Aggregate.Prefixes {
		if utf8.RuneCountInString(p) != 1 {
			return fmt.Errorf("aggregate.prefixes entry %q must be a single character", p)
		}
	}
	if _, err := zapcore.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	if c.Telemetry.TracingEnabled && c.Telemetry.ServiceName == "" {
		return fmt.Errorf("telemetry.service_name must be set when tracing is enabled")
	}
	return nil
}

// RequestTimeout converts server.request_timeout_seconds into a duration.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.Server.RequestTimeoutSeconds) * time.Second
}

// ShutdownTimeout converts server.shutdown_timeout_seconds into a duration.
func (c Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.Server.ShutdownTimeoutSeconds) * time.Second
}

// Query converts the aggregate section into the default ABC sums query.
// Without configured prefixes the built-in {A, B, C} >= 11171 query applies.
func (a AggregateConfig) Query() employee.GroupQuery {
	if len(a.Prefixes) == 0 {
		return employee.DefaultGroupQuery()
	}
	return employee.GroupQuery{
		Prefixes:  slices.Clone(a.Prefixes),
		Threshold: a.Threshold,
	}
}
