// Package config loads the settings used to wire a DAO stack: database
// connection, plan cache sizing and log level.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, as in GENERICDAO_DATABASE_DSN.
const EnvPrefix = "GENERICDAO"

// Supported database drivers.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
	DriverPgx      = "pgx"
)

// Database configures the connection pool.
type Database struct {
	Driver       string
	DSN          string
	MaxOpenConns int
}

// PlanCache configures the compiled search cache.
type PlanCache struct {
	Enabled            bool
	Capacity           int
	NumShards          int
	TTL                time.Duration
	EvictionPercentage int
}

// Log configures the default logger.
type Log struct {
	Level string
}

type Config struct {
	Database  Database
	PlanCache PlanCache
	Log       Log
}

// Default returns an in-memory sqlite setup with the plan cache enabled.
func Default() Config {
	return Config{
		Database: Database{
			Driver:       DriverSQLite,
			DSN:          "file::memory:?cache=shared",
			MaxOpenConns: 1,
		},
		PlanCache: PlanCache{
			Enabled:            true,
			Capacity:           4096,
			NumShards:          64,
			TTL:                30 * time.Minute,
			EvictionPercentage: 10,
		},
		Log: Log{Level: "info"},
	}
}

// Load reads config.yaml from dir on top of Default. A missing file is not
// an error; environment variables override both.
func Load(dir string) (Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if dir != "" {
		v.AddConfigPath(dir)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("database.driver", cfg.Database.Driver)
	v.SetDefault("database.dsn", cfg.Database.DSN)
	v.SetDefault("database.max_open_conns", cfg.Database.MaxOpenConns)
	v.SetDefault("plan_cache.enabled", cfg.PlanCache.Enabled)
	v.SetDefault("plan_cache.capacity", cfg.PlanCache.Capacity)
	v.SetDefault("plan_cache.num_shards", cfg.PlanCache.NumShards)
	v.SetDefault("plan_cache.ttl", cfg.PlanCache.TTL)
	v.SetDefault("plan_cache.eviction_percentage", cfg.PlanCache.EvictionPercentage)
	v.SetDefault("log.level", cfg.Log.Level)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	cfg.Database.Driver = v.GetString("database.driver")
	cfg.Database.DSN = v.GetString("database.dsn")
	cfg.Database.MaxOpenConns = v.GetInt("database.max_open_conns")
	cfg.PlanCache.Enabled = v.GetBool("plan_cache.enabled")
	cfg.PlanCache.Capacity = v.GetInt("plan_cache.capacity")
	cfg.PlanCache.NumShards = v.GetInt("plan_cache.num_shards")
	cfg.PlanCache.TTL = v.GetDuration("plan_cache.ttl")
	cfg.PlanCache.EvictionPercentage = v.GetInt("plan_cache.eviction_percentage")
	cfg.Log.Level = v.GetString("log.level")

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks every section. Plan cache sizing is only checked when
// the cache is enabled.
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Database),
		validation.Field(&c.PlanCache),
		validation.Field(&c.Log),
	)
}

func (d Database) Validate() error {
	return validation.ValidateStruct(&d,
		validation.Field(&d.Driver, validation.Required, validation.In(DriverSQLite, DriverPostgres, DriverPgx)),
		validation.Field(&d.DSN, validation.Required),
		validation.Field(&d.MaxOpenConns, validation.Min(0)),
	)
}

func (p PlanCache) Validate() error {
	if !p.Enabled {
		return nil
	}
	return validation.ValidateStruct(&p,
		validation.Field(&p.Capacity, validation.Required, validation.Min(1)),
		validation.Field(&p.NumShards, validation.Required, validation.Min(1)),
		validation.Field(&p.TTL, validation.Required, validation.Min(time.Duration(1))),
		validation.Field(&p.EvictionPercentage, validation.Required, validation.Min(1), validation.Max(100)),
	)
}

func (l Log) Validate() error {
	return validation.ValidateStruct(&l,
		validation.Field(&l.Level, validation.In("debug", "info", "warn", "error")),
	)
}

// SlogLevel maps Level to a slog level; unknown values map to info.
func (l Log) SlogLevel() slog.Level {
	switch l.Level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}
