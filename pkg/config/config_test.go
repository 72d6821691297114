package config

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Database.Driver != DriverSQLite {
		t.Errorf("expected sqlite driver, got %q", cfg.Database.Driver)
	}
	if !cfg.PlanCache.Enabled {
		t.Error("expected plan cache enabled by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg != Default() {
		t.Errorf("expected defaults, got %+v", cfg)
	}
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	yaml := []byte(`database:
  driver: postgres
  dsn: postgres://localhost/people?sslmode=disable
  max_open_conns: 8
plan_cache:
  enabled: true
  capacity: 128
  ttl: 10m
log:
  level: debug
`)
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), yaml, 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("GENERICDAO_DATABASE_MAX_OPEN_CONNS", "16")

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Database.Driver != DriverPostgres {
		t.Errorf("expected postgres, got %q", cfg.Database.Driver)
	}
	if cfg.Database.MaxOpenConns != 16 {
		t.Errorf("expected env override 16, got %d", cfg.Database.MaxOpenConns)
	}
	if cfg.PlanCache.Capacity != 128 || cfg.PlanCache.TTL != 10*time.Minute {
		t.Errorf("unexpected plan cache config: %+v", cfg.PlanCache)
	}
	if cfg.PlanCache.NumShards != Default().PlanCache.NumShards {
		t.Errorf("expected default shards to survive, got %d", cfg.PlanCache.NumShards)
	}
	if cfg.Log.SlogLevel() != slog.LevelDebug {
		t.Errorf("expected debug level, got %v", cfg.Log.SlogLevel())
	}
}

func TestLoad_InvalidFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("database:\n  driver: oracle\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(dir); err == nil {
		t.Fatal("expected validation error for unknown driver")
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		section string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "empty dsn", mutate: func(c *Config) { c.Database.DSN = "" }, section: "Database"},
		{name: "unknown driver", mutate: func(c *Config) { c.Database.Driver = "mysql" }, section: "Database"},
		{name: "zero cache capacity", mutate: func(c *Config) { c.PlanCache.Capacity = 0 }, section: "PlanCache"},
		{
			name: "disabled cache skips sizing",
			mutate: func(c *Config) {
				c.PlanCache.Enabled = false
				c.PlanCache.Capacity = 0
			},
		},
		{name: "eviction over 100", mutate: func(c *Config) { c.PlanCache.EvictionPercentage = 150 }, section: "PlanCache"},
		{name: "bad log level", mutate: func(c *Config) { c.Log.Level = "verbose" }, section: "Log"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.section == "" {
				if err != nil {
					t.Errorf("expected no error, got %v", err)
				}
				return
			}

			var errs validation.Errors
			if !errors.As(err, &errs) {
				t.Fatalf("expected validation.Errors, got %T (%v)", err, err)
			}
			if _, ok := errs[tt.section]; !ok {
				t.Errorf("expected error in section %s, got %v", tt.section, errs)
			}
		})
	}
}

func TestLog_SlogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"info":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
		"":      slog.LevelInfo,
	}
	for level, want := range tests {
		if got := (Log{Level: level}).SlogLevel(); got != want {
			t.Errorf("%q: expected %v, got %v", level, want, got)
		}
	}
}
