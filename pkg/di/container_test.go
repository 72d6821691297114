package di

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/goliatone/go-generic-dao/pkg/config"
	"github.com/goliatone/go-generic-dao/pkg/testsupport"
)

// testConfig returns a private in-memory sqlite setup.
func testConfig() config.Config {
	cfg := config.Default()
	cfg.Database.DSN = "file::memory:"
	cfg.Database.MaxOpenConns = 1
	return cfg
}

func newTestContainer(t testing.TB, cfg config.Config) *Container {
	t.Helper()
	ctx := context.Background()
	container, err := NewContainer(ctx, cfg,
		WithModels(testsupport.Models()...),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	if err != nil {
		t.Fatalf("NewContainer() failed: %v", err)
	}
	t.Cleanup(func() { container.Close() })
	if err := container.CreateTables(ctx); err != nil {
		t.Fatalf("CreateTables() failed: %v", err)
	}
	return container
}

func TestNewContainer(t *testing.T) {
	cfg := testConfig()
	cfg.PlanCache.Capacity = 1000
	cfg.PlanCache.TTL = 5 * time.Minute

	container := newTestContainer(t, cfg)

	if container.DB() == nil {
		t.Error("Container should have a database")
	}
	if container.Sessions() == nil {
		t.Error("Container should have a session factory")
	}
	if container.CacheService() == nil {
		t.Error("Container should have a plan cache when it is enabled")
	}
	if container.KeySerializer() == nil {
		t.Error("Container should have a non-nil key serializer")
	}
	if container.General() == nil || container.Dispatcher() == nil {
		t.Fatal("Container should have a general DAO and a dispatcher")
	}
	if container.Dispatcher().HasOverrides() {
		t.Error("a new dispatcher should have no overrides")
	}
	if _, ok := container.Registry().Lookup("github.com/goliatone/go-generic-dao/pkg/testsupport.Person"); !ok {
		t.Error("expected Person to be registered")
	}

	stored := container.Config()
	if stored.PlanCache.Capacity != cfg.PlanCache.Capacity {
		t.Errorf("Expected capacity %d, got %d", cfg.PlanCache.Capacity, stored.PlanCache.Capacity)
	}
	if stored.PlanCache.TTL != cfg.PlanCache.TTL {
		t.Errorf("Expected TTL %v, got %v", cfg.PlanCache.TTL, stored.PlanCache.TTL)
	}
}

func TestNewContainer_PlanCacheDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.PlanCache.Enabled = false
	cfg.PlanCache.Capacity = 0

	container := newTestContainer(t, cfg)
	if container.CacheService() != nil {
		t.Error("expected no plan cache")
	}
}

func TestNewContainer_InvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{name: "missing driver", mutate: func(c *config.Config) { c.Database.Driver = "" }},
		{name: "unknown driver", mutate: func(c *config.Config) { c.Database.Driver = "oracle" }},
		{name: "plan cache capacity", mutate: func(c *config.Config) { c.PlanCache.Capacity = 0 }},
		{name: "eviction percentage", mutate: func(c *config.Config) { c.PlanCache.EvictionPercentage = 101 }},
		{name: "log level", mutate: func(c *config.Config) { c.Log.Level = "verbose" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(&cfg)
			if _, err := NewContainer(context.Background(), cfg); err == nil {
				t.Error("NewContainer() should fail with invalid config")
			}
		})
	}
}

func TestNewContainer_InvalidModel(t *testing.T) {
	_, err := NewContainer(context.Background(), testConfig(), WithModels(42))
	if err == nil {
		t.Error("NewContainer() should reject a model that is not a struct")
	}
}

func TestNewContainerWithDefaults(t *testing.T) {
	container, err := NewContainerWithDefaults(context.Background())
	if err != nil {
		t.Fatalf("NewContainerWithDefaults() failed: %v", err)
	}
	defer container.Close()

	defaults := config.Default()
	if container.Config().Database.Driver != defaults.Database.Driver {
		t.Errorf("Expected default driver %q, got %q", defaults.Database.Driver, container.Config().Database.Driver)
	}
	if container.Logger() == nil {
		t.Error("Container should build a logger from the log config")
	}
}

func TestContainerSingletonBehavior(t *testing.T) {
	container := newTestContainer(t, testConfig())

	if container.CacheService() != container.CacheService() {
		t.Error("CacheService() should return the same instance (singleton behavior)")
	}
	if container.KeySerializer() != container.KeySerializer() {
		t.Error("KeySerializer() should return the same instance (singleton behavior)")
	}
	if container.Dispatcher() != container.Dispatcher() {
		t.Error("Dispatcher() should return the same instance (singleton behavior)")
	}
	if NewGenericDAO[testsupport.Person, int64](container).Type() != NewGenericDAO[testsupport.Person, int64](container).Type() {
		t.Error("typed DAOs of the same entity should agree on the type")
	}
}

func TestKeySerializerIntegration(t *testing.T) {
	container := newTestContainer(t, testConfig())
	keys := container.KeySerializer()

	a := keys.SerializeKey("Translate", "people", 10, true)
	b := keys.SerializeKey("Translate", "people", 10, true)
	c := keys.SerializeKey("Translate", "people", 11, true)

	if a != b {
		t.Errorf("expected stable keys, got %q and %q", a, b)
	}
	if a == c {
		t.Error("expected different arguments to give different keys")
	}
}

func TestCacheServiceIntegration(t *testing.T) {
	container := newTestContainer(t, testConfig())
	plans := container.CacheService()
	ctx := context.Background()

	calls := 0
	fetch := func(ctx context.Context) (any, error) {
		calls++
		return "plan", nil
	}

	for i := 0; i < 2; i++ {
		result, err := plans.GetOrFetch(ctx, "test-key", fetch)
		if err != nil {
			t.Fatalf("GetOrFetch() failed: %v", err)
		}
		if result != "plan" {
			t.Errorf("Expected value %q, got %v", "plan", result)
		}
	}
	if calls != 1 {
		t.Errorf("expected one fetch, got %d", calls)
	}

	if err := plans.Delete(ctx, "test-key"); err != nil {
		t.Errorf("Delete() failed: %v", err)
	}
}
