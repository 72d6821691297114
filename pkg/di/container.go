package di

import (
	"context"
	"log/slog"
	"os"

	"github.com/uptrace/bun"

	"github.com/goliatone/go-generic-dao/cache"
	"github.com/goliatone/go-generic-dao/dao"
	"github.com/goliatone/go-generic-dao/metadata"
	"github.com/goliatone/go-generic-dao/pkg/config"
	"github.com/goliatone/go-generic-dao/pkg/database"
	"github.com/goliatone/go-generic-dao/session"
)

// Container wires a complete DAO stack from a Config. It owns singleton
// instances of the database, entity registry, session factory, plan cache,
// general DAO and dispatcher.
type Container struct {
	config     config.Config
	logger     *slog.Logger
	models     []any
	db         *bun.DB
	registry   *metadata.Registry
	sessions   *session.Factory
	plans      cache.CacheService
	keys       cache.KeySerializer
	general    *dao.General
	dispatcher *dao.Dispatcher
}

// Option configures a Container.
type Option func(*Container)

// WithLogger replaces the logger built from the log config.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Container) {
		c.logger = logger
	}
}

// WithModels registers entity models, given as nil pointers, with the
// registry. They are also the tables CreateTables creates.
func WithModels(models ...any) Option {
	return func(c *Container) {
		c.models = append(c.models, models...)
	}
}

// NewContainer validates cfg, opens the database and builds the stack.
// The plan cache is only created when cfg enables it.
func NewContainer(ctx context.Context, cfg config.Config, opts ...Option) (*Container, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Container{
		config: cfg,
		keys:   cache.NewHashedKeySerializer(cache.NewDefaultKeySerializer()),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.Log.SlogLevel()}))
	}

	c.registry = metadata.NewRegistry()
	if err := c.registry.Register(c.models...); err != nil {
		return nil, err
	}

	if cfg.PlanCache.Enabled {
		plans, err := cache.NewCacheService(cache.Config{
			Capacity:           cfg.PlanCache.Capacity,
			NumShards:          cfg.PlanCache.NumShards,
			TTL:                cfg.PlanCache.TTL,
			EvictionPercentage: cfg.PlanCache.EvictionPercentage,
		})
		if err != nil {
			return nil, err
		}
		c.plans = plans
	}

	db, err := database.Open(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	c.db = db

	c.sessions = session.NewFactory(db, c.registry, session.WithLogger(c.logger))

	generalOpts := []dao.Option{dao.WithLogger(c.logger)}
	if c.plans != nil {
		generalOpts = append(generalOpts, dao.WithPlanCache(c.plans), dao.WithKeySerializer(c.keys))
	}
	c.general = dao.NewGeneral(c.registry, generalOpts...)
	c.dispatcher = dao.NewDispatcher(c.general, dao.WithDispatcherLogger(c.logger))

	c.logger.Debug("dao container ready",
		"driver", cfg.Database.Driver,
		"models", len(c.models),
		"plan_cache", cfg.PlanCache.Enabled,
	)
	return c, nil
}

// NewContainerWithDefaults builds a container from config.Default.
func NewContainerWithDefaults(ctx context.Context, opts ...Option) (*Container, error) {
	return NewContainer(ctx, config.Default(), opts...)
}

// Config returns the configuration the container was built from.
func (c *Container) Config() config.Config {
	return c.config
}

func (c *Container) Logger() *slog.Logger {
	return c.logger
}

func (c *Container) DB() *bun.DB {
	return c.db
}

func (c *Container) Registry() *metadata.Registry {
	return c.registry
}

// Sessions returns the factory that opens units of work on the database.
func (c *Container) Sessions() *session.Factory {
	return c.sessions
}

// CacheService returns the plan cache, or nil when it is disabled.
func (c *Container) CacheService() cache.CacheService {
	return c.plans
}

func (c *Container) KeySerializer() cache.KeySerializer {
	return c.keys
}

// General returns the GeneralDAO without any override.
func (c *Container) General() *dao.General {
	return c.general
}

// Dispatcher returns the dispatcher in front of the general DAO. Register
// overrides on it with SetOverrides.
func (c *Container) Dispatcher() *dao.Dispatcher {
	return c.dispatcher
}

// CreateTables creates the tables of the registered models.
func (c *Container) CreateTables(ctx context.Context) error {
	return database.CreateTables(ctx, c.db, c.models...)
}

// Close closes the database.
func (c *Container) Close() error {
	return c.db.Close()
}

// NewGenericDAO returns the typed DAO of T running on the container's
// dispatcher. Since Go methods cannot have type parameters, this is a
// package-level function.
func NewGenericDAO[T any, ID comparable](c *Container) *dao.Generic[T, ID] {
	return dao.NewGeneric[T, ID](c.dispatcher)
}

// NewRepositoryOverride adapts a go-repository-bun repository so it can be
// registered on the container's dispatcher.
// Example: NewRepositoryOverride[*User](container, userRepository)
func NewRepositoryOverride[T any](c *Container, store dao.RepositoryStore[T]) (*dao.RepositoryOverride[T], error) {
	return dao.NewRepositoryOverride(store, c.general)
}
