package cacheinfra

import (
	"context"
	"errors"
	"sort"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/viccon/sturdyc"
)

// Config holds the configuration for the sturdyc plan cache.
type Config struct {
	// Capacity is the maximum number of compiled plans kept. Must be greater than 0.
	Capacity int

	// NumShards splits the cache for concurrent access. Default: 64
	NumShards int

	// TTL is how long a compiled plan stays valid. Must be greater than 0.
	TTL time.Duration

	// EvictionPercentage is the share of entries dropped when the cache is
	// full. Must be between 1-100.
	EvictionPercentage int

	// EvictionInterval sets how often expired plans are swept.
	// Zero value uses the sturdyc default.
	EvictionInterval time.Duration
}

// DefaultConfig returns a Config sized for a few thousand distinct searches.
func DefaultConfig() Config {
	return Config{
		Capacity:           4096,
		NumShards:          64,
		TTL:                30 * time.Minute,
		EvictionPercentage: 10,
	}
}

// ToSturdycOptions converts the Config to sturdyc options.
// Capacity, NumShards, TTL and EvictionPercentage go to sturdyc.New directly.
func (c Config) ToSturdycOptions() []sturdyc.Option {
	var options []sturdyc.Option
	if c.EvictionInterval > 0 {
		options = append(options, sturdyc.WithEvictionInterval(c.EvictionInterval))
	}
	return options
}

// Validate checks the configuration and reports the first offending field
// as a *ConfigError.
func (c Config) Validate() error {
	err := validation.ValidateStruct(&c,
		validation.Field(&c.Capacity, validation.Required, validation.Min(1)),
		validation.Field(&c.NumShards, validation.Required, validation.Min(1)),
		validation.Field(&c.TTL, validation.Required, validation.Min(time.Duration(1))),
		validation.Field(&c.EvictionPercentage, validation.Required, validation.Min(1), validation.Max(100)),
		validation.Field(&c.EvictionInterval, validation.Min(time.Duration(0))),
	)
	if err == nil {
		return nil
	}

	var fields validation.Errors
	if !errors.As(err, &fields) {
		return err
	}
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return &ConfigError{Field: names[0], Message: fields[names[0]].Error()}
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return "config error in field " + e.Field + ": " + e.Message
}

// SturdycService wraps a sturdyc client holding values of any type.
type SturdycService struct {
	client *sturdyc.Client[any]
}

// NewSturdycService validates cfg and builds the sturdyc client.
func NewSturdycService(cfg Config) (*SturdycService, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client := sturdyc.New[any](
		cfg.Capacity,
		cfg.NumShards,
		cfg.TTL,
		cfg.EvictionPercentage,
		cfg.ToSturdycOptions()...,
	)
	return &SturdycService{client: client}, nil
}

// GetOrFetch returns the value cached under key, calling fetchFn and storing
// its result on a miss. Concurrent misses on one key share a single call.
func (s *SturdycService) GetOrFetch(ctx context.Context, key string, fetchFn func(context.Context) (any, error)) (any, error) {
	if fetchFn == nil {
		return nil, &ConfigError{Field: "fetchFn", Message: "cannot be nil"}
	}
	value, err := s.client.GetOrFetch(ctx, key, func(ctx context.Context) (any, error) {
		v, err := fetchFn(ctx)
		if err != nil {
			return failedFetch{err: err}, err
		}
		if v == nil {
			return nilEntry{}, nil
		}
		return v, nil
	})
	switch value.(type) {
	case failedFetch, nilEntry:
		value = nil
	}
	return value, err
}

// sturdyc rejects untyped nil results with ErrInvalidType, hiding the fetch
// error. These stand in for nil until the value is handed back.
type (
	failedFetch struct{ err error }
	nilEntry    struct{}
)

// Delete removes a single entry.
func (s *SturdycService) Delete(_ context.Context, key string) error {
	s.client.Delete(key)
	return nil
}

// Size reports how many entries are cached.
func (s *SturdycService) Size() int {
	return s.client.Size()
}
