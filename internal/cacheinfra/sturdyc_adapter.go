package cacheinfra

import (
	"context"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/viccon/sturdyc"
)

// Config holds the configuration for the sturdyc cache adapter.
type Config struct {
	// Capacity defines the maximum number of entries that the cache can store.
	Capacity int

	// NumShards determines the number of cache shards for concurrent access.
	// Higher values improve concurrency but increase memory overhead.
	NumShards int

	// TTL is the absolute lifetime of a cached snapshot. Invalidation does not
	// depend on it; it bounds how long an unused entry occupies memory. Zero
	// keeps entries until they are purged or evicted for capacity.
	TTL time.Duration

	// EvictionPercentage specifies what percentage of entries to evict
	// when the cache reaches its capacity. Must be between 1-100.
	EvictionPercentage int

	// EvictionInterval sets how often the cache checks for expired entries.
	// Zero value uses the sturdyc default.
	EvictionInterval time.Duration
}

// NoExpiry is the lifetime handed to sturdyc for a zero TTL, which it does
// not accept.
const NoExpiry = 100 * 365 * 24 * time.Hour

// DefaultConfig returns a Config with sensible defaults for most use cases.
func DefaultConfig() Config {
	return Config{
		Capacity:           10000,
		NumShards:          256,
		TTL:                10 * time.Minute,
		EvictionPercentage: 10,
	}
}

// ToSturdycOptions converts the optional parts of Config to sturdyc options.
// Capacity, NumShards, TTL and EvictionPercentage go to sturdyc.New directly.
func (c Config) ToSturdycOptions() []sturdyc.Option {
	var options []sturdyc.Option
	if c.EvictionInterval > 0 {
		options = append(options, sturdyc.WithEvictionInterval(c.EvictionInterval))
	}
	return options
}

func (c Config) ttl() time.Duration {
	if c.TTL == 0 {
		return NoExpiry
	}
	return c.TTL
}

// Validate checks if the configuration values are valid.
func (c Config) Validate() error {
	err := validation.ValidateStruct(&c,
		validation.Field(&c.Capacity, validation.Required, validation.Min(1)),
		validation.Field(&c.NumShards, validation.Required, validation.Min(1)),
		validation.Field(&c.TTL, validation.Min(time.Duration(0)), validation.When(c.TTL > 0, validation.Min(time.Millisecond))),
		validation.Field(&c.EvictionPercentage, validation.Required, validation.Min(1), validation.Max(100)),
		validation.Field(&c.EvictionInterval, validation.Min(time.Duration(0))),
	)
	if err != nil {
		return &ConfigError{Err: err}
	}
	return nil
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Err error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return "cache config: " + e.Err.Error()
}

func (e *ConfigError) Unwrap() error { return e.Err }

// sturdycService stores encoded snapshots in a sharded sturdyc client.
type sturdycService struct {
	client *sturdyc.Client[[]byte]
}

// NewSturdycService creates a new sturdyc cache service adapter.
func NewSturdycService(cfg Config) (*sturdycService, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client := sturdyc.New[[]byte](
		cfg.Capacity,
		cfg.NumShards,
		cfg.ttl(),
		cfg.EvictionPercentage,
		cfg.ToSturdycOptions()...,
	)

	return &sturdycService{client: client}, nil
}

// Get implements cache.CacheService.Get.
func (s *sturdycService) Get(_ context.Context, key string) ([]byte, bool) {
	return s.client.Get(key)
}

// Set implements cache.CacheService.Set.
func (s *sturdycService) Set(_ context.Context, key string, value []byte) error {
	s.client.Set(key, value)
	return nil
}

// Delete implements cache.CacheService.Delete.
func (s *sturdycService) Delete(_ context.Context, key string) error {
	s.client.Delete(key)
	return nil
}

// DeleteByPrefix implements cache.CacheService.DeleteByPrefix.
// Removes all entries from the cache that have keys starting with the given prefix.
func (s *sturdycService) DeleteByPrefix(_ context.Context, prefix string) error {
	for _, key := range s.client.ScanKeys() {
		if strings.HasPrefix(key, prefix) {
			s.client.Delete(key)
		}
	}
	return nil
}

// Clear implements cache.CacheService.Clear.
func (s *sturdycService) Clear(_ context.Context) error {
	for _, key := range s.client.ScanKeys() {
		s.client.Delete(key)
	}
	return nil
}

// Size reports the number of stored entries.
func (s *sturdycService) Size() int {
	return s.client.Size()
}
