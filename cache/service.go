package cache

import (
	"context"
)

// FetchFn is the function signature GetOrFetch expects when fetching from the source of truth.
type FetchFn[T any] func(ctx context.Context) (T, error)

// StoreFn writes a freshly fetched value under key.
type StoreFn func(ctx context.Context, key string, value any)

// CacheService is the process-wide key/value store used by repository
// decorators. Values are opaque encoded snapshots (see Encode/Decode).
// Implementations must be safe for concurrent use.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	// DeleteByPrefix removes every entry whose key starts with prefix.
	DeleteByPrefix(ctx context.Context, prefix string) error
	// Clear removes every entry.
	Clear(ctx context.Context) error
}

// LoadInto decodes the cached value for key into dest. It reports false on a
// miss. A value that cannot be decoded is evicted and reported as a miss.
func LoadInto(ctx context.Context, service CacheService, key string, dest any) bool {
	raw, ok := service.Get(ctx, key)
	if !ok {
		return false
	}
	if err := Decode(raw, dest); err != nil {
		_ = service.Delete(ctx, key)
		return false
	}
	return true
}

// StoreValue encodes value and stores it under key.
func StoreValue(ctx context.Context, service CacheService, key string, value any) error {
	raw, err := Encode(value)
	if err != nil {
		return err
	}
	return service.Set(ctx, key, raw)
}

// GetOrFetch is a type-safe read-through helper: it returns the cached value
// for key or calls fetchFn, stores its result and returns it. Fetch errors
// are returned unchanged and nothing is stored. store replaces StoreValue
// when not nil; with the default a value that cannot be encoded is returned
// uncached.
func GetOrFetch[T any](ctx context.Context, service CacheService, key string, fetchFn FetchFn[T], store StoreFn) (T, error) {
	var cached T
	if LoadInto(ctx, service, key, &cached) {
		return cached, nil
	}

	result, err := fetchFn(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	if store != nil {
		store(ctx, key, result)
	} else {
		_ = StoreValue(ctx, service, key, result)
	}
	return result, nil
}
