// Package cache provides the cache service contract, key composition and the
// value codec used by the repository caching decorator.
//
// # Overview
//
//   - CacheService: a process-wide key/value store of encoded snapshots with
//     single key, prefix and full purges
//   - KeySerializer: builds keys of the form
//     namespace::operation::signature::resultType and stable query fingerprints
//   - Encode/Decode: msgpack snapshot codec; a cache hit always decodes a fresh
//     value, so callers never share mutable state through the cache
//
// # Basic Usage
//
//	serializer := cache.NewDefaultKeySerializer()
//	sig := "by_category#" + serializer.Fingerprint("category_id = ?", categoryID)
//	key := serializer.SerializeKey("product", "list", sig, "product")
//
//	products, err := cache.GetOrFetch(ctx, cacheService, key, func(ctx context.Context) ([]model.Product, error) {
//		return repo.List(ctx, q)
//	}, nil)
//
// # Key Serialization Strategy
//
// Fingerprints are computed from a deterministic serialization hashed with
// xxhash:
//
//   - Values implementing encoding.TextMarshaler (time.Time, decimal.Decimal,
//     uuid.UUID): their text form
//   - Basic types: type name plus value
//   - Slices/arrays: recursive serialization of elements
//   - Maps: sorted key-value pairs
//   - Structs: exported fields with name:value pairs
//   - Functions: type only; function identity is never part of a key
//   - Anything else: JSON fallback
//
// Segments are joined with KeySeparator ("::"). NamespacePrefix returns the
// prefix removed by a type-wide purge; the separator keeps the "user"
// namespace from matching "user_role" keys.
//
// # See Also
//
// The repositorycache package builds on these primitives; internal/cacheinfra
// holds the sturdyc-backed implementation returned by NewCacheService.
package cache
