// Package repositorycache provides a caching decorator for repository.Repository.
//
// # Overview
//
// CachedRepository wraps any repository.Repository[T]. Reads (List, First,
// Select, Exists, Count) are read-through; writes pass through to the base
// repository and then purge every cached entry of the entity type.
//
// # Basic Usage
//
//	base := repository.NewBunRepository[model.Product](db, coordinator)
//	svc, _ := cache.NewCacheService(cache.DefaultConfig())
//
//	products := repositorycache.New[model.Product](base, svc, cache.NewDefaultKeySerializer())
//
//	list, err := products.List(ctx, repository.NewQuery("by_category").Where("category_id = ?", id))
//
// # Keys
//
// Keys have the form namespace::operation::signature::resultType, where the
// namespace is the snake_case type name ("cart_item") and the signature is the
// query name plus a fingerprint of its filters, ordering, limit, relations and
// columns. Values are stored as msgpack snapshots, so every hit is a copy.
//
// # Consistency
//
//   - A write purges the whole namespace prefix ("product::").
//   - A write made inside a unit of work purges again after the commit.
//   - Every purge bumps the namespace generation; a read that started before
//     the bump discards the value it just stored.
//   - Reads inside a unit of work go straight to the base repository, so
//     uncommitted rows are never cached.
//   - GetByKey is never cached.
//
// Invalidate purges explicitly, for rows written by collaborators that do
// not go through the decorator.
package repositorycache
