package repositorycache

import (
	"context"
	"fmt"
	"reflect"

	"github.com/goliatone/go-storefront/cache"
	"github.com/goliatone/go-storefront/internal/logger"
	"github.com/goliatone/go-storefront/repository"
)

// Interface assertion to ensure CachedRepository implements Repository[T]
var _ repository.Repository[struct{}] = (*CachedRepository[struct{}])(nil)

// CachedRepository decorates a base repository with read-through caching and
// type-wide invalidation.
type CachedRepository[T any] struct {
	base          repository.Repository[T]
	cache         cache.CacheService
	keySerializer cache.KeySerializer
	generations   *Generations
	namespace     string
	entityName    string
	log           *logger.Logger
}

// Option configures a CachedRepository.
type Option func(*options)

type options struct {
	generations *Generations
	namespace   string
	log         *logger.Logger
}

// WithGenerations shares write generations between decorators, e.g. all the
// decorators built by one container.
func WithGenerations(g *Generations) Option {
	return func(o *options) { o.generations = g }
}

// WithNamespace overrides the cache namespace derived from the type name.
func WithNamespace(namespace string) Option {
	return func(o *options) { o.namespace = namespace }
}

func WithLogger(l *logger.Logger) Option {
	return func(o *options) { o.log = l }
}

// New creates a new CachedRepository that wraps the base repository with caching
func New[T any](base repository.Repository[T], cacheService cache.CacheService, keySerializer cache.KeySerializer, opts ...Option) *CachedRepository[T] {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.generations == nil {
		o.generations = NewGenerations()
	}
	if o.namespace == "" {
		o.namespace = namespaceOf[T]()
	}
	if o.log == nil {
		o.log = logger.Nop()
	}
	if keySerializer == nil {
		keySerializer = cache.NewDefaultKeySerializer()
	}

	return &CachedRepository[T]{
		base:          base,
		cache:         cacheService,
		keySerializer: keySerializer,
		generations:   o.generations,
		namespace:     o.namespace,
		entityName:    resultTypeName(reflect.TypeOf((*T)(nil))),
		log:           o.log.With("namespace", o.namespace),
	}
}

// Namespace returns the prefix segment shared by every key of this decorator.
func (c *CachedRepository[T]) Namespace() string {
	return c.namespace
}

// List retrieves every entity matching q, with caching
func (c *CachedRepository[T]) List(ctx context.Context, q repository.Query) ([]T, error) {
	if repository.InScope(ctx) {
		return c.base.List(ctx, q)
	}
	return readThrough(ctx, c, c.key("list", q, "list_"+c.entityName), func(ctx context.Context) ([]T, error) {
		return c.base.List(ctx, q)
	})
}

// First retrieves the first entity matching q, with caching. Misses (nil)
// are cached as well.
func (c *CachedRepository[T]) First(ctx context.Context, q repository.Query) (*T, error) {
	if repository.InScope(ctx) {
		return c.base.First(ctx, q)
	}
	return readThrough(ctx, c, c.key("first", q, c.entityName), func(ctx context.Context) (*T, error) {
		return c.base.First(ctx, q)
	})
}

// Select runs a projection, with caching. The result type is part of the
// key, so the same query projected into different types is cached apart.
func (c *CachedRepository[T]) Select(ctx context.Context, q repository.Query, dest any) error {
	if repository.InScope(ctx) {
		return c.base.Select(ctx, q, dest)
	}

	key := c.key("select", q, resultTypeName(reflect.TypeOf(dest)))
	if cache.LoadInto(ctx, c.cache, key, dest) {
		return nil
	}

	gen := c.generations.Current(c.namespace)
	if err := c.base.Select(ctx, q, dest); err != nil {
		return err
	}
	c.store(ctx, key, gen, dest)
	return nil
}

// GetByKey is never cached.
func (c *CachedRepository[T]) GetByKey(ctx context.Context, keys ...any) (*T, error) {
	return c.base.GetByKey(ctx, keys...)
}

// Exists reports whether any entity matches q, with caching
func (c *CachedRepository[T]) Exists(ctx context.Context, q repository.Query) (bool, error) {
	if repository.InScope(ctx) {
		return c.base.Exists(ctx, q)
	}
	return readThrough(ctx, c, c.key("exists", q, "bool"), func(ctx context.Context) (bool, error) {
		return c.base.Exists(ctx, q)
	})
}

// Count returns the number of entities matching q, with caching
func (c *CachedRepository[T]) Count(ctx context.Context, q repository.Query) (int, error) {
	if repository.InScope(ctx) {
		return c.base.Count(ctx, q)
	}
	return readThrough(ctx, c, c.key("count", q, "int"), func(ctx context.Context) (int, error) {
		return c.base.Count(ctx, q)
	})
}

// Create passes through to the base repository and invalidates the type.
func (c *CachedRepository[T]) Create(ctx context.Context, entity *T) error {
	err := c.base.Create(ctx, entity)
	if err == nil {
		c.Invalidate(ctx)
	}
	return err
}

// Update passes through to the base repository and invalidates the type.
func (c *CachedRepository[T]) Update(ctx context.Context, entity *T) error {
	err := c.base.Update(ctx, entity)
	if err == nil {
		c.Invalidate(ctx)
	}
	return err
}

// Delete passes through to the base repository and invalidates the type.
func (c *CachedRepository[T]) Delete(ctx context.Context, entity *T) error {
	err := c.base.Delete(ctx, entity)
	if err == nil {
		c.Invalidate(ctx)
	}
	return err
}

// SaveChanges flushes staged changes. The purge runs even when the flush
// fails part way, since earlier changes may already be applied.
func (c *CachedRepository[T]) SaveChanges(ctx context.Context) (int64, error) {
	n, err := c.base.SaveChanges(ctx)
	if n > 0 || err != nil {
		c.Invalidate(ctx)
	}
	return n, err
}

func (c *CachedRepository[T]) UpdateCertainFields(ctx context.Context, q repository.Query, setters ...repository.Setter) (int64, error) {
	n, err := c.base.UpdateCertainFields(ctx, q, setters...)
	if err == nil {
		c.Invalidate(ctx)
	}
	return n, err
}

func (c *CachedRepository[T]) DeleteCertainEntries(ctx context.Context, q repository.Query) (int64, error) {
	n, err := c.base.DeleteCertainEntries(ctx, q)
	if err == nil {
		c.Invalidate(ctx)
	}
	return n, err
}

func (c *CachedRepository[T]) DoInTransaction(ctx context.Context, uow repository.UnitOfWork) (bool, error) {
	return c.base.DoInTransaction(ctx, uow)
}

// Invalidate removes every cached entry of this type. Inside a unit of work
// the purge is repeated once the transaction commits, so reads that ran
// between the write and the commit cannot leave stale entries behind.
func (c *CachedRepository[T]) Invalidate(ctx context.Context) {
	c.purge(ctx)
	if scope, ok := repository.ScopeFromContext(ctx); ok {
		scope.AfterCommit(fmt.Sprintf("repositorycache:%s:%p", c.namespace, c), c.purge)
	}
}

func (c *CachedRepository[T]) purge(ctx context.Context) {
	c.generations.Bump(c.namespace)
	if err := c.cache.DeleteByPrefix(ctx, cache.NamespacePrefix(c.namespace)); err != nil {
		c.log.Warn("cache purge failed", "error", err)
	}
}

func (c *CachedRepository[T]) key(op string, q repository.Query, resultType string) string {
	signature := q.Name + "#" + c.keySerializer.Fingerprint(q.Structure()...)
	return c.keySerializer.SerializeKey(c.namespace, op, signature, resultType)
}

// store caches value unless a write to the namespace happened after gen was
// read, in which case the value may predate that write.
func (c *CachedRepository[T]) store(ctx context.Context, key string, gen uint64, value any) {
	if err := cache.StoreValue(ctx, c.cache, key, value); err != nil {
		c.log.Warn("cache store failed", "key", key, "error", err)
		return
	}
	if c.generations.Current(c.namespace) != gen {
		_ = c.cache.Delete(ctx, key)
	}
}

// readThrough is the generic read path. Methods cannot carry type
// parameters, hence the free function. The generation is read before the
// fetch so store can drop a value a concurrent write made stale.
func readThrough[T any, R any](ctx context.Context, c *CachedRepository[T], key string, fetch func(ctx context.Context) (R, error)) (R, error) {
	var gen uint64
	return cache.GetOrFetch(ctx, c.cache, key, func(ctx context.Context) (R, error) {
		gen = c.generations.Current(c.namespace)
		return fetch(ctx)
	}, func(ctx context.Context, key string, value any) {
		c.store(ctx, key, gen, value)
	})
}
