package di

import (
	"context"
	"fmt"
	"reflect"

	"github.com/puzpuzpuz/xsync/v3"
	"github.com/spf13/afero"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-storefront/cache"
	"github.com/goliatone/go-storefront/config"
	"github.com/goliatone/go-storefront/identity"
	"github.com/goliatone/go-storefront/imagestore"
	"github.com/goliatone/go-storefront/internal/database"
	"github.com/goliatone/go-storefront/internal/logger"
	"github.com/goliatone/go-storefront/model"
	"github.com/goliatone/go-storefront/repository"
	"github.com/goliatone/go-storefront/repositorycache"
	"github.com/goliatone/go-storefront/service"
)

// Container wires the storefront from an App configuration. It owns the
// database handle, the shared cache service and the invalidation generations,
// and builds one cached repository per entity type.
type Container struct {
	config        *config.App
	log           *logger.Logger
	db            *bun.DB
	ownsDB        bool
	coordinator   *repository.Coordinator
	cacheService  cache.CacheService
	keySerializer cache.KeySerializer
	generations   *repositorycache.Generations
	fs            afero.Fs
	repositories  *xsync.MapOf[reflect.Type, any]

	productImages *imagestore.Store[imagestore.ProductImageKey]
	userImages    *imagestore.Store[imagestore.UserImageKey]
	identity      *identity.BunManager

	categories *service.CategoryService
	products   *service.ProductService
	users      *service.UserService
	cart       *service.CartItemService
}

type Option func(*Container)

// WithDB uses an already opened database instead of opening cfg.Database.
// The caller keeps ownership of db.
func WithDB(db *bun.DB) Option {
	return func(c *Container) {
		c.db = db
	}
}

// WithFs stores images on fs instead of the configured backend.
func WithFs(fs afero.Fs) Option {
	return func(c *Container) {
		c.fs = fs
	}
}

func WithLogger(l *logger.Logger) Option {
	return func(c *Container) {
		c.log = l
	}
}

// NewContainer creates a container from cfg. The order is logger, database,
// cache, coordinator, image stores, identity and finally the services.
func NewContainer(ctx context.Context, cfg *config.App, opts ...Option) (*Container, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("di: invalid config: %w", err)
	}

	c := &Container{
		config:        cfg,
		keySerializer: cache.NewDefaultKeySerializer(),
		generations:   repositorycache.NewGenerations(),
		repositories:  xsync.NewMapOf[reflect.Type, any](),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.log == nil {
		log, err := logger.New(cfg.Log.Mode)
		if err != nil {
			return nil, fmt.Errorf("di: logger: %w", err)
		}
		c.log = log.With("app", cfg.Name)
	}

	if c.db == nil {
		db, err := database.Open(ctx, cfg.Database, c.log)
		if err != nil {
			return nil, err
		}
		c.db = db
		c.ownsDB = true
	}

	cacheService, err := cache.NewCacheService(cfg.Cache.Options())
	if err != nil {
		c.closeDB()
		return nil, fmt.Errorf("di: cache: %w", err)
	}
	c.cacheService = cacheService
	c.coordinator = repository.NewCoordinator(c.db, c.log.With("component", "coordinator"))

	if c.fs == nil {
		c.fs = newFs(cfg.Images.Backend)
	}
	if err := c.buildServices(); err != nil {
		c.closeDB()
		return nil, err
	}

	c.log.Info("container ready", "env", cfg.Env, "driver", cfg.Database.Driver, "images", cfg.Images.Backend)
	return c, nil
}

// NewContainerWithDefaults creates a container from config.Default.
func NewContainerWithDefaults(ctx context.Context, opts ...Option) (*Container, error) {
	return NewContainer(ctx, config.Default(), opts...)
}

func newFs(backend string) afero.Fs {
	if backend == "memory" {
		return afero.NewMemMapFs()
	}
	return afero.NewOsFs()
}

func (c *Container) buildServices() error {
	var err error
	imageLog := imagestore.WithLogger(c.log.With("component", "imagestore"))

	c.productImages, err = imagestore.New[imagestore.ProductImageKey](c.fs, c.config.Images.Store(imagestore.FolderFor("product")), imageLog)
	if err != nil {
		return fmt.Errorf("di: product images: %w", err)
	}
	c.userImages, err = imagestore.New[imagestore.UserImageKey](c.fs, c.config.Images.Store(imagestore.FolderFor("user")), imageLog)
	if err != nil {
		return fmt.Errorf("di: user images: %w", err)
	}

	// identity writes bypass the cache; UserService invalidates after them.
	c.identity = identity.NewManager(
		repository.NewBunRepository[model.User](c.db, c.coordinator),
		repository.NewBunRepository[model.UserRole](c.db, c.coordinator),
		c.config.Identity.Options(),
	)

	categories := NewCachedRepository[model.Category](c)
	products := NewCachedRepository[model.Product](c)
	users := NewCachedRepository[model.User](c)
	cart := NewCachedRepository[model.CartItem](c)

	log := c.log.With("component", "service")
	c.products = service.NewProductService(c.coordinator, products, c.productImages, log, cart)
	c.categories = service.NewCategoryService(c.coordinator, categories, c.products, log, products, cart)
	c.users = service.NewUserService(c.coordinator, users, c.identity, c.userImages, c.products, log, products, cart)
	c.cart = service.NewCartItemService(c.coordinator, cart, log)
	return nil
}

// CacheService returns the shared cache service.
func (c *Container) CacheService() cache.CacheService {
	return c.cacheService
}

// KeySerializer returns the shared key serializer.
func (c *Container) KeySerializer() cache.KeySerializer {
	return c.keySerializer
}

// Config returns the configuration the container was built from.
func (c *Container) Config() *config.App {
	return c.config
}

func (c *Container) Logger() *logger.Logger { return c.log }
func (c *Container) DB() *bun.DB { return c.db }
func (c *Container) Coordinator() *repository.Coordinator { return c.coordinator }
func (c *Container) Fs() afero.Fs { return c.fs }
func (c *Container) Identity() identity.Manager { return c.identity }

func (c *Container) ProductImages() *imagestore.Store[imagestore.ProductImageKey] {
	return c.productImages
}

func (c *Container) UserImages() *imagestore.Store[imagestore.UserImageKey] {
	return c.userImages
}

func (c *Container) Categories() *service.CategoryService { return c.categories }
func (c *Container) Products() *service.ProductService { return c.products }
func (c *Container) Users() *service.UserService { return c.users }
func (c *Container) Cart() *service.CartItemService { return c.cart }

// Migrate creates the schema when it does not exist yet.
func (c *Container) Migrate(ctx context.Context) error {
	if err := model.CreateSchema(ctx, c.db); err != nil {
		return fmt.Errorf("di: migrate: %w", err)
	}
	return nil
}

// Close releases the database when the container opened it and flushes the
// logger.
func (c *Container) Close() error {
	err := c.closeDB()
	c.log.Sync()
	return err
}

func (c *Container) closeDB() error {
	if !c.ownsDB || c.db == nil {
		return nil
	}
	c.ownsDB = false
	return c.db.Close()
}

// NewCachedRepository returns the cached repository for T, creating it on
// first use. Every repository built by a container shares its cache service,
// key serializer and write generations.
//
// Since Go methods cannot have type parameters, this is provided as a package-level function.
// Example: NewCachedRepository[model.Product](container)
func NewCachedRepository[T any](c *Container) *repositorycache.CachedRepository[T] {
	typ := reflect.TypeFor[T]()
	repo, _ := c.repositories.LoadOrCompute(typ, func() any {
		return repositorycache.New[T](
			repository.NewBunRepository[T](c.db, c.coordinator),
			c.cacheService,
			c.keySerializer,
			repositorycache.WithGenerations(c.generations),
			repositorycache.WithLogger(c.log.With("component", "repositorycache")),
		)
	})
	return repo.(*repositorycache.CachedRepository[T])
}
