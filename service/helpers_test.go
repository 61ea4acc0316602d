package service_test

import (
	"context"
	"io"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"golang.org/x/crypto/bcrypt"

	"github.com/goliatone/go-storefront/cache"
	"github.com/goliatone/go-storefront/identity"
	"github.com/goliatone/go-storefront/imagestore"
	"github.com/goliatone/go-storefront/model"
	"github.com/goliatone/go-storefront/pkg/testsupport"
	"github.com/goliatone/go-storefront/repository"
	"github.com/goliatone/go-storefront/repositorycache"
	"github.com/goliatone/go-storefront/service"
)

// spyImages records image calls and keeps stored identifiers in memory.
type spyImages[K imagestore.Key] struct {
	mu        sync.Mutex
	stored    map[string]bool
	sets      []string
	deletes   []string
	setErr    error
	reject    bool
	deleteErr map[string]error
}

func newSpyImages[K imagestore.Key]() *spyImages[K] {
	return &spyImages[K]{stored: map[string]bool{}, deleteErr: map[string]error{}}
}

func (s *spyImages[K]) SetImage(key K, r io.Reader) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := key.Identifier()
	s.sets = append(s.sets, id)
	if s.setErr != nil {
		return false, s.setErr
	}
	if s.reject {
		return false, nil
	}
	if _, err := io.ReadAll(r); err != nil {
		return false, err
	}
	s.stored[id] = true
	return true, nil
}

func (s *spyImages[K]) ValidateImage(io.Reader) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.reject
}

func (s *spyImages[K]) DeleteImage(key K) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := key.Identifier()
	s.deletes = append(s.deletes, id)
	if err := s.deleteErr[id]; err != nil {
		return err
	}
	delete(s.stored, id)
	return nil
}

func (s *spyImages[K]) ImageURL(key K) string {
	return "/images/" + key.Identifier() + ".png"
}

func (s *spyImages[K]) ImageOrDefaultURL(key K) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stored[key.Identifier()] {
		return s.ImageURL(key), nil
	}
	return "/images/default.png", nil
}

func (s *spyImages[K]) has(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stored[id]
}

func (s *spyImages[K]) deleteCalls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.deletes...)
}

type countingTx struct {
	inner service.Transactor
	calls int
}

func (c *countingTx) Do(ctx context.Context, uow repository.UnitOfWork) (bool, error) {
	c.calls++
	return c.inner.Do(ctx, uow)
}

type env struct {
	db          *bun.DB
	coordinator *repository.Coordinator

	categoryRepo *repositorycache.CachedRepository[model.Category]
	productRepo  *repositorycache.CachedRepository[model.Product]
	userRepo     *repositorycache.CachedRepository[model.User]
	cartRepo     *repositorycache.CachedRepository[model.CartItem]

	productImages imagestore.Assets[imagestore.ProductImageKey]
	userImages    *spyImages[imagestore.UserImageKey]

	categories *service.CategoryService
	products   *service.ProductService
	users      *service.UserService
	cart       *service.CartItemService
}

func newEnv(t *testing.T, productImages imagestore.Assets[imagestore.ProductImageKey]) *env {
	t.Helper()

	db := testsupport.NewSchemaDB(t)
	c := repository.NewCoordinator(db, nil)

	svc, err := cache.NewCacheService(cache.DefaultConfig())
	require.NoError(t, err)
	ser := cache.NewDefaultKeySerializer()
	gens := repositorycache.NewGenerations()

	e := &env{
		db:            db,
		coordinator:   c,
		categoryRepo:  repositorycache.New[model.Category](repository.NewBunRepository[model.Category](db, c), svc, ser, repositorycache.WithGenerations(gens)),
		productRepo:   repositorycache.New[model.Product](repository.NewBunRepository[model.Product](db, c), svc, ser, repositorycache.WithGenerations(gens)),
		userRepo:      repositorycache.New[model.User](repository.NewBunRepository[model.User](db, c), svc, ser, repositorycache.WithGenerations(gens)),
		cartRepo:      repositorycache.New[model.CartItem](repository.NewBunRepository[model.CartItem](db, c), svc, ser, repositorycache.WithGenerations(gens)),
		productImages: productImages,
		userImages:    newSpyImages[imagestore.UserImageKey](),
	}

	opts := identity.DefaultOptions()
	opts.BcryptCost = bcrypt.MinCost
	manager := identity.NewManager(
		repository.NewBunRepository[model.User](db, c),
		repository.NewBunRepository[model.UserRole](db, c),
		opts,
	)

	e.products = service.NewProductService(c, e.productRepo, productImages, nil, e.cartRepo)
	e.categories = service.NewCategoryService(c, e.categoryRepo, e.products, nil, e.productRepo, e.cartRepo)
	e.users = service.NewUserService(c, e.userRepo, manager, e.userImages, e.products, nil, e.productRepo, e.cartRepo)
	e.cart = service.NewCartItemService(c, e.cartRepo, nil)
	return e
}

func (e *env) mustCategory(t *testing.T, name string) *model.Category {
	t.Helper()
	c := &model.Category{Name: name}
	res, err := e.categories.TryCreate(context.Background(), c)
	require.NoError(t, err)
	require.True(t, res.Succeeded, res.String())
	return c
}

func (e *env) mustProduct(t *testing.T, p *model.Product, image io.Reader) *model.Product {
	t.Helper()
	res, err := e.products.TryCreate(context.Background(), p, image)
	require.NoError(t, err)
	require.True(t, res.Succeeded, res.String())
	return p
}

func (e *env) mustUser(t *testing.T, name string) string {
	t.Helper()
	u := &service.NewUser{UserName: name, Password: "secret123"}
	res, err := e.users.TryCreate(context.Background(), u, nil)
	require.NoError(t, err)
	require.True(t, res.Succeeded, res.String())
	return u.ID
}
