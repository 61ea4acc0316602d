package service_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-storefront/imagestore"
	"github.com/goliatone/go-storefront/model"
	"github.com/goliatone/go-storefront/service"
)

func TestCartItemService_AddIncrementsExistingLine(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, newSpyImages[imagestore.ProductImageKey]())
	books := e.mustCategory(t, "Books")
	alice := e.mustUser(t, "alice")
	atlas := e.mustProduct(t, &model.Product{Name: "Atlas", Price: decimal.RequireFromString("2.50"), CategoryID: books.ID}, nil)
	dune := e.mustProduct(t, &model.Product{Name: "Dune", Price: decimal.NewFromInt(10), CategoryID: books.ID}, nil)

	res, err := e.cart.TryCreate(ctx, &model.CartItem{UserID: alice, ProductID: atlas.ID})
	require.NoError(t, err)
	require.True(t, res.Succeeded, res.String())

	item := &model.CartItem{UserID: alice, ProductID: atlas.ID, Count: 3}
	res, err = e.cart.TryCreate(ctx, item)
	require.NoError(t, err)
	require.True(t, res.Succeeded, res.String())
	assert.Equal(t, 4, item.Count)

	res, err = e.cart.TryCreate(ctx, &model.CartItem{UserID: alice, ProductID: dune.ID})
	require.NoError(t, err)
	require.True(t, res.Succeeded, res.String())

	lines, err := e.cart.CartOf(ctx, alice)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, 4, lines[0].Count)
	require.NotNil(t, lines[0].Product)
	assert.Equal(t, "Atlas", lines[0].Product.Name)

	total, err := e.cart.Total(ctx, alice)
	require.NoError(t, err)
	assert.True(t, total.Equal(decimal.NewFromInt(20)), "got %s", total)

	line, err := e.cart.Get(ctx, alice, atlas.ID)
	require.NoError(t, err)
	require.NotNil(t, line)
	assert.Equal(t, 4, line.Count)
}

func TestCartItemService_UpdateAndDelete(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, newSpyImages[imagestore.ProductImageKey]())
	books := e.mustCategory(t, "Books")
	alice := e.mustUser(t, "alice")
	atlas := e.mustProduct(t, &model.Product{Name: "Atlas", CategoryID: books.ID}, nil)

	res, err := e.cart.TryUpdate(ctx, &model.CartItem{UserID: alice, ProductID: atlas.ID, Count: 2})
	require.NoError(t, err)
	require.False(t, res.Succeeded)
	assert.Equal(t, service.KindNotFound, res.Errors[0].Kind)

	res, err = e.cart.TryCreate(ctx, &model.CartItem{UserID: alice, ProductID: atlas.ID})
	require.NoError(t, err)
	require.True(t, res.Succeeded, res.String())

	res, err = e.cart.TryUpdate(ctx, &model.CartItem{UserID: alice, ProductID: atlas.ID, Count: 5})
	require.NoError(t, err)
	require.True(t, res.Succeeded, res.String())

	lines, err := e.cart.CartOf(ctx, alice)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, 5, lines[0].Count)

	res, err = e.cart.TryUpdate(ctx, &model.CartItem{UserID: alice, ProductID: atlas.ID, Count: 0})
	require.NoError(t, err)
	require.True(t, res.Succeeded, res.String())

	lines, err = e.cart.CartOf(ctx, alice)
	require.NoError(t, err)
	assert.Empty(t, lines)

	res, err = e.cart.TryDelete(ctx, alice, atlas.ID)
	require.NoError(t, err)
	require.False(t, res.Succeeded)
	assert.Equal(t, service.KindNotFound, res.Errors[0].Kind)
}

func TestCartItemService_Clear(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, newSpyImages[imagestore.ProductImageKey]())
	books := e.mustCategory(t, "Books")
	alice := e.mustUser(t, "alice")
	bob := e.mustUser(t, "bob")
	atlas := e.mustProduct(t, &model.Product{Name: "Atlas", CategoryID: books.ID}, nil)

	for _, u := range []string{alice, bob} {
		res, err := e.cart.TryCreate(ctx, &model.CartItem{UserID: u, ProductID: atlas.ID})
		require.NoError(t, err)
		require.True(t, res.Succeeded, res.String())
	}

	res, err := e.cart.Clear(ctx, alice)
	require.NoError(t, err)
	require.True(t, res.Succeeded)

	res, err = e.cart.Clear(ctx, alice)
	require.NoError(t, err)
	assert.True(t, res.Succeeded, "clearing an empty cart succeeds")

	lines, err := e.cart.CartOf(ctx, alice)
	require.NoError(t, err)
	assert.Empty(t, lines)

	lines, err = e.cart.CartOf(ctx, bob)
	require.NoError(t, err)
	assert.Len(t, lines, 1)
}

func TestCartItemService_Failures(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, newSpyImages[imagestore.ProductImageKey]())
	alice := e.mustUser(t, "alice")

	res, err := e.cart.TryCreate(ctx, &model.CartItem{UserID: alice, ProductID: 77})
	require.NoError(t, err)
	require.False(t, res.Succeeded)
	assert.Equal(t, service.KindForeignKey, res.Errors[0].Kind)

	res, err = e.cart.TryCreate(ctx, &model.CartItem{UserID: alice, ProductID: 1, Count: -2})
	require.NoError(t, err)
	require.False(t, res.Succeeded)
	assert.Equal(t, service.KindValidation, res.Errors[0].Kind)

	res, err = e.cart.Clear(ctx, "")
	require.NoError(t, err)
	assert.False(t, res.Succeeded)
}

func TestCartItemService_ProductRenameRefreshesCart(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, newSpyImages[imagestore.ProductImageKey]())
	books := e.mustCategory(t, "Books")
	alice := e.mustUser(t, "alice")
	atlas := e.mustProduct(t, &model.Product{Name: "Atlas", CategoryID: books.ID}, nil)

	res, err := e.cart.TryCreate(ctx, &model.CartItem{UserID: alice, ProductID: atlas.ID})
	require.NoError(t, err)
	require.True(t, res.Succeeded, res.String())

	lines, err := e.cart.CartOf(ctx, alice)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, "Atlas", lines[0].Product.Name)

	res, err = e.products.TryUpdate(ctx, service.ProductUpdate{ID: atlas.ID, Name: "Atlas 2", CategoryID: books.ID}, nil)
	require.NoError(t, err)
	require.True(t, res.Succeeded, res.String())

	lines, err = e.cart.CartOf(ctx, alice)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, "Atlas 2", lines[0].Product.Name)
}
