package service

import (
	"context"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/shopspring/decimal"

	"github.com/goliatone/go-storefront/internal/logger"
	"github.com/goliatone/go-storefront/model"
	"github.com/goliatone/go-storefront/repository"
)

type CartItemService struct {
	tx    Transactor
	items repository.Repository[model.CartItem]
	log   *logger.Logger
}

func NewCartItemService(tx Transactor, items repository.Repository[model.CartItem], log *logger.Logger) *CartItemService {
	if log == nil {
		log = logger.Nop()
	}
	return &CartItemService{tx: tx, items: items, log: log.With("service", "cart_item")}
}

func cartLine(userID string, productID int64) repository.Query {
	return repository.NewQuery("cart_line").
		Where("user_id = ?", userID).
		Where("product_id = ?", productID)
}

// CartOf returns the lines of the user's cart with their products.
func (s *CartItemService) CartOf(ctx context.Context, userID string) ([]model.CartItem, error) {
	return s.items.List(ctx, repository.NewQuery("cart_of_user").
		WithRelations("Product").
		Where("?TableAlias.user_id = ?", userID).
		OrderBy("cart_item.product_id ASC"))
}

// Get returns one cart line, or nil.
func (s *CartItemService) Get(ctx context.Context, userID string, productID int64) (*model.CartItem, error) {
	return s.items.GetByKey(ctx, userID, productID)
}

// Total sums price × count over the user's cart.
func (s *CartItemService) Total(ctx context.Context, userID string) (decimal.Decimal, error) {
	lines, err := s.CartOf(ctx, userID)
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, l := range lines {
		if l.Product == nil {
			continue
		}
		total = total.Add(l.Product.Price.Mul(decimal.NewFromInt(int64(l.Count))))
	}
	return total, nil
}

// TryCreate adds item to the cart. A zero Count adds one unit; an existing
// line for the same product has its count increased.
func (s *CartItemService) TryCreate(ctx context.Context, item *model.CartItem) (Result, error) {
	if item == nil {
		return Failure(Error{Kind: KindValidation, Message: "cart item is required"}), nil
	}
	if item.Count == 0 {
		item.Count = 1
	}
	if res, rejected, err := rejectInvalid(validateCartItem(item, 1)); rejected {
		return res, err
	}

	return runInTransaction(ctx, s.tx, func(ctx context.Context) ([]Error, error) {
		existing, err := s.items.GetByKey(ctx, item.UserID, item.ProductID)
		if err != nil {
			return nil, err
		}

		if existing == nil {
			if err := s.items.Create(ctx, item); err != nil {
				return nil, err
			}
			_, err := s.items.SaveChanges(ctx)
			return nil, err
		}

		// guarded on the count read above
		n, err := s.items.UpdateCertainFields(ctx,
			cartLine(item.UserID, item.ProductID).Where("count = ?", existing.Count),
			repository.Set("count", existing.Count+item.Count),
		)
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return []Error{{Kind: KindConcurrency, Message: "the cart line changed while it was being updated"}}, nil
		}
		item.Count = existing.Count + item.Count
		return nil, nil
	})
}

// TryUpdate sets the count of an existing line. A count of zero or less
// removes the line.
func (s *CartItemService) TryUpdate(ctx context.Context, item *model.CartItem) (Result, error) {
	if item == nil {
		return Failure(Error{Kind: KindValidation, Message: "cart item is required"}), nil
	}
	if item.Count <= 0 {
		return s.TryDelete(ctx, item.UserID, item.ProductID)
	}
	if res, rejected, err := rejectInvalid(validateCartItem(item, 1)); rejected {
		return res, err
	}

	return runInTransaction(ctx, s.tx, func(ctx context.Context) ([]Error, error) {
		n, err := s.items.UpdateCertainFields(ctx, cartLine(item.UserID, item.ProductID), repository.Set("count", item.Count))
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return []Error{notFound("product %d is not in the cart", item.ProductID)}, nil
		}
		return nil, nil
	})
}

func (s *CartItemService) TryDelete(ctx context.Context, userID string, productID int64) (Result, error) {
	verr := validation.Errors{
		"user_id":    validation.Validate(userID, validation.Required),
		"product_id": validation.Validate(productID, validation.Required),
	}.Filter()
	if res, rejected, err := rejectInvalid(verr); rejected {
		return res, err
	}

	return runInTransaction(ctx, s.tx, func(ctx context.Context) ([]Error, error) {
		n, err := s.items.DeleteCertainEntries(ctx, cartLine(userID, productID))
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return []Error{notFound("product %d is not in the cart", productID)}, nil
		}
		return nil, nil
	})
}

// Clear empties the user's cart. An empty cart is not an error.
func (s *CartItemService) Clear(ctx context.Context, userID string) (Result, error) {
	verr := validation.Errors{
		"user_id": validation.Validate(userID, validation.Required),
	}.Filter()
	if res, rejected, err := rejectInvalid(verr); rejected {
		return res, err
	}

	return runInTransaction(ctx, s.tx, func(ctx context.Context) ([]Error, error) {
		_, err := s.items.DeleteCertainEntries(ctx, repository.NewQuery("cart_of_user").Where("user_id = ?", userID))
		return nil, err
	})
}

func validateCartItem(item *model.CartItem, minCount int) error {
	return validation.Errors{
		"user_id":    validation.Validate(item.UserID, validation.Required),
		"product_id": validation.Validate(item.ProductID, validation.Required, validation.Min(int64(1))),
		"count":      validation.Validate(item.Count, validation.Required, validation.Min(minCount)),
	}.Filter()
}
