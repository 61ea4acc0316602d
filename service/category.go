package service

import (
	"context"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/goliatone/go-storefront/internal/logger"
	"github.com/goliatone/go-storefront/model"
	"github.com/goliatone/go-storefront/repository"
)

type CategoryService struct {
	tx         Transactor
	categories repository.Repository[model.Category]
	products   *ProductService
	dependents []Invalidator
	log        *logger.Logger
}

// NewCategoryService creates the category service. Deleting a category
// hands its products to products.CascadeDelete. dependents are the caches of
// types that embed categories or lose rows when one is deleted.
func NewCategoryService(tx Transactor, categories repository.Repository[model.Category], products *ProductService, log *logger.Logger, dependents ...Invalidator) *CategoryService {
	if log == nil {
		log = logger.Nop()
	}
	return &CategoryService{
		tx:         tx,
		categories: categories,
		products:   products,
		dependents: dependents,
		log:        log.With("service", "category"),
	}
}

func byCategoryID(id int64) repository.Query {
	return repository.NewQuery("category_by_id").Where("id = ?", id)
}

func (s *CategoryService) All(ctx context.Context) ([]model.Category, error) {
	return s.categories.List(ctx, repository.NewQuery("all_categories").OrderBy("name ASC", "id ASC"))
}

// Get returns the category, or nil.
func (s *CategoryService) Get(ctx context.Context, id int64) (*model.Category, error) {
	return s.categories.First(ctx, byCategoryID(id))
}

func (s *CategoryService) Exists(ctx context.Context, id int64) (bool, error) {
	return s.categories.Exists(ctx, byCategoryID(id))
}

// ProductIDs lists the ids of the products filed under the category.
func (s *CategoryService) ProductIDs(ctx context.Context, id int64) ([]int64, error) {
	return s.products.IDsByCategory(ctx, id)
}

// TryCreate inserts c. On success c.ID is set.
func (s *CategoryService) TryCreate(ctx context.Context, c *model.Category) (Result, error) {
	if c == nil {
		return Failure(Error{Kind: KindValidation, Message: "category is required"}), nil
	}
	c.Name = strings.TrimSpace(c.Name)
	if res, rejected, err := rejectInvalid(validateCategoryName(c.Name)); rejected {
		return res, err
	}

	return runInTransaction(ctx, s.tx, func(ctx context.Context) ([]Error, error) {
		if err := s.categories.Create(ctx, c); err != nil {
			return nil, err
		}
		_, err := s.categories.SaveChanges(ctx)
		return nil, err
	})
}

// TryUpdate renames the category c.ID to c.Name.
func (s *CategoryService) TryUpdate(ctx context.Context, c *model.Category) (Result, error) {
	if c == nil {
		return Failure(Error{Kind: KindValidation, Message: "category is required"}), nil
	}
	c.Name = strings.TrimSpace(c.Name)
	err := validation.Errors{
		"id": validation.Validate(c.ID, validation.Required, validation.Min(int64(1))),
	}.Filter()
	if err == nil {
		err = validateCategoryName(c.Name)
	}
	if res, rejected, err := rejectInvalid(err); rejected {
		return res, err
	}

	return runInTransaction(ctx, s.tx, func(ctx context.Context) ([]Error, error) {
		n, err := s.categories.UpdateCertainFields(ctx, byCategoryID(c.ID), repository.Set("name", c.Name))
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return []Error{notFound("category %d does not exist", c.ID)}, nil
		}
		invalidate(ctx, s.dependents...)
		return nil, nil
	})
}

func (s *CategoryService) TryDelete(ctx context.Context, id int64) (Result, error) {
	res, _, err := s.DeleteWithReport(ctx, id)
	return res, err
}

// DeleteWithReport deletes the category in its own unit of work, then runs
// the product cascade for the ids that were filed under it beforehand.
func (s *CategoryService) DeleteWithReport(ctx context.Context, id int64) (Result, CascadeReport, error) {
	ids, err := s.ProductIDs(ctx, id)
	if err != nil {
		return Result{}, CascadeReport{}, err
	}

	res, err := runInTransaction(ctx, s.tx, func(ctx context.Context) ([]Error, error) {
		n, err := s.categories.DeleteCertainEntries(ctx, byCategoryID(id))
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return []Error{notFound("category %d does not exist", id)}, nil
		}
		invalidate(ctx, s.dependents...)
		return nil, nil
	})
	if err != nil || !res.Succeeded {
		return res, CascadeReport{}, err
	}

	report := s.products.CascadeDelete(ctx, ids...)
	s.log.Info("category deleted",
		"category_id", id,
		"products", report.Attempted,
		"cleanup_failures", len(report.Failures),
	)
	return res, report, nil
}

func validateCategoryName(name string) error {
	return validation.Errors{
		"name": validation.Validate(name, validation.Required, validation.Length(1, 100)),
	}.Filter()
}
