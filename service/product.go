package service

import (
	"context"
	"fmt"
	"io"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"

	"github.com/goliatone/go-storefront/imagestore"
	"github.com/goliatone/go-storefront/internal/logger"
	"github.com/goliatone/go-storefront/model"
	"github.com/goliatone/go-storefront/repository"
)

// ProductUpdate carries the new state of a product. A nil SubmitterID keeps
// the stored submitter; a pointer to "" clears it.
type ProductUpdate struct {
	ID          int64
	Name        string
	Description string
	Price       decimal.Decimal
	CategoryID  int64
	SubmitterID *string
}

type ProductService struct {
	tx         Transactor
	products   repository.Repository[model.Product]
	images     imagestore.Assets[imagestore.ProductImageKey]
	dependents []Invalidator
	log        *logger.Logger
}

// NewProductService creates the product service. dependents are the caches
// of types that embed products, such as cart items.
func NewProductService(tx Transactor, products repository.Repository[model.Product], images imagestore.Assets[imagestore.ProductImageKey], log *logger.Logger, dependents ...Invalidator) *ProductService {
	if log == nil {
		log = logger.Nop()
	}
	return &ProductService{
		tx:         tx,
		products:   products,
		images:     images,
		dependents: dependents,
		log:        log.With("service", "product"),
	}
}

func byProductID(id int64) repository.Query {
	return repository.NewQuery("product_by_id").Where("id = ?", id)
}

func (s *ProductService) All(ctx context.Context) ([]model.Product, error) {
	return s.products.List(ctx, repository.NewQuery("all_products").
		WithRelations("Category").
		OrderBy("product.id ASC"))
}

// Get returns the product with its category, or nil.
func (s *ProductService) Get(ctx context.Context, id int64) (*model.Product, error) {
	return s.products.First(ctx, repository.NewQuery("product_with_category").
		WithRelations("Category").
		Where("?TableAlias.id = ?", id))
}

func (s *ProductService) ByCategory(ctx context.Context, categoryID int64) ([]model.Product, error) {
	return s.products.List(ctx, repository.NewQuery("products_by_category").
		Where("?TableAlias.category_id = ?", categoryID).
		OrderBy("product.id ASC"))
}

func (s *ProductService) BySubmitter(ctx context.Context, userID string) ([]model.Product, error) {
	return s.products.List(ctx, repository.NewQuery("products_by_submitter").
		Where("?TableAlias.submitter_id = ?", userID).
		OrderBy("product.id ASC"))
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// Search matches term against product names, case-insensitively. LIKE
// wildcards in term match literally. A limit of zero or less returns every
// match.
func (s *ProductService) Search(ctx context.Context, term string, limit int) ([]model.Product, error) {
	term = likeEscaper.Replace(strings.ToLower(strings.TrimSpace(term)))
	q := repository.NewQuery("product_search").
		Where(`LOWER(?TableAlias.name) LIKE ? ESCAPE '\'`, "%"+term+"%").
		OrderBy("product.name ASC", "product.id ASC")
	if limit > 0 {
		q = q.WithLimit(limit)
	}
	return s.products.List(ctx, q)
}

func (s *ProductService) IDsByCategory(ctx context.Context, categoryID int64) ([]int64, error) {
	return repository.SelectAs[int64](ctx, s.products, repository.NewQuery("product_ids_by_category").
		WithColumns("id").
		Where("category_id = ?", categoryID).
		OrderBy("id ASC"))
}

func (s *ProductService) IDsBySubmitter(ctx context.Context, userID string) ([]int64, error) {
	return repository.SelectAs[int64](ctx, s.products, repository.NewQuery("product_ids_by_submitter").
		WithColumns("id").
		Where("submitter_id = ?", userID).
		OrderBy("id ASC"))
}

// ImageURL returns the product's picture URL, or the placeholder's.
func (s *ProductService) ImageURL(id int64) (string, error) {
	return s.images.ImageOrDefaultURL(imagestore.ProductImageKey{ID: id})
}

// TryCreate inserts p and, when image is not nil, stores its picture. On
// success p.ID is set; on failure it keeps the value it had on entry, since
// the id of a rolled back insert can be handed out again.
func (s *ProductService) TryCreate(ctx context.Context, p *model.Product, image io.Reader) (Result, error) {
	if p == nil {
		return Failure(Error{Kind: KindValidation, Message: "product is required"}), nil
	}
	p.Name = strings.TrimSpace(p.Name)
	if res, rejected, err := rejectInvalid(validateProduct(p.Name, p.Price, p.CategoryID)); rejected {
		return res, err
	}

	initialID := p.ID
	var createdID int64
	imageStored := false
	res, err := runInTransaction(ctx, s.tx, func(ctx context.Context) ([]Error, error) {
		if err := s.products.Create(ctx, p); err != nil {
			return nil, err
		}
		if _, err := s.products.SaveChanges(ctx); err != nil {
			return nil, err
		}
		createdID = p.ID
		if image == nil {
			return nil, nil
		}
		errs := s.storeImage(createdID, image)
		imageStored = len(errs) == 0
		return errs, nil
	})

	if !res.Succeeded {
		// the picture of a product that was never committed
		if imageStored {
			if derr := s.images.DeleteImage(imagestore.ProductImageKey{ID: createdID}); derr != nil {
				s.log.Warn("failed to remove orphaned product image", "product_id", createdID, "error", derr)
			}
		}
		p.ID = initialID
	}
	if res.Succeeded {
		s.log.Info("product created", "product_id", p.ID)
	}
	return res, err
}

// TryUpdate applies u through a set-based update, so columns outside the
// setter list keep their stored values.
func (s *ProductService) TryUpdate(ctx context.Context, u ProductUpdate, image io.Reader) (Result, error) {
	u.Name = strings.TrimSpace(u.Name)
	err := validation.Errors{
		"id": validation.Validate(u.ID, validation.Required, validation.Min(int64(1))),
	}.Filter()
	if err == nil {
		err = validateProduct(u.Name, u.Price, u.CategoryID)
	}
	if res, rejected, err := rejectInvalid(err); rejected {
		return res, err
	}

	setters := []repository.Setter{
		repository.Set("name", u.Name),
		repository.Set("description", u.Description),
		repository.Set("price", u.Price),
		repository.Set("category_id", u.CategoryID),
	}
	if u.SubmitterID != nil {
		var submitter any
		if *u.SubmitterID != "" {
			submitter = *u.SubmitterID
		}
		setters = append(setters, repository.Set("submitter_id", submitter))
	}

	return runInTransaction(ctx, s.tx, func(ctx context.Context) ([]Error, error) {
		n, err := s.products.UpdateCertainFields(ctx, byProductID(u.ID), setters...)
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return []Error{notFound("product %d does not exist", u.ID)}, nil
		}
		invalidate(ctx, s.dependents...)
		if image == nil {
			return nil, nil
		}
		return s.storeImage(u.ID, image), nil
	})
}

// TryDelete removes the product row, then its picture. A failed picture
// removal is logged and does not fail the result.
func (s *ProductService) TryDelete(ctx context.Context, id int64) (Result, error) {
	res, err := runInTransaction(ctx, s.tx, func(ctx context.Context) ([]Error, error) {
		n, err := s.products.DeleteCertainEntries(ctx, byProductID(id))
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return []Error{notFound("product %d does not exist", id)}, nil
		}
		invalidate(ctx, s.dependents...)
		return nil, nil
	})
	if err != nil || !res.Succeeded {
		return res, err
	}

	if err := s.images.DeleteImage(imagestore.ProductImageKey{ID: id}); err != nil {
		s.log.Warn("failed to delete product image", "product_id", id, "error", err)
	}
	return res, nil
}

// CascadeDelete cleans up products after their parent was deleted. Each id
// gets its own unit of work removing any remaining row, then one image
// deletion attempt. Failures are reported and never undo the parent.
func (s *ProductService) CascadeDelete(ctx context.Context, ids ...int64) CascadeReport {
	report := CascadeReport{Attempted: len(ids), Deleted: make([]int64, 0, len(ids))}
	var errs error

	for _, id := range ids {
		res, err := runInTransaction(ctx, s.tx, func(ctx context.Context) ([]Error, error) {
			if _, err := s.products.DeleteCertainEntries(ctx, byProductID(id)); err != nil {
				return nil, err
			}
			invalidate(ctx, s.dependents...)
			return nil, nil
		})
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("product %d: %w", id, err))
			report.Failures = append(report.Failures, Error{Kind: KindConflict, Message: fmt.Sprintf("product %d: %v", id, err)})
		} else if !res.Succeeded {
			for _, e := range res.Errors {
				errs = multierr.Append(errs, fmt.Errorf("product %d: %s", id, e))
				report.Failures = append(report.Failures, Error{Kind: e.Kind, Message: fmt.Sprintf("product %d: %s", id, e.Message)})
			}
		}

		if derr := s.images.DeleteImage(imagestore.ProductImageKey{ID: id}); derr != nil {
			errs = multierr.Append(errs, fmt.Errorf("product %d image: %w", id, derr))
			report.Failures = append(report.Failures, imageError(fmt.Sprintf("product %d: %v", id, derr)))
			continue
		}
		if err == nil && res.Succeeded {
			report.Deleted = append(report.Deleted, id)
		}
	}

	if errs != nil {
		s.log.Warn("product cascade incomplete",
			"attempted", report.Attempted,
			"deleted", len(report.Deleted),
			"error", errs,
		)
	}
	return report
}

// storeImage writes the picture of product id. Rejected content and I/O
// failures both become image errors; the cause of the latter is logged.
func (s *ProductService) storeImage(id int64, image io.Reader) []Error {
	ok, err := s.images.SetImage(imagestore.ProductImageKey{ID: id}, image)
	if err != nil {
		s.log.Error("failed to store product image", "product_id", id, "error", err)
		return []Error{imageError("the image could not be stored")}
	}
	if !ok {
		return []Error{imageError("the file is not a valid image")}
	}
	return nil
}

func validateProduct(name string, price decimal.Decimal, categoryID int64) error {
	return validation.Errors{
		"name":        validation.Validate(name, validation.Required, validation.Length(1, 200)),
		"price":       validation.Validate(price, validation.By(nonNegativeDecimal)),
		"category_id": validation.Validate(categoryID, validation.Required, validation.Min(int64(1))),
	}.Filter()
}

func nonNegativeDecimal(value any) error {
	d, ok := value.(decimal.Decimal)
	if !ok {
		return fmt.Errorf("must be a decimal")
	}
	if d.IsNegative() {
		return fmt.Errorf("must be no less than 0")
	}
	return nil
}
