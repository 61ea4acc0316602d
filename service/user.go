package service

import (
	"context"
	"fmt"
	"io"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/goliatone/go-storefront/identity"
	"github.com/goliatone/go-storefront/imagestore"
	"github.com/goliatone/go-storefront/internal/logger"
	"github.com/goliatone/go-storefront/model"
	"github.com/goliatone/go-storefront/repository"
)

// NewUser is the input of UserService.TryCreate. ID is filled in on success
// when left empty.
type NewUser struct {
	ID          string
	UserName    string
	Email       string
	PhoneNumber string
	Password    string
	Roles       []string
}

// UserUpdate changes the non-nil fields of user ID. A nil Roles keeps the
// current roles; an empty non-nil slice removes them all.
type UserUpdate struct {
	ID          string
	UserName    *string
	Email       *string
	PhoneNumber *string
	Roles       []string
}

type UserService struct {
	tx         Transactor
	users      repository.Repository[model.User]
	identity   identity.Manager
	images     imagestore.Assets[imagestore.UserImageKey]
	products   *ProductService
	dependents []Invalidator
	log        *logger.Logger
}

// NewUserService creates the user service. Identity writes bypass users, so
// its cache is invalidated explicitly after each of them. dependents are the
// caches of types changed by the foreign keys of a user deletion.
func NewUserService(tx Transactor, users repository.Repository[model.User], manager identity.Manager, images imagestore.Assets[imagestore.UserImageKey], products *ProductService, log *logger.Logger, dependents ...Invalidator) *UserService {
	if log == nil {
		log = logger.Nop()
	}
	return &UserService{
		tx:         tx,
		users:      users,
		identity:   manager,
		images:     images,
		products:   products,
		dependents: dependents,
		log:        log.With("service", "user"),
	}
}

func byUserID(id string) repository.Query {
	return repository.NewQuery("user_by_id").Where("id = ?", id)
}

func (s *UserService) All(ctx context.Context) ([]model.User, error) {
	return s.users.List(ctx, repository.NewQuery("all_users").OrderBy("user_name ASC"))
}

// Get returns the user, or nil.
func (s *UserService) Get(ctx context.Context, id string) (*model.User, error) {
	return s.users.First(ctx, byUserID(id))
}

func (s *UserService) Roles(ctx context.Context, id string) ([]string, error) {
	return s.identity.Roles(ctx, id)
}

// ImageURL returns the profile picture URL, or the placeholder's.
func (s *UserService) ImageURL(id string) (string, error) {
	return s.images.ImageOrDefaultURL(imagestore.UserImageKey{ID: id})
}

func (s *UserService) TryCreate(ctx context.Context, u *NewUser, image io.Reader) (Result, error) {
	if u == nil {
		return Failure(Error{Kind: KindValidation, Message: "user is required"}), nil
	}
	verr := validation.ValidateStruct(u,
		validation.Field(&u.UserName, validation.Required),
		validation.Field(&u.Password, validation.Required),
	)
	if res, rejected, err := rejectInvalid(verr); rejected {
		return res, err
	}

	record := &model.User{ID: u.ID, UserName: u.UserName, Email: u.Email, PhoneNumber: u.PhoneNumber}
	imageStored := false

	res, err := runInTransaction(ctx, s.tx, func(ctx context.Context) ([]Error, error) {
		// Create flushes the user row, which the roles reference
		if err := s.identity.Create(ctx, record, u.Password); err != nil {
			return nil, err
		}
		if len(u.Roles) > 0 {
			if err := s.identity.SetRoles(ctx, record.ID, u.Roles); err != nil {
				return nil, err
			}
		}
		invalidate(ctx, invalidatorOf(s.users))

		if image == nil {
			return nil, nil
		}
		errs := s.storeImage(record.ID, image)
		imageStored = len(errs) == 0
		return errs, nil
	})

	if imageStored && !res.Succeeded {
		if derr := s.images.DeleteImage(imagestore.UserImageKey{ID: record.ID}); derr != nil {
			s.log.Warn("failed to remove orphaned profile picture", "user_id", record.ID, "error", derr)
		}
	}
	if res.Succeeded {
		u.ID = record.ID
		s.log.Info("user created", "user_id", record.ID)
	}
	return res, err
}

func (s *UserService) TryUpdate(ctx context.Context, u UserUpdate, image io.Reader) (Result, error) {
	verr := validation.Errors{
		"id": validation.Validate(u.ID, validation.Required),
	}.Filter()
	if res, rejected, err := rejectInvalid(verr); rejected {
		return res, err
	}

	return runInTransaction(ctx, s.tx, func(ctx context.Context) ([]Error, error) {
		current, err := s.users.GetByKey(ctx, u.ID)
		if err != nil {
			return nil, err
		}
		if current == nil {
			return []Error{notFound("user %s does not exist", u.ID)}, nil
		}

		if u.UserName != nil && *u.UserName != current.UserName {
			if err := s.identity.SetUserName(ctx, u.ID, *u.UserName); err != nil {
				return nil, err
			}
		}
		if u.Email != nil && *u.Email != current.Email {
			if err := s.identity.SetEmail(ctx, u.ID, *u.Email); err != nil {
				return nil, err
			}
		}
		if u.PhoneNumber != nil && *u.PhoneNumber != current.PhoneNumber {
			if err := s.identity.SetPhoneNumber(ctx, u.ID, *u.PhoneNumber); err != nil {
				return nil, err
			}
		}
		if u.Roles != nil {
			if err := s.identity.SetRoles(ctx, u.ID, u.Roles); err != nil {
				return nil, err
			}
		}
		invalidate(ctx, invalidatorOf(s.users))

		if image == nil {
			return nil, nil
		}
		return s.storeImage(u.ID, image), nil
	})
}

func (s *UserService) TryDelete(ctx context.Context, id string) (Result, error) {
	res, _, err := s.DeleteWithReport(ctx, id)
	return res, err
}

// DeleteWithReport deletes the user, then makes one attempt at removing the
// profile picture and runs the product cascade for the products the user had
// submitted.
func (s *UserService) DeleteWithReport(ctx context.Context, id string) (Result, CascadeReport, error) {
	ids, err := s.products.IDsBySubmitter(ctx, id)
	if err != nil {
		return Result{}, CascadeReport{}, err
	}

	res, err := runInTransaction(ctx, s.tx, func(ctx context.Context) ([]Error, error) {
		n, err := s.users.DeleteCertainEntries(ctx, byUserID(id))
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return []Error{notFound("user %s does not exist", id)}, nil
		}
		invalidate(ctx, s.dependents...)
		return nil, nil
	})
	if err != nil || !res.Succeeded {
		return res, CascadeReport{}, err
	}

	var pictureFailure *Error
	if err := s.images.DeleteImage(imagestore.UserImageKey{ID: id}); err != nil {
		s.log.Warn("failed to delete profile picture", "user_id", id, "error", err)
		e := imageError(fmt.Sprintf("profile picture of user %s: %v", id, err))
		pictureFailure = &e
	}

	report := s.products.CascadeDelete(ctx, ids...)
	if pictureFailure != nil {
		report.Failures = append([]Error{*pictureFailure}, report.Failures...)
	}
	s.log.Info("user deleted",
		"user_id", id,
		"products", report.Attempted,
		"cleanup_failures", len(report.Failures),
	)
	return res, report, nil
}

func (s *UserService) storeImage(id string, image io.Reader) []Error {
	ok, err := s.images.SetImage(imagestore.UserImageKey{ID: id}, image)
	if err != nil {
		s.log.Error("failed to store profile picture", "user_id", id, "error", err)
		return []Error{imageError("the image could not be stored")}
	}
	if !ok {
		return []Error{imageError("the file is not a valid image")}
	}
	return nil
}
