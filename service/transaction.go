package service

import (
	"context"

	"github.com/goliatone/go-storefront/identity"
	"github.com/goliatone/go-storefront/repository"
)

// Transactor opens units of work. *repository.Coordinator implements it.
type Transactor interface {
	Do(ctx context.Context, uow repository.UnitOfWork) (bool, error)
}

// Invalidator drops cached reads of one entity type. Cached repositories
// implement it.
type Invalidator interface {
	Invalidate(ctx context.Context)
}

// step is one unit of work body. Returned Result errors abort the unit of
// work without being unexpected.
type step func(ctx context.Context) ([]Error, error)

// runInTransaction runs fn in a unit of work and folds the outcome into a
// Result. Recognized conflicts, including those raised while flushing at
// commit, become Result errors; anything else is returned after rollback.
func runInTransaction(ctx context.Context, tx Transactor, fn step) (Result, error) {
	var failures []Error

	committed, err := tx.Do(ctx, func(txCtx context.Context) (bool, error) {
		errs, err := fn(txCtx)
		if err != nil {
			return false, err
		}
		if len(errs) > 0 {
			failures = errs
			return false, nil
		}
		return true, nil
	})

	if err != nil {
		if ce, ok := repository.AsConflict(err); ok {
			return Failure(conflictError(ce)), nil
		}
		if ie, ok := identity.AsError(err); ok {
			return Failure(identityError(ie)), nil
		}
		return Result{}, err
	}
	if !committed {
		return Failure(failures...), nil
	}
	return Success(), nil
}

// invalidate drops the caches of types whose rows change behind a
// repository's back: foreign key cascades and joined relations.
func invalidate(ctx context.Context, targets ...Invalidator) {
	for _, t := range targets {
		if t != nil {
			t.Invalidate(ctx)
		}
	}
}

// invalidatorOf returns repo as an Invalidator when it caches reads.
func invalidatorOf(repo any) Invalidator {
	if inv, ok := repo.(Invalidator); ok {
		return inv
	}
	return nil
}
