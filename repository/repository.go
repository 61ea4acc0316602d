package repository

import (
	"context"
)

// Repository is the data-access contract for one entity type. T is a bun
// model struct; single entities are passed as *T.
//
// Writes issued with a context carrying an active Scope are staged and
// applied by SaveChanges or at commit. Without a scope every write is applied
// immediately and SaveChanges returns 0.
type Repository[T any] interface {
	// List returns every entity matching q.
	List(ctx context.Context, q Query) ([]T, error)
	// First returns the first entity matching q, or nil when none does.
	First(ctx context.Context, q Query) (*T, error)
	// Select scans the projection of q into dest, a pointer to a slice or
	// struct of any result type.
	Select(ctx context.Context, q Query, dest any) error
	// GetByKey loads an entity by primary key values in key order. It returns
	// nil when the entity does not exist.
	GetByKey(ctx context.Context, keys ...any) (*T, error)
	Exists(ctx context.Context, q Query) (bool, error)
	Count(ctx context.Context, q Query) (int, error)

	Create(ctx context.Context, entity *T) error
	Update(ctx context.Context, entity *T) error
	Delete(ctx context.Context, entity *T) error
	// SaveChanges flushes staged changes and returns the affected row count.
	SaveChanges(ctx context.Context) (int64, error)

	// UpdateCertainFields assigns setters to every row matching q.
	UpdateCertainFields(ctx context.Context, q Query, setters ...Setter) (int64, error)
	// DeleteCertainEntries deletes every row matching q.
	DeleteCertainEntries(ctx context.Context, q Query) (int64, error)

	DoInTransaction(ctx context.Context, uow UnitOfWork) (bool, error)
}

// SelectAs runs a projected query into a slice of R.
func SelectAs[R any, T any](ctx context.Context, repo Repository[T], q Query) ([]R, error) {
	var out []R
	if err := repo.Select(ctx, q, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SelectOne runs a projected query and returns its first row, or nil.
func SelectOne[R any, T any](ctx context.Context, repo Repository[T], q Query) (*R, error) {
	rows, err := SelectAs[R](ctx, repo, q.WithLimit(1))
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}
