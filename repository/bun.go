package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"reflect"

	"github.com/uptrace/bun"
)

var _ Repository[struct{}] = (*BunRepository[struct{}])(nil)

// BunRepository implements Repository[T] on a bun database. All access made
// with a context carrying an active Scope goes through the scope transaction.
type BunRepository[T any] struct {
	db          *bun.DB
	coordinator *Coordinator
	name        string
}

// NewBunRepository creates a repository for T. coordinator backs
// DoInTransaction and may be shared by every repository of a database.
func NewBunRepository[T any](db *bun.DB, coordinator *Coordinator) *BunRepository[T] {
	return &BunRepository[T]{
		db:          db,
		coordinator: coordinator,
		name:        reflect.TypeOf((*T)(nil)).Elem().Name(),
	}
}

func (r *BunRepository[T]) idb(ctx context.Context) bun.IDB {
	return IDB(ctx, r.db)
}

func (r *BunRepository[T]) List(ctx context.Context, q Query) ([]T, error) {
	out := make([]T, 0)
	if err := q.applySelect(r.idb(ctx).NewSelect().Model(&out)).Scan(ctx); err != nil {
		return nil, fmt.Errorf("list %s (%s): %w", r.name, q.Name, err)
	}
	return out, nil
}

func (r *BunRepository[T]) First(ctx context.Context, q Query) (*T, error) {
	entity := new(T)
	err := q.applySelect(r.idb(ctx).NewSelect().Model(entity)).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("first %s (%s): %w", r.name, q.Name, err)
	}
	return entity, nil
}

func (r *BunRepository[T]) Select(ctx context.Context, q Query, dest any) error {
	err := q.applySelect(r.idb(ctx).NewSelect().Model((*T)(nil))).Scan(ctx, dest)
	if err != nil {
		return fmt.Errorf("select %s (%s): %w", r.name, q.Name, err)
	}
	return nil
}

func (r *BunRepository[T]) GetByKey(ctx context.Context, keys ...any) (*T, error) {
	table := r.db.Table(reflect.TypeOf((*T)(nil)).Elem())
	if len(keys) != len(table.PKs) {
		return nil, fmt.Errorf("%w: %s has %d key columns, got %d values", ErrKeyMismatch, r.name, len(table.PKs), len(keys))
	}

	entity := new(T)
	sq := r.idb(ctx).NewSelect().Model(entity)
	for i, pk := range table.PKs {
		sq = sq.Where("?TableAlias.? = ?", bun.Ident(pk.Name), keys[i])
	}

	err := sq.Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get %s by key: %w", r.name, err)
	}
	return entity, nil
}

func (r *BunRepository[T]) Exists(ctx context.Context, q Query) (bool, error) {
	ok, err := q.applySelect(r.idb(ctx).NewSelect().Model((*T)(nil))).Exists(ctx)
	if err != nil {
		return false, fmt.Errorf("exists %s (%s): %w", r.name, q.Name, err)
	}
	return ok, nil
}

func (r *BunRepository[T]) Count(ctx context.Context, q Query) (int, error) {
	n, err := q.applySelect(r.idb(ctx).NewSelect().Model((*T)(nil))).Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count %s (%s): %w", r.name, q.Name, err)
	}
	return n, nil
}

func (r *BunRepository[T]) Create(ctx context.Context, entity *T) error {
	return r.write(ctx, "create", func(ctx context.Context, db bun.IDB) (int64, error) {
		res, err := db.NewInsert().Model(entity).Exec(ctx)
		if err != nil {
			return 0, fmt.Errorf("create %s: %w", r.name, Classify(err))
		}
		return rowsAffected(res), nil
	})
}

func (r *BunRepository[T]) Update(ctx context.Context, entity *T) error {
	return r.write(ctx, "update", func(ctx context.Context, db bun.IDB) (int64, error) {
		res, err := db.NewUpdate().Model(entity).WherePK().Exec(ctx)
		if err != nil {
			return 0, fmt.Errorf("update %s: %w", r.name, Classify(err))
		}
		n := rowsAffected(res)
		if n == 0 {
			return 0, newConcurrencyConflict("update %s: row no longer exists", r.name)
		}
		return n, nil
	})
}

func (r *BunRepository[T]) Delete(ctx context.Context, entity *T) error {
	return r.write(ctx, "delete", func(ctx context.Context, db bun.IDB) (int64, error) {
		res, err := db.NewDelete().Model(entity).WherePK().Exec(ctx)
		if err != nil {
			return 0, fmt.Errorf("delete %s: %w", r.name, Classify(err))
		}
		n := rowsAffected(res)
		if n == 0 {
			return 0, newConcurrencyConflict("delete %s: row no longer exists", r.name)
		}
		return n, nil
	})
}

// SaveChanges flushes every change staged on the scope, including changes
// staged through other repositories sharing it.
func (r *BunRepository[T]) SaveChanges(ctx context.Context) (int64, error) {
	scope, ok := ScopeFromContext(ctx)
	if !ok {
		return 0, nil
	}
	return scope.flush(ctx)
}

func (r *BunRepository[T]) UpdateCertainFields(ctx context.Context, q Query, setters ...Setter) (int64, error) {
	if !q.HasFilters() {
		return 0, ErrUnfilteredWrite
	}
	if len(setters) == 0 {
		return 0, ErrNoSetters
	}

	uq := r.idb(ctx).NewUpdate().Model((*T)(nil))
	for _, s := range setters {
		uq = uq.Set("? = ?", bun.Ident(s.Column), s.Value)
	}

	res, err := q.applyUpdate(uq).Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("update %s (%s): %w", r.name, q.Name, Classify(err))
	}
	return rowsAffected(res), nil
}

func (r *BunRepository[T]) DeleteCertainEntries(ctx context.Context, q Query) (int64, error) {
	if !q.HasFilters() {
		return 0, ErrUnfilteredWrite
	}

	res, err := q.applyDelete(r.idb(ctx).NewDelete().Model((*T)(nil))).Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("delete %s (%s): %w", r.name, q.Name, Classify(err))
	}
	return rowsAffected(res), nil
}

func (r *BunRepository[T]) DoInTransaction(ctx context.Context, uow UnitOfWork) (bool, error) {
	if r.coordinator == nil {
		return false, errors.New("repository: no transaction coordinator configured")
	}
	return r.coordinator.Do(ctx, uow)
}

// write stages apply on the active scope or runs it immediately.
func (r *BunRepository[T]) write(ctx context.Context, op string, apply func(ctx context.Context, db bun.IDB) (int64, error)) error {
	if scope, ok := ScopeFromContext(ctx); ok {
		scope.stage(op, apply)
		return nil
	}
	_, err := apply(ctx, r.db)
	return err
}

func rowsAffected(res sql.Result) int64 {
	if res == nil {
		return 0
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0
	}
	return n
}
