package repository

import (
	"context"
	"fmt"

	"github.com/goliatone/go-storefront/internal/logger"
	"github.com/uptrace/bun"
)

// UnitOfWork runs inside a transaction. Returning true commits, false rolls
// back quietly, and an error rolls back and is returned to the caller.
type UnitOfWork func(ctx context.Context) (bool, error)

// Coordinator runs units of work against a single transaction.
type Coordinator struct {
	db  *bun.DB
	log *logger.Logger
}

// NewCoordinator creates a coordinator for db. A nil logger discards output.
func NewCoordinator(db *bun.DB, log *logger.Logger) *Coordinator {
	if log == nil {
		log = logger.Nop()
	}
	return &Coordinator{db: db, log: log}
}

// DB returns the underlying database handle.
func (c *Coordinator) DB() *bun.DB {
	return c.db
}

// Do begins a transaction, attaches its scope to ctx and runs uow.
//
// On true, staged changes are flushed, the transaction commits and the
// after-commit hooks run. On false the transaction rolls back and Do returns
// (false, nil). On error the transaction rolls back and the error is returned.
// A panic in uow rolls back and keeps unwinding.
func (c *Coordinator) Do(ctx context.Context, uow UnitOfWork) (committed bool, err error) {
	if InScope(ctx) {
		return false, ErrNestedTransaction
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin transaction: %w", err)
	}

	scope := newScope(tx)
	scoped := ContextWithScope(ctx, scope)

	defer func() {
		if scope.State() == ScopeActive {
			if rbErr := scope.rollback(); rbErr != nil {
				c.log.Error("transaction rollback failed", "error", rbErr)
			}
		}
	}()

	ok, err := uow(scoped)
	if err != nil {
		c.rollback(scope)
		return false, err
	}
	if !ok {
		c.rollback(scope)
		return false, nil
	}

	if _, err := scope.flush(scoped); err != nil {
		c.rollback(scope)
		return false, err
	}
	if err := scope.commit(); err != nil {
		return false, fmt.Errorf("commit transaction: %w", Classify(err))
	}

	scope.runAfterCommit(ctx)
	return true, nil
}

func (c *Coordinator) rollback(scope *Scope) {
	if err := scope.rollback(); err != nil {
		c.log.Warn("transaction rollback failed", "error", err)
	}
}
