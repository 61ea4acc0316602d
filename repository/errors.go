package repository

import (
	"errors"
	"fmt"

	goerrors "github.com/goliatone/go-errors"
	gorb "github.com/goliatone/go-repository-bun"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"

	"github.com/goliatone/go-storefront/internal/database"
)

var (
	// ErrConflict matches every *ConflictError through errors.Is.
	ErrConflict = errors.New("persistence conflict")

	// ErrNestedTransaction is returned when a unit of work is started while
	// another one is active on the same context.
	ErrNestedTransaction = errors.New("repository: nested transactions are not supported")

	// ErrUnfilteredWrite rejects set-based writes without a filter.
	ErrUnfilteredWrite = errors.New("repository: set-based write requires at least one filter")

	// ErrNoSetters rejects UpdateCertainFields calls without assignments.
	ErrNoSetters = errors.New("repository: update requires at least one setter")

	// ErrKeyMismatch is returned by GetByKey when the number of key values
	// does not match the primary key of the entity.
	ErrKeyMismatch = errors.New("repository: key values do not match primary key")
)

// ConflictKind names the category of a recognized persistence conflict.
type ConflictKind string

const (
	ConflictDuplicate   ConflictKind = "duplicate"
	ConflictForeignKey  ConflictKind = "foreign_key"
	ConflictNotNull     ConflictKind = "not_null"
	ConflictCheck       ConflictKind = "check"
	ConflictConcurrency ConflictKind = "concurrency"
)

// ConflictError is a store-level failure a caller is expected to handle,
// such as a unique violation or an update of a row that no longer exists.
type ConflictError struct {
	Kind ConflictKind
	// Code is the database error text code, e.g. DUPLICATE_KEY.
	Code string
	Err  error
}

func (e *ConflictError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s conflict", e.Kind)
	}
	return fmt.Sprintf("%s conflict: %v", e.Kind, e.Err)
}

func (e *ConflictError) Unwrap() error { return e.Err }

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

// AsConflict extracts a *ConflictError from err.
func AsConflict(err error) (*ConflictError, bool) {
	var ce *ConflictError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

func newConcurrencyConflict(format string, args ...any) *ConflictError {
	return &ConflictError{Kind: ConflictConcurrency, Err: fmt.Errorf(format, args...)}
}

// Classify converts sqlite3 and postgres driver errors into *ConflictError
// values. The driver error is first mapped to a database error category by
// go-repository-bun; sqlite extended result codes refine the generic
// constraint category it reports. Unrecognized errors are returned unchanged.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := AsConflict(err); ok {
		return err
	}

	driver, ok := driverOf(err)
	if !ok {
		return err
	}
	mapped := gorb.MapDatabaseError(err, driver)

	var de *goerrors.RetryableError
	if !goerrors.As(mapped, &de) || de.BaseError == nil {
		return err
	}
	kind, ok := conflictKinds[de.TextCode]
	if refined, found := refineSQLite(err); found {
		kind, ok = refined, true
	}
	if !ok {
		return err
	}
	return &ConflictError{Kind: kind, Code: de.TextCode, Err: err}
}

// conflictKinds maps go-repository-bun text codes to conflict kinds.
var conflictKinds = map[string]ConflictKind{
	"DUPLICATE_KEY":              ConflictDuplicate,
	"FOREIGN_KEY_VIOLATION":      ConflictForeignKey,
	"NOT_NULL_VIOLATION":         ConflictNotNull,
	"CHECK_CONSTRAINT_VIOLATION": ConflictCheck,
	"CONSTRAINT_VIOLATION":       ConflictCheck,
	"SERIALIZATION_FAILURE":      ConflictConcurrency,
	"DEADLOCK_DETECTED":          ConflictConcurrency,
	"DATABASE_LOCKED":            ConflictConcurrency,
	"TABLE_LOCKED":               ConflictConcurrency,
}

func driverOf(err error) (string, bool) {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return database.DriverSQLite, true
	}
	var pe *pq.Error
	if errors.As(err, &pe) {
		return database.DriverPostgres, true
	}
	return "", false
}

// refineSQLite reads the extended result code, which is exact where the
// mapped category only matches on the message text.
func refineSQLite(err error) (ConflictKind, bool) {
	var se sqlite3.Error
	if !errors.As(err, &se) || se.Code != sqlite3.ErrConstraint {
		return "", false
	}

	switch se.ExtendedCode {
	case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
		return ConflictDuplicate, true
	case sqlite3.ErrConstraintForeignKey:
		return ConflictForeignKey, true
	case sqlite3.ErrConstraintNotNull:
		return ConflictNotNull, true
	case sqlite3.ErrConstraintCheck:
		return ConflictCheck, true
	}
	return "", false
}
