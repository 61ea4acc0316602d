package service

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/goliatone/go-storefront/identity"
	"github.com/goliatone/go-storefront/repository"
)

// ErrorKind classifies a failure reported in a Result.
type ErrorKind string

const (
	KindValidation  ErrorKind = "validation"
	KindNotFound    ErrorKind = "not_found"
	KindConflict    ErrorKind = "conflict"
	KindConcurrency ErrorKind = "concurrency"
	KindForeignKey  ErrorKind = "foreign_key"
	KindDuplicate   ErrorKind = "duplicate"
	KindImage       ErrorKind = "image"
	KindIdentity    ErrorKind = "identity"
)

type Error struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

func (e Error) String() string {
	return string(e.Kind) + ": " + e.Message
}

// Result is the outcome of a mutation. Succeeded is true exactly when Errors
// is empty.
type Result struct {
	Succeeded bool    `json:"succeeded"`
	Errors    []Error `json:"errors,omitempty"`
}

func Success() Result {
	return Result{Succeeded: true}
}

func Failure(errs ...Error) Result {
	if len(errs) == 0 {
		errs = []Error{{Kind: KindConflict, Message: "operation was not completed"}}
	}
	return Result{Errors: errs}
}

// HasKind reports whether any error in r is of kind k.
func (r Result) HasKind(k ErrorKind) bool {
	for _, e := range r.Errors {
		if e.Kind == k {
			return true
		}
	}
	return false
}

func (r Result) String() string {
	if r.Succeeded {
		return "succeeded"
	}
	parts := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		parts = append(parts, e.String())
	}
	return "failed: " + strings.Join(parts, "; ")
}

// CascadeReport describes the cleanup that follows a parent deletion.
type CascadeReport struct {
	Attempted int     `json:"attempted"`
	Deleted   []int64 `json:"deleted"`
	Failures  []Error `json:"failures,omitempty"`
}

// Complete reports whether every attempted step succeeded.
func (r CascadeReport) Complete() bool {
	return len(r.Failures) == 0
}

func notFound(format string, args ...any) Error {
	return Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func imageError(msg string) Error {
	return Error{Kind: KindImage, Message: msg}
}

func conflictError(ce *repository.ConflictError) Error {
	kind := KindConflict
	switch ce.Kind {
	case repository.ConflictDuplicate:
		kind = KindDuplicate
	case repository.ConflictForeignKey:
		kind = KindForeignKey
	case repository.ConflictConcurrency:
		kind = KindConcurrency
	}
	return Error{Kind: kind, Message: ce.Error()}
}

func identityError(ie *identity.Error) Error {
	return Error{Kind: KindIdentity, Message: fmt.Sprintf("%s: %s", ie.Code, ie.Description)}
}

// validationErrors converts an ozzo-validation result into Result errors
// ordered by field name. Internal validation failures are returned as error.
func validationErrors(err error) ([]Error, error) {
	if err == nil {
		return nil, nil
	}

	var ie validation.InternalError
	if errors.As(err, &ie) {
		return nil, err
	}

	var fields validation.Errors
	if !errors.As(err, &fields) {
		return []Error{{Kind: KindValidation, Message: err.Error()}}, nil
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]Error, 0, len(keys))
	for _, k := range keys {
		out = append(out, Error{Kind: KindValidation, Message: k + ": " + fields[k].Error()})
	}
	return out, nil
}

// rejectInvalid turns a failed validation into a Result. rejected is false
// when verr is nil.
func rejectInvalid(verr error) (res Result, rejected bool, err error) {
	errs, err := validationErrors(verr)
	if err != nil {
		return Result{}, true, err
	}
	if len(errs) > 0 {
		return Failure(errs...), true, nil
	}
	return Success(), false, nil
}
