package service

import (
	"errors"
	"testing"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/goliatone/go-storefront/identity"
	"github.com/goliatone/go-storefront/repository"
)

func TestResult(t *testing.T) {
	ok := Success()
	if !ok.Succeeded || len(ok.Errors) != 0 || ok.String() != "succeeded" {
		t.Fatalf("unexpected success result %+v", ok)
	}

	failed := Failure(Error{Kind: KindNotFound, Message: "gone"}, Error{Kind: KindImage, Message: "bad"})
	if failed.Succeeded {
		t.Fatal("failure must not succeed")
	}
	if !failed.HasKind(KindImage) || failed.HasKind(KindDuplicate) {
		t.Fatalf("unexpected kinds in %+v", failed)
	}
	if got := failed.String(); got != "failed: not_found: gone; image: bad" {
		t.Fatalf("unexpected string %q", got)
	}

	if empty := Failure(); len(empty.Errors) != 1 {
		t.Fatalf("a failure always carries an error, got %+v", empty)
	}
}

func TestConflictError(t *testing.T) {
	tests := []struct {
		kind repository.ConflictKind
		want ErrorKind
	}{
		{repository.ConflictDuplicate, KindDuplicate},
		{repository.ConflictForeignKey, KindForeignKey},
		{repository.ConflictConcurrency, KindConcurrency},
		{repository.ConflictNotNull, KindConflict},
		{repository.ConflictCheck, KindConflict},
	}

	for _, tt := range tests {
		got := conflictError(&repository.ConflictError{Kind: tt.kind, Err: errors.New("x")})
		if got.Kind != tt.want {
			t.Errorf("%s: got %s, want %s", tt.kind, got.Kind, tt.want)
		}
	}
}

func TestValidationErrors(t *testing.T) {
	errs, err := validationErrors(validation.Errors{
		"name":  errors.New("cannot be blank"),
		"count": errors.New("must be no less than 1"),
	})
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if len(errs) != 2 || errs[0].Message != "count: must be no less than 1" || errs[1].Message != "name: cannot be blank" {
		t.Fatalf("unexpected errors %+v", errs)
	}

	errs, err = validationErrors(nil)
	if err != nil || errs != nil {
		t.Fatalf("nil input must produce nothing, got %v %v", errs, err)
	}
}

func TestIdentityError(t *testing.T) {
	got := identityError(&identity.Error{Code: identity.CodeDuplicateUserName, Description: "taken"})
	if got.Kind != KindIdentity || got.Message != "DuplicateUserName: taken" {
		t.Fatalf("unexpected error %+v", got)
	}
}
