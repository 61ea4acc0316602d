package identity_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/goliatone/go-storefront/identity"
	"github.com/goliatone/go-storefront/model"
	"github.com/goliatone/go-storefront/pkg/testsupport"
	"github.com/goliatone/go-storefront/repository"
)

type fixture struct {
	manager     *identity.BunManager
	users       repository.Repository[model.User]
	coordinator *repository.Coordinator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := testsupport.NewSchemaDB(t)
	c := repository.NewCoordinator(db, nil)
	users := repository.NewBunRepository[model.User](db, c)
	roles := repository.NewBunRepository[model.UserRole](db, c)

	opts := identity.DefaultOptions()
	opts.BcryptCost = bcrypt.MinCost

	return &fixture{
		manager:     identity.NewManager(users, roles, opts),
		users:       users,
		coordinator: c,
	}
}

func requireCode(t *testing.T, err error, code identity.ErrorCode) {
	t.Helper()
	ie, ok := identity.AsError(err)
	require.True(t, ok, "expected identity error, got %v", err)
	assert.Equal(t, code, ie.Code)
}

func TestManager_CreateHashesPasswordAndAssignsID(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	u := &model.User{UserName: "  alice  ", Email: "alice@example.com"}
	require.NoError(t, f.manager.Create(ctx, u, "secret123"))

	assert.NotEmpty(t, u.ID)
	assert.Equal(t, "alice", u.UserName)
	assert.NotEqual(t, "secret123", u.PasswordHash)

	stored, err := f.users.GetByKey(ctx, u.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "alice", stored.UserName)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("secret123")))
}

func TestManager_CreateValidation(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name     string
		user     model.User
		password string
		code     identity.ErrorCode
	}{
		{"empty user name", model.User{UserName: ""}, "secret123", identity.CodeInvalidUserName},
		{"short user name", model.User{UserName: "ab"}, "secret123", identity.CodeInvalidUserName},
		{"spaces in user name", model.User{UserName: "bad name"}, "secret123", identity.CodeInvalidUserName},
		{"bad email", model.User{UserName: "bob", Email: "not-an-email"}, "secret123", identity.CodeInvalidEmail},
		{"bad phone", model.User{UserName: "bob", PhoneNumber: "call me"}, "secret123", identity.CodeInvalidPhoneNumber},
		{"short password", model.User{UserName: "bob"}, "123", identity.CodePasswordTooShort},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			u := tt.user
			requireCode(t, f.manager.Create(ctx, &u, tt.password), tt.code)

			n, err := f.users.Count(ctx, repository.All())
			require.NoError(t, err)
			assert.Zero(t, n)
		})
	}
}

func TestManager_DuplicateUserName(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.manager.Create(ctx, &model.User{UserName: "alice"}, "secret123"))
	requireCode(t, f.manager.Create(ctx, &model.User{UserName: "alice"}, "secret123"), identity.CodeDuplicateUserName)

	bob := &model.User{UserName: "bob"}
	require.NoError(t, f.manager.Create(ctx, bob, "secret123"))
	requireCode(t, f.manager.SetUserName(ctx, bob.ID, "alice"), identity.CodeDuplicateUserName)

	// renaming to the current name is allowed
	require.NoError(t, f.manager.SetUserName(ctx, bob.ID, "bob"))
}

func TestManager_SetFields(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	u := &model.User{UserName: "alice"}
	require.NoError(t, f.manager.Create(ctx, u, "secret123"))

	require.NoError(t, f.manager.SetUserName(ctx, u.ID, "alicia"))
	require.NoError(t, f.manager.SetEmail(ctx, u.ID, "alicia@example.com"))
	require.NoError(t, f.manager.SetPhoneNumber(ctx, u.ID, "+1 555-0100"))

	stored, err := f.users.GetByKey(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "alicia", stored.UserName)
	assert.Equal(t, "alicia@example.com", stored.Email)
	assert.Equal(t, "+1 555-0100", stored.PhoneNumber)

	requireCode(t, f.manager.SetEmail(ctx, "missing", "x@example.com"), identity.CodeUserNotFound)
	requireCode(t, f.manager.SetEmail(ctx, u.ID, "nope"), identity.CodeInvalidEmail)
}

func TestManager_Roles(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	u := &model.User{UserName: "alice"}
	require.NoError(t, f.manager.Create(ctx, u, "secret123"))

	require.NoError(t, f.manager.SetRoles(ctx, u.ID, []string{"Customer", "admin", "customer"}))
	roles, err := f.manager.Roles(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"admin", "customer"}, roles)

	require.NoError(t, f.manager.SetRoles(ctx, u.ID, []string{"customer"}))
	roles, err = f.manager.Roles(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"customer"}, roles)

	requireCode(t, f.manager.SetRoles(ctx, u.ID, []string{"root"}), identity.CodeInvalidRole)
	requireCode(t, f.manager.SetRoles(ctx, "missing", []string{"customer"}), identity.CodeUserNotFound)

	roles, err = f.manager.Roles(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, roles)
}

func TestManager_CheckPassword(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	u := &model.User{UserName: "alice"}
	require.NoError(t, f.manager.Create(ctx, u, "secret123"))

	got, err := f.manager.CheckPassword(ctx, "alice", "secret123")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	_, err = f.manager.CheckPassword(ctx, "alice", "wrong")
	requireCode(t, err, identity.CodeInvalidCredentials)

	_, err = f.manager.CheckPassword(ctx, "nobody", "secret123")
	requireCode(t, err, identity.CodeInvalidCredentials)
}

func TestManager_CreateJoinsUnitOfWork(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	ok, err := f.coordinator.Do(ctx, func(txCtx context.Context) (bool, error) {
		if err := f.manager.Create(txCtx, &model.User{UserName: "alice"}, "secret123"); err != nil {
			return false, err
		}
		return false, nil
	})
	require.NoError(t, err)
	require.False(t, ok)

	n, err := f.users.Count(ctx, repository.All())
	require.NoError(t, err)
	assert.Zero(t, n, "rolled back unit of work leaves no user behind")
}

func TestManager_DuplicateUserNameInsideUnitOfWork(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	ok, err := f.coordinator.Do(ctx, func(txCtx context.Context) (bool, error) {
		require.NoError(t, f.manager.Create(txCtx, &model.User{UserName: "alice"}, "secret123"))
		requireCode(t, f.manager.Create(txCtx, &model.User{UserName: "alice"}, "secret123"), identity.CodeDuplicateUserName)
		return true, nil
	})
	require.NoError(t, err)
	require.True(t, ok)

	n, err := f.users.Count(ctx, repository.All())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
