// Package identity manages user credentials, contact details and roles.
package identity

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/goliatone/go-storefront/model"
	"github.com/goliatone/go-storefront/repository"
)

// Manager is the identity collaborator of the user service. Expected
// failures are returned as *Error.
type Manager interface {
	// Create assigns an id when user has none, hashes password and stores
	// the user. Inside a unit of work the row is flushed before Create
	// returns.
	Create(ctx context.Context, user *model.User, password string) error
	SetUserName(ctx context.Context, userID, userName string) error
	SetEmail(ctx context.Context, userID, email string) error
	SetPhoneNumber(ctx context.Context, userID, phone string) error
	// SetRoles replaces every role of the user.
	SetRoles(ctx context.Context, userID string, roles []string) error
	Roles(ctx context.Context, userID string) ([]string, error)
	// CheckPassword returns the user when the credentials match.
	CheckPassword(ctx context.Context, userName, password string) (*model.User, error)
}

const (
	DefaultMinPasswordLength = 6

	RoleAdmin    = "admin"
	RoleCustomer = "customer"
)

var (
	userNamePattern = regexp.MustCompile(`^[a-zA-Z0-9._@+\-]+$`)
	phonePattern    = regexp.MustCompile(`^\+?[0-9 ()\-]{4,20}$`)
	rolePattern     = regexp.MustCompile(`^[a-z][a-z0-9_\-]*$`)
)

type Options struct {
	MinPasswordLength int
	// BcryptCost defaults to bcrypt.DefaultCost.
	BcryptCost int
	// AllowedRoles restricts SetRoles. Empty allows any well-formed role.
	AllowedRoles []string
}

func DefaultOptions() Options {
	return Options{
		MinPasswordLength: DefaultMinPasswordLength,
		BcryptCost:        bcrypt.DefaultCost,
		AllowedRoles:      []string{RoleAdmin, RoleCustomer},
	}
}

// BunManager implements Manager on top of the user and role repositories.
// Writes join the unit of work carried by ctx, if any.
type BunManager struct {
	users repository.Repository[model.User]
	roles repository.Repository[model.UserRole]
	opts  Options
}

var _ Manager = (*BunManager)(nil)

func NewManager(users repository.Repository[model.User], roles repository.Repository[model.UserRole], opts Options) *BunManager {
	if opts.MinPasswordLength <= 0 {
		opts.MinPasswordLength = DefaultMinPasswordLength
	}
	if opts.BcryptCost == 0 {
		opts.BcryptCost = bcrypt.DefaultCost
	}
	return &BunManager{users: users, roles: roles, opts: opts}
}

func (m *BunManager) Create(ctx context.Context, user *model.User, password string) error {
	if user == nil {
		return errors.New("identity: user is required")
	}
	user.UserName = strings.TrimSpace(user.UserName)

	if err := validateUserName(user.UserName); err != nil {
		return err
	}
	if err := validateEmail(user.Email); err != nil {
		return err
	}
	if err := validatePhone(user.PhoneNumber); err != nil {
		return err
	}
	if len(password) < m.opts.MinPasswordLength {
		return newError(CodePasswordTooShort, "passwords must be at least %d characters", m.opts.MinPasswordLength)
	}
	if err := m.ensureUniqueUserName(ctx, user.UserName, ""); err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), m.opts.BcryptCost)
	if err != nil {
		return fmt.Errorf("identity: hash password: %w", err)
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	user.PasswordHash = string(hash)

	if err := m.users.Create(ctx, user); err != nil {
		return m.mapDuplicate(err, user.UserName)
	}
	// inside a unit of work the insert is only staged; flush it so a unique
	// violation is reported here rather than at commit
	_, err = m.users.SaveChanges(ctx)
	return m.mapDuplicate(err, user.UserName)
}

func (m *BunManager) SetUserName(ctx context.Context, userID, userName string) error {
	userName = strings.TrimSpace(userName)
	if err := validateUserName(userName); err != nil {
		return err
	}
	if err := m.ensureUniqueUserName(ctx, userName, userID); err != nil {
		return err
	}
	_, err := m.setField(ctx, userID, "user_name", userName)
	return m.mapDuplicate(err, userName)
}

func (m *BunManager) SetEmail(ctx context.Context, userID, email string) error {
	if err := validateEmail(email); err != nil {
		return err
	}
	_, err := m.setField(ctx, userID, "email", strings.TrimSpace(email))
	return err
}

func (m *BunManager) SetPhoneNumber(ctx context.Context, userID, phone string) error {
	if err := validatePhone(phone); err != nil {
		return err
	}
	_, err := m.setField(ctx, userID, "phone_number", strings.TrimSpace(phone))
	return err
}

func (m *BunManager) SetRoles(ctx context.Context, userID string, roles []string) error {
	normalized := make([]string, 0, len(roles))
	for _, r := range roles {
		r = strings.ToLower(strings.TrimSpace(r))
		if !rolePattern.MatchString(r) {
			return newError(CodeInvalidRole, "role %q is not well formed", r)
		}
		if len(m.opts.AllowedRoles) > 0 && !slices.Contains(m.opts.AllowedRoles, r) {
			return newError(CodeInvalidRole, "role %q is not defined", r)
		}
		if !slices.Contains(normalized, r) {
			normalized = append(normalized, r)
		}
	}

	if _, err := m.findUser(ctx, userID); err != nil {
		return err
	}

	if _, err := m.roles.DeleteCertainEntries(ctx, repository.NewQuery("roles_of_user").Where("user_id = ?", userID)); err != nil {
		return fmt.Errorf("identity: clear roles: %w", err)
	}
	for _, r := range normalized {
		if err := m.roles.Create(ctx, &model.UserRole{UserID: userID, Role: r}); err != nil {
			return fmt.Errorf("identity: add role %s: %w", r, err)
		}
	}
	return nil
}

func (m *BunManager) Roles(ctx context.Context, userID string) ([]string, error) {
	rows, err := m.roles.List(ctx, repository.NewQuery("roles_of_user").Where("user_id = ?", userID).OrderBy("role ASC"))
	if err != nil {
		return nil, fmt.Errorf("identity: list roles: %w", err)
	}
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.Role)
	}
	return out, nil
}

func (m *BunManager) CheckPassword(ctx context.Context, userName, password string) (*model.User, error) {
	user, err := m.users.First(ctx, repository.NewQuery("user_by_name").Where("user_name = ?", strings.TrimSpace(userName)))
	if err != nil {
		return nil, fmt.Errorf("identity: find user: %w", err)
	}
	if user == nil {
		return nil, newError(CodeInvalidCredentials, "invalid user name or password")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, newError(CodeInvalidCredentials, "invalid user name or password")
	}
	return user, nil
}

func (m *BunManager) findUser(ctx context.Context, userID string) (*model.User, error) {
	user, err := m.users.GetByKey(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("identity: find user: %w", err)
	}
	if user == nil {
		return nil, newError(CodeUserNotFound, "user %s does not exist", userID)
	}
	return user, nil
}

func (m *BunManager) setField(ctx context.Context, userID, column string, value any) (int64, error) {
	n, err := m.users.UpdateCertainFields(ctx, repository.NewQuery("user_by_id").Where("id = ?", userID), repository.Set(column, value))
	if err != nil {
		return 0, fmt.Errorf("identity: set %s: %w", column, err)
	}
	if n == 0 {
		return 0, newError(CodeUserNotFound, "user %s does not exist", userID)
	}
	return n, nil
}

func (m *BunManager) ensureUniqueUserName(ctx context.Context, userName, exceptID string) error {
	q := repository.NewQuery("user_name_taken").Where("user_name = ?", userName)
	if exceptID != "" {
		q = q.Where("id <> ?", exceptID)
	}
	taken, err := m.users.Exists(ctx, q)
	if err != nil {
		return fmt.Errorf("identity: check user name: %w", err)
	}
	if taken {
		return newError(CodeDuplicateUserName, "user name %q is already taken", userName)
	}
	return nil
}

func (m *BunManager) mapDuplicate(err error, userName string) error {
	if ce, ok := repository.AsConflict(err); ok && ce.Kind == repository.ConflictDuplicate {
		return newError(CodeDuplicateUserName, "user name %q is already taken", userName)
	}
	return err
}

func validateUserName(name string) error {
	err := validation.Validate(name,
		validation.Required,
		validation.Length(3, 64),
		validation.Match(userNamePattern),
	)
	if err != nil {
		return newError(CodeInvalidUserName, "user name %q: %v", name, err)
	}
	return nil
}

func validateEmail(email string) error {
	if err := validation.Validate(strings.TrimSpace(email), is.EmailFormat); err != nil {
		return newError(CodeInvalidEmail, "email %q: %v", email, err)
	}
	return nil
}

func validatePhone(phone string) error {
	if err := validation.Validate(strings.TrimSpace(phone), validation.Match(phonePattern)); err != nil {
		return newError(CodeInvalidPhoneNumber, "phone number %q: %v", phone, err)
	}
	return nil
}
