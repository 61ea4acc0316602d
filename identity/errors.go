package identity

import (
	"errors"
	"fmt"
)

// ErrorCode names an identity failure a caller can show to a user.
type ErrorCode string

const (
	CodeInvalidUserName    ErrorCode = "InvalidUserName"
	CodeDuplicateUserName  ErrorCode = "DuplicateUserName"
	CodeInvalidEmail       ErrorCode = "InvalidEmail"
	CodeInvalidPhoneNumber ErrorCode = "InvalidPhoneNumber"
	CodePasswordTooShort   ErrorCode = "PasswordTooShort"
	CodeInvalidRole        ErrorCode = "InvalidRole"
	CodeUserNotFound       ErrorCode = "UserNotFound"
	CodeInvalidCredentials ErrorCode = "InvalidCredentials"
)

// Error is a recognized identity failure. Anything else a Manager returns is
// unexpected.
type Error struct {
	Code        ErrorCode
	Description string
}

func (e *Error) Error() string {
	return fmt.Sprintf("identity: %s: %s", e.Code, e.Description)
}

func newError(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Description: fmt.Sprintf(format, args...)}
}

// AsError extracts an *Error from err.
func AsError(err error) (*Error, bool) {
	var ie *Error
	if errors.As(err, &ie) {
		return ie, true
	}
	return nil, false
}
