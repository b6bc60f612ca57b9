package userauth

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors returned by the account manager and stores.
var (
	// ErrDuplicateAccount is returned when creating an account would violate
	// the uniqueness of the email address or the OAuth subject. Callers must
	// not reveal which field collided.
	ErrDuplicateAccount = errors.New("account already exists")

	// ErrAccountNotFound is returned by store lookups that matched nothing.
	ErrAccountNotFound = errors.New("account not found")

	// ErrInvalidToken covers every signed-token failure: bad signature,
	// wrong purpose, and expiry. They are deliberately indistinguishable.
	ErrInvalidToken = errors.New("invalid or expired token")

	// ErrInvalidCredentials is the uniform login rejection. It covers
	// unknown email, wrong password and unconfirmed accounts alike.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrEmailNotConfirmed is returned when an operation requires a
	// confirmed email address first (e.g. requesting a password reset).
	ErrEmailNotConfirmed = errors.New("email not confirmed")

	// ErrNoTransport is returned by an EmailSender that has no mail
	// transport configured.
	ErrNoTransport = errors.New("mail transport not configured")

	// ErrResetUnavailable is returned when password reset links cannot be
	// delivered, either because no transport is configured or delivery
	// failed.
	ErrResetUnavailable = errors.New("password reset unavailable")
)

// Error codes used in HTTP error responses.
const (
	ErrCodeInvalidCreds    = "invalid_credentials"
	ErrCodeEmailExists     = "email_exists"
	ErrCodeMissingField    = "missing_field"
	ErrCodeInvalidEmail    = "invalid_email"
	ErrCodeWeakPassword    = "weak_password"
	ErrCodeInvalidToken    = "invalid_token"
	ErrCodeNotConfirmed    = "email_not_confirmed"
	ErrCodeResetUnavailable = "reset_unavailable"
)

// AuthError carries a machine-readable code and the offending field so the
// HTTP layer can render errors without string matching.
type AuthError struct {
	Code    string
	Message string
	Field   string
}

func (e *AuthError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s (%s): %s", e.Code, e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewAuthError creates an AuthError with the given code, message and field.
func NewAuthError(code, message, field string) *AuthError {
	return &AuthError{Code: code, Message: message, Field: field}
}

// AuthErrorHandler lets applications override error rendering. Returning
// true means the handler wrote the response.
type AuthErrorHandler func(err *AuthError, w http.ResponseWriter, r *http.Request) bool
