package authcore

import (
	"errors"
	"strings"
)

var (
	// ErrEngineNotReady is returned when an Engine method is called before Build completed.
	ErrEngineNotReady = errors.New("engine not initialized")
	// ErrInvalidCredentials is returned for unknown emails and wrong passwords alike.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserNotFound is the sentinel a UserStore must return for missing accounts.
	ErrUserNotFound = errors.New("user not found")
	// ErrAccountUnverified is returned when the account's email has not been verified.
	ErrAccountUnverified = errors.New("account email not verified")
	// ErrAccountInactive is returned for deactivated or pending-deletion accounts.
	ErrAccountInactive = errors.New("account inactive")
	// ErrEmailTaken is the sentinel a UserStore must return for duplicate registrations.
	ErrEmailTaken = errors.New("email already registered")
	// ErrInvalidEmail is returned for structurally invalid email input.
	ErrInvalidEmail = errors.New("invalid email address")
	// ErrTokenInvalid is returned for malformed, mis-signed, or unknown tokens.
	ErrTokenInvalid = errors.New("invalid token")
	// ErrTokenExpired is returned for tokens past their expiry.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenAlreadyUsed is returned for single-use tokens that were already consumed.
	ErrTokenAlreadyUsed = errors.New("token already used")
	// ErrRefreshInvalid is returned for refresh tokens that match no active ledger record.
	ErrRefreshInvalid = errors.New("invalid refresh token")
	// ErrRefreshReuse is returned when an already-rotated refresh token is replayed.
	// All of the owner's active refresh tokens are revoked before it is returned.
	ErrRefreshReuse = errors.New("refresh token reuse detected")
	// ErrPasswordPolicy is the sentinel wrapped by every PolicyError.
	ErrPasswordPolicy = errors.New("password policy violation")
	// ErrProviderUnknown is returned for identity provider names that were never registered.
	ErrProviderUnknown = errors.New("unknown identity provider")
	// ErrLoginRateLimited is returned when login attempts exceed the configured budget.
	ErrLoginRateLimited = errors.New("login rate limited")
	// ErrRefreshRateLimited is returned when refresh attempts exceed the configured budget.
	ErrRefreshRateLimited = errors.New("refresh rate limited")
	// ErrResetRateLimited is returned when password reset requests exceed the configured budget.
	ErrResetRateLimited = errors.New("password reset rate limited")
	// ErrStorageUnavailable wraps token storage transport failures. It is the
	// only retryable failure class; the engine itself never retries.
	ErrStorageUnavailable = errors.New("token storage unavailable")
)

// PolicyError reports every password policy rule the candidate password
// violated. Rules are evaluated independently, not short-circuited, so a
// single evaluation surfaces all violations at once.
type PolicyError struct {
	Violations []string
	Score      int
}

func (e *PolicyError) Error() string {
	return "password policy violation: " + strings.Join(e.Violations, "; ")
}

// Unwrap lets callers match PolicyError with errors.Is(err, ErrPasswordPolicy).
func (e *PolicyError) Unwrap() error {
	return ErrPasswordPolicy
}

// Retryable reports whether the caller may safely retry the failed operation.
// Only storage transport failures qualify.
func Retryable(err error) bool {
	return errors.Is(err, ErrStorageUnavailable)
}
