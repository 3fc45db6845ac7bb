package authcore

import (
	"context"
)

// AccountStatus represents the lifecycle state of a user account.
// Email-verification state is tracked separately on [UserRecord].
type AccountStatus uint8

const (
	// AccountActive is the normal state for a usable account.
	AccountActive AccountStatus = iota
	// AccountDeactivated blocks all authentication until reactivated externally.
	AccountDeactivated
	// AccountPendingDeletion blocks all authentication while removal is in progress.
	AccountPendingDeletion
)

// UserRecord is the credential record returned by [UserStore]. The user
// store owns it; the engine only mutates it through the narrow update calls.
type UserRecord struct {
	UserID        string
	Email         string
	PasswordHash  string
	EmailVerified bool
	Status        AccountStatus
	Role          string
}

// CreateUserInput carries the fields the engine supplies when registering
// a new account.
type CreateUserInput struct {
	Email         string
	PasswordHash  string
	Role          string
	Status        AccountStatus
	EmailVerified bool
}

// UserStore is the interface callers must implement to integrate authcore
// with their user database. Lookups by email must match case-insensitively
// against the stored, normalized email. Missing users must be reported with
// [ErrUserNotFound] and duplicate emails on create with [ErrEmailTaken].
type UserStore interface {
	GetUserByEmail(ctx context.Context, email string) (UserRecord, error)
	GetUserByID(ctx context.Context, userID string) (UserRecord, error)
	CreateUser(ctx context.Context, input CreateUserInput) (UserRecord, error)
	UpdatePasswordHash(ctx context.Context, userID, newHash string) error
	SetEmailVerified(ctx context.Context, userID string, verified bool) error
}

// Notification template names passed to [Notifier.Send].
const (
	TemplatePasswordReset     = "password_reset"
	TemplateEmailVerification = "email_verification"
	TemplateWelcome           = "welcome"
)

// Notifier delivers reset and verification links out of band. Delivery is
// best-effort: the engine logs Send failures but never rolls back the token
// issuance they relate to.
type Notifier interface {
	Send(ctx context.Context, to, template string, data map[string]string) error
}

// UserIdentity is the normalized identity surfaced in success payloads and
// access-token claims.
type UserIdentity struct {
	UserID string
	Email  string
	Role   string
}

// ExternalIdentity is an already-validated identity assertion produced by an
// [IdentityProvider]. The engine never performs the provider's protocol
// exchange itself.
type ExternalIdentity struct {
	Provider      string
	Subject       string
	Email         string
	EmailVerified bool
}

// IdentityProvider verifies a provider-specific assertion (an ID token, a
// server-validated profile blob) and normalizes it. Implementations exist
// for local password login implicitly; external providers (google, facebook,
// apple) register through [Builder.WithIdentityProvider].
type IdentityProvider interface {
	Name() string
	Verify(ctx context.Context, assertion string) (ExternalIdentity, error)
}

// TokenPair is an access/refresh token pair minted together.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// LoginResult is returned by [Engine.Login] and [Engine.LoginWithProvider].
type LoginResult struct {
	AccessToken  string
	RefreshToken string
	User         UserIdentity
}

// RegisterResult is returned by [Engine.Register]. Tokens are only present
// when auto-login is enabled and verification is not required first.
type RegisterResult struct {
	User                UserIdentity
	VerificationPending bool
	AccessToken         string
	RefreshToken        string
}

// AccessIdentity is the decoded, verified claim set of an access token.
type AccessIdentity struct {
	UserID   string
	Email    string
	Role     string
	IssuedAt int64
	Expiry   int64
}

// PasswordRequirements describes the active password policy so the calling
// layer can render it ahead of submission.
type PasswordRequirements struct {
	MinLength     int
	RequireUpper  bool
	RequireLower  bool
	RequireDigit  bool
	RequireSymbol bool
	MinScore      int
	ScoreScaleMax int
}
