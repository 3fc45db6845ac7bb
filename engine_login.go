package authcore

import (
	"context"
	"errors"
	"log"

	"github.com/coursehub/authcore/internal"
	"github.com/coursehub/authcore/internal/rate"
	"github.com/google/uuid"
)

// Login verifies an email/password pair and, on success, mints an access
// token and a freshly ledgered refresh token.
//
// Check order is fixed: password first, then the email-verified flag, then
// account status. Unknown emails and wrong passwords are indistinguishable
// to the caller; verification and status failures are only disclosed after
// password knowledge is proven.
func (e *Engine) Login(ctx context.Context, email, plaintext string) (*LoginResult, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	email = normalizeEmail(email)
	ip := clientIPFromContext(ctx)

	if err := e.rateLimiter.CheckLogin(ctx, email, ip); err != nil {
		if errors.Is(err, rate.ErrRateLimited) {
			e.metrics.Inc(MetricLoginRateLimited)
			return nil, ErrLoginRateLimited
		}
		return nil, ErrStorageUnavailable
	}

	user, err := e.userStore.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			// Burn equivalent hash work so timing does not reveal existence.
			_, _ = e.hasher.Verify(plaintext, e.dummyHash)
			return nil, e.failLogin(ctx, email, ip, ErrInvalidCredentials)
		}
		return nil, ErrStorageUnavailable
	}

	match, err := e.hasher.Verify(plaintext, user.PasswordHash)
	if err != nil || !match {
		return nil, e.failLogin(ctx, email, ip, ErrInvalidCredentials)
	}

	if err := e.verifiedOrError(user); err != nil {
		e.emitAudit(ctx, EventLogin, user.UserID, email, false, err)
		e.metrics.Inc(MetricLoginFailure)
		return nil, err
	}
	if err := accountStatusError(user.Status); err != nil {
		e.emitAudit(ctx, EventLogin, user.UserID, email, false, err)
		e.metrics.Inc(MetricLoginFailure)
		return nil, err
	}

	if e.config.Password.UpgradeOnLogin {
		if stale, rehashErr := e.hasher.NeedsRehash(user.PasswordHash); rehashErr == nil && stale {
			if newHash, hashErr := e.hasher.Hash(plaintext); hashErr == nil {
				if upErr := e.userStore.UpdatePasswordHash(ctx, user.UserID, newHash); upErr != nil {
					log.Printf("authcore: password upgrade on login failed for %s", user.UserID)
				}
			}
		}
	}

	pair, err := e.issueTokenPair(ctx, user)
	if err != nil {
		return nil, err
	}

	if limErr := e.rateLimiter.ResetLogin(ctx, email, ip); limErr != nil {
		log.Printf("authcore: login limiter reset failed")
	}

	e.metrics.Inc(MetricLoginSuccess)
	e.emitAudit(ctx, EventLogin, user.UserID, email, true, nil)

	return &LoginResult{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		User:         identityOf(user),
	}, nil
}

// LoginWithProvider accepts an already-validated external identity assertion
// as an alternative credential. The registered provider normalizes the
// assertion; the engine never performs the provider's protocol exchange.
// Verification and status checks still apply, then the same signer and
// ledger mint the pair.
func (e *Engine) LoginWithProvider(ctx context.Context, providerName, assertion string) (*LoginResult, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	provider, ok := e.providers[providerName]
	if !ok {
		return nil, ErrProviderUnknown
	}

	external, err := provider.Verify(ctx, assertion)
	if err != nil {
		e.metrics.Inc(MetricLoginFailure)
		e.emitAudit(ctx, EventLoginExternal, "", "", false, ErrInvalidCredentials)
		return nil, ErrInvalidCredentials
	}

	email := normalizeEmail(external.Email)
	if !validEmail(email) {
		return nil, ErrInvalidCredentials
	}

	user, err := e.userStore.GetUserByEmail(ctx, email)
	switch {
	case err == nil:
	case errors.Is(err, ErrUserNotFound) && e.config.Account.ProvisionExternal:
		user, err = e.userStore.CreateUser(ctx, CreateUserInput{
			Email:         email,
			Role:          e.config.Account.DefaultRole,
			Status:        AccountActive,
			EmailVerified: external.EmailVerified,
		})
		if err != nil {
			if errors.Is(err, ErrEmailTaken) {
				return nil, ErrInvalidCredentials
			}
			return nil, ErrStorageUnavailable
		}
	case errors.Is(err, ErrUserNotFound):
		return nil, ErrInvalidCredentials
	default:
		return nil, ErrStorageUnavailable
	}

	if err := e.verifiedOrError(user); err != nil {
		return nil, err
	}
	if err := accountStatusError(user.Status); err != nil {
		return nil, err
	}

	pair, err := e.issueTokenPair(ctx, user)
	if err != nil {
		return nil, err
	}

	e.metrics.Inc(MetricLoginSuccess)
	e.emitAudit(ctx, EventLoginExternal, user.UserID, email, true, nil)

	return &LoginResult{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		User:         identityOf(user),
	}, nil
}

func (e *Engine) failLogin(ctx context.Context, email, ip string, cause error) error {
	if err := e.rateLimiter.IncrementLogin(ctx, email, ip); err != nil {
		if errors.Is(err, rate.ErrRateLimited) {
			e.metrics.Inc(MetricLoginRateLimited)
			e.emitAudit(ctx, EventLogin, "", email, false, ErrLoginRateLimited)
			return ErrLoginRateLimited
		}
	}
	e.metrics.Inc(MetricLoginFailure)
	e.emitAudit(ctx, EventLogin, "", email, false, cause)
	return cause
}

// issueTokenPair mints the access token and a ledgered refresh token for the
// user. The ledger write commits before any token is returned; a ledger
// failure yields no tokens at all.
func (e *Engine) issueTokenPair(ctx context.Context, user UserRecord) (*TokenPair, error) {
	secret, err := internal.NewSecret()
	if err != nil {
		return nil, err
	}

	recordID := uuid.New()
	if err := e.refreshStore.Issue(ctx, recordID, user.UserID, internal.HashSecret(secret), e.config.JWT.RefreshTTL); err != nil {
		e.metrics.Inc(MetricStorageErrors)
		return nil, ErrStorageUnavailable
	}

	refreshToken, err := e.jwtManager.IssueRefresh(user.UserID, internal.EncodeHandle(recordID, secret))
	if err != nil {
		return nil, err
	}
	accessToken, err := e.jwtManager.IssueAccess(user.UserID, user.Email, user.Role)
	if err != nil {
		return nil, err
	}

	return &TokenPair{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}
