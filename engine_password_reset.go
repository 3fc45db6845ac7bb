package authcore

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/coursehub/authcore/internal"
	"github.com/coursehub/authcore/internal/rate"
	"github.com/coursehub/authcore/internal/stores"
	"github.com/google/uuid"
)

// RequestPasswordReset issues a single-use reset token and hands it to the
// notifier. The response is identical whether or not the email is
// registered, so the endpoint cannot be used to enumerate accounts. Issuing
// replaces any prior live reset token for the owner.
func (e *Engine) RequestPasswordReset(ctx context.Context, email string) error {
	if err := e.ready(); err != nil {
		return err
	}
	if !e.config.PasswordReset.Enabled {
		return nil
	}

	email = normalizeEmail(email)

	if err := e.rateLimiter.CheckResetRequest(ctx, email); err != nil {
		if errors.Is(err, rate.ErrRateLimited) {
			return ErrResetRateLimited
		}
		return ErrStorageUnavailable
	}

	user, err := e.userStore.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			// Same outcome as the registered case: generic success.
			e.emitAudit(ctx, EventResetRequest, "", email, true, nil)
			return nil
		}
		return ErrStorageUnavailable
	}

	handle, err := e.issueOneTime(ctx, user.UserID, stores.PurposeResetPassword, e.config.PasswordReset.TokenTTL)
	if err != nil {
		e.metrics.Inc(MetricStorageErrors)
		return ErrStorageUnavailable
	}

	// Ledger issuance is committed; delivery is a best-effort side channel
	// and never rolls it back.
	if e.notifier != nil {
		if sendErr := e.notifier.Send(ctx, email, TemplatePasswordReset, map[string]string{
			"token": handle,
		}); sendErr != nil {
			log.Printf("authcore: reset notification failed")
		}
	}

	e.metrics.Inc(MetricResetRequested)
	e.emitAudit(ctx, EventResetRequest, user.UserID, email, true, nil)
	return nil
}

// ValidatePasswordReset is the read-only usability probe for a reset token,
// used before presenting a new-password form. It does not consume the token.
func (e *Engine) ValidatePasswordReset(ctx context.Context, token string) (string, error) {
	if err := e.ready(); err != nil {
		return "", err
	}

	id, secret, err := internal.DecodeHandle(token)
	if err != nil {
		return "", ErrTokenInvalid
	}

	record, err := e.onetimeStore.Validate(ctx, id, stores.PurposeResetPassword, internal.HashSecret(secret))
	if err != nil {
		return "", mapOneTimeErr(err)
	}
	return record.OwnerID, nil
}

// ConfirmPasswordReset consumes the reset token and installs the new
// password. The consumption and the effect it authorizes are tied: when the
// password write fails, the token is restored so it is not burned on an
// unrelated failure. Success revokes every refresh token for the owner.
func (e *Engine) ConfirmPasswordReset(ctx context.Context, token, newPassword string) error {
	if err := e.ready(); err != nil {
		return err
	}

	// Validation failures are reported before any storage access.
	if eval := e.policy.Evaluate(newPassword); !eval.Valid {
		return &PolicyError{Violations: eval.Violations, Score: eval.Score}
	}

	id, secret, err := internal.DecodeHandle(token)
	if err != nil {
		return ErrTokenInvalid
	}

	record, err := e.onetimeStore.Consume(ctx, id, stores.PurposeResetPassword, internal.HashSecret(secret))
	if err != nil {
		e.emitAudit(ctx, EventResetConfirm, "", "", false, err)
		return mapOneTimeErr(err)
	}

	newHash, err := e.hasher.Hash(newPassword)
	if err != nil {
		e.restoreOneTime(ctx, id, stores.PurposeResetPassword)
		return err
	}
	if err := e.userStore.UpdatePasswordHash(ctx, record.OwnerID, newHash); err != nil {
		e.restoreOneTime(ctx, id, stores.PurposeResetPassword)
		e.metrics.Inc(MetricStorageErrors)
		return ErrStorageUnavailable
	}

	if _, err := e.refreshStore.RevokeAll(ctx, record.OwnerID); err != nil {
		log.Printf("authcore: session revocation after password reset failed for %s", record.OwnerID)
	} else {
		e.metrics.Inc(MetricTokensRevoked)
	}

	if user, lookupErr := e.userStore.GetUserByID(ctx, record.OwnerID); lookupErr == nil {
		if limErr := e.rateLimiter.ResetLogin(ctx, normalizeEmail(user.Email), clientIPFromContext(ctx)); limErr != nil {
			log.Printf("authcore: login limiter reset failed")
		}
	}

	e.metrics.Inc(MetricResetConfirmed)
	e.emitAudit(ctx, EventResetConfirm, record.OwnerID, "", true, nil)
	return nil
}

// issueOneTime generates the secret, persists only its hash, and returns
// the opaque handle. The raw secret exists nowhere but the returned handle.
func (e *Engine) issueOneTime(ctx context.Context, ownerID string, purpose stores.Purpose, ttl time.Duration) (string, error) {
	secret, err := internal.NewSecret()
	if err != nil {
		return "", err
	}
	id := uuid.New()
	if err := e.onetimeStore.Issue(ctx, id, ownerID, purpose, internal.HashSecret(secret), ttl); err != nil {
		return "", err
	}
	return internal.EncodeHandle(id, secret), nil
}

func mapOneTimeErr(err error) error {
	switch {
	case errors.Is(err, stores.ErrExpired):
		return ErrTokenExpired
	case errors.Is(err, stores.ErrAlreadyUsed):
		return ErrTokenAlreadyUsed
	case errors.Is(err, stores.ErrNotFound), errors.Is(err, stores.ErrSecretMismatch):
		return ErrTokenInvalid
	default:
		return ErrStorageUnavailable
	}
}

func (e *Engine) restoreOneTime(ctx context.Context, id uuid.UUID, purpose stores.Purpose) {
	if err := e.onetimeStore.Restore(ctx, id, purpose); err != nil {
		log.Printf("authcore: one-time token restore failed")
	}
}
