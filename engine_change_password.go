package authcore

import (
	"context"
	"errors"
	"log"
)

// ChangePassword re-verifies the current password, applies the policy to
// the replacement, persists the new hash, and revokes every refresh token
// for the user so all sessions re-authenticate.
func (e *Engine) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	if err := e.ready(); err != nil {
		return err
	}

	if eval := e.policy.Evaluate(newPassword); !eval.Valid {
		return &PolicyError{Violations: eval.Violations, Score: eval.Score}
	}

	user, err := e.userStore.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return ErrInvalidCredentials
		}
		return ErrStorageUnavailable
	}

	match, err := e.hasher.Verify(currentPassword, user.PasswordHash)
	if err != nil || !match {
		e.emitAudit(ctx, EventPasswordChange, userID, user.Email, false, ErrInvalidCredentials)
		return ErrInvalidCredentials
	}

	newHash, err := e.hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	if err := e.userStore.UpdatePasswordHash(ctx, userID, newHash); err != nil {
		e.metrics.Inc(MetricStorageErrors)
		return ErrStorageUnavailable
	}

	// Force re-login everywhere: an attacker holding a stolen refresh token
	// must not survive a password change.
	if _, err := e.refreshStore.RevokeAll(ctx, userID); err != nil {
		log.Printf("authcore: session revocation after password change failed for %s", userID)
	} else {
		e.metrics.Inc(MetricTokensRevoked)
	}

	if limErr := e.rateLimiter.ResetLogin(ctx, normalizeEmail(user.Email), clientIPFromContext(ctx)); limErr != nil {
		log.Printf("authcore: login limiter reset failed")
	}

	e.metrics.Inc(MetricPasswordChanged)
	e.emitAudit(ctx, EventPasswordChange, userID, user.Email, true, nil)
	return nil
}
