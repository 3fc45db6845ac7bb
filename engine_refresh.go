package authcore

import (
	"context"
	"errors"
	"log"

	"github.com/coursehub/authcore/internal"
	"github.com/coursehub/authcore/internal/rate"
	"github.com/coursehub/authcore/jwt"
	"github.com/coursehub/authcore/ledger"
	"github.com/google/uuid"
)

// Refresh rotates a refresh token: the presented token's ledger record is
// atomically revoked and replaced, and a new pair is returned. Claims are
// re-signed from a re-fetched user record, so role and email changes since
// login propagate here.
//
// Presenting a token that was already rotated out revokes every active
// refresh token for that owner before failing: replay of a dead token is
// treated as theft (reuse lockout). Two concurrent calls with the same token
// resolve to exactly one winner.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	claims, err := e.jwtManager.Parse(refreshToken, jwt.PurposeRefresh)
	if err != nil {
		e.metrics.Inc(MetricRefreshFailure)
		return nil, ErrRefreshInvalid
	}

	recordID, secret, err := internal.DecodeHandle(claims.RefreshHandle)
	if err != nil {
		e.metrics.Inc(MetricRefreshFailure)
		return nil, ErrRefreshInvalid
	}

	if err := e.rateLimiter.CheckRefresh(ctx, recordID.String()); err != nil {
		if errors.Is(err, rate.ErrRateLimited) {
			return nil, ErrRefreshRateLimited
		}
		return nil, ErrStorageUnavailable
	}

	nextSecret, err := internal.NewSecret()
	if err != nil {
		return nil, err
	}
	nextID := uuid.New()

	ownerID, err := e.refreshStore.Rotate(
		ctx,
		recordID,
		internal.HashSecret(secret),
		nextID,
		internal.HashSecret(nextSecret),
		e.config.JWT.RefreshTTL,
	)
	if err != nil {
		return nil, e.failRotate(ctx, ownerID, err)
	}

	user, err := e.userStore.GetUserByID(ctx, ownerID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			_ = e.refreshStore.Revoke(ctx, nextID)
			return nil, ErrRefreshInvalid
		}
		return nil, ErrStorageUnavailable
	}
	if err := accountStatusError(user.Status); err != nil {
		_ = e.refreshStore.Revoke(ctx, nextID)
		e.metrics.Inc(MetricRefreshFailure)
		return nil, err
	}
	if err := e.verifiedOrError(user); err != nil {
		_ = e.refreshStore.Revoke(ctx, nextID)
		e.metrics.Inc(MetricRefreshFailure)
		return nil, err
	}

	accessToken, err := e.jwtManager.IssueAccess(user.UserID, user.Email, user.Role)
	if err != nil {
		return nil, err
	}
	newRefresh, err := e.jwtManager.IssueRefresh(user.UserID, internal.EncodeHandle(nextID, nextSecret))
	if err != nil {
		return nil, err
	}

	e.metrics.Inc(MetricRefreshSuccess)
	e.emitAudit(ctx, EventRefresh, user.UserID, user.Email, true, nil)

	return &TokenPair{AccessToken: accessToken, RefreshToken: newRefresh}, nil
}

func (e *Engine) failRotate(ctx context.Context, ownerID string, cause error) error {
	switch {
	case errors.Is(cause, ledger.ErrReused), errors.Is(cause, ledger.ErrHashMismatch):
		// A dead or mismatched presentation against a known owner is the
		// theft signal: lock out every active token for that owner.
		if ownerID != "" {
			if revoked, err := e.refreshStore.RevokeAll(ctx, ownerID); err != nil {
				log.Printf("authcore: reuse lockout revocation failed for %s", ownerID)
			} else if revoked > 0 {
				e.metrics.Inc(MetricTokensRevoked)
			}
		}
		e.metrics.Inc(MetricRefreshReuseDetected)
		e.emitAudit(ctx, EventRefreshReuse, ownerID, "", false, cause)
		if errors.Is(cause, ledger.ErrReused) {
			return ErrRefreshReuse
		}
		return ErrRefreshInvalid
	case errors.Is(cause, ledger.ErrNotFound), errors.Is(cause, ledger.ErrExpired):
		e.metrics.Inc(MetricRefreshFailure)
		return ErrRefreshInvalid
	default:
		e.metrics.Inc(MetricStorageErrors)
		return ErrStorageUnavailable
	}
}

// Logout revokes the single ledger record behind the presented refresh
// token. Unknown or already-revoked tokens are a no-op: logout is
// idempotent.
func (e *Engine) Logout(ctx context.Context, refreshToken string) error {
	if err := e.ready(); err != nil {
		return err
	}

	claims, err := e.jwtManager.Parse(refreshToken, jwt.PurposeRefresh)
	if err != nil {
		return ErrRefreshInvalid
	}
	recordID, _, err := internal.DecodeHandle(claims.RefreshHandle)
	if err != nil {
		return ErrRefreshInvalid
	}

	if err := e.refreshStore.Revoke(ctx, recordID); err != nil {
		e.metrics.Inc(MetricStorageErrors)
		return ErrStorageUnavailable
	}

	e.metrics.Inc(MetricTokensRevoked)
	e.emitAudit(ctx, EventLogout, claims.Subject, "", true, nil)
	return nil
}

// LogoutAll revokes every active refresh token for the user: all sessions
// require a fresh login afterwards.
func (e *Engine) LogoutAll(ctx context.Context, userID string) error {
	if err := e.ready(); err != nil {
		return err
	}

	if _, err := e.refreshStore.RevokeAll(ctx, userID); err != nil {
		e.metrics.Inc(MetricStorageErrors)
		return ErrStorageUnavailable
	}

	e.metrics.Inc(MetricTokensRevoked)
	e.emitAudit(ctx, EventLogoutAll, userID, "", true, nil)
	return nil
}
