package authcore

import (
	"context"
	"errors"
	"log"

	"github.com/coursehub/authcore/internal"
	"github.com/coursehub/authcore/internal/stores"
)

// RequestEmailVerification issues a fresh verification token for the given
// email and hands it to the notifier. Like [Engine.RequestPasswordReset],
// the response is identical for unknown emails and for accounts that are
// already verified, so nothing about the account leaks. Issuing replaces
// any prior live verification token for the owner.
func (e *Engine) RequestEmailVerification(ctx context.Context, email string) error {
	if err := e.ready(); err != nil {
		return err
	}
	if !e.config.EmailVerification.Enabled {
		return nil
	}

	email = normalizeEmail(email)

	user, err := e.userStore.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			e.emitAudit(ctx, EventVerificationRequest, "", email, true, nil)
			return nil
		}
		e.metrics.Inc(MetricStorageErrors)
		return ErrStorageUnavailable
	}
	if user.EmailVerified {
		e.emitAudit(ctx, EventVerificationRequest, user.UserID, email, true, nil)
		return nil
	}

	if err := e.issueVerification(ctx, user); err != nil {
		return err
	}
	e.emitAudit(ctx, EventVerificationRequest, user.UserID, email, true, nil)
	return nil
}

// ConfirmEmailVerification consumes a verification token and flips the
// owner's email-verified flag. If the flag update fails the token is
// restored so the link can be retried.
func (e *Engine) ConfirmEmailVerification(ctx context.Context, token string) error {
	if err := e.ready(); err != nil {
		return err
	}

	id, secret, err := internal.DecodeHandle(token)
	if err != nil {
		return ErrTokenInvalid
	}

	record, err := e.onetimeStore.Consume(ctx, id, stores.PurposeVerifyEmail, internal.HashSecret(secret))
	if err != nil {
		return mapOneTimeErr(err)
	}

	if err := e.userStore.SetEmailVerified(ctx, record.OwnerID, true); err != nil {
		e.restoreOneTime(ctx, id, stores.PurposeVerifyEmail)
		e.metrics.Inc(MetricStorageErrors)
		return ErrStorageUnavailable
	}

	e.metrics.Inc(MetricVerificationConfirmed)
	e.emitAudit(ctx, EventVerificationConfirm, record.OwnerID, "", true, nil)
	return nil
}

// issueVerification mints the one-time token and mails the link. Delivery
// is best-effort: a failed Send leaves the token live so that a later
// RequestEmailVerification simply replaces it.
func (e *Engine) issueVerification(ctx context.Context, user UserRecord) error {
	handle, err := e.issueOneTime(ctx, user.UserID, stores.PurposeVerifyEmail, e.config.EmailVerification.TokenTTL)
	if err != nil {
		e.metrics.Inc(MetricStorageErrors)
		return ErrStorageUnavailable
	}

	e.metrics.Inc(MetricVerificationRequested)

	if e.notifier != nil {
		if sendErr := e.notifier.Send(ctx, user.Email, TemplateEmailVerification, map[string]string{
			"token": handle,
		}); sendErr != nil {
			log.Printf("authcore: verification notification failed for %s", user.UserID)
		}
	}
	return nil
}
