package authcore

import (
	"context"
	"errors"
	"log"
)

// Register validates policy and input before any storage call, creates the
// account, and, when verification is enabled, issues a verification token
// and hands it to the notifier. A duplicate email is reported explicitly
// with [ErrEmailTaken]; registration is not enumeration-sensitive the way
// password reset is.
func (e *Engine) Register(ctx context.Context, email, plaintext string) (*RegisterResult, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	email = normalizeEmail(email)
	if !validEmail(email) {
		e.metrics.Inc(MetricRegisterFailure)
		return nil, ErrInvalidEmail
	}

	if eval := e.policy.Evaluate(plaintext); !eval.Valid {
		e.metrics.Inc(MetricRegisterFailure)
		return nil, &PolicyError{Violations: eval.Violations, Score: eval.Score}
	}

	hash, err := e.hasher.Hash(plaintext)
	if err != nil {
		return nil, err
	}

	verificationPending := e.config.EmailVerification.Enabled
	user, err := e.userStore.CreateUser(ctx, CreateUserInput{
		Email:         email,
		PasswordHash:  hash,
		Role:          e.config.Account.DefaultRole,
		Status:        AccountActive,
		EmailVerified: !verificationPending,
	})
	if err != nil {
		e.metrics.Inc(MetricRegisterFailure)
		if errors.Is(err, ErrEmailTaken) {
			return nil, ErrEmailTaken
		}
		return nil, ErrStorageUnavailable
	}

	result := &RegisterResult{
		User:                identityOf(user),
		VerificationPending: verificationPending,
	}

	if verificationPending {
		// The account exists either way; a failed token issue is logged and
		// the user can re-request verification later.
		if issueErr := e.issueVerification(ctx, user); issueErr != nil {
			log.Printf("authcore: verification issue failed for %s", user.UserID)
		}
	} else if e.notifier != nil {
		if sendErr := e.notifier.Send(ctx, email, TemplateWelcome, map[string]string{
			"email": email,
		}); sendErr != nil {
			log.Printf("authcore: welcome notification failed")
		}
	}

	if e.config.Account.AutoLogin && !e.config.EmailVerification.RequireVerified {
		pair, pairErr := e.issueTokenPair(ctx, user)
		if pairErr != nil {
			return nil, pairErr
		}
		result.AccessToken = pair.AccessToken
		result.RefreshToken = pair.RefreshToken
	}

	e.metrics.Inc(MetricRegisterSuccess)
	e.emitAudit(ctx, EventRegister, user.UserID, email, true, nil)

	return result, nil
}
