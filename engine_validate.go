package authcore

import (
	"errors"

	"github.com/coursehub/authcore/jwt"
)

// ValidateAccess verifies an access token's signature, expiry, and purpose
// and returns the identity it carries. It is purely local: no storage is
// consulted, so a revoked refresh lineage does not invalidate access tokens
// already in flight. Callers needing immediate revocation must keep the
// access TTL short.
func (e *Engine) ValidateAccess(token string) (*AccessIdentity, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	claims, err := e.jwtManager.Parse(token, jwt.PurposeAccess)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrTokenExpired
		default:
			return nil, ErrTokenInvalid
		}
	}

	identity := &AccessIdentity{
		UserID: claims.Subject,
		Email:  claims.Email,
		Role:   claims.Role,
	}
	if claims.IssuedAt != nil {
		identity.IssuedAt = claims.IssuedAt.Unix()
	}
	if claims.ExpiresAt != nil {
		identity.Expiry = claims.ExpiresAt.Unix()
	}
	return identity, nil
}
