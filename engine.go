package authcore

import (
	"strings"

	internalaudit "github.com/coursehub/authcore/internal/audit"
	"github.com/coursehub/authcore/internal/rate"
	"github.com/coursehub/authcore/internal/stores"
	"github.com/coursehub/authcore/jwt"
	"github.com/coursehub/authcore/ledger"
	"github.com/coursehub/authcore/password"
)

// Engine is the authentication and token lifecycle core. Build one with
// [Builder]; it is immutable after construction and safe for concurrent use.
type Engine struct {
	config       Config
	userStore    UserStore
	notifier     Notifier
	providers    map[string]IdentityProvider
	hasher       *password.Hasher
	policy       password.Policy
	jwtManager   *jwt.Manager
	refreshStore *ledger.Store
	onetimeStore *stores.OneTimeStore
	rateLimiter  *rate.Limiter
	audit        *internalaudit.Dispatcher
	metrics      *Metrics
	// dummyHash is verified against on the unknown-email login path so the
	// response time does not reveal account existence.
	dummyHash string
}

// Close flushes the audit dispatcher. Safe on a nil Engine.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.audit.Close()
}

// MetricsSnapshot returns a point-in-time copy of the engine counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil {
		return MetricsSnapshot{Counters: map[MetricID]uint64{}}
	}
	return e.metrics.Snapshot()
}

// AuditDropped reports how many audit events the dispatcher has dropped
// under backpressure.
func (e *Engine) AuditDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.audit.Dropped()
}

// PasswordRequirements describes the active password policy.
func (e *Engine) PasswordRequirements() PasswordRequirements {
	return PasswordRequirements{
		MinLength:     e.policy.MinLength,
		RequireUpper:  e.policy.RequireUpper,
		RequireLower:  e.policy.RequireLower,
		RequireDigit:  e.policy.RequireDigit,
		RequireSymbol: e.policy.RequireSymbol,
		MinScore:      e.policy.MinScore,
		ScoreScaleMax: password.ScoreMax,
	}
}

func (e *Engine) ready() error {
	if e == nil || e.userStore == nil || e.jwtManager == nil {
		return ErrEngineNotReady
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validEmail(email string) bool {
	at := strings.IndexByte(email, '@')
	if at <= 0 || at == len(email)-1 {
		return false
	}
	if strings.ContainsAny(email, " \t\r\n") {
		return false
	}
	return strings.IndexByte(email[at+1:], '.') > 0
}

// accountStatusError maps the account lifecycle state to the failure the
// caller sees. Checked only after password knowledge is proven.
func accountStatusError(status AccountStatus) error {
	switch status {
	case AccountActive:
		return nil
	default:
		return ErrAccountInactive
	}
}

func (e *Engine) verifiedOrError(user UserRecord) error {
	if e.config.EmailVerification.Enabled &&
		e.config.EmailVerification.RequireVerified &&
		!user.EmailVerified {
		return ErrAccountUnverified
	}
	return nil
}

func identityOf(user UserRecord) UserIdentity {
	return UserIdentity{
		UserID: user.UserID,
		Email:  user.Email,
		Role:   user.Role,
	}
}
