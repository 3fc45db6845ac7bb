package authcore

import (
	"errors"
	"time"
)

// Config is the full engine configuration tree. Obtain a baseline with
// [DefaultConfig], adjust, and pass to [Builder.WithConfig]. Configs are
// treated as immutable once an Engine is built.
type Config struct {
	JWT               JWTConfig
	Password          PasswordConfig
	Policy            PolicyConfig
	Refresh           RefreshConfig
	PasswordReset     PasswordResetConfig
	EmailVerification EmailVerificationConfig
	Account           AccountConfig
	Security          SecurityConfig
	Audit             AuditConfig
	Metrics           MetricsConfig
}

// JWTConfig configures the token signer. Access and refresh tokens are
// signed with distinct keys; for hs256 these are HMAC secrets, for ed25519
// private keys with the matching public keys.
type JWTConfig struct {
	AccessTTL        time.Duration
	RefreshTTL       time.Duration
	SigningMethod    string // "hs256" (default) or "ed25519"
	AccessKey        []byte
	RefreshKey       []byte
	AccessPublicKey  []byte
	RefreshPublicKey []byte
	Issuer           string
	Leeway           time.Duration
}

// PasswordConfig holds the argon2id cost parameters.
type PasswordConfig struct {
	Memory         uint32 // KB
	Time           uint32
	Parallelism    uint8
	SaltLength     uint32
	KeyLength      uint32
	UpgradeOnLogin bool
}

// PolicyConfig holds the password policy rules.
type PolicyConfig struct {
	MinLength     int
	RequireUpper  bool
	RequireLower  bool
	RequireDigit  bool
	RequireSymbol bool
	MinScore      int // 0..4
}

// RefreshConfig configures the refresh-token ledger.
type RefreshConfig struct {
	RedisPrefix string
}

// PasswordResetConfig configures the reset flow.
type PasswordResetConfig struct {
	Enabled              bool
	TokenTTL             time.Duration
	MaxRequests          int
	RequestCooldown      time.Duration
	EnableRequestLimiter bool
}

// EmailVerificationConfig configures the verification flow. RequireVerified
// gates login on the email-verified flag.
type EmailVerificationConfig struct {
	Enabled         bool
	TokenTTL        time.Duration
	RequireVerified bool
}

// AccountConfig configures registration behavior.
type AccountConfig struct {
	DefaultRole string
	// AutoLogin issues a token pair directly from Register when email
	// verification is not required first.
	AutoLogin bool
	// ProvisionExternal creates an account on first external-provider login.
	ProvisionExternal bool
}

// SecurityConfig holds the engine-level throttle budgets.
type SecurityConfig struct {
	EnableLoginThrottle   bool
	EnableIPThrottle      bool
	EnableRefreshThrottle bool
	MaxLoginAttempts      int
	LoginCooldown         time.Duration
	MaxRefreshAttempts    int
	RefreshCooldown       time.Duration
}

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls the in-process metric counters.
type MetricsConfig struct {
	Enabled bool
}

// DefaultConfig returns the baseline configuration: 15m access tokens, 7d
// refresh tokens, 15m reset tokens, 24h verification tokens, the standard
// password policy, and moderate argon2id costs. Signing keys must still be
// supplied by the caller.
func DefaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			AccessTTL:     15 * time.Minute,
			RefreshTTL:    7 * 24 * time.Hour,
			SigningMethod: "hs256",
			Leeway:        30 * time.Second,
		},
		Password: PasswordConfig{
			Memory:         64 * 1024,
			Time:           3,
			Parallelism:    2,
			SaltLength:     16,
			KeyLength:      32,
			UpgradeOnLogin: true,
		},
		Policy: PolicyConfig{
			MinLength:     8,
			RequireUpper:  true,
			RequireLower:  true,
			RequireDigit:  true,
			RequireSymbol: true,
			MinScore:      2,
		},
		Refresh: RefreshConfig{
			RedisPrefix: "art",
		},
		PasswordReset: PasswordResetConfig{
			Enabled:              true,
			TokenTTL:             15 * time.Minute,
			MaxRequests:          5,
			RequestCooldown:      time.Hour,
			EnableRequestLimiter: true,
		},
		EmailVerification: EmailVerificationConfig{
			Enabled:         true,
			TokenTTL:        24 * time.Hour,
			RequireVerified: true,
		},
		Account: AccountConfig{
			DefaultRole:       "member",
			AutoLogin:         false,
			ProvisionExternal: true,
		},
		Security: SecurityConfig{
			EnableLoginThrottle:   true,
			EnableIPThrottle:      false,
			EnableRefreshThrottle: true,
			MaxLoginAttempts:      5,
			LoginCooldown:         15 * time.Minute,
			MaxRefreshAttempts:    20,
			RefreshCooldown:       time.Minute,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// Validate checks the configuration for internal consistency. Builder calls
// it before constructing an Engine.
func (c Config) Validate() error {
	if c.JWT.AccessTTL <= 0 {
		return errors.New("JWT AccessTTL must be positive")
	}
	if c.JWT.RefreshTTL <= 0 {
		return errors.New("JWT RefreshTTL must be positive")
	}
	if c.JWT.AccessTTL >= c.JWT.RefreshTTL {
		return errors.New("JWT AccessTTL must be shorter than RefreshTTL")
	}
	if m := c.JWT.SigningMethod; m != "hs256" && m != "ed25519" {
		return errors.New("JWT SigningMethod must be hs256 or ed25519")
	}
	if len(c.JWT.AccessKey) == 0 || len(c.JWT.RefreshKey) == 0 {
		return errors.New("JWT access and refresh keys required")
	}
	if c.Policy.MinLength < 1 {
		return errors.New("policy MinLength must be at least 1")
	}
	if c.Policy.MinScore < 0 || c.Policy.MinScore > 4 {
		return errors.New("policy MinScore must be within 0..4")
	}
	if c.PasswordReset.Enabled && c.PasswordReset.TokenTTL <= 0 {
		return errors.New("password reset TokenTTL must be positive")
	}
	if c.EmailVerification.Enabled && c.EmailVerification.TokenTTL <= 0 {
		return errors.New("email verification TokenTTL must be positive")
	}
	if c.Account.DefaultRole == "" {
		return errors.New("account DefaultRole required")
	}
	if c.Security.EnableLoginThrottle {
		if c.Security.MaxLoginAttempts <= 0 || c.Security.LoginCooldown <= 0 {
			return errors.New("login throttle requires positive budget and cooldown")
		}
	}
	if c.Security.EnableRefreshThrottle {
		if c.Security.MaxRefreshAttempts <= 0 || c.Security.RefreshCooldown <= 0 {
			return errors.New("refresh throttle requires positive budget and cooldown")
		}
	}
	return nil
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.AccessKey = cloneBytes(cfg.JWT.AccessKey)
	out.JWT.RefreshKey = cloneBytes(cfg.JWT.RefreshKey)
	out.JWT.AccessPublicKey = cloneBytes(cfg.JWT.AccessPublicKey)
	out.JWT.RefreshPublicKey = cloneBytes(cfg.JWT.RefreshPublicKey)
	return out
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
