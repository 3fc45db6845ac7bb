package authcore

import (
	"errors"

	internalaudit "github.com/coursehub/authcore/internal/audit"
	"github.com/coursehub/authcore/internal/rate"
	"github.com/coursehub/authcore/internal/stores"
	"github.com/coursehub/authcore/jwt"
	"github.com/coursehub/authcore/ledger"
	"github.com/coursehub/authcore/password"
	"github.com/redis/go-redis/v9"
)

// Builder assembles an [Engine]. Each builder builds at most once.
type Builder struct {
	config    Config
	redis     redis.UniversalClient
	userStore UserStore
	notifier  Notifier
	auditSink AuditSink
	providers map[string]IdentityProvider
	built     bool
}

// New returns a builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config:    DefaultConfig(),
		providers: map[string]IdentityProvider{},
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the Redis client backing the two ledgers and the throttles.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithUserStore sets the user credential store. Required.
func (b *Builder) WithUserStore(store UserStore) *Builder {
	b.userStore = store
	return b
}

// WithNotifier sets the out-of-band delivery channel for reset and
// verification links. Optional; without it tokens are issued but not sent.
func (b *Builder) WithNotifier(n Notifier) *Builder {
	b.notifier = n
	return b
}

// WithAuditSink sets the destination for audit events.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithIdentityProvider registers an external identity provider under its
// Name.
func (b *Builder) WithIdentityProvider(p IdentityProvider) *Builder {
	if p != nil {
		b.providers[p.Name()] = p
	}
	return b
}

// Build validates the configuration and wires the engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}
	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if b.userStore == nil {
		return nil, errors.New("user store required")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	hasher, err := password.NewHasher(password.Params{
		Memory:      cfg.Password.Memory,
		Time:        cfg.Password.Time,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
	})
	if err != nil {
		return nil, err
	}

	jwtManager, err := jwt.NewManager(jwt.Config{
		AccessTTL:        cfg.JWT.AccessTTL,
		RefreshTTL:       cfg.JWT.RefreshTTL,
		SigningMethod:    jwt.SigningMethod(cfg.JWT.SigningMethod),
		AccessKey:        cloneBytes(cfg.JWT.AccessKey),
		RefreshKey:       cloneBytes(cfg.JWT.RefreshKey),
		AccessPublicKey:  cloneBytes(cfg.JWT.AccessPublicKey),
		RefreshPublicKey: cloneBytes(cfg.JWT.RefreshPublicKey),
		Issuer:           cfg.JWT.Issuer,
		Leeway:           cfg.JWT.Leeway,
	})
	if err != nil {
		return nil, err
	}

	engine := &Engine{
		config:     cfg,
		userStore:  b.userStore,
		notifier:   b.notifier,
		providers:  b.providers,
		hasher:     hasher,
		jwtManager: jwtManager,
		policy: password.Policy{
			MinLength:     cfg.Policy.MinLength,
			RequireUpper:  cfg.Policy.RequireUpper,
			RequireLower:  cfg.Policy.RequireLower,
			RequireDigit:  cfg.Policy.RequireDigit,
			RequireSymbol: cfg.Policy.RequireSymbol,
			MinScore:      cfg.Policy.MinScore,
		},
		refreshStore: ledger.NewStore(b.redis, cfg.Refresh.RedisPrefix),
		onetimeStore: stores.NewOneTimeStore(b.redis, "aot"),
		rateLimiter: rate.New(b.redis, rate.Config{
			EnableLoginThrottle:   cfg.Security.EnableLoginThrottle,
			EnableIPThrottle:      cfg.Security.EnableIPThrottle,
			EnableRefreshThrottle: cfg.Security.EnableRefreshThrottle,
			EnableResetThrottle:   cfg.PasswordReset.EnableRequestLimiter,
			MaxLoginAttempts:      cfg.Security.MaxLoginAttempts,
			LoginCooldown:         cfg.Security.LoginCooldown,
			MaxRefreshAttempts:    cfg.Security.MaxRefreshAttempts,
			RefreshCooldown:       cfg.Security.RefreshCooldown,
			MaxResetRequests:      cfg.PasswordReset.MaxRequests,
			ResetRequestCooldown:  cfg.PasswordReset.RequestCooldown,
		}),
		audit: internalaudit.NewDispatcher(internalaudit.Config{
			Enabled:    cfg.Audit.Enabled,
			BufferSize: cfg.Audit.BufferSize,
			DropIfFull: cfg.Audit.DropIfFull,
		}, b.auditSink),
		metrics: NewMetrics(cfg.Metrics),
	}

	// Pre-hash a throwaway password so unknown-email logins burn the same
	// argon2 work as real verifications.
	dummy, err := hasher.Hash("authcore-timing-equalizer")
	if err != nil {
		return nil, err
	}
	engine.dummyHash = dummy

	b.built = true
	return engine, nil
}
