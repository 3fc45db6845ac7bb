package jwt

import (
	"crypto/ed25519"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SigningMethod selects the signature scheme for both token purposes.
type SigningMethod string

const (
	// MethodEd25519 signs with Ed25519 key pairs.
	MethodEd25519 SigningMethod = "ed25519"
	// MethodHS256 signs with symmetric HMAC-SHA256 secrets.
	MethodHS256 SigningMethod = "hs256"
)

// Purpose discriminates the two token kinds. Every issued token carries its
// purpose as a claim and every parse states the purpose it expects.
type Purpose string

const (
	// PurposeAccess marks short-lived bearer tokens.
	PurposeAccess Purpose = "access"
	// PurposeRefresh marks rotation-tracked refresh tokens.
	PurposeRefresh Purpose = "refresh"
)

var (
	// ErrTokenInvalid is returned for malformed or mis-signed tokens.
	ErrTokenInvalid = errors.New("invalid token")
	// ErrTokenExpired is returned for structurally valid but expired tokens.
	ErrTokenExpired = errors.New("token expired")
	// ErrPurposeMismatch is returned when a token of one purpose is presented
	// where the other is expected.
	ErrPurposeMismatch = errors.New("token purpose mismatch")
)

// Config holds the signing material and lifetimes for both purposes.
// AccessKey and RefreshKey must differ: for hs256 they are the HMAC secrets,
// for ed25519 the private keys (raw 64-byte or PEM), with the corresponding
// public keys in AccessPublicKey/RefreshPublicKey.
type Config struct {
	AccessTTL        time.Duration
	RefreshTTL       time.Duration
	SigningMethod    SigningMethod
	AccessKey        []byte
	RefreshKey       []byte
	AccessPublicKey  []byte
	RefreshPublicKey []byte
	Issuer           string
	Leeway           time.Duration
	MaxFutureIAT     time.Duration
}

// Manager issues and verifies the engine's signed tokens. Stateless and safe
// for unbounded concurrent use.
type Manager struct {
	config Config
}

// Claims is the payload shape shared by both token purposes. RefreshHandle
// is only populated on refresh tokens and carries the opaque ledger handle.
type Claims struct {
	Email         string `json:"email,omitempty"`
	Role          string `json:"role,omitempty"`
	Purpose       string `json:"purpose"`
	RefreshHandle string `json:"rth,omitempty"`
	jwt.RegisteredClaims
}

// NewManager validates the configuration and returns a ready [Manager].
func NewManager(cfg Config) (*Manager, error) {
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	if cfg.MaxFutureIAT == 0 {
		cfg.MaxFutureIAT = 10 * time.Minute
	}
	if cfg.MaxFutureIAT < 0 || cfg.MaxFutureIAT > 24*time.Hour {
		return nil, errors.New("invalid MaxFutureIAT configuration")
	}

	switch cfg.SigningMethod {
	case MethodHS256:
		if len(cfg.AccessKey) == 0 || len(cfg.RefreshKey) == 0 {
			return nil, errors.New("hs256 requires access and refresh secrets")
		}
		if subtle.ConstantTimeCompare(cfg.AccessKey, cfg.RefreshKey) == 1 {
			return nil, errors.New("access and refresh secrets must differ")
		}
	case MethodEd25519:
		if _, err := parseEdPrivateKey(cfg.AccessKey); err != nil {
			return nil, fmt.Errorf("access key: %w", err)
		}
		if _, err := parseEdPrivateKey(cfg.RefreshKey); err != nil {
			return nil, fmt.Errorf("refresh key: %w", err)
		}
		if _, err := parseEdPublicKey(cfg.AccessPublicKey); err != nil {
			return nil, fmt.Errorf("access public key: %w", err)
		}
		if _, err := parseEdPublicKey(cfg.RefreshPublicKey); err != nil {
			return nil, fmt.Errorf("refresh public key: %w", err)
		}
		if subtle.ConstantTimeCompare(cfg.AccessKey, cfg.RefreshKey) == 1 {
			return nil, errors.New("access and refresh keys must differ")
		}
	default:
		return nil, errors.New("unsupported signing method")
	}

	return &Manager{config: cfg}, nil
}

// IssueAccess mints a short-lived access token for the subject.
func (m *Manager) IssueAccess(userID, email, role string) (string, error) {
	return m.sign(PurposeAccess, Claims{
		Email:   email,
		Role:    role,
		Purpose: string(PurposeAccess),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    m.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(m.config.AccessTTL)),
		},
	})
}

// IssueRefresh mints a refresh token around the opaque ledger handle. The
// handle's secret hash is what the ledger tracks; the JWT wrapper adds
// signature, expiry, and purpose checks before any ledger access.
func (m *Manager) IssueRefresh(userID, handle string) (string, error) {
	return m.sign(PurposeRefresh, Claims{
		Purpose:       string(PurposeRefresh),
		RefreshHandle: handle,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    m.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(m.config.RefreshTTL)),
		},
	})
}

// Parse verifies signature, expiry, and purpose, returning the claims only
// when all three hold. The expiry is re-checked explicitly after parsing in
// addition to the library's own validation.
func (m *Manager) Parse(tokenStr string, expected Purpose) (*Claims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{m.method().Alg()}),
		jwt.WithExpirationRequired(),
	}
	if m.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(m.config.Leeway))
	}
	if m.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(m.config.Issuer))
	}

	parser := jwt.NewParser(options...)
	token, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != m.method().Alg() {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}
		return m.verifyKey(expected)
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}
	// Purpose confusion is checked explicitly, never inferred from TTLs.
	if claims.Purpose != string(expected) {
		return nil, ErrPurposeMismatch
	}
	if claims.ExpiresAt == nil || !time.Now().Before(claims.ExpiresAt.Time.Add(m.config.Leeway)) {
		return nil, ErrTokenExpired
	}
	if claims.IssuedAt != nil && claims.IssuedAt.Time.After(time.Now().Add(m.config.MaxFutureIAT)) {
		return nil, ErrTokenInvalid
	}

	return claims, nil
}

func (m *Manager) sign(purpose Purpose, claims Claims) (string, error) {
	token := jwt.NewWithClaims(m.method(), claims)

	key, err := m.signKey(purpose)
	if err != nil {
		return "", err
	}
	return token.SignedString(key)
}

func (m *Manager) method() jwt.SigningMethod {
	if m.config.SigningMethod == MethodHS256 {
		return jwt.SigningMethodHS256
	}
	return jwt.SigningMethodEdDSA
}

func (m *Manager) signKey(purpose Purpose) (interface{}, error) {
	raw := m.config.AccessKey
	if purpose == PurposeRefresh {
		raw = m.config.RefreshKey
	}
	if m.config.SigningMethod == MethodHS256 {
		return raw, nil
	}
	return parseEdPrivateKey(raw)
}

func (m *Manager) verifyKey(purpose Purpose) (interface{}, error) {
	if m.config.SigningMethod == MethodHS256 {
		if purpose == PurposeRefresh {
			return m.config.RefreshKey, nil
		}
		return m.config.AccessKey, nil
	}
	raw := m.config.AccessPublicKey
	if purpose == PurposeRefresh {
		raw = m.config.RefreshPublicKey
	}
	return parseEdPublicKey(raw)
}

func parseEdPrivateKey(key []byte) (ed25519.PrivateKey, error) {
	if len(key) == ed25519.PrivateKeySize {
		return ed25519.PrivateKey(key), nil
	}
	parsed, err := jwt.ParseEdPrivateKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 private key")
	}
	edKey, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("invalid ed25519 private key type")
	}
	return edKey, nil
}

func parseEdPublicKey(key []byte) (ed25519.PublicKey, error) {
	if len(key) == ed25519.PublicKeySize {
		return ed25519.PublicKey(key), nil
	}
	parsed, err := jwt.ParseEdPublicKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 public key")
	}
	edKey, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("invalid ed25519 public key type")
	}
	return edKey, nil
}
