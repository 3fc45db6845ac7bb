package jwt

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"testing"
	"time"
)

func testConfig() Config {
	return Config{
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    24 * time.Hour,
		SigningMethod: MethodHS256,
		AccessKey:     []byte("access-secret-0123456789abcdef00"),
		RefreshKey:    []byte("refresh-secret-0123456789abcdef0"),
		Issuer:        "authcore-test",
	}
}

func newTestManager(t *testing.T, cfg Config) *Manager {
	t.Helper()

	m, err := NewManager(cfg)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	return m
}

func TestIssueAndParseAccess(t *testing.T) {
	m := newTestManager(t, testConfig())

	token, err := m.IssueAccess("u1", "alice@example.com", "member")
	if err != nil {
		t.Fatalf("IssueAccess failed: %v", err)
	}

	claims, err := m.Parse(token, PurposeAccess)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if claims.Subject != "u1" || claims.Email != "alice@example.com" || claims.Role != "member" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if claims.Purpose != string(PurposeAccess) {
		t.Fatalf("unexpected purpose %q", claims.Purpose)
	}
}

func TestIssueAndParseRefreshCarriesHandle(t *testing.T) {
	m := newTestManager(t, testConfig())

	token, err := m.IssueRefresh("u1", "opaque-ledger-handle")
	if err != nil {
		t.Fatalf("IssueRefresh failed: %v", err)
	}

	claims, err := m.Parse(token, PurposeRefresh)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if claims.RefreshHandle != "opaque-ledger-handle" {
		t.Fatalf("handle not carried: %+v", claims)
	}
}

// A token of one purpose is never accepted where the other is expected,
// even though the signature may be checked against the other key first.
func TestParsePurposeConfusionRejected(t *testing.T) {
	m := newTestManager(t, testConfig())

	access, err := m.IssueAccess("u1", "alice@example.com", "member")
	if err != nil {
		t.Fatalf("IssueAccess failed: %v", err)
	}
	refresh, err := m.IssueRefresh("u1", "handle")
	if err != nil {
		t.Fatalf("IssueRefresh failed: %v", err)
	}

	if _, err := m.Parse(access, PurposeRefresh); err == nil {
		t.Fatal("access token accepted as refresh")
	}
	if _, err := m.Parse(refresh, PurposeAccess); err == nil {
		t.Fatal("refresh token accepted as access")
	}
}

func TestParseRejectsForeignSignature(t *testing.T) {
	m := newTestManager(t, testConfig())

	other := testConfig()
	other.AccessKey = []byte("different-access-secret-01234567")
	foreign := newTestManager(t, other)

	token, err := foreign.IssueAccess("u1", "alice@example.com", "member")
	if err != nil {
		t.Fatalf("IssueAccess failed: %v", err)
	}

	if _, err := m.Parse(token, PurposeAccess); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestParseExpiredToken(t *testing.T) {
	cfg := testConfig()
	cfg.AccessTTL = time.Millisecond
	cfg.Leeway = 0
	m := newTestManager(t, cfg)

	token, err := m.IssueAccess("u1", "alice@example.com", "member")
	if err != nil {
		t.Fatalf("IssueAccess failed: %v", err)
	}

	time.Sleep(20 * time.Millisecond)
	if _, err := m.Parse(token, PurposeAccess); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestParseGarbage(t *testing.T) {
	m := newTestManager(t, testConfig())

	for _, token := range []string{"", "garbage", "a.b.c"} {
		if _, err := m.Parse(token, PurposeAccess); !errors.Is(err, ErrTokenInvalid) {
			t.Fatalf("token %q: expected ErrTokenInvalid, got %v", token, err)
		}
	}
}

func TestNewManagerRejectsSharedKeys(t *testing.T) {
	cfg := testConfig()
	cfg.RefreshKey = cfg.AccessKey

	if _, err := NewManager(cfg); err == nil {
		t.Fatal("expected rejection of shared signing keys")
	}
}

func TestNewManagerRejectsBadConfig(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero access TTL", func(c *Config) { c.AccessTTL = 0 }},
		{"zero refresh TTL", func(c *Config) { c.RefreshTTL = 0 }},
		{"excessive leeway", func(c *Config) { c.Leeway = time.Hour }},
		{"unknown method", func(c *Config) { c.SigningMethod = "rs256" }},
		{"missing secret", func(c *Config) { c.AccessKey = nil }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testConfig()
			tc.mutate(&cfg)
			if _, err := NewManager(cfg); err == nil {
				t.Fatal("expected config rejection")
			}
		})
	}
}

func TestEd25519RoundTrip(t *testing.T) {
	accessPub, accessPriv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey failed: %v", err)
	}
	refreshPub, refreshPriv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey failed: %v", err)
	}

	cfg := testConfig()
	cfg.SigningMethod = MethodEd25519
	cfg.AccessKey = accessPriv
	cfg.RefreshKey = refreshPriv
	cfg.AccessPublicKey = accessPub
	cfg.RefreshPublicKey = refreshPub
	m := newTestManager(t, cfg)

	token, err := m.IssueAccess("u1", "alice@example.com", "member")
	if err != nil {
		t.Fatalf("IssueAccess failed: %v", err)
	}
	claims, err := m.Parse(token, PurposeAccess)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if claims.Subject != "u1" {
		t.Fatalf("unexpected subject %q", claims.Subject)
	}
}
