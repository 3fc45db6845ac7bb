package authcore

import (
	"context"
	"errors"
	"sync"
	"testing"
)

func TestMetricsNilSafe(t *testing.T) {
	var m *Metrics
	m.Inc(MetricLoginSuccess)

	snap := m.Snapshot()
	if len(snap.Counters) != 0 {
		t.Fatalf("nil metrics should snapshot empty, got %d entries", len(snap.Counters))
	}
}

func TestMetricsDisabledReturnsNil(t *testing.T) {
	if m := NewMetrics(MetricsConfig{Enabled: false}); m != nil {
		t.Fatal("expected nil metrics when disabled")
	}
}

func TestMetricsConcurrentInc(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				m.Inc(MetricLoginSuccess)
			}
		}()
	}
	wg.Wait()

	if got := m.Snapshot().Counters[MetricLoginSuccess]; got != 1600 {
		t.Fatalf("expected 1600, got %d", got)
	}
}

func TestEngineCountsLoginOutcomes(t *testing.T) {
	_, rdb := newTestRedis(t)
	store := newMockUserStore()
	user := seedUser(t, store, "alice@example.com", strongPassword)
	engine := newTestEngine(t, rdb, store, nil, nil)

	ctx := context.Background()
	if _, err := engine.Login(ctx, user.Email, strongPassword); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if _, err := engine.Login(ctx, user.Email, "Wr0ng!Guess#42x"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}

	snap := engine.MetricsSnapshot()
	if snap.Counters[MetricLoginSuccess] != 1 {
		t.Fatalf("expected 1 login success, got %d", snap.Counters[MetricLoginSuccess])
	}
	if snap.Counters[MetricLoginFailure] != 1 {
		t.Fatalf("expected 1 login failure, got %d", snap.Counters[MetricLoginFailure])
	}
}

func TestEngineCountsReuseDetection(t *testing.T) {
	_, rdb := newTestRedis(t)
	store := newMockUserStore()
	user := seedUser(t, store, "alice@example.com", strongPassword)
	engine := newTestEngine(t, rdb, store, nil, nil)

	ctx := context.Background()
	login, err := engine.Login(ctx, user.Email, strongPassword)
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if _, err := engine.Refresh(ctx, login.RefreshToken); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if _, err := engine.Refresh(ctx, login.RefreshToken); !errors.Is(err, ErrRefreshReuse) {
		t.Fatalf("expected ErrRefreshReuse, got %v", err)
	}

	snap := engine.MetricsSnapshot()
	if snap.Counters[MetricRefreshReuseDetected] != 1 {
		t.Fatalf("expected 1 reuse detection, got %d", snap.Counters[MetricRefreshReuseDetected])
	}
}
