package authcore

import "sync/atomic"

// MetricID identifies one engine counter.
type MetricID uint16

const (
	// MetricLoginSuccess counts successful logins.
	MetricLoginSuccess MetricID = iota
	// MetricLoginFailure counts failed logins.
	MetricLoginFailure
	// MetricLoginRateLimited counts logins rejected by the throttle.
	MetricLoginRateLimited
	// MetricRegisterSuccess counts successful registrations.
	MetricRegisterSuccess
	// MetricRegisterFailure counts failed registrations.
	MetricRegisterFailure
	// MetricRefreshSuccess counts successful refresh rotations.
	MetricRefreshSuccess
	// MetricRefreshFailure counts failed refresh attempts.
	MetricRefreshFailure
	// MetricRefreshReuseDetected counts rotated-out token replays.
	MetricRefreshReuseDetected
	// MetricTokensRevoked counts refresh records revoked by logout,
	// password change, and reuse lockout.
	MetricTokensRevoked
	// MetricPasswordChanged counts completed password changes.
	MetricPasswordChanged
	// MetricResetRequested counts issued password-reset tokens.
	MetricResetRequested
	// MetricResetConfirmed counts consumed password-reset tokens.
	MetricResetConfirmed
	// MetricVerificationRequested counts issued verification tokens.
	MetricVerificationRequested
	// MetricVerificationConfirmed counts consumed verification tokens.
	MetricVerificationConfirmed
	// MetricStorageErrors counts storage-unavailable failures.
	MetricStorageErrors

	metricCount
)

// Metrics is a fixed set of lock-free counters. A nil *Metrics is valid and
// counts nothing.
type Metrics struct {
	counters [metricCount]atomic.Uint64
}

// MetricsSnapshot is a point-in-time copy of all counters.
type MetricsSnapshot struct {
	Counters map[MetricID]uint64
}

// NewMetrics returns a counter set, or nil when disabled.
func NewMetrics(cfg MetricsConfig) *Metrics {
	if !cfg.Enabled {
		return nil
	}
	return &Metrics{}
}

// Inc increments a counter.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || id >= metricCount {
		return
	}
	m.counters[id].Add(1)
}

// Snapshot copies all counters.
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{Counters: make(map[MetricID]uint64, metricCount)}
	if m == nil {
		return snap
	}
	for id := MetricID(0); id < metricCount; id++ {
		snap.Counters[id] = m.counters[id].Load()
	}
	return snap
}
