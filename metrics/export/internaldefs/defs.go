package internaldefs

import (
	authcore "github.com/coursehub/authcore"
)

// CounterDef binds a [authcore.MetricID] to the stable exported metric name
// and help text shared by all exporter implementations.
//
// CounterDef instances are intended to be configured during initialization
// and then treated as immutable.
type CounterDef struct {
	ID   authcore.MetricID
	Name string
	Help string
}

// CounterDefs lists every engine counter with its exported name. Exporters
// iterate this slice so that all backends agree on names.
var CounterDefs = []CounterDef{
	{ID: authcore.MetricLoginSuccess, Name: "authcore_login_success_total", Help: "Successful login attempts."},
	{ID: authcore.MetricLoginFailure, Name: "authcore_login_failure_total", Help: "Failed login attempts."},
	{ID: authcore.MetricLoginRateLimited, Name: "authcore_login_rate_limited_total", Help: "Rate-limited login attempts."},
	{ID: authcore.MetricRegisterSuccess, Name: "authcore_register_success_total", Help: "Successful registrations."},
	{ID: authcore.MetricRegisterFailure, Name: "authcore_register_failure_total", Help: "Failed registration attempts."},
	{ID: authcore.MetricRefreshSuccess, Name: "authcore_refresh_success_total", Help: "Successful refresh rotations."},
	{ID: authcore.MetricRefreshFailure, Name: "authcore_refresh_failure_total", Help: "Failed refresh attempts."},
	{ID: authcore.MetricRefreshReuseDetected, Name: "authcore_refresh_reuse_detected_total", Help: "Detected refresh token reuses."},
	{ID: authcore.MetricTokensRevoked, Name: "authcore_tokens_revoked_total", Help: "Refresh records revoked."},
	{ID: authcore.MetricPasswordChanged, Name: "authcore_password_changed_total", Help: "Completed password changes."},
	{ID: authcore.MetricResetRequested, Name: "authcore_reset_requested_total", Help: "Issued password-reset tokens."},
	{ID: authcore.MetricResetConfirmed, Name: "authcore_reset_confirmed_total", Help: "Consumed password-reset tokens."},
	{ID: authcore.MetricVerificationRequested, Name: "authcore_verification_requested_total", Help: "Issued email verification tokens."},
	{ID: authcore.MetricVerificationConfirmed, Name: "authcore_verification_confirmed_total", Help: "Consumed email verification tokens."},
	{ID: authcore.MetricStorageErrors, Name: "authcore_storage_errors_total", Help: "Storage-unavailable failures."},
}
