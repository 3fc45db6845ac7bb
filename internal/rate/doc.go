// Package rate enforces fixed-window attempt budgets for login, refresh,
// and password-reset requests using Redis counters. This guards credential
// guessing at the engine level; transport-layer rate limiting is the
// caller's concern.
package rate
