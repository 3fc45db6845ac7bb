// Package authcore provides an authentication and token-lifecycle engine with
// JWT access tokens, ledgered rotating refresh tokens, and single-use reset
// and verification tokens, backed by Redis.
//
// The package is designed for concurrent server workloads: Engine methods are
// safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// authcore is the public surface. It exposes [Engine], [Builder], [Config],
// and value types (TokenPair, LoginResult, MetricsSnapshot, etc.). Storage
// encodings, rate limiting, and audit dispatch live under internal/ and are
// never exported. The jwt, password, and ledger sub-packages are usable on
// their own.
//
// # Token model
//
// Access tokens are self-contained JWTs validated locally. Refresh tokens are
// JWTs that wrap an opaque ledger handle; every refresh rotates the handle
// atomically, exactly one concurrent caller wins, and presenting a rotated-out
// handle revokes the owner's entire refresh lineage. Reset and verification
// tokens are single-use handles whose raw secret is never persisted.
//
// # What this package must NOT do
//
//   - Expose Redis clients, internal stores, or encoding details in its
//     public API.
//   - Reveal through any response or timing difference whether an email is
//     registered.
//   - Perform I/O outside of Engine methods (construction via Builder is
//     allocation-only until Build).
package authcore
