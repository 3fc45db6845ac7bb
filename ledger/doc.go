// Package ledger is the persisted refresh-token ledger. Each issued refresh
// handle is tracked as a record keyed by id, holding the sha256 of the
// handle secret, the owner, the expiry, and a one-way revoked flag.
//
// Rotation is a single Lua script with a conditional update on the revoked
// flag, so two concurrent rotations of the same handle resolve to exactly
// one winner. Revoked records are retained (not deleted) until their natural
// expiry so replay of a rotated-out handle is distinguishable from garbage
// and can trigger the reuse lockout.
package ledger
