// Package stores holds the single-use token ledger backing password reset
// and email verification. Records are keyed by an opaque random id, carry
// only the sha256 of the token secret, and are consumed at most once via an
// optimistic WATCH transaction. Consumed records are retained until expiry
// so replays are reported distinctly from unknown tokens.
package stores
