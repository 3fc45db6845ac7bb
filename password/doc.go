// Package password provides the argon2id credential hasher and the password
// policy evaluator used by the authentication engine.
//
// Hashes use the standard PHC string format
// ($argon2id$v=19$m=...,t=...,p=...$salt$hash) and verification is
// constant-time. The policy evaluator is pure and reports every violated
// rule in one pass together with an entropy-derived strength score.
package password
