// Package jwt wraps github.com/golang-jwt/jwt/v5 behind a Manager that signs
// and verifies the engine's access and refresh tokens.
//
// The two token purposes are signed with distinct keys and carry an explicit
// "purpose" claim that is checked on every parse, so a leaked refresh key
// cannot forge access tokens and a refresh token is never accepted where an
// access token is expected. Expiry is enforced by the parser and re-checked
// explicitly after claim extraction.
package jwt
