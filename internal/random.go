package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"

	"github.com/google/uuid"
)

// Opaque token handles combine a 16-byte record id with a 32-byte random
// secret. Only the sha256 of the secret is ever persisted; the handle itself
// is returned to the caller exactly once.
const (
	SecretSize    = 32
	handleRawSize = 16 + SecretSize
)

var ErrHandleMalformed = errors.New("malformed token handle")

// NewSecret returns a fresh 256-bit random secret.
func NewSecret() ([SecretSize]byte, error) {
	var secret [SecretSize]byte
	_, err := rand.Read(secret[:])
	return secret, err
}

// HashSecret derives the persisted lookup hash for a secret.
func HashSecret(secret [SecretSize]byte) [32]byte {
	return sha256.Sum256(secret[:])
}

// EncodeHandle packs a record id and its secret into the base64url form
// handed to clients.
func EncodeHandle(id uuid.UUID, secret [SecretSize]byte) string {
	var raw [handleRawSize]byte
	copy(raw[:16], id[:])
	copy(raw[16:], secret[:])
	return base64.RawURLEncoding.EncodeToString(raw[:])
}

// DecodeHandle splits a client-presented handle back into record id and
// secret. Malformed input returns [ErrHandleMalformed] without revealing
// which part failed.
func DecodeHandle(handle string) (uuid.UUID, [SecretSize]byte, error) {
	var secret [SecretSize]byte

	raw, err := base64.RawURLEncoding.DecodeString(handle)
	if err != nil {
		return uuid.Nil, secret, ErrHandleMalformed
	}
	if len(raw) != handleRawSize {
		return uuid.Nil, secret, ErrHandleMalformed
	}

	id, err := uuid.FromBytes(raw[:16])
	if err != nil {
		return uuid.Nil, secret, ErrHandleMalformed
	}
	copy(secret[:], raw[16:])

	return id, secret, nil
}
