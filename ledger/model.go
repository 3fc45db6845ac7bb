package ledger

import "github.com/google/uuid"

// Record is one refresh-token ledger entry. The raw handle secret is never
// stored; TokenHash is its sha256. Revocation is one-way: no record
// transitions back to active.
type Record struct {
	ID        uuid.UUID
	OwnerID   string
	TokenHash [32]byte
	IssuedAt  int64
	ExpiresAt int64
	Revoked   bool
}
