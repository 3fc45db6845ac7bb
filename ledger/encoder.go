package ledger

import (
	"encoding/binary"
	"errors"
)

// Record wire layout, version 1. Fixed offsets so the rotation script can
// read and patch fields in place:
//
//	[0]      version
//	[1]      revoked flag
//	[2:34]   token hash (sha256)
//	[34:42]  issued-at, unix seconds, big endian
//	[42:50]  expires-at, unix seconds, big endian
//	[50]     owner length
//	[51:]    owner bytes
const (
	recordVersionV1 = 1

	offRevoked   = 1
	offTokenHash = 2
	offIssuedAt  = 34
	offExpiresAt = 42
	offOwnerLen  = 50
	offOwner     = 51
)

func encodeRecord(r *Record) ([]byte, error) {
	if len(r.OwnerID) == 0 || len(r.OwnerID) > 255 {
		return nil, errors.New("invalid owner id length")
	}

	buf := make([]byte, offOwner+len(r.OwnerID))
	buf[0] = recordVersionV1
	if r.Revoked {
		buf[offRevoked] = 1
	}
	copy(buf[offTokenHash:], r.TokenHash[:])
	binary.BigEndian.PutUint64(buf[offIssuedAt:], uint64(r.IssuedAt))
	binary.BigEndian.PutUint64(buf[offExpiresAt:], uint64(r.ExpiresAt))
	buf[offOwnerLen] = byte(len(r.OwnerID))
	copy(buf[offOwner:], r.OwnerID)

	return buf, nil
}

func decodeRecord(data []byte) (*Record, error) {
	if len(data) < offOwner+1 {
		return nil, errors.New("record too short")
	}
	if data[0] != recordVersionV1 {
		return nil, errors.New("invalid record version")
	}

	ownerLen := int(data[offOwnerLen])
	if len(data) != offOwner+ownerLen {
		return nil, errors.New("record length mismatch")
	}

	r := &Record{
		Revoked:   data[offRevoked] != 0,
		IssuedAt:  int64(binary.BigEndian.Uint64(data[offIssuedAt:])),
		ExpiresAt: int64(binary.BigEndian.Uint64(data[offExpiresAt:])),
		OwnerID:   string(data[offOwner : offOwner+ownerLen]),
	}
	copy(r.TokenHash[:], data[offTokenHash:offIssuedAt])

	return r, nil
}
