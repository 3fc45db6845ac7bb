package stores

import (
	"context"
	"crypto/subtle"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Purpose discriminates what a one-time token authorizes. A token issued for
// one purpose is never accepted for another.
type Purpose byte

const (
	// PurposeResetPassword authorizes a password reset.
	PurposeResetPassword Purpose = 1
	// PurposeVerifyEmail authorizes flipping the email-verified flag.
	PurposeVerifyEmail Purpose = 2
)

func (p Purpose) String() string {
	switch p {
	case PurposeResetPassword:
		return "reset_password"
	case PurposeVerifyEmail:
		return "verify_email"
	default:
		return "unknown"
	}
}

var (
	// ErrNotFound is returned for unknown or purpose-mismatched tokens.
	ErrNotFound = errors.New("one-time token not found")
	// ErrExpired is returned for tokens past their TTL.
	ErrExpired = errors.New("one-time token expired")
	// ErrAlreadyUsed is returned when a consumed token is presented again.
	ErrAlreadyUsed = errors.New("one-time token already used")
	// ErrSecretMismatch is returned when the presented secret does not hash
	// to the stored value.
	ErrSecretMismatch = errors.New("one-time token secret mismatch")
	// ErrUnavailable wraps Redis transport failures.
	ErrUnavailable = errors.New("one-time token store unavailable")
)

// Record is one single-use token entry.
//
// Wire layout, version 1:
//
//	[0]     version
//	[1]     purpose
//	[2]     consumed flag
//	[3:35]  secret hash (sha256)
//	[35:43] expires-at, unix seconds, big endian
//	[43]    owner length
//	[44:]   owner bytes
type Record struct {
	OwnerID    string
	SecretHash [32]byte
	Purpose    Purpose
	Consumed   bool
	ExpiresAt  int64
}

const (
	onetimeVersionV1 = 1

	offPurpose    = 1
	offConsumed   = 2
	offSecretHash = 3
	offExpiresAt  = 35
	offOwnerLen   = 43
	offOwner      = 44
)

// OneTimeStore is the Redis-backed single-use token ledger.
type OneTimeStore struct {
	redis  redis.UniversalClient
	prefix string
}

// NewOneTimeStore returns a store using the given key prefix ("aot" when
// empty).
func NewOneTimeStore(redisClient redis.UniversalClient, prefix string) *OneTimeStore {
	if prefix == "" {
		prefix = "aot"
	}
	return &OneTimeStore{redis: redisClient, prefix: prefix}
}

func (s *OneTimeStore) tokenKey(purpose Purpose, id string) string {
	return fmt.Sprintf("%s:t:%d:%s", s.prefix, purpose, id)
}

func (s *OneTimeStore) ownerKey(purpose Purpose, ownerID string) string {
	return fmt.Sprintf("%s:u:%d:%s", s.prefix, purpose, ownerID)
}

// Issue stores a new token record and invalidates any prior un-consumed
// token of the same purpose for the owner, keeping at most one live token
// per owner and purpose.
func (s *OneTimeStore) Issue(
	ctx context.Context,
	id uuid.UUID,
	ownerID string,
	purpose Purpose,
	secretHash [32]byte,
	ttl time.Duration,
) error {
	data, err := encodeOneTime(&Record{
		OwnerID:    ownerID,
		SecretHash: secretHash,
		Purpose:    purpose,
		ExpiresAt:  time.Now().Add(ttl).Unix(),
	})
	if err != nil {
		return err
	}

	ownerKey := s.ownerKey(purpose, ownerID)

	// Watch the owner pointer so two racing issues for the same owner and
	// purpose serialize: the loser re-reads the winner's pointer and deletes
	// that token, never leaving two live.
	const maxRetries = 4
	for i := 0; i < maxRetries; i++ {
		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			prior, err := tx.Get(ctx, ownerKey).Result()
			if err != nil && !errors.Is(err, redis.Nil) {
				return err
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				if prior != "" {
					pipe.Del(ctx, s.tokenKey(purpose, prior))
				}
				pipe.Set(ctx, s.tokenKey(purpose, id.String()), data, ttl)
				pipe.Set(ctx, ownerKey, id.String(), ttl)
				return nil
			})
			return err
		}, ownerKey)

		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return nil
	}

	return fmt.Errorf("%w: issue contention not resolved", ErrUnavailable)
}

// Validate is the read-only usability check: it verifies existence, purpose,
// expiry, consumed state, and the secret hash without consuming the token.
func (s *OneTimeStore) Validate(
	ctx context.Context,
	id uuid.UUID,
	purpose Purpose,
	providedHash [32]byte,
) (*Record, error) {
	data, err := s.redis.Get(ctx, s.tokenKey(purpose, id.String())).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	record, err := decodeOneTime(data)
	if err != nil {
		return nil, err
	}
	return record, checkOneTime(record, purpose, providedHash)
}

// Consume atomically validates the token and marks it consumed. Exactly one
// of any number of concurrent Consume calls for the same token succeeds; the
// rest observe [ErrAlreadyUsed]. The consumed record is retained under its
// remaining TTL.
func (s *OneTimeStore) Consume(
	ctx context.Context,
	id uuid.UUID,
	purpose Purpose,
	providedHash [32]byte,
) (*Record, error) {
	const maxRetries = 4
	key := s.tokenKey(purpose, id.String())

	for i := 0; i < maxRetries; i++ {
		var matched *Record

		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				return err
			}

			record, err := decodeOneTime(data)
			if err != nil {
				return err
			}
			if err := checkOneTime(record, purpose, providedHash); err != nil {
				return err
			}

			ttl := time.Until(time.Unix(record.ExpiresAt, 0))
			if ttl <= 0 {
				return ErrExpired
			}

			data[offConsumed] = 1
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, data, ttl)
				return nil
			})
			if err != nil {
				return err
			}

			record.Consumed = true
			matched = record
			return nil
		}, key)

		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			switch {
			case errors.Is(err, redis.Nil):
				return nil, ErrNotFound
			case errors.Is(err, ErrNotFound),
				errors.Is(err, ErrExpired),
				errors.Is(err, ErrAlreadyUsed),
				errors.Is(err, ErrSecretMismatch):
				return nil, err
			default:
				return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
			}
		}
		return matched, nil
	}

	return nil, ErrAlreadyUsed
}

// Restore re-arms a just-consumed token. Called when the mutation the
// consumption authorized failed downstream, so the token is not burned on an
// unrelated failure.
func (s *OneTimeStore) Restore(ctx context.Context, id uuid.UUID, purpose Purpose) error {
	key := s.tokenKey(purpose, id.String())

	exists, err := s.redis.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if exists == 0 {
		return nil
	}
	if err := s.redis.SetRange(ctx, key, offConsumed, "\x00").Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func checkOneTime(record *Record, purpose Purpose, providedHash [32]byte) error {
	if record.Purpose != purpose {
		return ErrNotFound
	}
	if time.Now().Unix() >= record.ExpiresAt {
		return ErrExpired
	}
	if record.Consumed {
		return ErrAlreadyUsed
	}
	if subtle.ConstantTimeCompare(record.SecretHash[:], providedHash[:]) != 1 {
		return ErrSecretMismatch
	}
	return nil
}

func encodeOneTime(r *Record) ([]byte, error) {
	if len(r.OwnerID) == 0 || len(r.OwnerID) > 255 {
		return nil, errors.New("invalid owner id length")
	}

	buf := make([]byte, offOwner+len(r.OwnerID))
	buf[0] = onetimeVersionV1
	buf[offPurpose] = byte(r.Purpose)
	if r.Consumed {
		buf[offConsumed] = 1
	}
	copy(buf[offSecretHash:], r.SecretHash[:])
	binary.BigEndian.PutUint64(buf[offExpiresAt:], uint64(r.ExpiresAt))
	buf[offOwnerLen] = byte(len(r.OwnerID))
	copy(buf[offOwner:], r.OwnerID)

	return buf, nil
}

func decodeOneTime(data []byte) (*Record, error) {
	if len(data) < offOwner+1 {
		return nil, errors.New("record too short")
	}
	if data[0] != onetimeVersionV1 {
		return nil, errors.New("invalid record version")
	}

	ownerLen := int(data[offOwnerLen])
	if len(data) != offOwner+ownerLen {
		return nil, errors.New("record length mismatch")
	}

	r := &Record{
		Purpose:   Purpose(data[offPurpose]),
		Consumed:  data[offConsumed] != 0,
		ExpiresAt: int64(binary.BigEndian.Uint64(data[offExpiresAt:])),
		OwnerID:   string(data[offOwner : offOwner+ownerLen]),
	}
	copy(r.SecretHash[:], data[offSecretHash:offExpiresAt])

	return r, nil
}
