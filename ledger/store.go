package ledger

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	// ErrNotFound is returned when no record exists for the presented handle.
	ErrNotFound = errors.New("refresh record not found")
	// ErrExpired is returned when the record exists but is past expiry.
	ErrExpired = errors.New("refresh record expired")
	// ErrHashMismatch is returned when the presented secret does not match
	// the stored hash.
	ErrHashMismatch = errors.New("refresh hash mismatch")
	// ErrReused is returned when the presented handle matches an
	// already-revoked record, the signature of a rotated-out token replay.
	ErrReused = errors.New("refresh record already revoked")
	// ErrUnavailable wraps Redis transport failures.
	ErrUnavailable = errors.New("refresh ledger unavailable")
)

const (
	rotateStatusNotFound int64 = 0
	rotateStatusExpired  int64 = 1
	rotateStatusMismatch int64 = 2
	rotateStatusReused   int64 = 3
	rotateStatusRotated  int64 = 4
)

// rotateScript performs the whole rotation as one atomic step: precondition
// checks against the stored record, in-place revocation of the old record
// (TTL preserved, record retained), and insertion of the successor. Offsets
// follow the version-1 record layout in encoder.go (Lua strings are 1-based).
const rotateScript = `
local function read_be64(s, i)
  local v = 0
  for k = 0, 7 do
    local b = string.byte(s, i + k)
    if not b then
      return nil
    end
    v = v * 256 + b
  end
  return v
end

local data = redis.call("GET", KEYS[1])
if not data then
  return {0}
end

local owner_len = string.byte(data, 51)
if not owner_len then
  return {0}
end
local owner = string.sub(data, 52, 51 + owner_len)

if string.byte(data, 2) ~= 0 then
  return {3, owner}
end

local expires_at = read_be64(data, 43)
if not expires_at or expires_at <= tonumber(ARGV[3]) then
  return {1, owner}
end

if string.sub(data, 3, 34) ~= ARGV[1] then
  return {2, owner}
end

redis.call("SETRANGE", KEYS[1], 1, string.char(1))

local successor = ARGV[2] .. string.sub(data, 51)
redis.call("SET", KEYS[2], successor, "PX", ARGV[4])

local owner_key = ARGV[6] .. owner
redis.call("SADD", owner_key, ARGV[5])
redis.call("PEXPIRE", owner_key, ARGV[7])

return {4, owner}
`

// revokeAllScript flips the revoked flag on every existing, still-active
// record key in KEYS. Records are patched in place so they are retained for
// reuse detection until natural expiry. Keys are declared up front per the
// Redis scripting contract.
const revokeAllScript = `
local revoked = 0
for i = 1, #KEYS do
  if redis.call("EXISTS", KEYS[i]) == 1 then
    if redis.call("GETRANGE", KEYS[i], 1, 1) == string.char(0) then
      redis.call("SETRANGE", KEYS[i], 1, string.char(1))
      revoked = revoked + 1
    end
  end
end
return revoked
`

var (
	rotateLua    = redis.NewScript(rotateScript)
	revokeAllLua = redis.NewScript(revokeAllScript)
)

// Store is the Redis-backed refresh-token ledger.
type Store struct {
	redis  redis.UniversalClient
	prefix string
}

// NewStore returns a ledger [Store] using the given key prefix
// ("art" when empty).
func NewStore(redisClient redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = "art"
	}
	return &Store{redis: redisClient, prefix: prefix}
}

func (s *Store) recordKey(id string) string {
	return s.prefix + ":r:" + id
}

func (s *Store) ownerKeyPrefix() string {
	return s.prefix + ":o:"
}

func (s *Store) ownerKey(ownerID string) string {
	return s.ownerKeyPrefix() + ownerID
}

// Issue persists a new active record under the given id. Only the secret
// hash is stored; the caller keeps the raw handle.
func (s *Store) Issue(ctx context.Context, id uuid.UUID, ownerID string, tokenHash [32]byte, ttl time.Duration) error {
	now := time.Now()
	data, err := encodeRecord(&Record{
		ID:        id,
		OwnerID:   ownerID,
		TokenHash: tokenHash,
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(ttl).Unix(),
	})
	if err != nil {
		return err
	}

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.recordKey(id.String()), data, ttl)
		pipe.SAdd(ctx, s.ownerKey(ownerID), id.String())
		pipe.PExpire(ctx, s.ownerKey(ownerID), ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Rotate validates the presented hash against the record and, if it is the
// active record, atomically revokes it and inserts the successor. Exactly
// one of two concurrent rotations with the same handle succeeds. The owner
// id is returned on every decided outcome so the caller can run the reuse
// lockout.
func (s *Store) Rotate(
	ctx context.Context,
	id uuid.UUID,
	providedHash [32]byte,
	nextID uuid.UUID,
	nextHash [32]byte,
	ttl time.Duration,
) (string, error) {
	now := time.Now()
	head := make([]byte, offOwnerLen)
	head[0] = recordVersionV1
	copy(head[offTokenHash:], nextHash[:])
	binary.BigEndian.PutUint64(head[offIssuedAt:], uint64(now.Unix()))
	binary.BigEndian.PutUint64(head[offExpiresAt:], uint64(now.Add(ttl).Unix()))

	res, err := rotateLua.Run(ctx, s.redis,
		[]string{s.recordKey(id.String()), s.recordKey(nextID.String())},
		string(providedHash[:]),
		string(head),
		now.Unix(),
		ttl.Milliseconds(),
		nextID.String(),
		s.ownerKeyPrefix(),
		ttl.Milliseconds(),
	).Slice()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	status, owner := rotateResult(res)
	switch status {
	case rotateStatusRotated:
		return owner, nil
	case rotateStatusReused:
		return owner, ErrReused
	case rotateStatusMismatch:
		return owner, ErrHashMismatch
	case rotateStatusExpired:
		return owner, ErrExpired
	default:
		return "", ErrNotFound
	}
}

func rotateResult(res []interface{}) (int64, string) {
	if len(res) == 0 {
		return rotateStatusNotFound, ""
	}
	status, _ := res[0].(int64)
	owner := ""
	if len(res) > 1 {
		owner, _ = res[1].(string)
	}
	return status, owner
}

// Get fetches and decodes a record. Expired records still present in Redis
// are reported as [ErrExpired].
func (s *Store) Get(ctx context.Context, id uuid.UUID) (*Record, error) {
	data, err := s.redis.Get(ctx, s.recordKey(id.String())).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	rec, err := decodeRecord(data)
	if err != nil {
		return nil, err
	}
	rec.ID = id
	if rec.ExpiresAt <= time.Now().Unix() {
		return rec, ErrExpired
	}
	return rec, nil
}

// Revoke marks a single record revoked. Missing records are a no-op.
func (s *Store) Revoke(ctx context.Context, id uuid.UUID) error {
	_, err := revokeAllLua.Run(ctx, s.redis, []string{s.recordKey(id.String())}).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// RevokeAll marks every still-active record for the owner revoked and
// returns how many flipped. Used on logout-all, password change, and reuse
// lockout.
func (s *Store) RevokeAll(ctx context.Context, ownerID string) (int, error) {
	ids, err := s.redis.SMembers(ctx, s.ownerKey(ownerID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.recordKey(id)
	}

	revoked, err := revokeAllLua.Run(ctx, s.redis, keys).Int64()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return int(revoked), nil
}

// ActiveCount reports how many of the owner's indexed records are present
// and not revoked.
func (s *Store) ActiveCount(ctx context.Context, ownerID string) (int, error) {
	ids, err := s.redis.SMembers(ctx, s.ownerKey(ownerID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	pipe := s.redis.Pipeline()
	cmds := make([]*redis.StringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.GetRange(ctx, s.recordKey(id), offRevoked, offRevoked)
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	active := 0
	for _, cmd := range cmds {
		if flag, cmdErr := cmd.Result(); cmdErr == nil && flag == "\x00" {
			active++
		}
	}
	return active, nil
}

// Sweep prunes owner-index members whose records have expired out of Redis.
// Advisory housekeeping only: expiry is always re-checked live, so skipping
// or cancelling the sweep never affects correctness.
func (s *Store) Sweep(ctx context.Context) (int, error) {
	var (
		cursor uint64
		pruned int
	)

	for {
		keys, next, err := s.redis.Scan(ctx, cursor, s.ownerKeyPrefix()+"*", 64).Result()
		if err != nil {
			return pruned, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}

		for _, ownerKey := range keys {
			ids, err := s.redis.SMembers(ctx, ownerKey).Result()
			if err != nil {
				if errors.Is(err, redis.Nil) {
					continue
				}
				return pruned, fmt.Errorf("%w: %v", ErrUnavailable, err)
			}
			for _, id := range ids {
				exists, err := s.redis.Exists(ctx, s.recordKey(id)).Result()
				if err != nil {
					return pruned, fmt.Errorf("%w: %v", ErrUnavailable, err)
				}
				if exists == 0 {
					if err := s.redis.SRem(ctx, ownerKey, id).Err(); err != nil {
						return pruned, fmt.Errorf("%w: %v", ErrUnavailable, err)
					}
					pruned++
				}
			}
		}

		cursor = next
		if cursor == 0 {
			return pruned, nil
		}
	}
}
