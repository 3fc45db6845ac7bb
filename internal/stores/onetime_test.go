package stores

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

func newTestStore(t *testing.T) (*miniredis.Miniredis, *OneTimeStore) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return mr, NewOneTimeStore(client, "aot")
}

func hashOf(s string) [32]byte {
	return sha256.Sum256([]byte(s))
}

func TestIssueValidateConsume(t *testing.T) {
	_, store := newTestStore(t)
	ctx := context.Background()

	id := uuid.New()
	if err := store.Issue(ctx, id, "u1", PurposeResetPassword, hashOf("secret"), time.Hour); err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	rec, err := store.Validate(ctx, id, PurposeResetPassword, hashOf("secret"))
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if rec.OwnerID != "u1" || rec.Consumed {
		t.Fatalf("unexpected record: %+v", rec)
	}

	// Validate does not consume: a second probe still passes.
	if _, err := store.Validate(ctx, id, PurposeResetPassword, hashOf("secret")); err != nil {
		t.Fatalf("second Validate failed: %v", err)
	}

	rec, err = store.Consume(ctx, id, PurposeResetPassword, hashOf("secret"))
	if err != nil {
		t.Fatalf("Consume failed: %v", err)
	}
	if !rec.Consumed {
		t.Fatal("consumed record not flagged")
	}

	if _, err := store.Consume(ctx, id, PurposeResetPassword, hashOf("secret")); !errors.Is(err, ErrAlreadyUsed) {
		t.Fatalf("expected ErrAlreadyUsed, got %v", err)
	}
}

func TestConsumeWrongSecret(t *testing.T) {
	_, store := newTestStore(t)
	ctx := context.Background()

	id := uuid.New()
	if err := store.Issue(ctx, id, "u1", PurposeResetPassword, hashOf("secret"), time.Hour); err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	if _, err := store.Consume(ctx, id, PurposeResetPassword, hashOf("wrong")); !errors.Is(err, ErrSecretMismatch) {
		t.Fatalf("expected ErrSecretMismatch, got %v", err)
	}
	// The failed attempt must not burn the token.
	if _, err := store.Consume(ctx, id, PurposeResetPassword, hashOf("secret")); err != nil {
		t.Fatalf("Consume after mismatch failed: %v", err)
	}
}

func TestPurposeMismatchLooksLikeMissing(t *testing.T) {
	_, store := newTestStore(t)
	ctx := context.Background()

	id := uuid.New()
	if err := store.Issue(ctx, id, "u1", PurposeVerifyEmail, hashOf("secret"), time.Hour); err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	if _, err := store.Validate(ctx, id, PurposeResetPassword, hashOf("secret")); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestIssueReplacesPriorToken(t *testing.T) {
	_, store := newTestStore(t)
	ctx := context.Background()

	first := uuid.New()
	second := uuid.New()
	if err := store.Issue(ctx, first, "u1", PurposeResetPassword, hashOf("one"), time.Hour); err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if err := store.Issue(ctx, second, "u1", PurposeResetPassword, hashOf("two"), time.Hour); err != nil {
		t.Fatalf("second Issue failed: %v", err)
	}

	if _, err := store.Validate(ctx, first, PurposeResetPassword, hashOf("one")); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected first token gone, got %v", err)
	}
	if _, err := store.Consume(ctx, second, PurposeResetPassword, hashOf("two")); err != nil {
		t.Fatalf("Consume of replacement failed: %v", err)
	}
}

// Tokens of different purposes for the same owner never displace each other.
func TestIssueKeepsOtherPurposeAlive(t *testing.T) {
	_, store := newTestStore(t)
	ctx := context.Background()

	reset := uuid.New()
	verify := uuid.New()
	if err := store.Issue(ctx, reset, "u1", PurposeResetPassword, hashOf("reset"), time.Hour); err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if err := store.Issue(ctx, verify, "u1", PurposeVerifyEmail, hashOf("verify"), time.Hour); err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	if _, err := store.Validate(ctx, reset, PurposeResetPassword, hashOf("reset")); err != nil {
		t.Fatalf("reset token displaced: %v", err)
	}
	if _, err := store.Validate(ctx, verify, PurposeVerifyEmail, hashOf("verify")); err != nil {
		t.Fatalf("verify token displaced: %v", err)
	}
}

func TestConcurrentIssueLeavesOneLiveToken(t *testing.T) {
	_, store := newTestStore(t)
	ctx := context.Background()

	const racers = 4
	ids := make([]uuid.UUID, racers)
	for i := range ids {
		ids[i] = uuid.New()
	}

	var wg sync.WaitGroup
	issued := make([]bool, racers)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			secret := hashOf(fmt.Sprintf("secret-%d", i))
			if err := store.Issue(ctx, ids[i], "u1", PurposeResetPassword, secret, time.Hour); err == nil {
				issued[i] = true
			}
		}(i)
	}
	wg.Wait()

	live := 0
	for i := 0; i < racers; i++ {
		if !issued[i] {
			continue
		}
		secret := hashOf(fmt.Sprintf("secret-%d", i))
		if _, err := store.Validate(ctx, ids[i], PurposeResetPassword, secret); err == nil {
			live++
		} else if !errors.Is(err, ErrNotFound) {
			t.Fatalf("unexpected Validate error: %v", err)
		}
	}
	if live != 1 {
		t.Fatalf("expected exactly one live token after racing issues, got %d", live)
	}
}

func TestConsumeExpired(t *testing.T) {
	mr, store := newTestStore(t)
	ctx := context.Background()

	id := uuid.New()
	if err := store.Issue(ctx, id, "u1", PurposeResetPassword, hashOf("secret"), time.Minute); err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	mr.FastForward(2 * time.Minute)

	if _, err := store.Consume(ctx, id, PurposeResetPassword, hashOf("secret")); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after TTL eviction, got %v", err)
	}
}

func TestRestoreReArmsToken(t *testing.T) {
	_, store := newTestStore(t)
	ctx := context.Background()

	id := uuid.New()
	if err := store.Issue(ctx, id, "u1", PurposeResetPassword, hashOf("secret"), time.Hour); err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if _, err := store.Consume(ctx, id, PurposeResetPassword, hashOf("secret")); err != nil {
		t.Fatalf("Consume failed: %v", err)
	}

	if err := store.Restore(ctx, id, PurposeResetPassword); err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	if _, err := store.Consume(ctx, id, PurposeResetPassword, hashOf("secret")); err != nil {
		t.Fatalf("Consume after Restore failed: %v", err)
	}

	// Restoring a token that no longer exists is a no-op.
	if err := store.Restore(ctx, uuid.New(), PurposeResetPassword); err != nil {
		t.Fatalf("Restore of missing token failed: %v", err)
	}
}

func TestConcurrentConsumeSingleWinner(t *testing.T) {
	_, store := newTestStore(t)
	ctx := context.Background()

	id := uuid.New()
	if err := store.Issue(ctx, id, "u1", PurposeResetPassword, hashOf("secret"), time.Hour); err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	const racers = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners int
	)

	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.Consume(ctx, id, PurposeResetPassword, hashOf("secret")); err == nil {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if winners != 1 {
		t.Fatalf("expected exactly one winner, got %d", winners)
	}
}

func TestEncodeDecodeOneTime(t *testing.T) {
	rec := &Record{
		OwnerID:    "user-42",
		SecretHash: hashOf("secret"),
		Purpose:    PurposeVerifyEmail,
		Consumed:   true,
		ExpiresAt:  time.Now().Add(time.Hour).Unix(),
	}

	data, err := encodeOneTime(rec)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	decoded, err := decodeOneTime(data)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if decoded.OwnerID != rec.OwnerID || decoded.SecretHash != rec.SecretHash ||
		decoded.Purpose != rec.Purpose || decoded.Consumed != rec.Consumed ||
		decoded.ExpiresAt != rec.ExpiresAt {
		t.Fatalf("round trip mismatch: %+v vs %+v", decoded, rec)
	}
}
