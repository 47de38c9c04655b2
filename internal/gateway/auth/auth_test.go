package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/surgeonmatch/surgeonmatch/internal/shared/database"
	"github.com/surgeonmatch/surgeonmatch/internal/shared/models"
)

type fakeKeyStore struct {
	keys      map[string]*models.APIKey // by hash
	lookupErr error
	touchErr  error
	touched   []string
}

func (s *fakeKeyStore) LookupKeyByHash(ctx context.Context, keyHash string) (*models.APIKey, error) {
	if s.lookupErr != nil {
		return nil, s.lookupErr
	}
	key, ok := s.keys[keyHash]
	if !ok {
		return nil, database.ErrNotFound
	}
	return key, nil
}

func (s *fakeKeyStore) TouchLastUsed(ctx context.Context, keyID string, at time.Time) error {
	s.touched = append(s.touched, keyID)
	return s.touchErr
}

func activeKey(raw, id string) *models.APIKey {
	return &models.APIKey{
		ID:       id,
		KeyHash:  HashKey(raw),
		Name:     "test",
		IsActive: true,
	}
}

func TestStoreVerifierVerify(t *testing.T) {
	ctx := context.Background()

	t.Run("valid key resolves identity", func(t *testing.T) {
		key := activeKey("sk-valid", "key-1")
		store := &fakeKeyStore{keys: map[string]*models.APIKey{key.KeyHash: key}}
		v := NewStoreVerifier(store)

		identity, err := v.Verify(ctx, "sk-valid")
		if err != nil {
			t.Fatalf("Verify() error: %v", err)
		}
		if identity.ID != "key-1" {
			t.Errorf("identity.ID = %q, want key-1", identity.ID)
		}
		if len(store.touched) != 1 || store.touched[0] != "key-1" {
			t.Errorf("touched = %v, want [key-1]", store.touched)
		}
	})

	t.Run("empty key", func(t *testing.T) {
		v := NewStoreVerifier(&fakeKeyStore{})
		if _, err := v.Verify(ctx, ""); !errors.Is(err, ErrMissingKey) {
			t.Errorf("err = %v, want ErrMissingKey", err)
		}
	})

	t.Run("unknown key", func(t *testing.T) {
		v := NewStoreVerifier(&fakeKeyStore{keys: map[string]*models.APIKey{}})
		if _, err := v.Verify(ctx, "sk-unknown"); !errors.Is(err, ErrInvalidKey) {
			t.Errorf("err = %v, want ErrInvalidKey", err)
		}
	})

	t.Run("expired key", func(t *testing.T) {
		key := activeKey("sk-expired", "key-2")
		past := time.Now().Add(-time.Hour)
		key.ExpiresAt = &past
		store := &fakeKeyStore{keys: map[string]*models.APIKey{key.KeyHash: key}}
		v := NewStoreVerifier(store)

		if _, err := v.Verify(ctx, "sk-expired"); !errors.Is(err, ErrExpiredKey) {
			t.Errorf("err = %v, want ErrExpiredKey", err)
		}
	})

	t.Run("store failure is distinguishable from a bad key", func(t *testing.T) {
		store := &fakeKeyStore{lookupErr: errors.New("connection refused")}
		v := NewStoreVerifier(store)

		_, err := v.Verify(ctx, "sk-any")
		if !errors.Is(err, ErrStoreUnavailable) {
			t.Errorf("err = %v, want ErrStoreUnavailable", err)
		}
		if errors.Is(err, ErrInvalidKey) {
			t.Error("store failure must not look like an invalid key")
		}
	})

	t.Run("failed touch does not fail verification", func(t *testing.T) {
		key := activeKey("sk-touch", "key-3")
		store := &fakeKeyStore{
			keys:     map[string]*models.APIKey{key.KeyHash: key},
			touchErr: errors.New("write timeout"),
		}
		v := NewStoreVerifier(store)

		if _, err := v.Verify(ctx, "sk-touch"); err != nil {
			t.Fatalf("Verify() error: %v", err)
		}
	})

	t.Run("rate limit overrides carried on identity", func(t *testing.T) {
		key := activeKey("sk-limited", "key-4")
		limit, period := 10, 30
		key.RateLimit = &limit
		key.RateLimitPeriod = &period
		store := &fakeKeyStore{keys: map[string]*models.APIKey{key.KeyHash: key}}
		v := NewStoreVerifier(store)

		identity, err := v.Verify(ctx, "sk-limited")
		if err != nil {
			t.Fatalf("Verify() error: %v", err)
		}
		if identity.RateLimit == nil || *identity.RateLimit != 10 {
			t.Errorf("RateLimit = %v, want 10", identity.RateLimit)
		}
		if identity.RateLimitPeriod == nil || *identity.RateLimitPeriod != 30*time.Second {
			t.Errorf("RateLimitPeriod = %v, want 30s", identity.RateLimitPeriod)
		}
	})
}

func TestTestVerifier(t *testing.T) {
	ctx := context.Background()
	key := activeKey("sk-real", "key-real")
	store := &fakeKeyStore{keys: map[string]*models.APIKey{key.KeyHash: key}}
	v := NewTestVerifier("sk-test", "test-id", 5, time.Minute, NewStoreVerifier(store))

	t.Run("fixed credential short-circuits", func(t *testing.T) {
		identity, err := v.Verify(ctx, "sk-test")
		if err != nil {
			t.Fatalf("Verify() error: %v", err)
		}
		if identity.ID != "test-id" {
			t.Errorf("identity.ID = %q, want test-id", identity.ID)
		}
		if identity.RateLimit == nil || *identity.RateLimit != 5 {
			t.Errorf("RateLimit = %v, want 5", identity.RateLimit)
		}
		if len(store.touched) != 0 {
			t.Error("test credential must not hit the store")
		}
	})

	t.Run("other keys delegate", func(t *testing.T) {
		identity, err := v.Verify(ctx, "sk-real")
		if err != nil {
			t.Fatalf("Verify() error: %v", err)
		}
		if identity.ID != "key-real" {
			t.Errorf("identity.ID = %q, want key-real", identity.ID)
		}
	})

	t.Run("empty key delegates to missing-key error", func(t *testing.T) {
		if _, err := v.Verify(ctx, ""); !errors.Is(err, ErrMissingKey) {
			t.Errorf("err = %v, want ErrMissingKey", err)
		}
	})
}

func TestGenerateKey(t *testing.T) {
	key, hash, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey() error: %v", err)
	}
	if len(key) != 32 {
		t.Errorf("len(key) = %d, want 32", len(key))
	}
	if hash != HashKey(key) {
		t.Error("returned hash does not match HashKey(key)")
	}

	other, _, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey() error: %v", err)
	}
	if key == other {
		t.Error("two generated keys collided")
	}
}

func TestHashKeyDeterministic(t *testing.T) {
	if HashKey("abc") != HashKey("abc") {
		t.Error("HashKey is not deterministic")
	}
	if HashKey("abc") == HashKey("abd") {
		t.Error("distinct keys produced the same hash")
	}
}
