package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"math/big"
	"time"

	"github.com/surgeonmatch/surgeonmatch/internal/shared/database"
	"github.com/surgeonmatch/surgeonmatch/internal/shared/models"
)

// Sentinel errors mapped to stable client-facing codes by the pipeline.
var (
	ErrMissingKey       = errors.New("api key is required")
	ErrInvalidKey       = errors.New("invalid api key")
	ErrExpiredKey       = errors.New("api key has expired")
	ErrStoreUnavailable = errors.New("credential store unavailable")
)

// Identity is the authenticated principal derived from a verified API key.
type Identity struct {
	ID   string
	Name string

	// Rate-limit override for this key; nil means use the configured default.
	RateLimit       *int
	RateLimitPeriod *time.Duration
}

// KeyStore is the narrow view of the data store the verifier needs.
type KeyStore interface {
	LookupKeyByHash(ctx context.Context, keyHash string) (*models.APIKey, error)
	TouchLastUsed(ctx context.Context, keyID string, at time.Time) error
}

// Verifier checks a presented API key and resolves it to an identity.
// Implementations are selected at startup; there is no runtime debug branch
// inside the verification path.
type Verifier interface {
	Verify(ctx context.Context, presentedKey string) (*Identity, error)
}

// StoreVerifier verifies keys against hashed records in the data store.
type StoreVerifier struct {
	store KeyStore
}

func NewStoreVerifier(store KeyStore) *StoreVerifier {
	return &StoreVerifier{store: store}
}

// Verify hashes the presented key, looks up a matching active record and
// returns the key's identity. Updating last_used_at is best-effort: a failed
// write never fails the request.
func (v *StoreVerifier) Verify(ctx context.Context, presentedKey string) (*Identity, error) {
	if presentedKey == "" {
		return nil, ErrMissingKey
	}

	record, err := v.store.LookupKeyByHash(ctx, HashKey(presentedKey))
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrInvalidKey
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if record.IsExpired() {
		return nil, ErrExpiredKey
	}

	if err := v.store.TouchLastUsed(ctx, record.ID, time.Now().UTC()); err != nil {
		log.Printf("failed to update last_used_at for key %s: %v", record.ID, err)
	}

	identity := &Identity{ID: record.ID, Name: record.Name}
	if record.RateLimit != nil {
		limit := *record.RateLimit
		identity.RateLimit = &limit
	}
	if record.RateLimitPeriod != nil {
		period := time.Duration(*record.RateLimitPeriod) * time.Second
		identity.RateLimitPeriod = &period
	}
	return identity, nil
}

// TestVerifier short-circuits a single fixed credential to a fixed identity
// with a tight rate limit, delegating everything else. Constructed only in
// debug, non-production configurations.
type TestVerifier struct {
	key      string
	identity Identity
	next     Verifier
}

func NewTestVerifier(key, id string, limit int, period time.Duration, next Verifier) *TestVerifier {
	return &TestVerifier{
		key: key,
		identity: Identity{
			ID:              id,
			Name:            "test key",
			RateLimit:       &limit,
			RateLimitPeriod: &period,
		},
		next: next,
	}
}

func (v *TestVerifier) Verify(ctx context.Context, presentedKey string) (*Identity, error) {
	if presentedKey != "" && presentedKey == v.key {
		identity := v.identity
		return &identity, nil
	}
	return v.next.Verify(ctx, presentedKey)
}

// HashKey returns the hex-encoded SHA-256 digest of a raw API key. This is
// the only form in which keys are persisted or compared.
func HashKey(rawKey string) string {
	sum := sha256.Sum256([]byte(rawKey))
	return hex.EncodeToString(sum[:])
}

const keyAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// GenerateKey returns a new random API key and its storage digest.
func GenerateKey() (key string, keyHash string, err error) {
	buf := make([]byte, 32)
	for i := range buf {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(keyAlphabet))))
		if err != nil {
			return "", "", fmt.Errorf("failed to generate api key: %w", err)
		}
		buf[i] = keyAlphabet[n.Int64()]
	}
	key = string(buf)
	return key, HashKey(key), nil
}
