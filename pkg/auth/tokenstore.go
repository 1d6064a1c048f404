package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/courseloop/authd/pkg/kvstore"
)

// DefaultTokenTTL is the standard 60-minute session length.
const DefaultTokenTTL = 60 * time.Minute

// TokenStore owns bearer token records in the external key-value store.
// Tokens are opaque, generated, and carry a fixed (tenant, user) claim.
type TokenStore struct {
	store kvstore.Store
	now   func() time.Time
}

// NewTokenStore creates a token store over the given store.
func NewTokenStore(store kvstore.Store) *TokenStore {
	return &TokenStore{store: store, now: time.Now}
}

// WithClock overrides the clock; tests use this to cross the expiry boundary.
func (s *TokenStore) WithClock(now func() time.Time) *TokenStore {
	s.now = now
	return s
}

// Issue generates a new token for the claim, persists its record with
// expires = now + ttl, and returns the record. The token value is a v4 UUID
// and is never caller-supplied.
func (s *TokenStore) Issue(ctx context.Context, tenantID, userID string, ttl time.Duration) (TokenRecord, error) {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	rec := TokenRecord{
		Token:    uuid.NewString(),
		TenantID: tenantID,
		UserID:   userID,
		Expires:  s.now().UTC().Add(ttl).Format(TimeLayout),
	}
	if err := s.store.Put(ctx, kvstore.TableTokens, rec.Token, tokenItem(rec)); err != nil {
		return TokenRecord{}, fmt.Errorf("token write failed: %w", err)
	}
	return rec, nil
}

// Lookup returns the record for the token, or ErrTokenNotFound.
func (s *TokenStore) Lookup(ctx context.Context, token string) (TokenRecord, error) {
	item, err := s.store.Get(ctx, kvstore.TableTokens, token)
	if errors.Is(err, kvstore.ErrNotFound) {
		return TokenRecord{}, ErrTokenNotFound
	}
	if err != nil {
		return TokenRecord{}, fmt.Errorf("token lookup failed: %w", err)
	}
	return tokenFromItem(item), nil
}

// Revoke removes the token record. Idempotent: revoking an absent token is
// not an error.
func (s *TokenStore) Revoke(ctx context.Context, token string) error {
	if err := s.store.Delete(ctx, kvstore.TableTokens, token); err != nil {
		return fmt.Errorf("token revoke failed: %w", err)
	}
	return nil
}

// SweepExpired removes every token record whose expiry is strictly in the
// past and returns how many were removed. Records with unparsable expiries
// are removed too; they can never validate.
func (s *TokenStore) SweepExpired(ctx context.Context) (int, error) {
	now := s.now().UTC().Truncate(time.Second)
	var expired []string

	err := s.store.Scan(ctx, kvstore.TableTokens, func(key string, item kvstore.Item) error {
		rec := tokenFromItem(item)
		exp, err := rec.ExpiresAt()
		if err != nil || now.After(exp) {
			expired = append(expired, key)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("token sweep scan failed: %w", err)
	}

	swept := 0
	for _, key := range expired {
		if err := s.store.Delete(ctx, kvstore.TableTokens, key); err != nil {
			return swept, fmt.Errorf("token sweep delete failed: %w", err)
		}
		swept++
	}
	return swept, nil
}
