package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// Hasher turns plaintext secrets into storable digests and verifies
// presented secrets against them.
type Hasher interface {
	Hash(plaintext string) (string, error)
	Verify(digest, plaintext string) error
}

// errDigestMismatch is internal; callers map it to ErrInvalidCredentials.
var errDigestMismatch = errors.New("auth: digest mismatch")

// BcryptHasher is the default scheme: salted, per-record salt embedded in
// the digest, cost-configurable.
type BcryptHasher struct {
	Cost int
}

// NewBcryptHasher creates a bcrypt hasher with the default cost.
func NewBcryptHasher() *BcryptHasher {
	return &BcryptHasher{Cost: bcrypt.DefaultCost}
}

// Hash returns a salted bcrypt digest of the plaintext.
func (h *BcryptHasher) Hash(plaintext string) (string, error) {
	if plaintext == "" {
		return "", errors.New("auth: password is empty")
	}
	cost := h.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	digest, err := bcrypt.GenerateFromPassword([]byte(plaintext), cost)
	if err != nil {
		return "", fmt.Errorf("bcrypt hash failed: %w", err)
	}
	return string(digest), nil
}

// Verify compares the plaintext against the stored digest.
func (h *BcryptHasher) Verify(digest, plaintext string) error {
	if digest == "" {
		return errors.New("auth: stored digest is empty")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(digest), []byte(plaintext)); err != nil {
		return errDigestMismatch
	}
	return nil
}

// SHA256Hasher is the legacy scheme: deterministic, unsalted, fixed-length
// hex output. Kept only so records written by the legacy pipeline still
// verify; new deployments should use bcrypt.
type SHA256Hasher struct{}

// Hash returns the hex SHA-256 digest of the plaintext.
func (SHA256Hasher) Hash(plaintext string) (string, error) {
	sum := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(sum[:]), nil
}

// Verify recomputes the digest and compares byte-for-byte in constant time.
func (h SHA256Hasher) Verify(digest, plaintext string) error {
	computed, _ := h.Hash(plaintext)
	if subtle.ConstantTimeCompare([]byte(computed), []byte(digest)) != 1 {
		return errDigestMismatch
	}
	return nil
}

// NewHasher selects a hashing scheme by name.
func NewHasher(scheme string) (Hasher, error) {
	switch scheme {
	case "", "bcrypt":
		return NewBcryptHasher(), nil
	case "sha256-legacy":
		return SHA256Hasher{}, nil
	default:
		return nil, fmt.Errorf("unknown password scheme: %s", scheme)
	}
}
