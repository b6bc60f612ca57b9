package userauth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// DefaultBcryptCost is the bcrypt cost factor used when none is configured.
// Raise it as hardware catches up; existing digests keep their old cost and
// still verify.
const DefaultBcryptCost = 12

// PasswordHasher hashes and verifies local passwords with bcrypt. The zero
// value uses DefaultBcryptCost.
type PasswordHasher struct {
	// Cost is the bcrypt cost factor. Values outside bcrypt's supported
	// range fall back to DefaultBcryptCost.
	Cost int
}

func (h *PasswordHasher) cost() int {
	if h == nil || h.Cost < bcrypt.MinCost || h.Cost > bcrypt.MaxCost {
		return DefaultBcryptCost
	}
	return h.Cost
}

// Hash returns the salted one-way digest of plaintext.
func (h *PasswordHasher) Hash(plaintext string) ([]byte, error) {
	digest, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost())
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	return digest, nil
}

// Verify reports whether plaintext matches digest. A nil or malformed
// digest verifies as false, never as an error: an account without a local
// password must simply fail password login.
func (h *PasswordHasher) Verify(plaintext string, digest []byte) bool {
	if len(digest) == 0 {
		return false
	}
	return bcrypt.CompareHashAndPassword(digest, []byte(plaintext)) == nil
}
