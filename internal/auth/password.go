package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// ErrHashing covers internal bcrypt failures: randomness exhaustion on Hash,
// or a malformed stored hash on Verify. A plain mismatch is never an error.
var ErrHashing = errors.New("password hashing failed")

// PasswordHasher wraps bcrypt with a configurable work factor.
type PasswordHasher struct {
	cost int
}

func NewPasswordHasher(cost int) *PasswordHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &PasswordHasher{cost: cost}
}

func (h *PasswordHasher) Hash(plaintext string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		return "", ErrHashing
	}
	return string(hashed), nil
}

// Verify reports whether plaintext matches the stored hash. The comparison is
// constant-time inside bcrypt. It errors only when the stored hash itself is
// not a valid bcrypt value.
func (h *PasswordHasher) Verify(plaintext, hashedValue string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hashedValue), []byte(plaintext))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}
	return false, ErrHashing
}
