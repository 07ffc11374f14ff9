package security

import "golang.org/x/crypto/bcrypt"

// DefaultBcryptCost matches the work factor the directory has always
// hashed with; lowering it would quietly weaken stored hashes.
const DefaultBcryptCost = 12

// PasswordHasher wraps bcrypt with a fixed cost. Hashing is deliberately
// slow; callers must not hold a database transaction across it.
type PasswordHasher struct {
	cost int
}

func NewPasswordHasher(cost int) *PasswordHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultBcryptCost
	}
	return &PasswordHasher{cost: cost}
}

func (h *PasswordHasher) Hash(plaintext string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (h *PasswordHasher) Verify(plaintext, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}
