// Package password isolates password hash verification behind a small
// interface. The engine only verifies; hashing policy and user management
// live with the account-owning service.
package password

import "golang.org/x/crypto/bcrypt"

// Verifier checks a plaintext password against a stored hash. Implementations
// must not leak match information through timing.
type Verifier interface {
	Verify(plaintext, hash string) bool
}

// BcryptVerifier verifies bcrypt hashes. bcrypt's comparison is constant-time
// over the derived key.
type BcryptVerifier struct{}

func NewBcryptVerifier() *BcryptVerifier {
	return &BcryptVerifier{}
}

func (v *BcryptVerifier) Verify(plaintext, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}

// Hash derives a bcrypt hash at the default cost. Used by seeding tools and
// tests; the engine itself never stores passwords.
func Hash(plaintext string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plaintext), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
