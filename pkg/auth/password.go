package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const (
	// DefaultBcryptCost is deliberately slow; tune via config for tests.
	DefaultBcryptCost = 12

	MinPasswordLen = 8
	MaxPasswordLen = 128
)

// dummyHash is a fixed, precomputed bcrypt hash compared against when a login
// targets a nonexistent account. Running the comparison anyway keeps the
// "no such user" path at the same wall-clock cost as "user exists, wrong
// password", closing the timing side-channel that would otherwise allow
// account enumeration.
const dummyHash = "$2a$12$000000000000000000000uGPuGDNMB5fXApYSKrhjYxLRmPCbInu"

// HashPassword creates a bcrypt hash from a plaintext password at the default cost.
func HashPassword(password string) (string, error) {
	return HashPasswordCost(password, DefaultBcryptCost)
}

// HashPasswordCost creates a bcrypt hash at an explicit cost.
func HashPasswordCost(password string, cost int) (string, error) {
	if password == "" {
		return "", fmt.Errorf("password cannot be empty")
	}
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashedBytes), nil
}

// ComparePassword checks a plaintext password against a bcrypt hash.
// bcrypt performs the comparison in constant time.
func ComparePassword(hashedPassword, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}

// CompareDummy burns a bcrypt verification against the fixed dummy hash.
// Always fails; used to equalize timing on the missing-user login path.
func CompareDummy(password string) {
	_ = bcrypt.CompareHashAndPassword([]byte(dummyHash), []byte(password))
}

// ValidatePassword enforces the length bounds accepted at registration.
// Returns a generic error; specific requirements are not echoed back.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLen || len(password) > MaxPasswordLen {
		return fmt.Errorf("password must be between %d and %d characters", MinPasswordLen, MaxPasswordLen)
	}
	return nil
}
