// Package auth provides password hashing and bearer-claim handling for the
// operator console. Login and token-minting flows are out of scope; this
// package only hashes/verifies credentials and reads an already-issued
// JWT's claims.
package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// DefaultBcryptCost is the default cost parameter for bcrypt hashing.
const DefaultBcryptCost = 10

// MinPasswordLength is the minimum required password length.
const MinPasswordLength = 8

// MaxPasswordLength is the maximum allowed password length; bcrypt silently
// truncates at 72 bytes, so this is enforced rather than discovered.
const MaxPasswordLength = 72

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrPasswordTooShort   = errors.New("password must be at least 8 characters")
	ErrPasswordTooLong    = errors.New("password must be at most 72 characters")
)

// HashPassword creates a bcrypt hash of the given password.
func HashPassword(password string) (string, error) {
	if err := ValidatePassword(password); err != nil {
		return "", err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), DefaultBcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword checks if a password matches a bcrypt hash.
func VerifyPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// ValidatePassword checks if a password meets the length requirements.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	if len(password) > MaxPasswordLength {
		return ErrPasswordTooLong
	}
	return nil
}

// NeedsRehash reports whether an existing hash should be regenerated because
// the configured cost has since increased.
func NeedsRehash(hash string) bool {
	cost, err := bcrypt.Cost([]byte(hash))
	if err != nil {
		return true
	}
	return cost < DefaultBcryptCost
}
