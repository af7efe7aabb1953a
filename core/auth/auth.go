// Package auth guards the download passthrough with a single shared
// passphrase.
package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// ErrUnauthorized is returned when the passphrase does not match.
var ErrUnauthorized = errors.New("auth: passphrase mismatch")

// DefaultPassphrase is used when none is configured.
const DefaultPassphrase = "0000"

// Passphrase is the configured secret, stored either in plain text or as a
// bcrypt hash.
type Passphrase struct {
	secret string
	hashed bool
}

// NewPassphrase wraps secret. Values that look like bcrypt hashes are
// compared with bcrypt; an empty secret falls back to DefaultPassphrase.
func NewPassphrase(secret string) Passphrase {
	if secret == "" {
		secret = DefaultPassphrase
	}
	return Passphrase{secret: secret, hashed: isBcryptHash(secret)}
}

// Hashed reports whether the secret is a bcrypt hash.
func (p Passphrase) Hashed() bool { return p.hashed }

// Verify returns ErrUnauthorized unless candidate matches the secret.
func (p Passphrase) Verify(candidate string) error {
	if p.hashed {
		if CheckPasswordHash(candidate, p.secret) {
			return nil
		}
		return ErrUnauthorized
	}
	if subtle.ConstantTimeCompare([]byte(candidate), []byte(p.secret)) == 1 {
		return nil
	}
	return ErrUnauthorized
}

func isBcryptHash(s string) bool {
	if len(s) != 60 {
		return false
	}
	return strings.HasPrefix(s, "$2a$") || strings.HasPrefix(s, "$2b$") || strings.HasPrefix(s, "$2y$")
}

// HashPassword generates a bcrypt hash of the password.
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(bytes), nil
}

// CheckPasswordHash compares a password with a bcrypt hash.
func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}
