package utils

import (
	"strings"

	"golang.org/x/crypto/bcrypt"
)

func isBcrypt(s string) bool {
	return strings.HasPrefix(s, "$2a$") || strings.HasPrefix(s, "$2b$") || strings.HasPrefix(s, "$2y$")
}

// HashOrRead returns secret as a bcrypt hash, hashing it first unless it already is one.
func HashOrRead(secret string) ([]byte, error) {
	if isBcrypt(secret) {
		return []byte(secret), nil
	}
	return bcrypt.GenerateFromPassword([]byte(secret), 10)
}

// MatchesHash reports whether token is the secret behind hash.
func MatchesHash(hash []byte, token string) bool {
	if len(hash) == 0 || token == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword(hash, []byte(token)) == nil
}
