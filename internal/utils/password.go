package utils

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// MinPasswordLength is the shortest password accepted on register, reset
// and change. MaxPasswordLength is bcrypt's input limit in bytes.
const (
	MinPasswordLength = 6
	MaxPasswordLength = 72
)

var (
	ErrWeakPassword    = errors.New("password must be at least 6 characters")
	ErrPasswordTooLong = errors.New("password must be at most 72 bytes")
)

// HashPassword returns a bcrypt hash of plain using the given cost. A cost
// outside bcrypt's range falls back to bcrypt.DefaultCost.
func HashPassword(plain string, cost int) (string, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	b, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// VerifyPassword safely compares bcrypt hash and plain password.
func VerifyPassword(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

// CheckPasswordPolicy rejects passwords that are too short, or too long for
// bcrypt to hash.
func CheckPasswordPolicy(plain string) error {
	switch {
	case len(plain) < MinPasswordLength:
		return ErrWeakPassword
	case len(plain) > MaxPasswordLength:
		return ErrPasswordTooLong
	}
	return nil
}
