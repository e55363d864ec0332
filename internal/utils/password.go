package utils

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 6

// HashPassword bcrypt-hashes an account password. Too-short passwords are
// rejected here so every caller shares the same rule.
func HashPassword(password string) (string, error) {
	if len(password) < minPasswordLength {
		return "", errors.New("password must be at least 6 characters")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword compares a plaintext password against its stored bcrypt hash.
func CheckPassword(password, hashedPassword string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}
