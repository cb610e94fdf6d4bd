package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// bcrypt cost 12: slow enough to resist offline cracking without making
// login noticeably laggy.
const bcryptCost = 12

// dummyHash is compared against when the username does not exist, so login
// failures take the same time whether the username or the password was wrong.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("unknown-user-placeholder"), bcryptCost)

func HashPassword(password string) (string, error) {
	if password == "" {
		return "", fmt.Errorf("password is required")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", fmt.Errorf("error hashing password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword verifies a password against its stored hash.
// bcrypt.CompareHashAndPassword is constant-time on the derived hash.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// BurnPassword runs a comparison against a throwaway hash. Called on the
// unknown-username path to keep response timing uniform.
func BurnPassword(password string) {
	_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
}
