package utils

import "golang.org/x/crypto/bcrypt"

// bcryptSaltLen is the length of "$2a$NN$" plus the 22 character salt.
const bcryptSaltLen = 29

// HashPassword returns bcrypt hash using the given cost.
func HashPassword(plain string, cost int) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// SaltOf returns the salt prefix embedded in a bcrypt hash. It is stored in
// its own column for schema compatibility only; verification never uses it.
func SaltOf(hash string) string {
	if len(hash) < bcryptSaltLen {
		return ""
	}
	return hash[:bcryptSaltLen]
}

// VerifyPassword safely compares bcrypt hash and plain password.
func VerifyPassword(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
