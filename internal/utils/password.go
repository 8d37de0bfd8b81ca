package utils

import "golang.org/x/crypto/bcrypt"

// DefaultBcryptCost matches the cost the rest of the system assumes when
// no BCRYPT_COST is configured.
const DefaultBcryptCost = 12

// HashPassword returns the bcrypt hash of plain using the given cost.
func HashPassword(plain string, cost int) (string, error) {
	if cost <= 0 {
		cost = DefaultBcryptCost
	}
	b, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// VerifyPassword compares a bcrypt hash against a plain password in
// constant time. It also returns false for the oauth sentinel values
// stored for provider-created accounts, which are not valid bcrypt
// hashes, so password login can never succeed for them.
func VerifyPassword(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
