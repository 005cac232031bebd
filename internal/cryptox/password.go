// Package cryptox holds the credential primitives of the server: password
// hashing with bcrypt and generation of random one-time passwords and ids.
package cryptox

import (
	"errors"

	"github.com/dmitrijs2005/userportal/internal/common"
	"golang.org/x/crypto/bcrypt"
)

// GeneratedPasswordLength is the length of passwords created on
// registration and password reset.
const GeneratedPasswordLength = 10

// PasswordHasher hashes and verifies user passwords.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) bool
}

// BcryptHasher implements PasswordHasher with bcrypt.
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher returns a hasher with the given cost. A non-positive cost
// selects bcrypt.DefaultCost.
func NewBcryptHasher(cost int) *BcryptHasher {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	return &BcryptHasher{cost: cost}
}

func (h *BcryptHasher) Hash(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Compare reports whether password matches hash. Malformed hashes never match.
func (h *BcryptHasher) Compare(hash, password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if err != nil && !errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false
	}
	return err == nil
}

// GeneratePassword returns a random alphabetic password of
// GeneratedPasswordLength characters.
func GeneratePassword() (string, error) {
	return common.RandomString(common.Letters, GeneratedPasswordLength)
}
