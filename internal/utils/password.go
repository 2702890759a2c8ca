package utils

import (
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/resource-api/internal/schema"
)

// MaxPasswordBytes is the longest input bcrypt accepts.
const MaxPasswordBytes = 72

// HashPassword returns bcrypt hash using the given cost.
func HashPassword(plain string, cost int) (string, error) {
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

// PasswordHook hashes the password entry of a change-set before it is
// written.  Cost is the bcrypt work factor.
type PasswordHook struct {
	Cost int
}

// Apply rewrites changes in place.  A value equal to previousHash is the
// stored hash sent back unchanged and is dropped instead of being hashed
// a second time.
func (h PasswordHook) Apply(changes schema.Record, previousHash string) error {
	v, ok := changes[schema.PasswordField]
	if !ok {
		return nil
	}
	plain, _ := v.(string)
	if previousHash != "" && plain == previousHash {
		delete(changes, schema.PasswordField)
		return nil
	}
	hash, err := HashPassword(plain, h.Cost)
	if err != nil {
		return err
	}
	changes[schema.PasswordField] = hash
	return nil
}
