package security

import (
	"fmt"
	"strings"
)

const (
	AlgorithmArgon2id = "argon2id"
	AlgorithmBcrypt   = "bcrypt"
)

// Hasher is a one-way salted hash for passwords and recovery secrets
type Hasher interface {
	Hash(p string) (string, error)
	Verify(p, encoded string) (bool, error)
}

// MultiHasher hashes with one algorithm but verifies anything it recognises,
// so bcrypt hashes imported from older deployments keep working.
type MultiHasher struct {
	primary Hasher
	argon   *ArgonHash
	bcrypt  *BcryptHash
}

func NewHasher(algorithm string, bcryptCost int) (*MultiHasher, error) {
	m := &MultiHasher{
		argon:  NewArgon(),
		bcrypt: NewBcrypt(bcryptCost),
	}

	switch algorithm {
	case AlgorithmArgon2id, "":
		m.primary = m.argon
	case AlgorithmBcrypt:
		m.primary = m.bcrypt
	default:
		return nil, fmt.Errorf("unknown hash algorithm %q", algorithm)
	}

	return m, nil
}

func (m *MultiHasher) Hash(p string) (string, error) {
	return m.primary.Hash(p)
}

func (m *MultiHasher) Verify(p, encoded string) (bool, error) {
	switch {
	case strings.HasPrefix(encoded, argonPrefix):
		return m.argon.Verify(p, encoded)
	case strings.HasPrefix(encoded, "$2a$"),
		strings.HasPrefix(encoded, "$2b$"),
		strings.HasPrefix(encoded, "$2y$"):
		return m.bcrypt.Verify(p, encoded)
	default:
		return false, ErrInvalidHash
	}
}
