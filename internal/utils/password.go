package utils

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const (
	SchemeSHA256 = "sha256"
	SchemeBcrypt = "bcrypt"
)

// Hasher turns a password into a stored digest and checks candidates against it.
type Hasher interface {
	Hash(password string) (string, error)
	Check(digest, password string) bool
}

// HashPassword is the unsalted SHA-256 hex digest existing accounts were created with.
func HashPassword(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}

func CheckPassword(digest, password string) bool {
	return subtle.ConstantTimeCompare([]byte(HashPassword(password)), []byte(digest)) == 1
}

type LegacyHasher struct{}

func (LegacyHasher) Hash(password string) (string, error) {
	return HashPassword(password), nil
}

func (LegacyHasher) Check(digest, password string) bool {
	return CheckPassword(digest, password)
}

// BcryptHasher writes bcrypt digests and still accepts legacy SHA-256 ones.
type BcryptHasher struct {
	Cost int
}

func (h BcryptHasher) Hash(password string) (string, error) {
	cost := h.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	b, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("bcrypt: %w", err)
	}
	return string(b), nil
}

func (h BcryptHasher) Check(digest, password string) bool {
	if isLegacyDigest(digest) {
		return CheckPassword(digest, password)
	}
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(password)) == nil
}

func NewHasher(scheme string) (Hasher, error) {
	switch scheme {
	case "", SchemeSHA256:
		return LegacyHasher{}, nil
	case SchemeBcrypt:
		return BcryptHasher{}, nil
	default:
		return nil, fmt.Errorf("unknown password scheme %q", scheme)
	}
}

func isLegacyDigest(d string) bool {
	if len(d) != sha256.Size*2 {
		return false
	}
	_, err := hex.DecodeString(d)
	return err == nil
}
