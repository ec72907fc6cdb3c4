package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// KeyPrefix marks keys issued by GenerateKey.
const KeyPrefix = "tb_"

var ErrInvalidHash = errors.New("invalid api key hash")

// KeyChecker validates bearer API keys against a single bcrypt hash.
// A nil checker accepts everything.
type KeyChecker struct {
	hash []byte
}

// NewKeyChecker returns nil when hash is blank, which disables key checks.
func NewKeyChecker(hash string) (*KeyChecker, error) {
	hash = strings.TrimSpace(hash)
	if hash == "" {
		return nil, nil
	}
	if _, err := bcrypt.Cost([]byte(hash)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidHash, err)
	}
	return &KeyChecker{hash: []byte(hash)}, nil
}

// Enabled reports whether requests must carry a key.
func (k *KeyChecker) Enabled() bool {
	return k != nil
}

// Check compares key with the configured hash.
func (k *KeyChecker) Check(key string) bool {
	if k == nil {
		return true
	}
	if key == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword(k.hash, []byte(key)) == nil
}

// CheckHeader validates an Authorization header value of the form "Bearer <key>".
func (k *KeyChecker) CheckHeader(header string) bool {
	if k == nil {
		return true
	}
	token, ok := BearerToken(header)
	return ok && k.Check(token)
}

// BearerToken extracts the token from an Authorization header.
func BearerToken(header string) (string, bool) {
	if !strings.HasPrefix(header, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	return token, token != ""
}

// GenerateKey returns a new random key and its bcrypt hash.
func GenerateKey() (key, hash string, err error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", "", err
	}
	key = KeyPrefix + hex.EncodeToString(buf)
	hash, err = HashKey(key)
	return key, hash, err
}

// HashKey hashes a key for the api_key_hash setting.
func HashKey(key string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
