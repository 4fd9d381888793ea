// Package passhash hashes and verifies account passwords.
//
// Stored hashes have the form "salt:hexhash", where salt is 16 random bytes
// hex-encoded and hexhash is PBKDF2-HMAC-SHA256 over the password with the
// salt string as KDF salt. Anything else is unverifiable and never matches.
package passhash

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// Iterations is the PBKDF2 work factor.
	Iterations = 100000
	saltBytes  = 16
	keyBytes   = sha256.Size
)

// Hash returns a freshly salted hash of password.
func Hash(password string) (string, error) {
	raw := make([]byte, saltBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	salt := hex.EncodeToString(raw)
	return salt + ":" + hex.EncodeToString(derive(password, salt)), nil
}

// Verify reports whether password matches stored. Malformed input fails closed.
func Verify(password, stored string) bool {
	salt, want, ok := split(stored)
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare(derive(password, salt), want) == 1
}

// IsHashed reports whether stored is in the "salt:hexhash" form.
func IsHashed(stored string) bool {
	_, _, ok := split(stored)
	return ok
}

func split(stored string) (string, []byte, bool) {
	salt, hexHash, found := strings.Cut(stored, ":")
	if !found || salt == "" || strings.Contains(hexHash, ":") {
		return "", nil, false
	}
	sum, err := hex.DecodeString(hexHash)
	if err != nil || len(sum) != keyBytes {
		return "", nil, false
	}
	return salt, sum, true
}

func derive(password, salt string) []byte {
	return pbkdf2.Key([]byte(password), []byte(salt), Iterations, keyBytes, sha256.New)
}
