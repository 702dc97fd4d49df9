package password

import (
	"crypto/rand"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const (
	hashIterations = 1000
	hashKeyLen     = 64
	saltLen        = 16
)

// Set generates a random salt and derives the password hash from it.
// Salt and hash are returned hex encoded and must always be stored together.
func Set(plaintext string) (salt, hash string, err error) {
	raw := make([]byte, saltLen)
	if _, err := rand.Read(raw); err != nil {
		return "", "", fmt.Errorf("generate salt: %w", err)
	}
	salt = hex.EncodeToString(raw)
	return salt, derive(plaintext, salt), nil
}

// Verify recomputes the hash from the candidate password and the stored
// salt and compares it against the stored hash in constant time.
func Verify(plaintext, salt, hash string) bool {
	if salt == "" || hash == "" {
		return false
	}
	computed := derive(plaintext, salt)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(hash)) == 1
}

// derive runs PBKDF2-SHA512 over the password with the hex salt as input,
// matching the stored credential format.
func derive(plaintext, salt string) string {
	sum := pbkdf2.Key([]byte(plaintext), []byte(salt), hashIterations, hashKeyLen, sha512.New)
	return hex.EncodeToString(sum)
}
