package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const (
	pinScheme  = "pbkdf2-sha256"
	saltLen    = 16
	pinKeyLen  = 32
	tokenBytes = 32

	// MinPINLength is the shortest PIN accepted at creation.
	MinPINLength = 4
)

// HashPIN derives an encoded pbkdf2 hash of pin using a random salt. The
// result has the form "pbkdf2-sha256$<iterations>$<salt>$<key>".
func HashPIN(pin string, iterations int) (string, error) {
	if len(pin) < MinPINLength {
		return "", fmt.Errorf("pin must be at least %d characters", MinPINLength)
	}
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generating salt: %w", err)
	}
	key := pbkdf2.Key([]byte(pin), salt, iterations, pinKeyLen, sha256.New)
	return fmt.Sprintf("%s$%d$%s$%s",
		pinScheme, iterations,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// VerifyPIN reports whether pin matches an encoded hash from HashPIN.
func VerifyPIN(pin, encoded string) bool {
	parts := strings.Split(encoded, "$")
	if len(parts) != 4 || parts[0] != pinScheme {
		return false
	}
	iterations, err := strconv.Atoi(parts[1])
	if err != nil || iterations <= 0 {
		return false
	}
	salt, err := base64.RawStdEncoding.DecodeString(parts[2])
	if err != nil {
		return false
	}
	want, err := base64.RawStdEncoding.DecodeString(parts[3])
	if err != nil {
		return false
	}
	got := pbkdf2.Key([]byte(pin), salt, iterations, len(want), sha256.New)
	return subtle.ConstantTimeCompare(got, want) == 1
}

// NewRecoveryToken returns a random master-recovery token and the hash to
// store in its place. The token itself is shown to the creator once.
func NewRecoveryToken() (token, hash string, err error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", "", fmt.Errorf("generating recovery token: %w", err)
	}
	token = base64.RawURLEncoding.EncodeToString(b)
	return token, HashRecoveryToken(token), nil
}

// HashRecoveryToken returns the hex sha256 of token.
func HashRecoveryToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// VerifyRecoveryToken reports whether token hashes to hash.
func VerifyRecoveryToken(token, hash string) bool {
	if token == "" || hash == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(HashRecoveryToken(token)), []byte(hash)) == 1
}
