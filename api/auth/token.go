// Package auth implements the per-process access token guarding the console
// endpoints. A token is generated once at startup and must accompany every
// request.
package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"
)

const (
	TokenLength = 24
	TokenPrefix = "cn_"
)

// GenerateToken returns a fresh plaintext token and its hash. Handlers keep
// only the hash; the plaintext appears once in the startup output.
func GenerateToken() (plaintext string, hash []byte, err error) {
	randomBytes := make([]byte, TokenLength)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", nil, fmt.Errorf("failed to generate random bytes: %w", err)
	}

	plaintext = TokenPrefix + base64.RawURLEncoding.EncodeToString(randomBytes)
	return plaintext, HashToken(plaintext), nil
}

func HashToken(token string) []byte {
	hash := sha256.Sum256([]byte(token))
	return hash[:]
}

// Verify reports whether candidate hashes to hash, in constant time.
func Verify(hash []byte, candidate string) bool {
	return subtle.ConstantTimeCompare(hash, HashToken(candidate)) == 1
}

func ValidateTokenFormat(token string) bool {
	if !strings.HasPrefix(token, TokenPrefix) {
		return false
	}

	decoded, err := base64.RawURLEncoding.DecodeString(strings.TrimPrefix(token, TokenPrefix))
	if err != nil {
		return false
	}
	return len(decoded) == TokenLength
}
