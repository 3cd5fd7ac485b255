package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"time"
)

// ResetTokenTTL is the validity window for a password-reset token.
const ResetTokenTTL = 10 * time.Minute

// NewResetToken returns a random reset token and its stored form. Only the
// hash may be persisted; the raw token goes to the user exactly once.
func NewResetToken() (raw, hash string, err error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", "", fmt.Errorf("read reset token: %w", err)
	}
	raw = base64.RawURLEncoding.EncodeToString(buf)
	return raw, HashResetToken(raw), nil
}

func HashResetToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// MatchResetToken checks a candidate token against the stored hash. Expiry is
// the caller's job; this only answers whether the token is the right one.
func MatchResetToken(raw, storedHash string) bool {
	candidate := HashResetToken(raw)
	return subtle.ConstantTimeCompare([]byte(candidate), []byte(storedHash)) == 1
}
