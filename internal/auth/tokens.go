package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid or expired token")

// TokenClaims is what a verified session token proves: who, and since when.
// The issue time feeds the password-epoch check in the auth middleware.
type TokenClaims struct {
	UserID   string
	IssuedAt time.Time
}

// TokenService issues and verifies HS256-signed session tokens. It holds no
// mutable state and is safe for concurrent use.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenService(secret []byte, ttl time.Duration) *TokenService {
	secretCopy := make([]byte, len(secret))
	copy(secretCopy, secret)
	return &TokenService{secret: secretCopy, ttl: ttl, now: time.Now}
}

// WithClock overrides the token clock. Test hook.
func (s *TokenService) WithClock(now func() time.Time) *TokenService {
	s.now = now
	return s
}

func (s *TokenService) Issue(userID string) (string, error) {
	now := s.now()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return signed, nil
}

// Verify returns ErrInvalidToken for anything other than a well-formed,
// correctly signed, unexpired token. Callers never learn which check failed.
func (s *TokenService) Verify(tokenString string) (TokenClaims, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil || !token.Valid {
		return TokenClaims{}, ErrInvalidToken
	}
	if claims.Subject == "" || claims.IssuedAt == nil {
		return TokenClaims{}, ErrInvalidToken
	}
	return TokenClaims{UserID: claims.Subject, IssuedAt: claims.IssuedAt.Time}, nil
}
