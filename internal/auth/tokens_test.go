package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenService_IssueAndVerify(t *testing.T) {
	issuedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := NewTokenService([]byte("test-secret-test-secret-test-secret"), 90*24*time.Hour).
		WithClock(func() time.Time { return issuedAt })

	token, err := svc.Issue("user-123")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := svc.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "user-123", claims.UserID)
	assert.Equal(t, issuedAt.Unix(), claims.IssuedAt.Unix())
}

func TestTokenService_RejectsWrongSecret(t *testing.T) {
	issuer := NewTokenService([]byte("secret-a-secret-a-secret-a-secret-a"), time.Hour)
	verifier := NewTokenService([]byte("secret-b-secret-b-secret-b-secret-b"), time.Hour)

	token, err := issuer.Issue("user-123")
	require.NoError(t, err)

	_, err = verifier.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenService_RejectsExpired(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := NewTokenService([]byte("test-secret-test-secret-test-secret"), time.Hour).
		WithClock(func() time.Time { return now })

	token, err := svc.Issue("user-123")
	require.NoError(t, err)

	now = now.Add(2 * time.Hour)
	_, err = svc.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenService_RejectsMalformed(t *testing.T) {
	svc := NewTokenService([]byte("test-secret-test-secret-test-secret"), time.Hour)

	for _, tok := range []string{"", "garbage", "a.b.c"} {
		_, err := svc.Verify(tok)
		assert.ErrorIs(t, err, ErrInvalidToken, "token %q", tok)
	}
}
