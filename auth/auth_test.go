package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenService_RoundTrip(t *testing.T) {
	svc, err := NewTokenService("test-secret", time.Hour)
	require.NoError(t, err)

	token, expires, err := svc.GenerateToken()
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expires, 5*time.Second)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, OwnerSubject, claims.Subject)
}

func TestTokenService_RejectsForeignAndExpiredTokens(t *testing.T) {
	svc, err := NewTokenService("test-secret", time.Hour)
	require.NoError(t, err)
	other, err := NewTokenService("other-secret", time.Hour)
	require.NoError(t, err)

	foreign, _, err := other.GenerateToken()
	require.NoError(t, err)
	_, err = svc.ValidateToken(foreign)
	assert.Error(t, err)

	svc.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expired, _, err := svc.GenerateToken()
	require.NoError(t, err)
	svc.now = time.Now
	_, err = svc.ValidateToken(expired)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expired")

	_, err = svc.ValidateToken("not-a-token")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "malformed")
}

func TestNewTokenService_Validation(t *testing.T) {
	_, err := NewTokenService("", time.Hour)
	assert.Error(t, err)
	_, err = NewTokenService("secret", 0)
	assert.Error(t, err)
}

func TestPasswordHash(t *testing.T) {
	hash, err := HashPassword("correct horse")
	require.NoError(t, err)

	assert.True(t, CheckPasswordHash("correct horse", hash))
	assert.False(t, CheckPasswordHash("wrong", hash))
}
