package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateToken_RoundTrip(t *testing.T) {
	secret := "test-secret"
	userID := "user-123"

	signed, expiresAt, err := GenerateToken(userID, secret, time.Hour)
	require.NoError(t, err)
	require.NotEmpty(t, signed)

	token, err := jwt.Parse(signed, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	})
	require.NoError(t, err)
	assert.True(t, token.Valid)

	claims, ok := token.Claims.(jwt.MapClaims)
	require.True(t, ok)
	assert.Equal(t, userID, claims[claimSubject])
	assert.Equal(t, userID, claims[claimUserID])
	assert.Equal(t, expiresAt.Unix(), int64(claims["exp"].(float64)))
}

func TestGenerateToken_Invalid(t *testing.T) {
	_, _, err := GenerateToken("", "secret", time.Hour)
	assert.Error(t, err)

	_, _, err = GenerateToken("user", "", time.Hour)
	assert.Error(t, err)

	_, _, err = GenerateToken("user", "secret", 0)
	assert.Error(t, err)
}
