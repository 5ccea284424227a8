package utils

import (
	"strings"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	at, err := NewAccessToken("secret", "u-1", "CLIENT", 5)
	require.NoError(t, err)

	cl, err := ParseAccessToken("secret", at.Token)
	require.NoError(t, err)
	assert.Equal(t, Claims{UserID: "u-1", Role: "CLIENT"}, cl)

	_, err = ParseAccessToken("other", at.Token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseAccessTokenRejectsExpiredAndNonHMAC(t *testing.T) {
	at, err := NewAccessToken("secret", "u-1", "ADMIN", -1)
	require.NoError(t, err)
	_, err = ParseAccessToken("secret", at.Token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "u", "role": "ADMIN"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = ParseAccessToken("secret", none)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRefreshTokenHashing(t *testing.T) {
	rt, err := NewRefreshToken(1)
	require.NoError(t, err)
	assert.Len(t, rt.Raw, 96)
	assert.Equal(t, HashRefreshRaw(rt.Raw), HashRefreshRaw(rt.Raw))
	assert.NotEqual(t, rt.Raw, HashRefreshRaw(rt.Raw))
}

func TestPasswordPolicyAndHash(t *testing.T) {
	assert.ErrorIs(t, CheckPassword("short"), ErrWeakPassword)
	assert.Error(t, CheckPassword(strings.Repeat("x", 73)))
	require.NoError(t, CheckPassword("long-enough"))

	h, err := HashPassword("long-enough", 4)
	require.NoError(t, err)
	assert.True(t, VerifyPassword(h, "long-enough"))
	assert.False(t, VerifyPassword(h, "wrong-pass"))
}
