package tokens

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	accessSecret  = []byte("access-secret")
	refreshSecret = []byte("refresh-secret")
)

func TestAccessToken_RoundTrip(t *testing.T) {
	t.Parallel()

	exp := time.Now().Add(15 * time.Minute)
	tok, err := SignAccess("admin", "42", exp, accessSecret)
	require.NoError(t, err)

	claims, err := AccessClaimsFromToken(tok, accessSecret)
	require.NoError(t, err)
	assert.Equal(t, "admin", claims.Role)
	assert.Equal(t, "42", claims.Subject)
	assert.WithinDuration(t, exp, claims.ExpiresAt.Time, time.Second)
}

func TestAccessToken_Expired(t *testing.T) {
	t.Parallel()

	tok, err := SignAccess("customer", "1", time.Now().Add(-time.Minute), accessSecret)
	require.NoError(t, err)

	_, err = AccessClaimsFromToken(tok, accessSecret)
	require.Error(t, err)
	assert.True(t, errors.Is(err, jwt.ErrTokenExpired))
}

func TestAccessToken_WrongSecret(t *testing.T) {
	t.Parallel()

	tok, err := SignAccess("customer", "1", time.Now().Add(time.Minute), accessSecret)
	require.NoError(t, err)

	_, err = AccessClaimsFromToken(tok, []byte("other"))
	require.Error(t, err)
}

func TestRefreshToken_RoundTrip(t *testing.T) {
	t.Parallel()

	tok, err := SignRefresh("7", "jti-1", time.Now().Add(time.Hour), refreshSecret)
	require.NoError(t, err)

	claims, err := RefreshClaimsFromToken(tok, refreshSecret)
	require.NoError(t, err)
	assert.Equal(t, "7", claims.Subject)
	assert.Equal(t, "jti-1", claims.ID)
}

func TestRefreshToken_MissingJTI(t *testing.T) {
	t.Parallel()

	tok, err := SignRefresh("7", "", time.Now().Add(time.Hour), refreshSecret)
	require.NoError(t, err)

	_, err = RefreshClaimsFromToken(tok, refreshSecret)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
