package usecases

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newTestAuth(t *testing.T) *AuthUsecase {
	t.Helper()
	uc := NewAuthUsecase("test-secret")
	uc.cost = bcrypt.MinCost
	require.NoError(t, uc.EnsureAdmin("anne", "s3cret"))
	return uc
}

func TestLogin_IssuesAdminToken(t *testing.T) {
	uc := newTestAuth(t)

	tokenString, err := uc.Login("anne", "s3cret")
	require.NoError(t, err)

	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return []byte("test-secret"), nil
	})
	require.NoError(t, err)
	assert.True(t, token.Valid)
	assert.Equal(t, "anne", claims["sub"])
	assert.Equal(t, RoleAdmin, claims["role"])

	exp, err := claims.GetExpirationTime()
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(24*time.Hour), exp.Time, time.Minute)
}

func TestLogin_RejectsBadCredentials(t *testing.T) {
	uc := newTestAuth(t)

	_, err := uc.Login("anne", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = uc.Login("bob", "s3cret")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestEnsureAdmin(t *testing.T) {
	uc := newTestAuth(t)

	assert.Error(t, uc.EnsureAdmin("", "x"))
	assert.Error(t, uc.EnsureAdmin("x", ""))

	// a second call does not replace the existing password
	require.NoError(t, uc.EnsureAdmin("anne", "other"))
	_, err := uc.Login("anne", "s3cret")
	assert.NoError(t, err)
}
