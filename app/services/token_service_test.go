package services

import (
	"testing"
	"time"

	"github.com/keithshino/accountUnlock/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecretKey = "test-secret-key-with-at-least-32-characters"

func newTestTokenService(t *testing.T) TokenService {
	t.Helper()
	svc, err := NewTokenService(
		time.Hour,
		24*time.Hour,
		"account-unlock-desk",
		"account-unlock-desk-api",
		false,
		"", "",
		testSecretKey,
	)
	require.NoError(t, err)
	return svc
}

func TestGenerateAndValidateTokens(t *testing.T) {
	svc := newTestTokenService(t)

	access, refresh, err := svc.GenerateTokens(42, "staff@example.co.jp", models.RoleSupport)
	require.NoError(t, err)
	assert.NotEmpty(t, access)
	assert.NotEmpty(t, refresh)
	assert.NotEqual(t, access, refresh)

	claims, err := svc.ValidateToken(access)
	require.NoError(t, err)
	assert.Equal(t, uint(42), claims.UserID)
	assert.Equal(t, "staff@example.co.jp", claims.Email)
	assert.Equal(t, models.RoleSupport, claims.Role)
	assert.Equal(t, "access", claims.TokenType)
	assert.NotEmpty(t, claims.TokenID)
	assert.True(t, claims.ExpiresAt.After(time.Now()))

	refreshClaims, err := svc.ValidateToken(refresh)
	require.NoError(t, err)
	assert.Equal(t, "refresh", refreshClaims.TokenType)
	assert.NotEqual(t, claims.TokenID, refreshClaims.TokenID)
}

func TestValidateTokenRejectsGarbage(t *testing.T) {
	svc := newTestTokenService(t)

	_, err := svc.ValidateToken("not-a-token")
	assert.Error(t, err)

	_, err = svc.ValidateToken("")
	assert.Error(t, err)
}

func TestValidateTokenRejectsWrongKey(t *testing.T) {
	svc := newTestTokenService(t)
	other, err := NewTokenService(
		time.Hour,
		24*time.Hour,
		"account-unlock-desk",
		"account-unlock-desk-api",
		false,
		"", "",
		"another-secret-key-with-32-characters!!",
	)
	require.NoError(t, err)

	access, _, err := svc.GenerateTokens(1, "user@example.com", models.RoleClient)
	require.NoError(t, err)

	_, err = other.ValidateToken(access)
	assert.Error(t, err)
}

func TestRefreshTokenIssuesNewPair(t *testing.T) {
	svc := newTestTokenService(t)

	_, refresh, err := svc.GenerateTokens(7, "user@example.com", models.RoleClient)
	require.NoError(t, err)

	newAccess, newRefresh, err := svc.RefreshToken(refresh)
	require.NoError(t, err)
	assert.NotEmpty(t, newAccess)
	assert.NotEmpty(t, newRefresh)

	claims, err := svc.ValidateToken(newAccess)
	require.NoError(t, err)
	assert.Equal(t, uint(7), claims.UserID)
	assert.Equal(t, "user@example.com", claims.Email)
	assert.Equal(t, models.RoleClient, claims.Role)
	assert.Equal(t, "access", claims.TokenType)
}

func TestRefreshRejectsAccessToken(t *testing.T) {
	svc := newTestTokenService(t)

	access, _, err := svc.GenerateTokens(7, "user@example.com", models.RoleClient)
	require.NoError(t, err)

	_, _, err = svc.RefreshToken(access)
	assert.Error(t, err)
}

func TestRevokedTokenIsRejected(t *testing.T) {
	svc := newTestTokenService(t)

	access, _, err := svc.GenerateTokens(9, "user@example.com", models.RoleClient)
	require.NoError(t, err)

	// Valid before revocation
	_, err = svc.ValidateToken(access)
	require.NoError(t, err)
	assert.False(t, svc.IsTokenRevoked(access))

	require.NoError(t, svc.RevokeToken(access))

	assert.True(t, svc.IsTokenRevoked(access))
	_, err = svc.ValidateToken(access)
	assert.Error(t, err)
}
