package jwtutil

import (
	"testing"

	"fleetdesk/pkg/config"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndValidateToken(t *testing.T) {
	Initialize(&config.JWTConfig{SigningKey: "test-signing-key", ExpirationHours: 1})

	userID := uuid.New()
	token, err := GenerateToken("user@acme.test", userID, false)
	require.NoError(t, err)

	claims, err := ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user@acme.test", claims.Email)
	assert.Equal(t, userID, claims.UserID)
	assert.False(t, claims.Superuser)
	assert.Nil(t, claims.TenantID)
	assert.Empty(t, claims.Role)
}

func TestTokenCarriesTenantAndRole(t *testing.T) {
	Initialize(&config.JWTConfig{SigningKey: "test-signing-key", ExpirationHours: 1})

	userID := uuid.New()
	tenantID := uuid.New()
	token, err := GenerateTokenWithTenant("owner@acme.test", userID, false, &tenantID, "owner")
	require.NoError(t, err)

	claims, err := ValidateToken(token)
	require.NoError(t, err)
	require.NotNil(t, claims.TenantID)
	assert.Equal(t, tenantID, *claims.TenantID)
	assert.Equal(t, "owner", claims.Role)
}

func TestValidateRejectsWrongKey(t *testing.T) {
	Initialize(&config.JWTConfig{SigningKey: "key-one", ExpirationHours: 1})
	token, err := GenerateToken("user@acme.test", uuid.New(), false)
	require.NoError(t, err)

	Initialize(&config.JWTConfig{SigningKey: "key-two", ExpirationHours: 1})
	_, err = ValidateToken(token)
	assert.Error(t, err)
}

func TestValidateRejectsExpiredToken(t *testing.T) {
	Initialize(&config.JWTConfig{SigningKey: "test-signing-key", ExpirationHours: -1})
	token, err := GenerateToken("user@acme.test", uuid.New(), false)
	require.NoError(t, err)

	Initialize(&config.JWTConfig{SigningKey: "test-signing-key", ExpirationHours: 1})
	_, err = ValidateToken(token)
	assert.Error(t, err)
}

func TestValidateRejectsGarbage(t *testing.T) {
	Initialize(&config.JWTConfig{SigningKey: "test-signing-key", ExpirationHours: 1})
	_, err := ValidateToken("not.a.token")
	assert.Error(t, err)
}

func TestUninitializedConfig(t *testing.T) {
	Initialize(&config.JWTConfig{SigningKey: "k", ExpirationHours: 1})
	token, err := GenerateToken("user@acme.test", uuid.New(), false)
	require.NoError(t, err)

	cfg = nil
	defer Initialize(&config.JWTConfig{SigningKey: "k", ExpirationHours: 1})

	_, err = GenerateToken("user@acme.test", uuid.New(), false)
	assert.Error(t, err)
	_, err = ValidateToken(token)
	assert.Error(t, err)
}
