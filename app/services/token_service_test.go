// Package services provides external service integrations and technical concerns like notifications and tokens
package services

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// createTestTokenService creates a token service for testing
func createTestTokenService() (TokenService, error) {
	return NewTokenService(
		15*time.Minute,
		"test-issuer",
		"test-audience",
		"test-secret-key-for-jwt-signing-32-chars",
	)
}

func TestNewTokenService(t *testing.T) {
	tests := []struct {
		name           string
		accessTokenTTL time.Duration
		issuer         string
		audience       string
		secretKey      string
		expectError    bool
	}{
		{
			name:           "valid configuration",
			accessTokenTTL: 15 * time.Minute,
			issuer:         "test-issuer",
			audience:       "test-audience",
			secretKey:      "test-secret-key-for-jwt-signing-32-chars",
			expectError:    false,
		},
		{
			name:           "missing secret key",
			accessTokenTTL: 15 * time.Minute,
			issuer:         "test-issuer",
			audience:       "test-audience",
			secretKey:      "",
			expectError:    true,
		},
		{
			name:           "secret key too short",
			accessTokenTTL: 15 * time.Minute,
			issuer:         "test-issuer",
			audience:       "test-audience",
			secretKey:      "short",
			expectError:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := NewTokenService(tt.accessTokenTTL, tt.issuer, tt.audience, tt.secretKey)
			if tt.expectError {
				assert.Error(t, err)
				assert.Nil(t, svc)
			} else {
				assert.NoError(t, err)
				assert.NotNil(t, svc)
			}
		})
	}
}

func TestGenerateAndValidateToken(t *testing.T) {
	svc, err := createTestTokenService()
	require.NoError(t, err)

	token, err := svc.GenerateToken(42)
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, uint(42), claims.OperatorID)
	assert.NotEmpty(t, claims.TokenID)
	assert.True(t, claims.ExpiresAt.After(claims.IssuedAt))
	assert.WithinDuration(t, time.Now().UTC().Add(15*time.Minute), claims.ExpiresAt, time.Minute)
}

func TestValidateTokenRejectsGarbage(t *testing.T) {
	svc, err := createTestTokenService()
	require.NoError(t, err)

	tests := []string{
		"",
		"not-a-token",
		"aaa.bbb.ccc",
	}
	for _, token := range tests {
		claims, err := svc.ValidateToken(token)
		assert.ErrorIs(t, err, ErrTokenInvalid)
		assert.Nil(t, claims)
	}
}

func TestValidateTokenRejectsWrongKey(t *testing.T) {
	svc, err := createTestTokenService()
	require.NoError(t, err)

	otherSvc, err := NewTokenService(
		15*time.Minute,
		"test-issuer",
		"test-audience",
		"another-secret-key-for-jwt-signing-32ch",
	)
	require.NoError(t, err)

	token, err := otherSvc.GenerateToken(1)
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestValidateTokenRejectsWrongAudience(t *testing.T) {
	svc, err := createTestTokenService()
	require.NoError(t, err)

	otherSvc, err := NewTokenService(
		15*time.Minute,
		"test-issuer",
		"other-audience",
		"test-secret-key-for-jwt-signing-32-chars",
	)
	require.NoError(t, err)

	token, err := otherSvc.GenerateToken(1)
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestTokenExpiration(t *testing.T) {
	svc, err := NewTokenService(
		-time.Minute, // already expired
		"test-issuer",
		"test-audience",
		"test-secret-key-for-jwt-signing-32-chars",
	)
	require.NoError(t, err)

	token, err := svc.GenerateToken(42)
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestRevokeToken(t *testing.T) {
	svc, err := createTestTokenService()
	require.NoError(t, err)

	token, err := svc.GenerateToken(42)
	require.NoError(t, err)

	assert.False(t, svc.IsTokenRevoked(token))
	require.NoError(t, svc.RevokeToken(token))
	assert.True(t, svc.IsTokenRevoked(token))

	_, err = svc.ValidateToken(token)
	assert.ErrorIs(t, err, ErrTokenRevoked)

	// Other tokens are unaffected
	other, err := svc.GenerateToken(42)
	require.NoError(t, err)
	_, err = svc.ValidateToken(other)
	assert.NoError(t, err)
}

func TestConcurrentTokenGeneration(t *testing.T) {
	svc, err := createTestTokenService()
	require.NoError(t, err)

	const n = 20
	tokens := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			token, err := svc.GenerateToken(uint(i + 1))
			assert.NoError(t, err)
			tokens[i] = token
		}(i)
	}
	wg.Wait()

	seen := make(map[string]bool)
	for i, token := range tokens {
		claims, err := svc.ValidateToken(token)
		require.NoError(t, err)
		assert.Equal(t, uint(i+1), claims.OperatorID)
		assert.False(t, seen[claims.TokenID], "token IDs must be unique")
		seen[claims.TokenID] = true
	}
}
