// Package tests contains test cases for models and repository packages to avoid circular imports
package tests

import (
	"testing"
	"time"

	"github.com/clinio/crm-api/app/dto"
	"github.com/clinio/crm-api/app/services"
	businessflow "github.com/clinio/crm-api/business_flow"
	"github.com/clinio/crm-api/repository"
	testingutil "github.com/clinio/crm-api/testing"
	"github.com/clinio/crm-api/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLoginFlow(testDB *testingutil.TestDB, t *testing.T) (businessflow.LoginFlow, services.TokenService) {
	tokenService, err := services.NewTokenService(
		15*time.Minute,
		"test-issuer",
		"test-audience",
		"test-secret-key-for-jwt-signing-32-chars",
	)
	require.NoError(t, err)

	return businessflow.NewLoginFlow(repository.NewOperatorRepository(testDB.DB), tokenService), tokenService
}

func TestLoginFlow(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)
		ctx := testingutil.CreateTestContext()

		flow, tokenService := newTestLoginFlow(testDB, t)

		const password = "SecretPass123!"
		operator, err := fixtures.CreateTestOperator(password)
		require.NoError(t, err)

		t.Run("Success", func(t *testing.T) {
			resp, err := flow.Login(ctx, &dto.LoginRequest{
				Email:    operator.Email,
				Password: password,
			}, testMetadata())
			require.NoError(t, err)
			assert.NotEmpty(t, resp.AccessToken)
			assert.Equal(t, "Bearer", resp.TokenType)
			assert.Equal(t, operator.Email, resp.Operator.Email)

			claims, err := tokenService.ValidateToken(resp.AccessToken)
			require.NoError(t, err)
			assert.Equal(t, operator.ID, claims.OperatorID)
		})

		t.Run("EmailIsCaseInsensitive", func(t *testing.T) {
			resp, err := flow.Login(ctx, &dto.LoginRequest{
				Email:    "  " + operator.Email + "  ",
				Password: password,
			}, testMetadata())
			require.NoError(t, err)
			assert.NotEmpty(t, resp.AccessToken)
		})

		t.Run("UpdatesLastLogin", func(t *testing.T) {
			_, err := flow.Login(ctx, &dto.LoginRequest{
				Email:    operator.Email,
				Password: password,
			}, testMetadata())
			require.NoError(t, err)

			found, err := repository.NewOperatorRepository(testDB.DB).ByID(ctx, operator.ID)
			require.NoError(t, err)
			require.NotNil(t, found.LastLoginAt)
			assert.WithinDuration(t, time.Now().UTC(), *found.LastLoginAt, time.Minute)
		})

		t.Run("WrongPassword", func(t *testing.T) {
			_, err := flow.Login(ctx, &dto.LoginRequest{
				Email:    operator.Email,
				Password: "WrongPassword1!",
			}, testMetadata())
			require.Error(t, err)
			assert.True(t, businessflow.IsIncorrectPassword(err))
		})

		t.Run("UnknownEmail", func(t *testing.T) {
			_, err := flow.Login(ctx, &dto.LoginRequest{
				Email:    "nobody@clinio.app",
				Password: password,
			}, testMetadata())
			require.Error(t, err)
			assert.True(t, businessflow.IsOperatorNotFound(err))
		})

		t.Run("InactiveOperator", func(t *testing.T) {
			inactive, err := fixtures.CreateTestOperator(password)
			require.NoError(t, err)
			require.NoError(t, testDB.DB.Model(inactive).Update("is_active", utils.ToPtr(false)).Error)

			_, err = flow.Login(ctx, &dto.LoginRequest{
				Email:    inactive.Email,
				Password: password,
			}, testMetadata())
			require.Error(t, err)
		})

		return nil
	})
	require.NoError(t, err)
}
