package businessflow

import (
	"context"
	"strings"

	"github.com/clinio/crm-api/app/dto"
	"github.com/clinio/crm-api/app/services"
	"github.com/clinio/crm-api/repository"
	"github.com/clinio/crm-api/utils"
	"golang.org/x/crypto/bcrypt"
)

// LoginFlow defines the operator authentication use case
type LoginFlow interface {
	Login(ctx context.Context, req *dto.LoginRequest, metadata *ClientMetadata) (*dto.LoginResponse, error)
}

// LoginFlowImpl implements LoginFlow
type LoginFlowImpl struct {
	operatorRepo repository.OperatorRepository
	tokenService services.TokenService
}

func NewLoginFlow(operatorRepo repository.OperatorRepository, tokenService services.TokenService) LoginFlow {
	return &LoginFlowImpl{
		operatorRepo: operatorRepo,
		tokenService: tokenService,
	}
}

// Login authenticates an operator and issues an access token
func (f *LoginFlowImpl) Login(ctx context.Context, req *dto.LoginRequest, metadata *ClientMetadata) (*dto.LoginResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))

	operator, err := f.operatorRepo.ByEmail(ctx, email)
	if err != nil {
		return nil, NewBusinessError("OPERATOR_LOOKUP_FAILED", "failed to look up operator", err)
	}
	if operator == nil {
		return nil, NewBusinessError("OPERATOR_NOT_FOUND", "operator not found", ErrOperatorNotFound)
	}
	if !utils.IsTrue(operator.IsActive) {
		return nil, NewBusinessError("OPERATOR_INACTIVE", "operator is inactive", ErrOperatorInactive)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(operator.PasswordHash), []byte(req.Password)); err != nil {
		return nil, NewBusinessError("INCORRECT_PASSWORD", "incorrect password", ErrIncorrectPassword)
	}

	accessToken, err := f.tokenService.GenerateToken(operator.ID)
	if err != nil {
		return nil, NewBusinessError("TOKEN_GENERATION_FAILED", "failed to generate access token", err)
	}

	if err := f.operatorRepo.UpdateLastLogin(ctx, operator.ID, utils.UTCNow()); err != nil {
		// Login still succeeds; the timestamp is best-effort bookkeeping.
		metadata.AddAdditional("last_login_update_error", err.Error())
	}

	expiresIn := 0
	if claims, err := f.tokenService.ValidateToken(accessToken); err == nil {
		expiresIn = int(claims.ExpiresAt.Sub(claims.IssuedAt).Seconds())
	}

	return &dto.LoginResponse{
		Message:     "Login successful",
		AccessToken: accessToken,
		TokenType:   "Bearer",
		ExpiresIn:   expiresIn,
		Operator: dto.OperatorInfo{
			ID:       operator.ID,
			UUID:     operator.UUID.String(),
			Email:    operator.Email,
			FullName: operator.FullName,
			IsActive: operator.IsActive,
		},
	}, nil
}
