// Package services provides external service integrations and technical concerns like notifications and tokens
package services

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Token service error constants
var (
	ErrTokenExpired = errors.New("token has expired")
	ErrTokenInvalid = errors.New("invalid token")
	ErrTokenRevoked = errors.New("token has been revoked")
)

// TokenService handles JWT token generation and validation for operators
type TokenService interface {
	GenerateToken(operatorID uint) (accessToken string, err error)
	ValidateToken(token string) (*TokenClaims, error)
	RevokeToken(token string) error
	IsTokenRevoked(token string) bool
}

// TokenClaims represents the claims in an operator JWT
type TokenClaims struct {
	OperatorID uint      `json:"operator_id"`
	IssuedAt   time.Time `json:"issued_at"`
	ExpiresAt  time.Time `json:"expires_at"`
	TokenID    string    `json:"jti"`
}

// TokenServiceImpl implements TokenService
type TokenServiceImpl struct {
	accessTokenTTL time.Duration
	secretKey      []byte
	issuer         string
	audience       string

	mu            sync.RWMutex
	revokedTokens map[string]time.Time // jti -> expiry, pruned on access
}

// NewTokenService creates a new token service
func NewTokenService(accessTokenTTL time.Duration, issuer, audience, secretKey string) (TokenService, error) {
	if secretKey == "" {
		return nil, fmt.Errorf("secret key is required")
	}
	if len(secretKey) < 32 {
		return nil, fmt.Errorf("secret key must be at least 32 bytes")
	}

	return &TokenServiceImpl{
		accessTokenTTL: accessTokenTTL,
		secretKey:      []byte(secretKey),
		issuer:         issuer,
		audience:       audience,
		revokedTokens:  make(map[string]time.Time),
	}, nil
}

// GenerateToken creates a signed access token for an operator
func (s *TokenServiceImpl) GenerateToken(operatorID uint) (string, error) {
	now := time.Now().UTC()
	claims := jwt.MapClaims{
		"operator_id": operatorID,
		"iss":         s.issuer,
		"aud":         s.audience,
		"iat":         now.Unix(),
		"exp":         now.Add(s.accessTokenTTL).Unix(),
		"jti":         uuid.New().String(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secretKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return signed, nil
}

// ValidateToken parses and validates an operator access token
func (s *TokenServiceImpl) ValidateToken(tokenString string) (*TokenClaims, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secretKey, nil
	}, jwt.WithIssuer(s.issuer), jwt.WithAudience(s.audience))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}

	operatorID, ok := claims["operator_id"].(float64)
	if !ok || operatorID <= 0 {
		return nil, ErrTokenInvalid
	}

	jti, _ := claims["jti"].(string)
	if jti == "" {
		return nil, ErrTokenInvalid
	}

	if s.isRevoked(jti) {
		return nil, ErrTokenRevoked
	}

	iat, _ := claims["iat"].(float64)
	exp, _ := claims["exp"].(float64)

	return &TokenClaims{
		OperatorID: uint(operatorID),
		IssuedAt:   time.Unix(int64(iat), 0).UTC(),
		ExpiresAt:  time.Unix(int64(exp), 0).UTC(),
		TokenID:    jti,
	}, nil
}

// RevokeToken marks a token as revoked until its natural expiry
func (s *TokenServiceImpl) RevokeToken(tokenString string) error {
	claims, err := s.ValidateToken(tokenString)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.revokedTokens[claims.TokenID] = claims.ExpiresAt
	return nil
}

// IsTokenRevoked reports whether a token has been revoked
func (s *TokenServiceImpl) IsTokenRevoked(tokenString string) bool {
	parts := strings.Split(tokenString, ".")
	if len(parts) != 3 {
		return false
	}
	claims, err := s.ValidateToken(tokenString)
	if err != nil {
		return errors.Is(err, ErrTokenRevoked)
	}
	return s.isRevoked(claims.TokenID)
}

func (s *TokenServiceImpl) isRevoked(jti string) bool {
	now := time.Now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	for id, expiry := range s.revokedTokens {
		if expiry.Before(now) {
			delete(s.revokedTokens, id)
		}
	}

	_, revoked := s.revokedTokens[jti]
	return revoked
}
