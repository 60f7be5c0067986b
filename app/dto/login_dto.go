package dto

// LoginRequest represents the request payload for operator login
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=8,max=100"`
}

// OperatorInfo represents operator information returned in login response
type OperatorInfo struct {
	ID       uint   `json:"id"`
	UUID     string `json:"uuid"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	IsActive *bool  `json:"is_active"`
}

// LoginResponse represents the successful login response
type LoginResponse struct {
	Message     string       `json:"message"`
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	ExpiresIn   int          `json:"expires_in"`
	Operator    OperatorInfo `json:"operator"`
}
