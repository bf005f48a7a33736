package auth

import (
	"github.com/mwangikariuki/shopkit-backend/internal/users"
)

// RegisterRequest contains the payload required to create an account.
// The contact fields are optional; when any is present the customer
// profile is created alongside the user.
type RegisterRequest struct {
	FirstName string `json:"first_name" validate:"required"`
	LastName  string `json:"last_name" validate:"required"`
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=8"`
	Phone     string `json:"phone,omitempty" validate:"omitempty,max=32"`
	Address   string `json:"address,omitempty" validate:"omitempty,max=255"`
	City      string `json:"city,omitempty" validate:"omitempty,max=100"`
	Country   string `json:"country,omitempty" validate:"omitempty,max=100"`
}

// LoginRequest carries the credential payload for password login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// GoogleLoginRequest carries the OAuth authorization code from the client.
type GoogleLoginRequest struct {
	Code string `json:"code" validate:"required"`
}

// RefreshRequest pairs the expired access token with its refresh token.
type RefreshRequest struct {
	AccessToken  string `json:"access_token" validate:"required"`
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// AuthResponse is returned by register, login, and google login.
type AuthResponse struct {
	AccessToken  string         `json:"access_token"`
	RefreshToken string         `json:"refresh_token"`
	User         *users.UserDTO `json:"user"`
}

// RefreshResponse carries the rotated token pair.
type RefreshResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}
