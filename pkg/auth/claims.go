package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/mwangikariuki/shopkit-backend/pkg/enums"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	UserID       uuid.UUID
	Email        string
	IsStaff      bool
	AuthProvider enums.AuthProvider
	JTI          string
}

// AccessTokenClaims represents the typed JWT issued to clients.
type AccessTokenClaims struct {
	UserID       uuid.UUID          `json:"user_id"`
	Email        string             `json:"email"`
	IsStaff      bool               `json:"is_staff"`
	AuthProvider enums.AuthProvider `json:"auth_provider,omitempty"`
	jwt.RegisteredClaims
}
