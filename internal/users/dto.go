package users

import (
	"time"

	"github.com/google/uuid"

	"github.com/mwangikariuki/shopkit-backend/pkg/db/models"
	"github.com/mwangikariuki/shopkit-backend/pkg/enums"
)

// UserDTO is the transport shape that omits sensitive credentials.
type UserDTO struct {
	ID           uuid.UUID          `json:"id"`
	Email        string             `json:"email"`
	FirstName    string             `json:"first_name"`
	LastName     string             `json:"last_name"`
	AuthProvider enums.AuthProvider `json:"auth_provider"`
	IsStaff      bool               `json:"is_staff"`
	IsActive     bool               `json:"is_active"`
	LastLoginAt  *time.Time         `json:"last_login_at,omitempty"`
	Customer     *CustomerDTO       `json:"customer,omitempty"`
	CreatedAt    time.Time          `json:"created_at"`
	UpdatedAt    time.Time          `json:"updated_at"`
}

// CustomerDTO carries the shipping profile attached to a user.
type CustomerDTO struct {
	ID      uuid.UUID `json:"id"`
	Phone   *string   `json:"phone,omitempty"`
	Address *string   `json:"address,omitempty"`
	City    *string   `json:"city,omitempty"`
	Country *string   `json:"country,omitempty"`
}

// CreateUserDTO holds the data required by the repo to persist a new user.
type CreateUserDTO struct {
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
	AuthProvider enums.AuthProvider
	IsStaff      bool
	IsActive     *bool
}

// UpdateCustomerDTO carries the mutable customer profile fields.
type UpdateCustomerDTO struct {
	Phone   *string
	Address *string
	City    *string
	Country *string
}

func FromModel(u *models.User) *UserDTO {
	if u == nil {
		return nil
	}

	return &UserDTO{
		ID:           u.ID,
		Email:        u.Email,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		AuthProvider: u.AuthProvider,
		IsStaff:      u.IsStaff,
		IsActive:     u.IsActive,
		LastLoginAt:  u.LastLoginAt,
		Customer:     customerFromModel(u.Customer),
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func customerFromModel(c *models.Customer) *CustomerDTO {
	if c == nil {
		return nil
	}
	return &CustomerDTO{
		ID:      c.ID,
		Phone:   c.Phone,
		Address: c.Address,
		City:    c.City,
		Country: c.Country,
	}
}

func (c CreateUserDTO) ToModel() *models.User {
	isActive := true
	if c.IsActive != nil {
		isActive = *c.IsActive
	}

	provider := c.AuthProvider
	if provider == "" {
		provider = enums.AuthProviderEmail
	}

	return &models.User{
		Email:        c.Email,
		PasswordHash: c.PasswordHash,
		FirstName:    c.FirstName,
		LastName:     c.LastName,
		AuthProvider: provider,
		IsStaff:      c.IsStaff,
		IsActive:     isActive,
	}
}
