package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mwangikariuki/shopkit-backend/pkg/db/models"
	pkgerrors "github.com/mwangikariuki/shopkit-backend/pkg/errors"
)

// UpdateProfileRequest carries the mutable account and contact fields.
// Nil fields are left untouched.
type UpdateProfileRequest struct {
	FirstName *string `json:"first_name,omitempty"`
	LastName  *string `json:"last_name,omitempty"`
	Phone     *string `json:"phone,omitempty"`
	Address   *string `json:"address,omitempty"`
	City      *string `json:"city,omitempty"`
	Country   *string `json:"country,omitempty"`
}

type profileRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	UpdateName(ctx context.Context, id uuid.UUID, firstName, lastName string) error
	UpsertCustomer(ctx context.Context, userID uuid.UUID, dto UpdateCustomerDTO) (*models.Customer, error)
}

// Service exposes the profile operations backing the account endpoints.
type Service interface {
	GetProfile(ctx context.Context, userID uuid.UUID) (*UserDTO, error)
	UpdateProfile(ctx context.Context, userID uuid.UUID, req UpdateProfileRequest) (*UserDTO, error)
}

type service struct {
	repo profileRepository
}

// NewService builds a users service over the provided repository.
func NewService(repo profileRepository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("users repository is required")
	}
	return &service{repo: repo}, nil
}

func (s *service) GetProfile(ctx context.Context, userID uuid.UUID) (*UserDTO, error) {
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return FromModel(user), nil
}

func (s *service) UpdateProfile(ctx context.Context, userID uuid.UUID, req UpdateProfileRequest) (*UserDTO, error) {
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	firstName := user.FirstName
	lastName := user.LastName
	if req.FirstName != nil {
		firstName = strings.TrimSpace(*req.FirstName)
		if firstName == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "first name cannot be empty")
		}
	}
	if req.LastName != nil {
		lastName = strings.TrimSpace(*req.LastName)
		if lastName == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "last name cannot be empty")
		}
	}
	if firstName != user.FirstName || lastName != user.LastName {
		if err := s.repo.UpdateName(ctx, userID, firstName, lastName); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update name")
		}
		user.FirstName = firstName
		user.LastName = lastName
		user.UpdatedAt = time.Now().UTC()
	}

	if req.Phone != nil || req.Address != nil || req.City != nil || req.Country != nil {
		dto := UpdateCustomerDTO{
			Phone:   req.Phone,
			Address: req.Address,
			City:    req.City,
			Country: req.Country,
		}
		if existing := user.Customer; existing != nil {
			if dto.Phone == nil {
				dto.Phone = existing.Phone
			}
			if dto.Address == nil {
				dto.Address = existing.Address
			}
			if dto.City == nil {
				dto.City = existing.City
			}
			if dto.Country == nil {
				dto.Country = existing.Country
			}
		}
		customer, err := s.repo.UpsertCustomer(ctx, userID, dto)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "upsert customer")
		}
		user.Customer = customer
	}

	return FromModel(user), nil
}

func (s *service) loadUser(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}
	return user, nil
}
