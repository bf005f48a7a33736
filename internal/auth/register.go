package auth

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/mwangikariuki/shopkit-backend/internal/users"
	"github.com/mwangikariuki/shopkit-backend/pkg/config"
	"github.com/mwangikariuki/shopkit-backend/pkg/db/models"
	"github.com/mwangikariuki/shopkit-backend/pkg/enums"
	pkgerrors "github.com/mwangikariuki/shopkit-backend/pkg/errors"
	"github.com/mwangikariuki/shopkit-backend/pkg/googleauth"
	"github.com/mwangikariuki/shopkit-backend/pkg/outbox"
	"github.com/mwangikariuki/shopkit-backend/pkg/outbox/payloads"
	"github.com/mwangikariuki/shopkit-backend/pkg/security"
)

// RegisterService handles account creation for both credential and
// Google-provisioned users.
type RegisterService interface {
	Register(ctx context.Context, req RegisterRequest) (*users.UserDTO, error)
	EnsureGoogleUser(ctx context.Context, profile *googleauth.Profile) (*models.User, error)
}

type outboxPublisher interface {
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// RegisterServiceParams packages the dependencies for the registration flow.
type RegisterServiceParams struct {
	DB             txRunner
	Outbox         outboxPublisher
	PasswordConfig config.PasswordConfig
}

type registerService struct {
	db          txRunner
	outbox      outboxPublisher
	passwordCfg config.PasswordConfig
}

// NewRegisterService builds a registration service with the provided dependencies.
func NewRegisterService(params RegisterServiceParams) (RegisterService, error) {
	if params.DB == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "database client required")
	}
	if params.Outbox == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "outbox publisher required")
	}
	return &registerService{
		db:          params.DB,
		outbox:      params.Outbox,
		passwordCfg: params.PasswordConfig,
	}, nil
}

func (s *registerService) Register(ctx context.Context, req RegisterRequest) (*users.UserDTO, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}

	passwordHash, err := security.HashPassword(req.Password, s.passwordCfg)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}

	var created *models.User
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		userRepo := users.NewRepository(tx)

		if _, err := userRepo.FindByEmail(ctx, email); err == nil {
			return pkgerrors.New(pkgerrors.CodeConflict, "email already registered")
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check user email")
		}

		user, err := userRepo.Create(ctx, users.CreateUserDTO{
			Email:        email,
			PasswordHash: passwordHash,
			FirstName:    strings.TrimSpace(req.FirstName),
			LastName:     strings.TrimSpace(req.LastName),
			AuthProvider: enums.AuthProviderEmail,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create user")
		}
		created = user

		if contact := contactFields(req); contact != nil {
			if _, err := userRepo.UpsertCustomer(ctx, user.ID, *contact); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create customer profile")
			}
		}

		return s.emitRegistered(ctx, tx, user)
	})
	if err != nil {
		return nil, err
	}
	return users.FromModel(created), nil
}

func contactFields(req RegisterRequest) *users.UpdateCustomerDTO {
	var dto users.UpdateCustomerDTO
	set := func(dst **string, raw string) {
		if v := strings.TrimSpace(raw); v != "" {
			*dst = &v
		}
	}
	set(&dto.Phone, req.Phone)
	set(&dto.Address, req.Address)
	set(&dto.City, req.City)
	set(&dto.Country, req.Country)
	if dto.Phone == nil && dto.Address == nil && dto.City == nil && dto.Country == nil {
		return nil
	}
	return &dto
}

// EnsureGoogleUser resolves a verified Google profile to a local account,
// creating one on first login. An existing account with the same email is
// reused regardless of how it was originally provisioned.
func (s *registerService) EnsureGoogleUser(ctx context.Context, profile *googleauth.Profile) (*models.User, error) {
	if profile == nil || strings.TrimSpace(profile.Email) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "google profile missing email")
	}
	email := strings.ToLower(strings.TrimSpace(profile.Email))

	var resolved *models.User
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		userRepo := users.NewRepository(tx)

		existing, err := userRepo.FindByEmail(ctx, email)
		if err == nil {
			resolved = existing
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check user email")
		}

		user, err := userRepo.Create(ctx, users.CreateUserDTO{
			Email:        email,
			FirstName:    profile.GivenName,
			LastName:     profile.FamilyName,
			AuthProvider: enums.AuthProviderGoogle,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create user")
		}
		resolved = user

		return s.emitRegistered(ctx, tx, user)
	})
	if err != nil {
		return nil, err
	}
	return resolved, nil
}

func (s *registerService) emitRegistered(ctx context.Context, tx *gorm.DB, user *models.User) error {
	event := outbox.DomainEvent{
		EventType:     enums.EventUserRegistered,
		AggregateType: enums.AggregateUser,
		AggregateID:   user.ID,
		Version:       1,
		Actor:         &outbox.ActorRef{UserID: user.ID},
		Data: payloads.UserRegisteredEvent{
			UserID:    user.ID,
			Email:     user.Email,
			FirstName: user.FirstName,
			Provider:  user.AuthProvider,
		},
	}
	if err := s.outbox.EmitIfNotExists(ctx, tx, event); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit registered event")
	}
	return nil
}
