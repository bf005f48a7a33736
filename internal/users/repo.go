package users

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mwangikariuki/shopkit-backend/pkg/db/models"
)

// Repository exposes user-related persistence operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a users repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repo bound to the supplied transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// Create inserts a new user and returns the persisted model.
func (r *Repository) Create(ctx context.Context, dto CreateUserDTO) (*models.User, error) {
	user := dto.ToModel()
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// FindByEmail retrieves the user matching the provided email.
func (r *Repository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Preload("Customer").Where("email = ?", email).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByID loads a user by their UUID, customer profile included when present.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Preload("Customer").First(&user, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateLastLogin refreshes the user's last_login_at timestamp.
func (r *Repository) UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", id).
		UpdateColumn("last_login_at", at).Error
}

// UpdateName overwrites the user's first and last name.
func (r *Repository) UpdateName(ctx context.Context, id uuid.UUID, firstName, lastName string) error {
	return r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"first_name": firstName,
			"last_name":  lastName,
		}).Error
}

// FindCustomerByUserID loads the customer profile for a user. Absence is
// reported as gorm.ErrRecordNotFound, not an application error.
func (r *Repository) FindCustomerByUserID(ctx context.Context, userID uuid.UUID) (*models.Customer, error) {
	var customer models.Customer
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&customer).Error; err != nil {
		return nil, err
	}
	return &customer, nil
}

// EnsureCustomer returns the customer row for a user, creating an empty
// profile on first use. Existing contact fields are never touched.
func (r *Repository) EnsureCustomer(ctx context.Context, userID uuid.UUID) (*models.Customer, error) {
	var customer models.Customer
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		FirstOrCreate(&customer, models.Customer{UserID: userID}).Error
	if err != nil {
		return nil, err
	}
	return &customer, nil
}

// UpsertCustomer creates the customer row on first write and updates the
// contact fields on every later one, keyed on the user_id unique index.
func (r *Repository) UpsertCustomer(ctx context.Context, userID uuid.UUID, dto UpdateCustomerDTO) (*models.Customer, error) {
	customer := models.Customer{
		UserID:  userID,
		Phone:   dto.Phone,
		Address: dto.Address,
		City:    dto.City,
		Country: dto.Country,
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"phone", "address", "city", "country", "updated_at"}),
		}).
		Create(&customer).Error
	if err != nil {
		return nil, err
	}
	return r.FindCustomerByUserID(ctx, userID)
}
