package notifications

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mwangikariuki/shopkit-backend/pkg/db/models"
)

// Recipient is the contact surface for one customer, joined from the
// users and customers tables. Phone is nil when the customer never
// provided one.
type Recipient struct {
	Email     string
	FirstName string
	Phone     *string
}

// Repository persists delivery-log rows and resolves message recipients.
type Repository interface {
	Create(ctx context.Context, notification *models.Notification) error
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.Notification, error)
	FindRecipient(ctx context.Context, customerID uuid.UUID) (*Recipient, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a notifications repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, notification *models.Notification) error {
	return r.db.WithContext(ctx).Create(notification).Error
}

func (r *repository) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.Notification, error) {
	var rows []models.Notification
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) FindRecipient(ctx context.Context, customerID uuid.UUID) (*Recipient, error) {
	var recipient Recipient
	err := r.db.WithContext(ctx).
		Table("customers").
		Select("users.email AS email, users.first_name AS first_name, customers.phone AS phone").
		Joins("JOIN users ON users.id = customers.user_id").
		Where("customers.id = ?", customerID).
		Take(&recipient).Error
	if err != nil {
		return nil, err
	}
	return &recipient, nil
}
