package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mwangikariuki/shopkit-backend/pkg/enums"
)

// Notification is the delivery log for one outbound message. Rows are
// written by the worker after each send attempt; checkout never waits
// on them. OrderID is nil for account-level messages such as the
// registration welcome email.
type Notification struct {
	ID        uuid.UUID                 `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID   *uuid.UUID                `gorm:"column:order_id;type:uuid;index"`
	Channel   enums.NotificationChannel `gorm:"column:channel;type:notification_channel;not null"`
	Recipient string                    `gorm:"column:recipient;not null"`
	Subject   string                    `gorm:"column:subject;not null;default:''"`
	Body      string                    `gorm:"column:body;not null"`
	Status    enums.NotificationStatus  `gorm:"column:status;type:notification_status;not null;default:'pending'"`
	Error     *string                   `gorm:"column:error"`
	SentAt    *time.Time                `gorm:"column:sent_at"`
	CreatedAt time.Time                 `gorm:"column:created_at;autoCreateTime"`
}

func (n *Notification) BeforeCreate(*gorm.DB) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	return nil
}
