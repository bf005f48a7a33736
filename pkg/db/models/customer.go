package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Customer is the shopping profile attached to a user. A user without a
// customer row has never provided contact details; the aggregate is
// optional and lookups must treat its absence as a normal state.
type Customer struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID    uuid.UUID `gorm:"column:user_id;type:uuid;not null;uniqueIndex"`
	Phone     *string   `gorm:"column:phone"`
	Address   *string   `gorm:"column:address"`
	City      *string   `gorm:"column:city"`
	Country   *string   `gorm:"column:country"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (c *Customer) BeforeCreate(*gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}
