package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mwangikariuki/shopkit-backend/pkg/enums"
)

// User represents the canonical identity entity.
type User struct {
	ID           uuid.UUID          `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Email        string             `gorm:"type:text;not null;uniqueIndex"`
	PasswordHash string             `gorm:"column:password_hash;not null;default:''"`
	FirstName    string             `gorm:"column:first_name;not null"`
	LastName     string             `gorm:"column:last_name;not null"`
	AuthProvider enums.AuthProvider `gorm:"column:auth_provider;type:auth_provider;not null;default:'email'"`
	IsStaff      bool               `gorm:"column:is_staff;not null;default:false"`
	IsActive     bool               `gorm:"column:is_active;not null"`
	LastLoginAt  *time.Time         `gorm:"column:last_login_at"`
	Customer     *Customer          `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	CreatedAt    time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

func (u *User) BeforeCreate(*gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}
