package models

import (
	"time"

	"gorm.io/gorm"
)

// User represents a user of the store.
type User struct {
	ID         string `json:"id" gorm:"primaryKey;type:varchar(36)" validate:"omitempty,uuid"`
	Username   string `json:"username" gorm:"uniqueIndex;type:varchar(100)" validate:"required,min=3,max=100"`
	Email      string `json:"email" gorm:"uniqueIndex;type:varchar(255)" validate:"required,email"`
	Password   string `json:"-" gorm:"type:varchar(255)"`
	IsAdmin    bool   `json:"is_admin"`
	IsBlocked  bool   `json:"is_blocked"`
	IsVerified bool   `json:"is_verified"`
	// One-time email verification code, cleared once used.
	VerificationCode string     `json:"-" gorm:"type:varchar(12)"`
	CodeExpiresAt    *time.Time `json:"-"`
	// Set for users created through a federated login; they have no password.
	IsFederated bool `json:"is_federated"`
	gorm.Model       // Embed gorm.Model for CreatedAt, UpdatedAt, DeletedAt
}
