package models

import "time"

// User represents an end-user account holding a credit wallet.
type User struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Username string `gorm:"type:text;not null;uniqueIndex"` // Unique login name.
	Email    string `gorm:"type:text"`                      // Contact email.
	Password string `gorm:"type:text;not null"`             // Hashed password.

	Active   bool `gorm:"not null;default:true"`  // Whether the account is active.
	Disabled bool `gorm:"not null;default:false"` // Blocks sign-in and charges when true.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
