package models

import (
	"time"

	"gorm.io/datatypes"
)

// UserPackage assigns a catalog package to a user for a time window.
//
// At most one row per user is active. PackageSnapshot freezes the package
// terms at assignment time so later catalog edits never change an existing
// grant.
type UserPackage struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	UserID    uint64 `gorm:"not null;index"` // Owning user.
	PackageID uint64 `gorm:"not null;index"` // Catalog package assigned.

	StartAt time.Time `gorm:"not null"`       // Assignment start.
	EndAt   time.Time `gorm:"not null;index"` // Assignment end; extended on renew.

	DailyPoints int64 `gorm:"not null;default:0"` // Package credits granted per assignment.

	IsActive bool `gorm:"not null;default:true;index"` // False once superseded or expired.

	PackageSnapshot datatypes.JSON `gorm:"type:jsonb;not null;default:'{}'"` // Frozen package terms.

	OrderRef *string `gorm:"type:text;index"` // Originating order or code reference.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
