package models

import (
	"time"

	"gorm.io/datatypes"
)

// PlanType names a subscription tier in the package catalog.
type PlanType string

const (
	// PlanBasic is the entry tier.
	PlanBasic PlanType = "basic"
	// PlanPro is the mid tier.
	PlanPro PlanType = "pro"
	// PlanEnterprise is the top tier.
	PlanEnterprise PlanType = "enterprise"
)

// Level ranks plan types for upgrade/renew/downgrade decisions.
// Unknown plan types rank as zero, the same as holding no package.
func (p PlanType) Level() int {
	switch p {
	case PlanBasic:
		return 1
	case PlanPro:
		return 2
	case PlanEnterprise:
		return 3
	default:
		return 0
	}
}

// Package is a catalog entry describing a purchasable subscription tier.
type Package struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Name     string   `gorm:"type:text;not null"`             // Display name.
	PlanType PlanType `gorm:"type:text;not null;uniqueIndex"` // Tier identifier.

	DailyPoints       int64 `gorm:"not null;default:0"` // Package credits granted on assignment.
	CreditCap         int64 `gorm:"not null;default:0"` // Regeneration ceiling.
	RecoveryRate      int64 `gorm:"not null;default:0"` // Credits regenerated per hour.
	DailyUsageLimit   int64 `gorm:"not null;default:0"` // Max spend per UTC day, 0 = unlimited.
	ManualResetPerDay int   `gorm:"not null;default:0"` // Allowed manual resets per UTC day.
	ValidDays         int   `gorm:"not null;default:30"` // Default assignment length in days.

	PriceMicros int64 `gorm:"not null;default:0"` // List price in micros, for order flows.

	IsEnabled bool           `gorm:"not null;default:true"`            // Whether the tier is purchasable.
	Features  datatypes.JSON `gorm:"type:jsonb;not null;default:'{}'"` // Display features and overrides.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
