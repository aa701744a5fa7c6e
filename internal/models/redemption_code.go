package models

import "time"

// CodeStatus is the redemption state of a code.
type CodeStatus string

const (
	// CodeActive means the code has not been claimed yet.
	CodeActive CodeStatus = "active"
	// CodeUsed means the code was claimed; the transition happens at most once.
	CodeUsed CodeStatus = "used"
	// CodeDisabled means an admin pulled the code before it was claimed.
	CodeDisabled CodeStatus = "disabled"
)

// CodeType selects what a redemption code grants.
type CodeType string

const (
	// CodeCredits grants independent credits.
	CodeCredits CodeType = "credits"
	// CodePlan grants or extends a subscription package.
	CodePlan CodeType = "plan"
)

// RedemptionCode is a one-time code created by an admin batch.
//
// The active -> used transition is enforced by a conditional update on
// (code, status); concurrent claims see zero affected rows and lose.
type RedemptionCode struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Code   string     `gorm:"type:text;not null;uniqueIndex"` // Normalized code string.
	Status CodeStatus `gorm:"type:text;not null;index"`       // active or used.

	CodeType  CodeType `gorm:"type:text;not null"`  // credits or plan.
	CodeValue int64    `gorm:"not null;default:0"`  // Credit amount for credits codes.
	PlanType  PlanType `gorm:"type:text"`           // Target tier for plan codes.
	ValidDays int      `gorm:"not null;default:0"`  // Assignment length for plan codes.

	BatchRef string `gorm:"type:text;index"` // Admin creation batch identifier.

	ExpiresAt *time.Time // Redemption deadline, if any.
	UsedAt    *time.Time // Claim time, once used.
	UsedBy    *uint64    `gorm:"index"` // Claiming user, once used.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
}
