package models

import "time"

// OrderStatus tracks payment-confirmation progress of an order.
type OrderStatus string

const (
	// OrderPending means payment confirmation has not arrived.
	OrderPending OrderStatus = "pending"
	// OrderCompleted means the order's grant has been applied exactly once.
	OrderCompleted OrderStatus = "completed"
)

// OrderType selects what a paid order grants.
type OrderType string

const (
	// OrderCredits grants independent credits.
	OrderCredits OrderType = "credits"
	// OrderPlan grants or extends a subscription package.
	OrderPlan OrderType = "plan"
)

// Order records a payment-gateway order used as the idempotency anchor for
// webhook-confirmed grants. The pending -> completed transition is a
// conditional update, so a replayed webhook applies nothing twice.
type Order struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	OrderRef string `gorm:"type:text;not null;uniqueIndex"` // External payment reference.
	UserID   uint64 `gorm:"not null;index"`                 // Purchasing user.

	OrderType OrderType `gorm:"type:text;not null"` // credits or plan.
	Amount    int64     `gorm:"not null;default:0"` // Credit amount for credits orders.
	PlanType  PlanType  `gorm:"type:text"`          // Target tier for plan orders.
	ValidDays int       `gorm:"not null;default:0"` // Assignment length for plan orders.

	Status OrderStatus `gorm:"type:text;not null;index;default:'pending'"` // pending or completed.
	PaidAt *time.Time  // Payment confirmation time.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
