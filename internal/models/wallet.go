package models

import "time"

// Wallet holds the credit balances for one user.
//
// The row is mutated exclusively through a conditional update keyed on
// (user_id, version); every successful mutation increments Version by one.
type Wallet struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	UserID uint64 `gorm:"not null;uniqueIndex"` // Owning user.

	PackageTokensRemaining  int64 `gorm:"not null;default:0"` // Regenerating package-pool balance.
	IndependentTokens       int64 `gorm:"not null;default:0"` // Purchased, non-expiring balance.
	PackageDailyQuotaTokens int64 `gorm:"not null;default:0"` // Cap snapshot for the active package.

	LastRecoveryAt *time.Time // Last successful regeneration application.
	PackageResetAt *time.Time // Last package-credit reset (new package assignment).

	ManualResetAt    *time.Time // Timestamp of the latest manual reset.
	ManualResetCount int        `gorm:"not null;default:0"` // Manual resets within the UTC day of ManualResetAt.

	Version int64 `gorm:"not null;default:0"` // Optimistic concurrency version.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// TotalAvailable returns the spendable balance across both pools.
func (w *Wallet) TotalAvailable() int64 {
	return w.PackageTokensRemaining + w.IndependentTokens
}
