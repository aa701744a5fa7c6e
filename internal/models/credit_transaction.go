package models

import (
	"time"

	"gorm.io/datatypes"
)

// TxnType classifies the business direction of a ledger entry.
type TxnType string

const (
	// TxnIncome credits the wallet (recovery, grant, redemption).
	TxnIncome TxnType = "income"
	// TxnExpense debits the wallet (metered usage).
	TxnExpense TxnType = "expense"
	// TxnReset records a top-up-to-cap or package-credit reset.
	TxnReset TxnType = "reset"
)

// CreditBucket identifies which balance pool a ledger entry touched.
type CreditBucket string

const (
	// BucketPackage is the regenerating, capped subscription pool.
	BucketPackage CreditBucket = "package"
	// BucketIndependent is the purchased, non-expiring pool.
	BucketIndependent CreditBucket = "independent"
)

// CreditTransaction is one immutable row of the balance audit trail.
//
// Rows are append-only; nothing updates or deletes them. For the touched
// bucket, after = before + Tokens always holds; the other bucket's
// before/after pair stays null.
type CreditTransaction struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	UserID uint64       `gorm:"not null;index"`                       // Owning user.
	Type   TxnType      `gorm:"column:type;type:text;not null;index"` // income, expense or reset.
	Bucket CreditBucket `gorm:"type:text;not null;index"`             // Pool the entry applies to.

	Tokens int64 `gorm:"not null"` // Signed balance delta for the bucket.

	BeforePackageTokens     *int64 // Package pool before, when touched.
	AfterPackageTokens      *int64 // Package pool after, when touched.
	BeforeIndependentTokens *int64 // Independent pool before, when touched.
	AfterIndependentTokens  *int64 // Independent pool after, when touched.

	OrderRef *string        `gorm:"type:text;index"`  // External order reference, if any.
	Reason   string         `gorm:"type:text"`        // Human-readable provenance.
	Meta     datatypes.JSON `gorm:"type:jsonb"`       // Structured provenance (rates, counters).

	CreatedAt time.Time `gorm:"not null;autoCreateTime;index"` // Creation timestamp.
}
