package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/creditrail/creditrail/internal/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Entry describes one balance mutation to be recorded in the audit trail.
// Before/After are the wallet snapshots surrounding the mutation; the
// recorder derives the per-bucket before/after pair from them.
type Entry struct {
	UserID   uint64
	Type     models.TxnType
	Bucket   models.CreditBucket
	Tokens   int64
	Before   models.Wallet
	After    models.Wallet
	OrderRef *string
	Reason   string
	Meta     map[string]any
}

// RecordTx appends one immutable ledger row on tx. It must run in the same
// transaction as the wallet update it describes, so an OCC conflict rolls
// the row back together with the balance write.
func RecordTx(ctx context.Context, tx *gorm.DB, e Entry) error {
	if e.UserID == 0 {
		return errors.New("ledger: missing user id")
	}

	row := models.CreditTransaction{
		UserID:   e.UserID,
		Type:     e.Type,
		Bucket:   e.Bucket,
		Tokens:   e.Tokens,
		OrderRef: e.OrderRef,
		Reason:   e.Reason,
	}

	switch e.Bucket {
	case models.BucketPackage:
		before, after := e.Before.PackageTokensRemaining, e.After.PackageTokensRemaining
		row.BeforePackageTokens = &before
		row.AfterPackageTokens = &after
		if after != before+e.Tokens {
			return fmt.Errorf("ledger: package delta mismatch: %d + %d != %d", before, e.Tokens, after)
		}
	case models.BucketIndependent:
		before, after := e.Before.IndependentTokens, e.After.IndependentTokens
		row.BeforeIndependentTokens = &before
		row.AfterIndependentTokens = &after
		if after != before+e.Tokens {
			return fmt.Errorf("ledger: independent delta mismatch: %d + %d != %d", before, e.Tokens, after)
		}
	default:
		return fmt.Errorf("ledger: unknown bucket %q", e.Bucket)
	}

	if len(e.Meta) > 0 {
		raw, errMarshal := json.Marshal(e.Meta)
		if errMarshal != nil {
			return fmt.Errorf("ledger: marshal meta: %w", errMarshal)
		}
		row.Meta = datatypes.JSON(raw)
	}

	if errCreate := tx.WithContext(ctx).Create(&row).Error; errCreate != nil {
		return fmt.Errorf("ledger: append: %w", errCreate)
	}
	return nil
}

// HasOrderRef reports whether any ledger row already carries orderRef.
// Grant paths use it to stay idempotent across webhook replays.
func HasOrderRef(ctx context.Context, tx *gorm.DB, orderRef string) (bool, error) {
	if orderRef == "" {
		return false, nil
	}
	var count int64
	if errCount := tx.WithContext(ctx).Model(&models.CreditTransaction{}).
		Where("order_ref = ?", orderRef).
		Count(&count).Error; errCount != nil {
		return false, fmt.Errorf("ledger: count order ref: %w", errCount)
	}
	return count > 0, nil
}
