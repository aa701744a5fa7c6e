package credits

import (
	"context"
	"errors"
	"time"

	"github.com/creditrail/creditrail/internal/models"
	"github.com/creditrail/creditrail/internal/plans"
	"github.com/creditrail/creditrail/internal/wallet"
	"gorm.io/gorm"
)

// ChargeResult reports the outcome of a metered-usage debit.
type ChargeResult struct {
	Success         bool      `json:"success"`
	FromPackage     int64     `json:"from_package"`
	FromIndependent int64     `json:"from_independent"`
	Balance         int64     `json:"balance"`
	ErrorCode       ErrorCode `json:"error,omitempty"`
}

// GrantResult reports the outcome of an independent-credit grant.
type GrantResult struct {
	Success   bool      `json:"success"`
	Granted   int64     `json:"granted"`
	Balance   int64     `json:"balance"`
	ErrorCode ErrorCode `json:"error,omitempty"`
}

// UsageService is the charge path: it debits metered usage against the
// wallet, spending package credits before independent credits, and hosts
// the grant operation used by redemptions and payment webhooks.
type UsageService struct {
	db *gorm.DB
}

// NewUsageService constructs a usage service.
func NewUsageService(db *gorm.DB) *UsageService {
	return &UsageService{db: db}
}

var errChargeRejected = errors.New("credits: charge rejected")

// Charge debits amount from the wallet, package pool first.
//
// Package credits reset and expire with the subscription, so they are
// always spent before the purchased pool. When the active package config
// carries a daily usage limit, spend within the current UTC day is capped.
func (s *UsageService) Charge(ctx context.Context, userID uint64, amount int64, reason string, now time.Time) (ChargeResult, error) {
	if userID == 0 || amount <= 0 {
		return ChargeResult{ErrorCode: ErrCodeInvalidParams}, nil
	}

	var res ChargeResult
	errTx := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		up, pkg, errActive := plans.ActivePackageTx(ctx, tx, userID, now)
		if errActive != nil {
			return errActive
		}
		if up != nil {
			cfg := ResolveConfig(up.PackageSnapshot, pkg)
			if cfg.DailyUsageLimit > 0 {
				spent, errSpent := spentTodayTx(ctx, tx, userID, now)
				if errSpent != nil {
					return errSpent
				}
				if spent+amount > cfg.DailyUsageLimit {
					res = ChargeResult{ErrorCode: ErrCodeLimitReached}
					return errChargeRejected
				}
			}
		}

		var fromPackage, fromIndependent int64
		delta, errApply := wallet.ApplyDeltaTx(ctx, tx, userID, func(w *models.Wallet) error {
			if w.TotalAvailable() < amount {
				res = ChargeResult{ErrorCode: ErrCodeInsufficientBalance}
				return errChargeRejected
			}
			fromPackage = amount
			if fromPackage > w.PackageTokensRemaining {
				fromPackage = w.PackageTokensRemaining
			}
			fromIndependent = amount - fromPackage
			w.PackageTokensRemaining -= fromPackage
			w.IndependentTokens -= fromIndependent
			return nil
		})
		if errApply != nil {
			return errApply
		}

		if fromPackage > 0 {
			if errRecord := wallet.RecordTx(ctx, tx, wallet.Entry{
				UserID: userID,
				Type:   models.TxnExpense,
				Bucket: models.BucketPackage,
				Tokens: -fromPackage,
				Before: delta.Before,
				After:  delta.After,
				Reason: reason,
			}); errRecord != nil {
				return errRecord
			}
		}
		if fromIndependent > 0 {
			if errRecord := wallet.RecordTx(ctx, tx, wallet.Entry{
				UserID: userID,
				Type:   models.TxnExpense,
				Bucket: models.BucketIndependent,
				Tokens: -fromIndependent,
				Before: delta.Before,
				After:  delta.After,
				Reason: reason,
			}); errRecord != nil {
				return errRecord
			}
		}

		res = ChargeResult{
			Success:         true,
			FromPackage:     fromPackage,
			FromIndependent: fromIndependent,
			Balance:         delta.After.TotalAvailable(),
		}
		return nil
	})
	if errTx != nil {
		if errors.Is(errTx, errChargeRejected) {
			return res, nil
		}
		if errors.Is(errTx, wallet.ErrConflict) {
			return ChargeResult{ErrorCode: ErrCodeConflict}, nil
		}
		return ChargeResult{}, errTx
	}
	return res, nil
}

// GrantIndependent credits amount to the purchased pool. When orderRef is
// set the grant is idempotent: a ledger row already carrying the reference
// makes the call a no-op success, so webhook replays apply nothing twice.
func (s *UsageService) GrantIndependent(ctx context.Context, userID uint64, amount int64, orderRef *string, reason string, now time.Time) (GrantResult, error) {
	if userID == 0 || amount <= 0 {
		return GrantResult{ErrorCode: ErrCodeInvalidParams}, nil
	}

	var res GrantResult
	errTx := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return grantIndependentTx(ctx, tx, userID, amount, orderRef, reason, &res)
	})
	if errTx != nil {
		if errors.Is(errTx, wallet.ErrConflict) {
			return GrantResult{ErrorCode: ErrCodeConflict}, nil
		}
		return GrantResult{}, errTx
	}
	return res, nil
}

// GrantIndependentTx is the in-transaction form used by the redemption
// state machine, so the grant commits or rolls back with the code claim.
func GrantIndependentTx(ctx context.Context, tx *gorm.DB, userID uint64, amount int64, orderRef *string, reason string) (GrantResult, error) {
	var res GrantResult
	if errGrant := grantIndependentTx(ctx, tx, userID, amount, orderRef, reason, &res); errGrant != nil {
		return GrantResult{}, errGrant
	}
	return res, nil
}

func grantIndependentTx(ctx context.Context, tx *gorm.DB, userID uint64, amount int64, orderRef *string, reason string, res *GrantResult) error {
	if orderRef != nil {
		seen, errSeen := wallet.HasOrderRef(ctx, tx, *orderRef)
		if errSeen != nil {
			return errSeen
		}
		if seen {
			w, errGet := getWalletTx(ctx, tx, userID)
			if errGet != nil {
				return errGet
			}
			*res = GrantResult{Success: true, Granted: 0, Balance: w.TotalAvailable()}
			return nil
		}
	}

	delta, errApply := wallet.ApplyDeltaTx(ctx, tx, userID, func(w *models.Wallet) error {
		w.IndependentTokens += amount
		return nil
	})
	if errApply != nil {
		return errApply
	}

	if errRecord := wallet.RecordTx(ctx, tx, wallet.Entry{
		UserID:   userID,
		Type:     models.TxnIncome,
		Bucket:   models.BucketIndependent,
		Tokens:   amount,
		Before:   delta.Before,
		After:    delta.After,
		OrderRef: orderRef,
		Reason:   reason,
	}); errRecord != nil {
		return errRecord
	}

	*res = GrantResult{Success: true, Granted: amount, Balance: delta.After.TotalAvailable()}
	return nil
}

func getWalletTx(ctx context.Context, tx *gorm.DB, userID uint64) (models.Wallet, error) {
	var w models.Wallet
	errFind := tx.WithContext(ctx).Where("user_id = ?", userID).First(&w).Error
	if errFind != nil && !errors.Is(errFind, gorm.ErrRecordNotFound) {
		return models.Wallet{}, errFind
	}
	w.UserID = userID
	return w, nil
}

// spentTodayTx sums expense magnitudes recorded since UTC midnight.
func spentTodayTx(ctx context.Context, tx *gorm.DB, userID uint64, now time.Time) (int64, error) {
	dayStart := now.UTC().Truncate(24 * time.Hour)
	var total *int64
	errSum := tx.WithContext(ctx).Model(&models.CreditTransaction{}).
		Select("SUM(-tokens)").
		Where("user_id = ? AND type = ? AND created_at >= ?", userID, models.TxnExpense, dayStart).
		Scan(&total).Error
	if errSum != nil {
		return 0, errSum
	}
	if total == nil {
		return 0, nil
	}
	return *total, nil
}
