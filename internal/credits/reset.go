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

// ResetResult reports the outcome of a user-triggered manual reset.
type ResetResult struct {
	Success     bool      `json:"success"`
	ResetAmount int64     `json:"reset_amount"`
	NewBalance  int64     `json:"new_balance"`
	ErrorCode   ErrorCode `json:"error,omitempty"`
}

// ResetService performs user-triggered top-up-to-cap resets, rate limited
// per UTC calendar day.
type ResetService struct {
	db *gorm.DB
}

// NewResetService constructs a manual reset service.
func NewResetService(db *gorm.DB) *ResetService {
	return &ResetService{db: db}
}

var errResetRejected = errors.New("credits: reset rejected")

// ManualReset tops the package pool up to the configured cap.
//
// The per-day counter compares calendar date components in UTC only: a
// reset at 23:59 and another at 00:01 land on different days even though
// two minutes apart. The counter rolls over silently at UTC midnight; no
// job pre-zeroes it. An OCC conflict is terminal for this call so a retry
// can never double-grant.
func (s *ResetService) ManualReset(ctx context.Context, userID uint64, now time.Time) (ResetResult, error) {
	if userID == 0 {
		return ResetResult{ErrorCode: ErrCodeInvalidParams}, nil
	}

	var res ResetResult
	errTx := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		up, pkg, errActive := plans.ActivePackageTx(ctx, tx, userID, now)
		if errActive != nil {
			return errActive
		}
		if up == nil {
			res = ResetResult{ErrorCode: ErrCodeNoActivePackage}
			return errResetRejected
		}
		cfg := ResolveConfig(up.PackageSnapshot, pkg)
		if cfg.ManualResetPerDay <= 0 {
			res = ResetResult{ErrorCode: ErrCodeLimitReached}
			return errResetRejected
		}

		var increment int64
		delta, errApply := wallet.ApplyDeltaTx(ctx, tx, userID, func(w *models.Wallet) error {
			resetsToday := 0
			if w.ManualResetAt != nil && sameUTCDate(*w.ManualResetAt, now) {
				resetsToday = w.ManualResetCount
			}
			if resetsToday >= cfg.ManualResetPerDay {
				res = ResetResult{ErrorCode: ErrCodeLimitReached}
				return errResetRejected
			}

			increment = cfg.CreditCap - w.PackageTokensRemaining
			if increment <= 0 {
				res = ResetResult{ErrorCode: ErrCodeAlreadyAtCap}
				return errResetRejected
			}

			w.PackageTokensRemaining = cfg.CreditCap
			if w.PackageDailyQuotaTokens < cfg.CreditCap {
				w.PackageDailyQuotaTokens = cfg.CreditCap
			}
			w.ManualResetCount = resetsToday + 1
			w.ManualResetAt = &now
			// Restart the regeneration clock so the next tick cannot
			// double-grant on top of the reset.
			w.LastRecoveryAt = &now
			return nil
		})
		if errApply != nil {
			return errApply
		}

		if errRecord := wallet.RecordTx(ctx, tx, wallet.Entry{
			UserID: userID,
			Type:   models.TxnReset,
			Bucket: models.BucketPackage,
			Tokens: increment,
			Before: delta.Before,
			After:  delta.After,
			Reason: "manual reset",
			Meta: map[string]any{
				"credit_cap":  cfg.CreditCap,
				"reset_count": delta.After.ManualResetCount,
			},
		}); errRecord != nil {
			return errRecord
		}

		res = ResetResult{Success: true, ResetAmount: increment, NewBalance: delta.After.PackageTokensRemaining}
		return nil
	})
	if errTx != nil {
		if errors.Is(errTx, errResetRejected) {
			return res, nil
		}
		if errors.Is(errTx, wallet.ErrConflict) {
			return ResetResult{ErrorCode: ErrCodeConflict}, nil
		}
		return ResetResult{}, errTx
	}
	return res, nil
}

// sameUTCDate reports whether two instants share a UTC calendar date.
func sameUTCDate(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}
