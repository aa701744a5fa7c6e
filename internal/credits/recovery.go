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

// Recoverable is the pure regeneration formula: credits earned since
// lastRecoveryAt at cfg.RecoveryRate per hour, floor-rounded and clamped so
// the balance never passes cfg.CreditCap. Zero when no time passed or the
// balance is already saturated. Callers inject now; the function never
// reads the clock.
func Recoverable(lastRecoveryAt time.Time, currentBalance int64, cfg Config, now time.Time) int64 {
	elapsedMs := now.Sub(lastRecoveryAt).Milliseconds()
	if elapsedMs <= 0 {
		return 0
	}
	if currentBalance >= cfg.CreditCap {
		return 0
	}
	raw := elapsedMs * cfg.RecoveryRate / (3600 * 1000)
	if raw <= 0 {
		return 0
	}
	if currentBalance+raw > cfg.CreditCap {
		return cfg.CreditCap - currentBalance
	}
	return raw
}

// RecoveryResult reports the outcome of one auto-recovery tick.
type RecoveryResult struct {
	Success   bool      `json:"success"`
	Recovered int64     `json:"recovered"`
	Balance   int64     `json:"balance"`
	ErrorCode ErrorCode `json:"error,omitempty"`
}

// RecoveryService applies scheduled regeneration ticks to user wallets.
type RecoveryService struct {
	db *gorm.DB
}

// NewRecoveryService constructs a recovery service.
func NewRecoveryService(db *gorm.DB) *RecoveryService {
	return &RecoveryService{db: db}
}

// errNothingToRecover aborts the wallet update when the computed amount is
// zero, so an idle wallet gets no version bump and no empty ledger row.
var errNothingToRecover = errors.New("credits: nothing to recover")

// Tick applies one regeneration step for userID as of now.
//
// The wallet update and its ledger row commit atomically; an OCC conflict
// surfaces as ErrCodeConflict with no partial effects and is never retried
// here — the scheduler simply reaches the user again on the next tick.
func (s *RecoveryService) Tick(ctx context.Context, userID uint64, now time.Time) (RecoveryResult, error) {
	if userID == 0 {
		return RecoveryResult{ErrorCode: ErrCodeInvalidParams}, nil
	}

	var res RecoveryResult
	errTx := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		up, pkg, errActive := plans.ActivePackageTx(ctx, tx, userID, now)
		if errActive != nil {
			return errActive
		}
		if up == nil {
			res = RecoveryResult{ErrorCode: ErrCodeNoActivePackage}
			return errNothingToRecover
		}
		cfg := ResolveConfig(up.PackageSnapshot, pkg)

		var recovered int64
		delta, errApply := wallet.ApplyDeltaTx(ctx, tx, userID, func(w *models.Wallet) error {
			last := up.StartAt
			if w.LastRecoveryAt != nil {
				last = *w.LastRecoveryAt
			}
			recovered = Recoverable(last, w.PackageTokensRemaining, cfg, now)
			if recovered == 0 {
				res = RecoveryResult{Success: true, Recovered: 0, Balance: w.PackageTokensRemaining}
				return errNothingToRecover
			}
			w.PackageTokensRemaining += recovered
			if w.PackageDailyQuotaTokens < cfg.CreditCap {
				w.PackageDailyQuotaTokens = cfg.CreditCap
			}
			w.LastRecoveryAt = &now
			return nil
		})
		if errApply != nil {
			return errApply
		}

		if errRecord := wallet.RecordTx(ctx, tx, wallet.Entry{
			UserID: userID,
			Type:   models.TxnIncome,
			Bucket: models.BucketPackage,
			Tokens: recovered,
			Before: delta.Before,
			After:  delta.After,
			Reason: "auto recovery",
			Meta: map[string]any{
				"recovery_rate": cfg.RecoveryRate,
				"credit_cap":    cfg.CreditCap,
			},
		}); errRecord != nil {
			return errRecord
		}

		res = RecoveryResult{Success: true, Recovered: recovered, Balance: delta.After.PackageTokensRemaining}
		return nil
	})
	if errTx != nil {
		if errors.Is(errTx, errNothingToRecover) {
			return res, nil
		}
		if errors.Is(errTx, wallet.ErrConflict) {
			return RecoveryResult{ErrorCode: ErrCodeConflict}, nil
		}
		return RecoveryResult{}, errTx
	}
	return res, nil
}
