package wallet

import (
	"context"
	"errors"
	"fmt"

	"github.com/creditrail/creditrail/internal/models"
	"gorm.io/gorm"
)

// ErrConflict indicates the conditional wallet update matched zero rows
// because another writer bumped the version first. Callers decide whether
// to retry; the store never retries internally.
var ErrConflict = errors.New("wallet: version conflict")

// Mutation transforms a wallet in place. Returning an error aborts the
// update without writing anything.
type Mutation func(w *models.Wallet) error

// Delta is the outcome of one successful conditional update.
type Delta struct {
	Before models.Wallet
	After  models.Wallet
}

// Store owns the persisted wallet rows and their optimistic-concurrency
// versions. Every mutation goes through a single conditional UPDATE keyed
// on (user_id, version).
type Store struct {
	db *gorm.DB
}

// NewStore constructs a wallet store.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Get returns the user's wallet, creating a zeroed row when absent.
func (s *Store) Get(ctx context.Context, userID uint64) (models.Wallet, error) {
	return getOrCreate(s.db.WithContext(ctx), userID)
}

// ApplyDelta runs fn against the current wallet and persists the result in
// its own transaction. For mutations that must commit together with other
// writes (ledger rows, code claims), use ApplyDeltaTx inside the caller's
// transaction instead.
func (s *Store) ApplyDelta(ctx context.Context, userID uint64, fn Mutation) (*Delta, error) {
	var delta *Delta
	errTx := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		d, errApply := ApplyDeltaTx(ctx, tx, userID, fn)
		if errApply != nil {
			return errApply
		}
		delta = d
		return nil
	})
	if errTx != nil {
		return nil, errTx
	}
	return delta, nil
}

// ApplyDeltaTx performs the read-modify-conditional-write cycle on tx.
//
// The write predicate is WHERE user_id = ? AND version = ?; zero affected
// rows means a concurrent writer won and the call fails with ErrConflict,
// rolling back everything else staged on tx.
func ApplyDeltaTx(ctx context.Context, tx *gorm.DB, userID uint64, fn Mutation) (*Delta, error) {
	if userID == 0 {
		return nil, errors.New("wallet: missing user id")
	}

	before, errGet := getOrCreate(tx.WithContext(ctx), userID)
	if errGet != nil {
		return nil, errGet
	}

	next := before
	if errFn := fn(&next); errFn != nil {
		return nil, errFn
	}
	if errCheck := checkInvariants(&next); errCheck != nil {
		return nil, errCheck
	}

	result := tx.WithContext(ctx).Model(&models.Wallet{}).
		Where("user_id = ? AND version = ?", userID, before.Version).
		Updates(map[string]any{
			"package_tokens_remaining":   next.PackageTokensRemaining,
			"independent_tokens":         next.IndependentTokens,
			"package_daily_quota_tokens": next.PackageDailyQuotaTokens,
			"last_recovery_at":           next.LastRecoveryAt,
			"package_reset_at":           next.PackageResetAt,
			"manual_reset_at":            next.ManualResetAt,
			"manual_reset_count":         next.ManualResetCount,
			"version":                    before.Version + 1,
		})
	if result.Error != nil {
		return nil, fmt.Errorf("wallet: update: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, ErrConflict
	}

	next.Version = before.Version + 1
	return &Delta{Before: before, After: next}, nil
}

// getOrCreate reads the wallet row, inserting a zeroed one when missing.
func getOrCreate(tx *gorm.DB, userID uint64) (models.Wallet, error) {
	var w models.Wallet
	errFind := tx.Where("user_id = ?", userID).First(&w).Error
	if errFind == nil {
		return w, nil
	}
	if !errors.Is(errFind, gorm.ErrRecordNotFound) {
		return models.Wallet{}, fmt.Errorf("wallet: query: %w", errFind)
	}

	w = models.Wallet{UserID: userID}
	if errCreate := tx.Create(&w).Error; errCreate != nil {
		// A concurrent creator may have inserted first; the unique index
		// rejects the second insert, so fall back to reading its row.
		var existing models.Wallet
		if errRetry := tx.Where("user_id = ?", userID).First(&existing).Error; errRetry != nil {
			return models.Wallet{}, fmt.Errorf("wallet: create: %w", errCreate)
		}
		return existing, nil
	}
	return w, nil
}

// checkInvariants rejects wallet states no mutation may produce.
func checkInvariants(w *models.Wallet) error {
	if w.PackageTokensRemaining < 0 {
		return errors.New("wallet: negative package balance")
	}
	if w.IndependentTokens < 0 {
		return errors.New("wallet: negative independent balance")
	}
	if w.PackageDailyQuotaTokens > 0 && w.PackageTokensRemaining > w.PackageDailyQuotaTokens {
		return errors.New("wallet: package balance above quota")
	}
	return nil
}
