package plans

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/creditrail/creditrail/internal/models"
	"github.com/creditrail/creditrail/internal/wallet"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ErrNoActivePackage indicates the user holds no unexpired active package.
var ErrNoActivePackage = errors.New("plans: no active package")

// Manager owns user-package assignments: creation, renewal, and the
// wallet-side package-credit reset that pairs with a new assignment.
type Manager struct {
	db *gorm.DB
}

// NewManager constructs a package lifecycle manager.
func NewManager(db *gorm.DB) *Manager {
	return &Manager{db: db}
}

// AssignPackage creates a new assignment and resets package credits in one
// transaction. Used for purchases and upgrades confirmed outside the
// redemption path.
func (m *Manager) AssignPackage(ctx context.Context, userID uint64, pkg *models.Package, validDays int, orderRef *string, now time.Time) (*models.UserPackage, error) {
	var up *models.UserPackage
	errTx := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		created, errCreate := CreateUserPackageTx(ctx, tx, userID, pkg, validDays, orderRef, now)
		if errCreate != nil {
			return errCreate
		}
		if _, errReset := ResetPackageCreditsTx(ctx, tx, userID, created.DailyPoints, orderRef, now); errReset != nil {
			return errReset
		}
		up = created
		return nil
	})
	if errTx != nil {
		return nil, errTx
	}
	return up, nil
}

// Renew extends the current active assignment without touching the wallet.
func (m *Manager) Renew(ctx context.Context, userID uint64, validDays int, now time.Time) (*models.UserPackage, error) {
	var up *models.UserPackage
	errTx := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		renewed, errRenew := RenewUserPackageTx(ctx, tx, userID, validDays, now)
		if errRenew != nil {
			return errRenew
		}
		up = renewed
		return nil
	})
	if errTx != nil {
		return nil, errTx
	}
	return up, nil
}

// ActivePackageTx returns the user's active, unexpired assignment and its
// catalog package. The catalog package may be nil when the catalog row was
// deleted after assignment; the frozen snapshot still carries the terms.
func ActivePackageTx(ctx context.Context, tx *gorm.DB, userID uint64, now time.Time) (*models.UserPackage, *models.Package, error) {
	var up models.UserPackage
	errFind := tx.WithContext(ctx).
		Where("user_id = ? AND is_active = ? AND end_at > ?", userID, true, now).
		Order("id DESC").
		First(&up).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, nil, nil
		}
		return nil, nil, fmt.Errorf("plans: query active package: %w", errFind)
	}

	var pkg models.Package
	errPkg := tx.WithContext(ctx).First(&pkg, up.PackageID).Error
	if errPkg != nil {
		if errors.Is(errPkg, gorm.ErrRecordNotFound) {
			return &up, nil, nil
		}
		return nil, nil, fmt.Errorf("plans: query catalog package: %w", errPkg)
	}
	return &up, &pkg, nil
}

// PackageByPlanType resolves an enabled catalog package for a plan tier.
func PackageByPlanType(ctx context.Context, tx *gorm.DB, planType models.PlanType) (*models.Package, error) {
	var pkg models.Package
	errFind := tx.WithContext(ctx).
		Where("plan_type = ? AND is_enabled = ?", planType, true).
		First(&pkg).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("plans: query package by plan: %w", errFind)
	}
	return &pkg, nil
}

// CreateUserPackageTx deactivates any prior active assignment and inserts a
// new active one with a frozen snapshot of the package terms. The wallet is
// not touched; callers pair this with ResetPackageCreditsTx.
func CreateUserPackageTx(ctx context.Context, tx *gorm.DB, userID uint64, pkg *models.Package, validDays int, orderRef *string, now time.Time) (*models.UserPackage, error) {
	if pkg == nil {
		return nil, errors.New("plans: nil package")
	}
	if validDays <= 0 {
		validDays = pkg.ValidDays
	}

	if errDeactivate := tx.WithContext(ctx).Model(&models.UserPackage{}).
		Where("user_id = ? AND is_active = ?", userID, true).
		Update("is_active", false).Error; errDeactivate != nil {
		return nil, fmt.Errorf("plans: deactivate prior package: %w", errDeactivate)
	}

	snapshot, errSnap := FreezeSnapshot(pkg)
	if errSnap != nil {
		return nil, errSnap
	}

	up := models.UserPackage{
		UserID:          userID,
		PackageID:       pkg.ID,
		StartAt:         now,
		EndAt:           now.AddDate(0, 0, validDays),
		DailyPoints:     pkg.DailyPoints,
		IsActive:        true,
		PackageSnapshot: snapshot,
		OrderRef:        orderRef,
	}
	if errCreate := tx.WithContext(ctx).Create(&up).Error; errCreate != nil {
		return nil, fmt.Errorf("plans: create user package: %w", errCreate)
	}
	return &up, nil
}

// RenewUserPackageTx extends the active assignment's end from its current
// end, not from now, so renewing early never shortens the entitlement. The
// wallet is not touched.
func RenewUserPackageTx(ctx context.Context, tx *gorm.DB, userID uint64, validDays int, now time.Time) (*models.UserPackage, error) {
	if validDays <= 0 {
		return nil, errors.New("plans: renew needs positive valid days")
	}

	var up models.UserPackage
	errFind := tx.WithContext(ctx).
		Where("user_id = ? AND is_active = ? AND end_at > ?", userID, true, now).
		Order("id DESC").
		First(&up).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, ErrNoActivePackage
		}
		return nil, fmt.Errorf("plans: query active package: %w", errFind)
	}

	newEnd := up.EndAt.AddDate(0, 0, validDays)
	if errUpdate := tx.WithContext(ctx).Model(&up).Update("end_at", newEnd).Error; errUpdate != nil {
		return nil, fmt.Errorf("plans: extend package: %w", errUpdate)
	}
	up.EndAt = newEnd
	return &up, nil
}

// ResetPackageCreditsTx is the wallet-side counterpart of a create/upgrade:
// the package pool and its quota snapshot are set to the new daily points
// and the regeneration clock restarts. Always paired with a new assignment,
// never with a renew.
func ResetPackageCreditsTx(ctx context.Context, tx *gorm.DB, userID uint64, dailyPoints int64, orderRef *string, now time.Time) (*wallet.Delta, error) {
	if dailyPoints < 0 {
		return nil, errors.New("plans: negative daily points")
	}

	delta, errApply := wallet.ApplyDeltaTx(ctx, tx, userID, func(w *models.Wallet) error {
		w.PackageTokensRemaining = dailyPoints
		w.PackageDailyQuotaTokens = dailyPoints
		w.PackageResetAt = &now
		w.LastRecoveryAt = &now
		return nil
	})
	if errApply != nil {
		return nil, errApply
	}

	tokens := delta.After.PackageTokensRemaining - delta.Before.PackageTokensRemaining
	if errRecord := wallet.RecordTx(ctx, tx, wallet.Entry{
		UserID:   userID,
		Type:     models.TxnIncome,
		Bucket:   models.BucketPackage,
		Tokens:   tokens,
		Before:   delta.Before,
		After:    delta.After,
		OrderRef: orderRef,
		Reason:   "package credits reset",
		Meta:     map[string]any{"daily_points": dailyPoints},
	}); errRecord != nil {
		return nil, errRecord
	}
	return delta, nil
}

// ExpireLapsedTx flips is_active off on assignments whose end has passed.
// Driven by the scheduler sweep.
func ExpireLapsedTx(ctx context.Context, tx *gorm.DB, now time.Time) (int64, error) {
	result := tx.WithContext(ctx).Model(&models.UserPackage{}).
		Where("is_active = ? AND end_at <= ?", true, now).
		Update("is_active", false)
	if result.Error != nil {
		return 0, fmt.Errorf("plans: expire sweep: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// FreezeSnapshot serializes the package terms frozen into an assignment.
func FreezeSnapshot(pkg *models.Package) (datatypes.JSON, error) {
	snap := map[string]any{
		"package_id":           pkg.ID,
		"name":                 pkg.Name,
		"plan_type":            pkg.PlanType,
		"daily_points":         pkg.DailyPoints,
		"credit_cap":           pkg.CreditCap,
		"recovery_rate":        pkg.RecoveryRate,
		"daily_usage_limit":    pkg.DailyUsageLimit,
		"manual_reset_per_day": pkg.ManualResetPerDay,
	}
	raw, errMarshal := json.Marshal(snap)
	if errMarshal != nil {
		return nil, fmt.Errorf("plans: freeze snapshot: %w", errMarshal)
	}
	return datatypes.JSON(raw), nil
}
