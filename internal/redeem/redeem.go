package redeem

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/creditrail/creditrail/internal/credits"
	"github.com/creditrail/creditrail/internal/models"
	"github.com/creditrail/creditrail/internal/plans"
	"github.com/creditrail/creditrail/internal/wallet"
	"gorm.io/gorm"
)

// Result reports the outcome of a redemption attempt.
type Result struct {
	Success   bool              `json:"success"`
	Message   string            `json:"message,omitempty"`
	ErrorCode credits.ErrorCode `json:"error,omitempty"`
}

// StateMachine drives a redemption code through its single allowed
// transition (active -> used) and dispatches the code's effect.
type StateMachine struct {
	db *gorm.DB
}

// NewStateMachine constructs a redemption state machine.
func NewStateMachine(db *gorm.DB) *StateMachine {
	return &StateMachine{db: db}
}

var errRedeemRejected = errors.New("redeem: rejected")

// Redeem claims rawCode for userID and applies its effect.
//
// The claim is a conditional update on (code, status) and runs before any
// balance effect, inside the same transaction, so concurrent claimers get
// CODE_ALREADY_USED and a failure after the claim (such as PLAN_NOT_FOUND)
// rolls the claim back. The one exception is DOWNGRADE_NOT_ALLOWED: the
// claim commits and the code stays burned even though nothing was granted.
func (m *StateMachine) Redeem(ctx context.Context, userID uint64, rawCode string, now time.Time) (Result, error) {
	code := strings.ToUpper(strings.TrimSpace(rawCode))
	if userID == 0 || code == "" {
		return Result{ErrorCode: credits.ErrCodeInvalidParams}, nil
	}

	var res Result
	errTx := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row models.RedemptionCode
		errFind := tx.WithContext(ctx).Where("code = ?", code).First(&row).Error
		if errFind != nil {
			if errors.Is(errFind, gorm.ErrRecordNotFound) {
				res = Result{ErrorCode: credits.ErrCodeCodeNotFound}
				return errRedeemRejected
			}
			return fmt.Errorf("redeem: query code: %w", errFind)
		}
		if row.Status == models.CodeUsed {
			res = Result{ErrorCode: credits.ErrCodeCodeAlreadyUsed}
			return errRedeemRejected
		}
		if row.Status != models.CodeActive {
			res = Result{ErrorCode: credits.ErrCodeCodeNotActive}
			return errRedeemRejected
		}
		if row.ExpiresAt != nil && row.ExpiresAt.Before(now) {
			res = Result{ErrorCode: credits.ErrCodeCodeExpired}
			return errRedeemRejected
		}

		// Double-spend guard: exactly one caller wins this update.
		claim := tx.WithContext(ctx).Model(&models.RedemptionCode{}).
			Where("code = ? AND status = ?", code, models.CodeActive).
			Updates(map[string]any{
				"status":  models.CodeUsed,
				"used_at": now,
				"used_by": userID,
			})
		if claim.Error != nil {
			return fmt.Errorf("redeem: claim code: %w", claim.Error)
		}
		if claim.RowsAffected == 0 {
			res = Result{ErrorCode: credits.ErrCodeCodeAlreadyUsed}
			return errRedeemRejected
		}

		switch row.CodeType {
		case models.CodeCredits:
			return m.applyCreditsCode(ctx, tx, userID, &row, &res)
		case models.CodePlan:
			return m.applyPlanCode(ctx, tx, userID, &row, now, &res)
		default:
			return fmt.Errorf("redeem: unknown code type %q", row.CodeType)
		}
	})
	if errTx != nil {
		if errors.Is(errTx, errRedeemRejected) {
			return res, nil
		}
		if errors.Is(errTx, wallet.ErrConflict) {
			return Result{ErrorCode: credits.ErrCodeConflict}, nil
		}
		return Result{}, errTx
	}
	return res, nil
}

// applyCreditsCode grants the code value as independent income.
func (m *StateMachine) applyCreditsCode(ctx context.Context, tx *gorm.DB, userID uint64, row *models.RedemptionCode, res *Result) error {
	if row.CodeValue <= 0 {
		*res = Result{ErrorCode: credits.ErrCodeRedeemFailed}
		return errRedeemRejected
	}
	ref := "code:" + row.Code
	grant, errGrant := credits.GrantIndependentTx(ctx, tx, userID, row.CodeValue, &ref, "redemption code")
	if errGrant != nil {
		return errGrant
	}
	if !grant.Success {
		*res = Result{ErrorCode: credits.ErrCodeRedeemFailed}
		return errRedeemRejected
	}
	*res = Result{Success: true, Message: fmt.Sprintf("granted %d credits", grant.Granted)}
	return nil
}

// applyPlanCode decides create, upgrade, renew or downgrade against the
// user's current tier.
func (m *StateMachine) applyPlanCode(ctx context.Context, tx *gorm.DB, userID uint64, row *models.RedemptionCode, now time.Time, res *Result) error {
	target, errTarget := plans.PackageByPlanType(ctx, tx, row.PlanType)
	if errTarget != nil {
		return errTarget
	}
	if target == nil {
		*res = Result{ErrorCode: credits.ErrCodePlanNotFound}
		return errRedeemRejected
	}

	current, currentPkg, errActive := plans.ActivePackageTx(ctx, tx, userID, now)
	if errActive != nil {
		return errActive
	}

	currentLevel := 0
	if current != nil {
		currentLevel = currentPlanType(current, currentPkg).Level()
	}
	targetLevel := target.PlanType.Level()
	ref := "code:" + row.Code

	switch {
	case current == nil || targetLevel > currentLevel:
		// New assignment or upgrade: takes effect immediately, unused
		// entitlement of the old package is not carried over.
		created, errCreate := plans.CreateUserPackageTx(ctx, tx, userID, target, row.ValidDays, &ref, now)
		if errCreate != nil {
			return errCreate
		}
		if _, errReset := plans.ResetPackageCreditsTx(ctx, tx, userID, created.DailyPoints, &ref, now); errReset != nil {
			return errReset
		}
		*res = Result{Success: true, Message: fmt.Sprintf("activated %s until %s", target.PlanType, created.EndAt.UTC().Format(time.RFC3339))}
		return nil

	case targetLevel < currentLevel:
		// Rejected downgrade still burns the code: the claim committed and
		// there is no unclaim path. Returning nil commits the claim alone.
		*res = Result{ErrorCode: credits.ErrCodeDowngradeNotAllowed}
		return nil

	default:
		validDays := row.ValidDays
		if validDays <= 0 {
			validDays = target.ValidDays
		}
		renewed, errRenew := plans.RenewUserPackageTx(ctx, tx, userID, validDays, now)
		if errRenew != nil {
			return errRenew
		}
		*res = Result{Success: true, Message: fmt.Sprintf("renewed %s until %s", target.PlanType, renewed.EndAt.UTC().Format(time.RFC3339))}
		return nil
	}
}

// currentPlanType resolves the active tier, preferring the catalog row and
// falling back to the frozen snapshot when the catalog entry is gone.
func currentPlanType(up *models.UserPackage, pkg *models.Package) models.PlanType {
	if pkg != nil {
		return pkg.PlanType
	}
	var snap struct {
		PlanType models.PlanType `json:"plan_type"`
	}
	if errUnmarshal := json.Unmarshal(up.PackageSnapshot, &snap); errUnmarshal != nil {
		return ""
	}
	return snap.PlanType
}
