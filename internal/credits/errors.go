package credits

// ErrorCode is a stable machine-readable failure code returned by the
// credit services. API layers branch on these, never on message text.
type ErrorCode string

const (
	// ErrCodeConflict reports an optimistic-concurrency version mismatch.
	// The operation had no effect; the caller may retry.
	ErrCodeConflict ErrorCode = "CONFLICT"
	// ErrCodeNotFound reports a missing wallet, package or code.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"
	// ErrCodeCodeNotFound reports an unknown redemption code.
	ErrCodeCodeNotFound ErrorCode = "CODE_NOT_FOUND"
	// ErrCodeCodeNotActive reports a redemption code outside the active state.
	ErrCodeCodeNotActive ErrorCode = "CODE_NOT_ACTIVE"
	// ErrCodeCodeExpired reports a redemption code past its deadline.
	ErrCodeCodeExpired ErrorCode = "CODE_EXPIRED"
	// ErrCodeCodeAlreadyUsed reports a lost race on the code claim.
	ErrCodeCodeAlreadyUsed ErrorCode = "CODE_ALREADY_USED"
	// ErrCodeNoActivePackage reports the user holds no active package.
	ErrCodeNoActivePackage ErrorCode = "NO_ACTIVE_PACKAGE"
	// ErrCodePlanNotFound reports an unknown target plan on a plan code.
	ErrCodePlanNotFound ErrorCode = "PLAN_NOT_FOUND"
	// ErrCodeDowngradeNotAllowed rejects a plan code below the current tier.
	ErrCodeDowngradeNotAllowed ErrorCode = "DOWNGRADE_NOT_ALLOWED"
	// ErrCodeLimitReached reports an exhausted per-day allowance.
	ErrCodeLimitReached ErrorCode = "LIMIT_REACHED"
	// ErrCodeAlreadyAtCap reports a manual reset with nothing to grant.
	ErrCodeAlreadyAtCap ErrorCode = "ALREADY_AT_CAP"
	// ErrCodeInsufficientBalance rejects a charge above the total balance.
	ErrCodeInsufficientBalance ErrorCode = "INSUFFICIENT_BALANCE"
	// ErrCodeInvalidParams reports malformed caller input.
	ErrCodeInvalidParams ErrorCode = "INVALID_PARAMS"
	// ErrCodeRedeemFailed reports a failed grant during redemption.
	ErrCodeRedeemFailed ErrorCode = "REDEEM_FAILED"
)
