package settings

// DB config keys and defaults for settings.
const (
	// SiteNameKey is the DB config key for the UI site name.
	SiteNameKey = "SITE_NAME"
	// DefaultSiteName is the fallback UI site name.
	DefaultSiteName = "CreditRail"
	// RecoverySweepIntervalSecondsKey controls the recovery sweep interval in seconds.
	RecoverySweepIntervalSecondsKey = "RECOVERY_SWEEP_INTERVAL_SECONDS"
	// ExpirySweepIntervalSecondsKey controls the package expiry sweep interval in seconds.
	ExpirySweepIntervalSecondsKey = "EXPIRY_SWEEP_INTERVAL_SECONDS"
	// SignupBonusCreditsKey controls the independent credits granted on registration.
	SignupBonusCreditsKey = "SIGNUP_BONUS_CREDITS"
	// PaymentWebhookTokenKey holds the shared secret expected from the payment gateway.
	PaymentWebhookTokenKey = "PAYMENT_WEBHOOK_TOKEN"
	// DefaultRecoverySweepIntervalSeconds is the fallback recovery sweep interval (seconds).
	DefaultRecoverySweepIntervalSeconds = 60
	// DefaultExpirySweepIntervalSeconds is the fallback expiry sweep interval (seconds).
	DefaultExpirySweepIntervalSeconds = 300
	// DefaultSignupBonusCredits is the fallback registration bonus.
	DefaultSignupBonusCredits = 0
)
