package credits

import (
	"encoding/json"

	"github.com/creditrail/creditrail/internal/models"
)

// Config is the typed package configuration every credit operation runs
// against. It is resolved per operation, never stored as its own row.
type Config struct {
	CreditCap         int64 // Regeneration ceiling for the package pool.
	RecoveryRate      int64 // Credits regenerated per hour.
	DailyUsageLimit   int64 // Max spend per UTC day; 0 means unlimited.
	ManualResetPerDay int   // Allowed manual resets per UTC day.
}

// DefaultConfig is the hard-coded fallback tier, applied when neither the
// assignment snapshot nor the catalog provides a value.
var DefaultConfig = Config{
	CreditCap:         2000,
	RecoveryRate:      200,
	DailyUsageLimit:   0,
	ManualResetPerDay: 1,
}

// snapshotConfig mirrors the config fields frozen into a user-package
// snapshot. Pointers distinguish "absent" from an explicit zero.
type snapshotConfig struct {
	CreditCap         *int64 `json:"credit_cap"`
	RecoveryRate      *int64 `json:"recovery_rate"`
	DailyUsageLimit   *int64 `json:"daily_usage_limit"`
	ManualResetPerDay *int   `json:"manual_reset_per_day"`
}

// ResolveConfig builds the effective Config with a fixed priority:
// assignment snapshot, then catalog package, then DefaultConfig. The
// priority is per field, so a partial snapshot only overrides what it
// actually froze.
func ResolveConfig(snapshot []byte, pkg *models.Package) Config {
	cfg := DefaultConfig
	if pkg != nil {
		if pkg.CreditCap > 0 {
			cfg.CreditCap = pkg.CreditCap
		}
		if pkg.RecoveryRate > 0 {
			cfg.RecoveryRate = pkg.RecoveryRate
		}
		cfg.DailyUsageLimit = pkg.DailyUsageLimit
		cfg.ManualResetPerDay = pkg.ManualResetPerDay
	}

	if len(snapshot) == 0 {
		return cfg
	}
	var snap snapshotConfig
	if errUnmarshal := json.Unmarshal(snapshot, &snap); errUnmarshal != nil {
		return cfg
	}
	if snap.CreditCap != nil {
		cfg.CreditCap = *snap.CreditCap
	}
	if snap.RecoveryRate != nil {
		cfg.RecoveryRate = *snap.RecoveryRate
	}
	if snap.DailyUsageLimit != nil {
		cfg.DailyUsageLimit = *snap.DailyUsageLimit
	}
	if snap.ManualResetPerDay != nil {
		cfg.ManualResetPerDay = *snap.ManualResetPerDay
	}
	return cfg
}
