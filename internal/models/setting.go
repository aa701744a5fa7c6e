package models

import (
	"encoding/json"
	"time"
)

// Setting is one runtime configuration row. The settings package caches all
// rows in an in-memory snapshot that is refreshed after every admin update.
type Setting struct {
	Key       string          `gorm:"type:varchar(255);primaryKey"`                      // Configuration key.
	Value     json.RawMessage `gorm:"type:jsonb"`                                        // JSON-encoded value.
	UpdatedAt time.Time       `gorm:"not null;autoUpdateTime;default:CURRENT_TIMESTAMP"` // Last update timestamp.
}
