package models

import (
	"time"

	"gorm.io/datatypes"
)

// Setting stores one school-wide configuration entry, such as the
// school name or branding asset paths. The rows are read once at
// startup into the settings snapshot and re-read after admin updates.
type Setting struct {
	Key       string         `gorm:"type:varchar(255);primaryKey"`                      // Configuration key.
	Value     datatypes.JSON `gorm:"type:jsonb"`                                        // JSON-encoded value.
	UpdatedAt time.Time      `gorm:"not null;autoUpdateTime;default:CURRENT_TIMESTAMP"` // Last update timestamp.
}
