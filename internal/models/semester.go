package models

import (
	"time"

	"gorm.io/datatypes"
)

// Semester is the accounting period scoping all balances and budgets.
// At most one semester is active at a time; the activation flip and the
// active-semester lookup both enforce this.
type Semester struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Name      string         `gorm:"type:text;not null"` // Display name, e.g. "2026 Ruduo".
	StartDate datatypes.Date `gorm:"not null"`           // First day of the period.
	EndDate   datatypes.Date `gorm:"not null"`           // Last day of the period.

	IsActive bool `gorm:"not null;default:false;index"` // Marks the current accounting period.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
