package models

import "time"

// StudentProfile holds the student-facing identity of a user.
// The point balance is never stored here; it is always derived from
// the transaction ledger.
type StudentProfile struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	UserID uint64 `gorm:"not null;uniqueIndex"` // Owning user ID.
	User   *User  `gorm:"foreignKey:UserID"`    // Associated user record.

	DisplayName string `gorm:"type:text;not null"` // Name shown in rosters and activity feeds.
	ClassName   string `gorm:"type:text"`          // Class label, may be empty.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
