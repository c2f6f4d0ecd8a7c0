package models

import "time"

// Role identifies what a user is allowed to do.
type Role string

// Known user roles.
const (
	// RoleAdmin manages semesters, budgets, bonuses, and accounts.
	RoleAdmin Role = "ADMIN"
	// RoleTeacher awards points and decides redemption requests.
	RoleTeacher Role = "TEACHER"
	// RoleStudent spends points on bonuses.
	RoleStudent Role = "STUDENT"
)

// Valid reports whether the role is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleTeacher, RoleStudent:
		return true
	}
	return false
}

// User represents an authenticated account with a resolved role.
type User struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Username     string `gorm:"type:text;not null;uniqueIndex"` // Login name.
	PasswordHash string `gorm:"type:text;not null"`             // Bcrypt password hash.
	Role         Role   `gorm:"type:varchar(20);not null"`      // Account role.

	Disabled bool `gorm:"not null;default:false"` // Blocks login when set.

	TOTPSecret  string `gorm:"type:text"`              // TOTP secret, set while enrolling.
	TOTPEnabled bool   `gorm:"not null;default:false"` // Whether TOTP is required at login.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
