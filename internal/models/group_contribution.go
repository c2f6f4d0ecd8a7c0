package models

import "time"

// GroupContribution is one student's reserved stake inside a group
// purchase. A student has at most one contribution per purchase; the
// amount can be amended while the purchase is open, which clears any
// prior confirmation.
type GroupContribution struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	GroupPurchaseID uint64         `gorm:"not null;uniqueIndex:idx_contribution_purchase_student"` // Owning purchase.
	GroupPurchase   *GroupPurchase `gorm:"foreignKey:GroupPurchaseID"`                             // Associated purchase record.

	StudentProfileID uint64          `gorm:"not null;uniqueIndex:idx_contribution_purchase_student"` // Contributing student.
	StudentProfile   *StudentProfile `gorm:"foreignKey:StudentProfileID"`                            // Associated student record.

	Amount      int        `gorm:"not null"` // Reserved points, always positive.
	ConfirmedAt *time.Time // Confirmation time, nil until the student confirms.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
