package models

import "time"

// GroupPurchaseStatus tracks the group funding state machine.
type GroupPurchaseStatus string

// Group purchase states.
const (
	// GroupPurchaseOpen accepts new and amended contributions.
	GroupPurchaseOpen GroupPurchaseStatus = "OPEN"
	// GroupPurchaseAwaitingConfirmation means the price is fully reserved
	// and every contributor has to confirm before the debit happens.
	GroupPurchaseAwaitingConfirmation GroupPurchaseStatus = "AWAITING_CONFIRMATION"
	// GroupPurchaseCompleted is terminal; the ledger has been debited.
	GroupPurchaseCompleted GroupPurchaseStatus = "COMPLETED"
)

// GroupPurchase is a shared reservation of one bonus item by several
// students within a semester. A partial unique index created during
// migration allows at most one non-completed purchase per
// (bonus item, semester) pair.
type GroupPurchase struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	BonusItemID uint64     `gorm:"not null;index"`         // Funded bonus.
	BonusItem   *BonusItem `gorm:"foreignKey:BonusItemID"` // Associated bonus record.

	SemesterID uint64    `gorm:"not null;index"`        // Scoping semester.
	Semester   *Semester `gorm:"foreignKey:SemesterID"` // Associated semester record.

	Status GroupPurchaseStatus `gorm:"type:varchar(30);not null;default:OPEN"` // Funding state.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
