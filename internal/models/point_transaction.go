package models

import "time"

// TxType classifies a ledger entry.
type TxType string

// Known transaction types.
const (
	// TxTypeAward is a teacher grant debited from a budget, delta > 0.
	TxTypeAward TxType = "AWARD"
	// TxTypeRedeem is a bonus purchase, delta < 0, bonus item set.
	TxTypeRedeem TxType = "REDEEM"
	// TxTypeAdminAdjust is an administrative grant outside any budget, delta > 0.
	TxTypeAdminAdjust TxType = "ADMIN_ADJUST"
)

// PointTransaction is the immutable ledger entry and the single source of
// truth for student balances. Rows are only ever inserted, never updated
// or deleted. A check constraint added during migration ties TxType,
// PointsDelta sign, and BonusItemID together.
type PointTransaction struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	SemesterID uint64    `gorm:"not null;index:idx_tx_semester_student_created,priority:1"` // Scoping semester.
	Semester   *Semester `gorm:"foreignKey:SemesterID"`                                     // Associated semester record.

	StudentProfileID uint64          `gorm:"not null;index:idx_tx_semester_student_created,priority:2"` // Affected student.
	StudentProfile   *StudentProfile `gorm:"foreignKey:StudentProfileID"`                               // Associated student record.

	CreatedByID uint64 `gorm:"not null"`               // User who caused the entry.
	CreatedBy   *User  `gorm:"foreignKey:CreatedByID"` // Associated user record.

	TxType      TxType `gorm:"type:varchar(20);not null;check:chk_point_transaction_shape,(tx_type = 'REDEEM' AND bonus_item_id IS NOT NULL AND points_delta < 0) OR (tx_type = 'AWARD' AND bonus_item_id IS NULL AND points_delta > 0) OR (tx_type = 'ADMIN_ADJUST' AND bonus_item_id IS NULL AND points_delta > 0)"` // Entry classification.
	PointsDelta int    `gorm:"not null"`                  // Signed point movement.
	Message     string `gorm:"type:text"`                 // Human-readable context.

	BonusItemID *uint64    `gorm:"index"`                  // Redeemed bonus, set only for REDEEM.
	BonusItem   *BonusItem `gorm:"foreignKey:BonusItemID"` // Associated bonus record.

	CreatedAt time.Time `gorm:"not null;autoCreateTime;index:idx_tx_semester_student_created,priority:3"` // Creation timestamp.
}
