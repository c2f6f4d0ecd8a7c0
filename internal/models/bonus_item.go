package models

import "time"

// BonusCategory distinguishes how a bonus is redeemed.
type BonusCategory string

// Known bonus categories.
const (
	// BonusCategoryOther covers directly redeemable and group-fundable bonuses.
	BonusCategoryOther BonusCategory = "OTHER"
	// BonusCategoryPointsRelated marks bonuses that require a teacher's
	// confirmation before the ledger is debited.
	BonusCategoryPointsRelated BonusCategory = "POINTS_RELATED"
)

// BonusItem is a reward students can spend points on.
type BonusItem struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Title       string `gorm:"type:text;not null"` // Display title.
	Description string `gorm:"type:text"`          // Longer description shown in the shop.

	PricePoints       int `gorm:"not null"`           // Cost in points, always positive.
	MaxUsesPerStudent int `gorm:"not null;default:1"` // Per-student redemption limit per semester.

	IsActive bool          `gorm:"not null;default:true"`                   // Whether the bonus can be redeemed.
	Category BonusCategory `gorm:"type:varchar(30);not null;default:OTHER"` // Redemption flow selector.

	// Teachers allowed to confirm POINTS_RELATED redemptions of this bonus.
	AssignedTeachers []TeacherProfile `gorm:"many2many:bonus_item_assigned_teachers"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
