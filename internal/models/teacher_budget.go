package models

import "time"

// TeacherBudget is a teacher's per-semester allotment of awardable points.
// SpentPoints only ever grows, and only through the award operation.
type TeacherBudget struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	TeacherProfileID uint64          `gorm:"not null;uniqueIndex:idx_budget_teacher_semester"` // Budget owner.
	TeacherProfile   *TeacherProfile `gorm:"foreignKey:TeacherProfileID"`                      // Associated teacher record.

	SemesterID uint64    `gorm:"not null;uniqueIndex:idx_budget_teacher_semester"` // Scoping semester.
	Semester   *Semester `gorm:"foreignKey:SemesterID"`                            // Associated semester record.

	AllocatedPoints int `gorm:"not null"`           // Points granted for the semester.
	SpentPoints     int `gorm:"not null;default:0"` // Points already awarded.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// Remaining returns the spendable budget, clamped at zero.
func (b *TeacherBudget) Remaining() int {
	remaining := b.AllocatedPoints - b.SpentPoints
	if remaining < 0 {
		return 0
	}
	return remaining
}
