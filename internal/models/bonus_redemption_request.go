package models

import "time"

// RedemptionRequestStatus tracks the approval lifecycle of a request.
type RedemptionRequestStatus string

// Redemption request states.
const (
	// RedemptionRequestPending awaits the requested teacher's decision.
	RedemptionRequestPending RedemptionRequestStatus = "PENDING"
	// RedemptionRequestApproved is terminal; the ledger was debited.
	RedemptionRequestApproved RedemptionRequestStatus = "APPROVED"
	// RedemptionRequestDeclined is terminal; nothing was debited.
	RedemptionRequestDeclined RedemptionRequestStatus = "DECLINED"
)

// BonusRedemptionRequest is a student's pending claim on a
// POINTS_RELATED bonus that a specific teacher has to approve before
// any points move. A partial unique index created during migration
// allows at most one pending request per (semester, bonus, student).
type BonusRedemptionRequest struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Status RedemptionRequestStatus `gorm:"type:varchar(20);not null;default:PENDING;index:idx_request_teacher_status_created,priority:2"` // Approval state.

	StudentProfileID uint64          `gorm:"not null;index"`              // Requesting student.
	StudentProfile   *StudentProfile `gorm:"foreignKey:StudentProfileID"` // Associated student record.

	BonusItemID uint64     `gorm:"not null;index"`         // Requested bonus.
	BonusItem   *BonusItem `gorm:"foreignKey:BonusItemID"` // Associated bonus record.

	RequestedTeacherID uint64          `gorm:"not null;index:idx_request_teacher_status_created,priority:1"` // Teacher asked to decide.
	RequestedTeacher   *TeacherProfile `gorm:"foreignKey:RequestedTeacherID"`                                // Associated teacher record.

	SemesterID uint64    `gorm:"not null;index"`        // Scoping semester.
	Semester   *Semester `gorm:"foreignKey:SemesterID"` // Associated semester record.

	DecidedByID *uint64 `gorm:"index"`                  // User who decided the request.
	DecidedBy   *User   `gorm:"foreignKey:DecidedByID"` // Associated user record.

	CreatedAt time.Time  `gorm:"not null;autoCreateTime;index:idx_request_teacher_status_created,priority:3"` // Creation timestamp.
	DecidedAt *time.Time // Decision time, nil while pending.
}
