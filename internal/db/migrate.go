package db

import (
	"fmt"

	"github.com/mokykla/pointsapi/internal/models"
	"gorm.io/gorm"
)

// Partial unique indexes enforcing the invariants that plain column
// uniqueness cannot express. The same SQL is valid on PostgreSQL and
// SQLite.
var partialUniqueIndexes = []string{
	// At most one active semester; concurrent activation flips cannot
	// both commit.
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_single_active_semester
		ON semesters (is_active)
		WHERE is_active`,
	// At most one non-completed group purchase per (bonus, semester).
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_unique_active_group_purchase
		ON group_purchases (bonus_item_id, semester_id)
		WHERE status IN ('OPEN', 'AWAITING_CONFIRMATION')`,
	// At most one pending redemption request per (semester, bonus, student).
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_unique_pending_redemption_request
		ON bonus_redemption_requests (semester_id, bonus_item_id, student_profile_id)
		WHERE status = 'PENDING'`,
}

// Migrate creates or updates the schema for all models and installs
// the invariant indexes.
func Migrate(conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("db: nil connection")
	}

	if errAuto := conn.AutoMigrate(
		&models.User{},
		&models.StudentProfile{},
		&models.TeacherProfile{},
		&models.Semester{},
		&models.TeacherBudget{},
		&models.BonusItem{},
		&models.PointTransaction{},
		&models.GroupPurchase{},
		&models.GroupContribution{},
		&models.BonusRedemptionRequest{},
		&models.Setting{},
	); errAuto != nil {
		return fmt.Errorf("db: auto migrate: %w", errAuto)
	}

	for _, stmt := range partialUniqueIndexes {
		if errExec := conn.Exec(stmt).Error; errExec != nil {
			return fmt.Errorf("db: create index: %w", errExec)
		}
	}
	return nil
}
