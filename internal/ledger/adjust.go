package ledger

import (
	"context"
	"errors"

	"github.com/mokykla/pointsapi/internal/models"
	"gorm.io/gorm"
)

// AdminAdjustPoints appends an administrative grant directly to the
// ledger. It bypasses teacher budgets entirely; it is an override, not
// an award.
func (s *Service) AdminAdjustPoints(ctx context.Context, adminUser *models.User, studentProfileID uint64, points int, message string) (*models.PointTransaction, error) {
	if errRole := requireRole(adminUser, models.RoleAdmin, "only administrators can adjust points"); errRole != nil {
		return nil, errRole
	}
	if points <= 0 {
		return nil, newError(CodeInvalidAmount, "adjusted points must be positive")
	}

	var entry models.PointTransaction
	errTx := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		semester, errSemester := activeSemester(tx)
		if errSemester != nil {
			return errSemester
		}

		var student models.StudentProfile
		if errFind := tx.First(&student, studentProfileID).Error; errFind != nil {
			if errors.Is(errFind, gorm.ErrRecordNotFound) {
				return newError(CodeNotFound, "student not found")
			}
			return errFind
		}

		entry = models.PointTransaction{
			SemesterID:       semester.ID,
			StudentProfileID: student.ID,
			CreatedByID:      adminUser.ID,
			TxType:           models.TxTypeAdminAdjust,
			PointsDelta:      points,
			Message:          message,
		}
		return tx.Create(&entry).Error
	})
	if errTx != nil {
		return nil, errTx
	}
	return &entry, nil
}
