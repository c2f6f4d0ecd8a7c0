package ledger

import (
	"context"
	"errors"

	"github.com/mokykla/pointsapi/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AwardPoints grants points to a student, debited from the teacher's
// budget for the active semester. The teacher's profile and budget rows
// stay locked from the remaining-budget check through the update, so
// two concurrent awards cannot both pass the check and overspend.
func (s *Service) AwardPoints(ctx context.Context, teacherUser *models.User, studentProfileID uint64, points int, message string) (*models.PointTransaction, error) {
	if errRole := requireRole(teacherUser, models.RoleTeacher, "only teachers can award points"); errRole != nil {
		return nil, errRole
	}
	if points <= 0 {
		return nil, newError(CodeInvalidAmount, "awarded points must be positive")
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

		var teacher models.TeacherProfile
		if errFind := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ?", teacherUser.ID).
			First(&teacher).Error; errFind != nil {
			if errors.Is(errFind, gorm.ErrRecordNotFound) {
				return newError(CodeProfileNotFound, "teacher profile not found")
			}
			return errFind
		}

		var budget models.TeacherBudget
		if errFind := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("teacher_profile_id = ? AND semester_id = ?", teacher.ID, semester.ID).
			First(&budget).Error; errFind != nil {
			if errors.Is(errFind, gorm.ErrRecordNotFound) {
				return newError(CodeBudgetNotFound, "no teacher budget for this semester")
			}
			return errFind
		}
		if budget.Remaining() < points {
			return newError(CodeBudgetExceeded, "not enough budget for this award")
		}

		if errSpend := tx.Model(&budget).
			Update("spent_points", gorm.Expr("spent_points + ?", points)).Error; errSpend != nil {
			return errSpend
		}

		entry = models.PointTransaction{
			SemesterID:       semester.ID,
			StudentProfileID: student.ID,
			CreatedByID:      teacherUser.ID,
			TxType:           models.TxTypeAward,
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
