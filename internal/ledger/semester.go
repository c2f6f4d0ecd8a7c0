package ledger

import (
	"context"
	"errors"

	"github.com/mokykla/pointsapi/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ActiveSemester returns the single currently active semester. It fails
// when none is active, and refuses to pick one when several are active
// instead of resolving the ambiguity silently.
func (s *Service) ActiveSemester(ctx context.Context) (*models.Semester, error) {
	return activeSemester(s.db.WithContext(ctx))
}

// activeSemester is the transaction-scoped variant of ActiveSemester.
func activeSemester(tx *gorm.DB) (*models.Semester, error) {
	var semesters []models.Semester
	if errFind := tx.Where("is_active = ?", true).Limit(2).Find(&semesters).Error; errFind != nil {
		return nil, errFind
	}
	switch len(semesters) {
	case 0:
		return nil, newError(CodeNoActiveSemester, "no active semester")
	case 1:
		return &semesters[0], nil
	default:
		return nil, newError(CodeAmbiguousSemester, "several semesters are active, check the semester settings")
	}
}

// SetActiveSemester makes the given semester the only active one. The
// flip clears other actives and sets the target inside one transaction
// that locks the target row; the partial unique index on
// semesters.is_active rejects the loser when two flips race, so two
// semesters can never both end up active.
func (s *Service) SetActiveSemester(ctx context.Context, adminUser *models.User, semesterID uint64) (*models.Semester, error) {
	if errRole := requireRole(adminUser, models.RoleAdmin, "only administrators can activate semesters"); errRole != nil {
		return nil, errRole
	}

	var semester models.Semester
	errTx := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if errFind := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&semester, semesterID).Error; errFind != nil {
			if errors.Is(errFind, gorm.ErrRecordNotFound) {
				return newError(CodeNotFound, "semester not found")
			}
			return errFind
		}

		if errClear := tx.Model(&models.Semester{}).
			Where("is_active = ? AND id <> ?", true, semester.ID).
			Update("is_active", false).Error; errClear != nil {
			return errClear
		}
		if semester.IsActive {
			return nil
		}
		semester.IsActive = true
		return tx.Model(&semester).Update("is_active", true).Error
	})
	if errTx != nil {
		return nil, errTx
	}
	return &semester, nil
}
