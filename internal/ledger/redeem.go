package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/mokykla/pointsapi/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RedeemBonus spends a student's points on a bonus in a single
// transaction. The student's profile row stays locked from the balance
// and usage checks through the ledger append, so concurrent redeems
// cannot exhaust the same balance or usage limit twice. Bonuses that
// require teacher confirmation are rejected here; they go through the
// redemption request flow instead.
func (s *Service) RedeemBonus(ctx context.Context, studentUser *models.User, bonusItemID uint64) (*models.PointTransaction, error) {
	if errRole := requireRole(studentUser, models.RoleStudent, "only students can redeem bonuses"); errRole != nil {
		return nil, errRole
	}

	var entry models.PointTransaction
	errTx := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		bonus, errBonus := loadBonus(tx, bonusItemID)
		if errBonus != nil {
			return errBonus
		}
		if !bonus.IsActive {
			return newError(CodeBonusInactive, "bonus is not active")
		}
		if bonus.Category == models.BonusCategoryPointsRelated {
			return newError(CodeBonusInactive, "bonus requires a teacher's confirmation")
		}

		semester, errSemester := activeSemester(tx)
		if errSemester != nil {
			return errSemester
		}

		var student models.StudentProfile
		if errFind := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ?", studentUser.ID).
			First(&student).Error; errFind != nil {
			if errors.Is(errFind, gorm.ErrRecordNotFound) {
				return newError(CodeProfileNotFound, "student profile not found")
			}
			return errFind
		}

		balance, errBalance := studentBalance(tx, student.ID, semester.ID)
		if errBalance != nil {
			return errBalance
		}
		if balance < bonus.PricePoints {
			return newError(CodeInsufficientBalance, "not enough points for this bonus")
		}

		used, errUsed := bonusUsedCount(tx, student.ID, semester.ID, bonus.ID)
		if errUsed != nil {
			return errUsed
		}
		if used >= bonus.MaxUsesPerStudent {
			return newError(CodeUsageLimitReached, "bonus usage limit reached")
		}

		bonusID := bonus.ID
		entry = models.PointTransaction{
			SemesterID:       semester.ID,
			StudentProfileID: student.ID,
			CreatedByID:      studentUser.ID,
			TxType:           models.TxTypeRedeem,
			PointsDelta:      -bonus.PricePoints,
			Message:          fmt.Sprintf("Bonus: %s", bonus.Title),
			BonusItemID:      &bonusID,
		}
		return tx.Create(&entry).Error
	})
	if errTx != nil {
		return nil, errTx
	}
	return &entry, nil
}

// loadBonus fetches a bonus item or reports it missing.
func loadBonus(tx *gorm.DB, bonusItemID uint64) (*models.BonusItem, error) {
	var bonus models.BonusItem
	if errFind := tx.First(&bonus, bonusItemID).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, newError(CodeNotFound, "bonus not found")
		}
		return nil, errFind
	}
	return &bonus, nil
}
