package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mokykla/pointsapi/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// activeGroupStatuses are the non-terminal group purchase states.
var activeGroupStatuses = []models.GroupPurchaseStatus{
	models.GroupPurchaseOpen,
	models.GroupPurchaseAwaitingConfirmation,
}

// ReserveGroupPoints places or amends the caller's stake in the group
// purchase of a bonus. Reservation never debits the ledger; it only
// locks points against the student's available balance. When the total
// reserved across contributors reaches the price, the purchase moves to
// awaiting confirmation. Amending an amount clears any prior
// confirmation, since every contributor confirms the amounts they are
// actually in for.
func (s *Service) ReserveGroupPoints(ctx context.Context, studentUser *models.User, bonusItemID uint64, amount int) (*models.GroupContribution, error) {
	if errRole := requireRole(studentUser, models.RoleStudent, "only students can reserve points"); errRole != nil {
		return nil, errRole
	}
	if amount <= 0 {
		return nil, newError(CodeInvalidAmount, "reserved amount must be positive")
	}

	var contribution models.GroupContribution
	errTx := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		bonus, errBonus := loadBonus(tx, bonusItemID)
		if errBonus != nil {
			return errBonus
		}
		if !bonus.IsActive {
			return newError(CodeBonusInactive, "bonus is not active")
		}
		if bonus.Category == models.BonusCategoryPointsRelated {
			return newError(CodeBonusInactive, "bonus requires a teacher's confirmation and cannot be group funded")
		}

		semester, errSemester := activeSemester(tx)
		if errSemester != nil {
			return errSemester
		}
		student, errStudent := studentProfileOf(tx, studentUser)
		if errStudent != nil {
			return errStudent
		}

		used, errUsed := bonusUsedCount(tx, student.ID, semester.ID, bonus.ID)
		if errUsed != nil {
			return errUsed
		}
		if used >= bonus.MaxUsesPerStudent {
			return newError(CodeUsageLimitReached, "bonus usage limit reached")
		}

		purchase, errPurchase := lockOrCreateGroupPurchase(tx, semester.ID, bonus.ID)
		if errPurchase != nil {
			return errPurchase
		}
		if purchase.Status != models.GroupPurchaseOpen {
			return newError(CodePurchaseNotOpen, "group purchase is already awaiting confirmations")
		}

		existingAmount := 0
		var existing models.GroupContribution
		errFind := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("group_purchase_id = ? AND student_profile_id = ?", purchase.ID, student.ID).
			First(&existing).Error
		switch {
		case errFind == nil:
			existingAmount = existing.Amount
		case errors.Is(errFind, gorm.ErrRecordNotFound):
			// first contribution from this student
		default:
			return errFind
		}

		var totalOther int64
		if errSum := tx.Model(&models.GroupContribution{}).
			Where("group_purchase_id = ? AND student_profile_id <> ?", purchase.ID, student.ID).
			Select("COALESCE(SUM(amount), 0)").
			Scan(&totalOther).Error; errSum != nil {
			return errSum
		}
		remainingNeeded := bonus.PricePoints - int(totalOther)
		if remainingNeeded < 0 {
			remainingNeeded = 0
		}
		if amount > remainingNeeded+existingAmount {
			return newError(CodeOverFunding, "reserved amount exceeds what the bonus still needs")
		}

		available, errAvailable := availableBalance(tx, student.ID, semester.ID, existingAmount)
		if errAvailable != nil {
			return errAvailable
		}
		if amount > available {
			return newError(CodeInsufficientBalance, "not enough free points for this reservation")
		}

		if existing.ID != 0 {
			if errUpdate := tx.Model(&existing).Updates(map[string]any{
				"amount":       amount,
				"confirmed_at": nil,
			}).Error; errUpdate != nil {
				return errUpdate
			}
			existing.Amount = amount
			existing.ConfirmedAt = nil
			contribution = existing
		} else {
			contribution = models.GroupContribution{
				GroupPurchaseID:  purchase.ID,
				StudentProfileID: student.ID,
				Amount:           amount,
			}
			if errCreate := tx.Create(&contribution).Error; errCreate != nil {
				return errCreate
			}
		}

		var totalReserved int64
		if errSum := tx.Model(&models.GroupContribution{}).
			Where("group_purchase_id = ?", purchase.ID).
			Select("COALESCE(SUM(amount), 0)").
			Scan(&totalReserved).Error; errSum != nil {
			return errSum
		}
		if int(totalReserved) >= bonus.PricePoints {
			return tx.Model(purchase).
				Update("status", models.GroupPurchaseAwaitingConfirmation).Error
		}
		return nil
	})
	if errTx != nil {
		return nil, errTx
	}
	return &contribution, nil
}

// WithdrawGroupReservation removes the caller's reservation and deletes
// the purchase entirely. Only the sole contributor may withdraw; once
// anyone else has staked points the funding cannot be pulled out from
// under them.
func (s *Service) WithdrawGroupReservation(ctx context.Context, studentUser *models.User, bonusItemID uint64) error {
	if errRole := requireRole(studentUser, models.RoleStudent, "only students can withdraw reservations"); errRole != nil {
		return errRole
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		semester, errSemester := activeSemester(tx)
		if errSemester != nil {
			return errSemester
		}
		student, errStudent := studentProfileOf(tx, studentUser)
		if errStudent != nil {
			return errStudent
		}

		purchase, errPurchase := lockActiveGroupPurchase(tx, semester.ID, bonusItemID)
		if errPurchase != nil {
			return errPurchase
		}

		var others int64
		if errCount := tx.Model(&models.GroupContribution{}).
			Where("group_purchase_id = ? AND student_profile_id <> ?", purchase.ID, student.ID).
			Count(&others).Error; errCount != nil {
			return errCount
		}
		if others > 0 {
			return newError(CodeWithdrawBlocked, "other students have contributed, the reservation cannot be withdrawn")
		}

		deleted := tx.Where("group_purchase_id = ? AND student_profile_id = ?", purchase.ID, student.ID).
			Delete(&models.GroupContribution{})
		if deleted.Error != nil {
			return deleted.Error
		}
		if deleted.RowsAffected == 0 {
			return newError(CodeContributionNotFound, "no reservation found")
		}
		return tx.Delete(purchase).Error
	})
}

// ConfirmGroupPurchase records the caller's confirmation of a fully
// funded purchase. Confirming twice is a no-op. When the last
// contributor confirms, every contribution is debited as its own REDEEM
// entry and the purchase completes, all within the same transaction:
// this is the only point where group funds actually leave balances.
func (s *Service) ConfirmGroupPurchase(ctx context.Context, studentUser *models.User, bonusItemID uint64) error {
	if errRole := requireRole(studentUser, models.RoleStudent, "only students can confirm group purchases"); errRole != nil {
		return errRole
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		bonus, errBonus := loadBonus(tx, bonusItemID)
		if errBonus != nil {
			return errBonus
		}
		semester, errSemester := activeSemester(tx)
		if errSemester != nil {
			return errSemester
		}
		student, errStudent := studentProfileOf(tx, studentUser)
		if errStudent != nil {
			return errStudent
		}

		var purchase models.GroupPurchase
		if errFind := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("semester_id = ? AND bonus_item_id = ? AND status = ?",
				semester.ID, bonus.ID, models.GroupPurchaseAwaitingConfirmation).
			First(&purchase).Error; errFind != nil {
			if errors.Is(errFind, gorm.ErrRecordNotFound) {
				return newError(CodePurchaseNotFound, "no group purchase awaiting confirmation")
			}
			return errFind
		}

		var contribution models.GroupContribution
		if errFind := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("group_purchase_id = ? AND student_profile_id = ?", purchase.ID, student.ID).
			First(&contribution).Error; errFind != nil {
			if errors.Is(errFind, gorm.ErrRecordNotFound) {
				return newError(CodeContributionNotFound, "you have not contributed to this purchase")
			}
			return errFind
		}
		if contribution.ConfirmedAt != nil {
			return nil
		}

		// Balances may have shifted since the reservation was placed.
		available, errAvailable := availableBalance(tx, student.ID, semester.ID, contribution.Amount)
		if errAvailable != nil {
			return errAvailable
		}
		if contribution.Amount > available {
			return newError(CodeInsufficientBalance, "not enough points to confirm the purchase")
		}

		now := time.Now().UTC()
		if errUpdate := tx.Model(&contribution).Update("confirmed_at", now).Error; errUpdate != nil {
			return errUpdate
		}

		var unconfirmed int64
		if errCount := tx.Model(&models.GroupContribution{}).
			Where("group_purchase_id = ? AND confirmed_at IS NULL", purchase.ID).
			Count(&unconfirmed).Error; errCount != nil {
			return errCount
		}
		if unconfirmed > 0 {
			return nil
		}

		// Last confirmation: debit every contributor atomically. The lock
		// on all contribution rows keeps a late amendment or withdrawal
		// from interleaving with the payout.
		var contributions []models.GroupContribution
		if errFind := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Preload("StudentProfile").
			Where("group_purchase_id = ?", purchase.ID).
			Find(&contributions).Error; errFind != nil {
			return errFind
		}
		bonusID := bonus.ID
		for _, entry := range contributions {
			if entry.StudentProfile == nil {
				return newError(CodeProfileNotFound, "student profile not found")
			}
			redeem := models.PointTransaction{
				SemesterID:       semester.ID,
				StudentProfileID: entry.StudentProfileID,
				CreatedByID:      entry.StudentProfile.UserID,
				TxType:           models.TxTypeRedeem,
				PointsDelta:      -entry.Amount,
				Message:          fmt.Sprintf("Group purchase: %s", bonus.Title),
				BonusItemID:      &bonusID,
			}
			if errCreate := tx.Create(&redeem).Error; errCreate != nil {
				return errCreate
			}
		}
		return tx.Model(&purchase).Update("status", models.GroupPurchaseCompleted).Error
	})
}

// lockOrCreateGroupPurchase returns the active purchase for the pair,
// creating an open one when none exists. The returned row is locked.
func lockOrCreateGroupPurchase(tx *gorm.DB, semesterID, bonusItemID uint64) (*models.GroupPurchase, error) {
	var purchase models.GroupPurchase
	errFind := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("semester_id = ? AND bonus_item_id = ? AND status IN ?", semesterID, bonusItemID, activeGroupStatuses).
		First(&purchase).Error
	if errFind == nil {
		return &purchase, nil
	}
	if !errors.Is(errFind, gorm.ErrRecordNotFound) {
		return nil, errFind
	}

	purchase = models.GroupPurchase{
		SemesterID:  semesterID,
		BonusItemID: bonusItemID,
		Status:      models.GroupPurchaseOpen,
	}
	if errCreate := tx.Create(&purchase).Error; errCreate != nil {
		return nil, errCreate
	}
	return &purchase, nil
}

// lockActiveGroupPurchase returns the locked active purchase for the
// pair or reports that no reservation exists.
func lockActiveGroupPurchase(tx *gorm.DB, semesterID, bonusItemID uint64) (*models.GroupPurchase, error) {
	var purchase models.GroupPurchase
	errFind := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("semester_id = ? AND bonus_item_id = ? AND status IN ?", semesterID, bonusItemID, activeGroupStatuses).
		First(&purchase).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, newError(CodePurchaseNotFound, "no reservation found")
		}
		return nil, errFind
	}
	return &purchase, nil
}
