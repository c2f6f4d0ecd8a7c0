package ledger

import (
	"context"

	"github.com/mokykla/pointsapi/internal/models"
	"gorm.io/gorm"
)

// StudentBalance returns the student's point balance for a semester:
// the sum of all their ledger deltas in that semester, zero when no
// transactions exist. No other derivation of balance is permitted.
func (s *Service) StudentBalance(ctx context.Context, studentProfileID, semesterID uint64) (int, error) {
	return studentBalance(s.db.WithContext(ctx), studentProfileID, semesterID)
}

func studentBalance(tx *gorm.DB, studentProfileID, semesterID uint64) (int, error) {
	var total int64
	errScan := tx.Model(&models.PointTransaction{}).
		Where("student_profile_id = ? AND semester_id = ?", studentProfileID, semesterID).
		Select("COALESCE(SUM(points_delta), 0)").
		Scan(&total).Error
	if errScan != nil {
		return 0, errScan
	}
	return int(total), nil
}

// BonusUsedCount returns how many times the student has redeemed the
// bonus within the semester, the counter behind the usage limit.
func (s *Service) BonusUsedCount(ctx context.Context, studentProfileID, semesterID, bonusItemID uint64) (int, error) {
	return bonusUsedCount(s.db.WithContext(ctx), studentProfileID, semesterID, bonusItemID)
}

func bonusUsedCount(tx *gorm.DB, studentProfileID, semesterID, bonusItemID uint64) (int, error) {
	var count int64
	errCount := tx.Model(&models.PointTransaction{}).
		Where("student_profile_id = ? AND semester_id = ? AND bonus_item_id = ? AND tx_type = ?",
			studentProfileID, semesterID, bonusItemID, models.TxTypeRedeem).
		Count(&count).Error
	if errCount != nil {
		return 0, errCount
	}
	return int(count), nil
}

// StudentReserved returns the points the student has locked in open or
// awaiting-confirmation group purchases for the semester. Reserved
// points are not yet debited but cannot be spent elsewhere.
func (s *Service) StudentReserved(ctx context.Context, studentProfileID, semesterID uint64) (int, error) {
	return studentReserved(s.db.WithContext(ctx), studentProfileID, semesterID)
}

func studentReserved(tx *gorm.DB, studentProfileID, semesterID uint64) (int, error) {
	var total int64
	errScan := tx.Model(&models.GroupContribution{}).
		Joins("JOIN group_purchases ON group_purchases.id = group_contributions.group_purchase_id").
		Where("group_contributions.student_profile_id = ?", studentProfileID).
		Where("group_purchases.semester_id = ?", semesterID).
		Where("group_purchases.status IN ?", []models.GroupPurchaseStatus{
			models.GroupPurchaseOpen,
			models.GroupPurchaseAwaitingConfirmation,
		}).
		Select("COALESCE(SUM(group_contributions.amount), 0)").
		Scan(&total).Error
	if errScan != nil {
		return 0, errScan
	}
	return int(total), nil
}

// AvailableBalance returns the balance minus reserved points, the
// amount the student can actually commit to a new spend.
func (s *Service) AvailableBalance(ctx context.Context, studentProfileID, semesterID uint64) (int, error) {
	return availableBalance(s.db.WithContext(ctx), studentProfileID, semesterID, 0)
}

// availableBalance derives what a student can spend. ownReservation is
// the student's existing contribution when re-evaluating a specific
// reservation: that amount is being replaced, not added, so it is
// handed back before the comparison.
func availableBalance(tx *gorm.DB, studentProfileID, semesterID uint64, ownReservation int) (int, error) {
	balance, errBalance := studentBalance(tx, studentProfileID, semesterID)
	if errBalance != nil {
		return 0, errBalance
	}
	reserved, errReserved := studentReserved(tx, studentProfileID, semesterID)
	if errReserved != nil {
		return 0, errReserved
	}
	return balance - reserved + ownReservation, nil
}
