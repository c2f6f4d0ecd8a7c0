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

// CreateBonusRedemptionRequest files a pending claim on a bonus that
// needs a teacher's approval. Nothing is debited here; balance and
// usage are pre-checked only so students cannot file requests that
// could never be honored. One pending request per (semester, bonus,
// student) at a time.
func (s *Service) CreateBonusRedemptionRequest(ctx context.Context, studentUser *models.User, bonusItemID, teacherProfileID uint64) (*models.BonusRedemptionRequest, error) {
	if errRole := requireRole(studentUser, models.RoleStudent, "only students can request redemptions"); errRole != nil {
		return nil, errRole
	}

	var request models.BonusRedemptionRequest
	errTx := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		bonus, errBonus := loadBonus(tx, bonusItemID)
		if errBonus != nil {
			return errBonus
		}
		if !bonus.IsActive {
			return newError(CodeBonusInactive, "bonus is not active")
		}
		if bonus.Category != models.BonusCategoryPointsRelated {
			return newError(CodeBonusInactive, "bonus does not require a teacher's confirmation")
		}

		assigned, errAssigned := teacherAssignedToBonus(tx, bonus.ID, teacherProfileID)
		if errAssigned != nil {
			return errAssigned
		}
		if !assigned {
			return newError(CodeTeacherNotAssigned, "the chosen teacher cannot confirm this bonus")
		}

		semester, errSemester := activeSemester(tx)
		if errSemester != nil {
			return errSemester
		}
		student, errStudent := studentProfileOf(tx, studentUser)
		if errStudent != nil {
			return errStudent
		}

		var pending int64
		if errCount := tx.Model(&models.BonusRedemptionRequest{}).
			Where("semester_id = ? AND bonus_item_id = ? AND student_profile_id = ? AND status = ?",
				semester.ID, bonus.ID, student.ID, models.RedemptionRequestPending).
			Count(&pending).Error; errCount != nil {
			return errCount
		}
		if pending > 0 {
			return newError(CodeRequestPending, "a request for this bonus is already awaiting a decision")
		}

		used, errUsed := bonusUsedCount(tx, student.ID, semester.ID, bonus.ID)
		if errUsed != nil {
			return errUsed
		}
		if used >= bonus.MaxUsesPerStudent {
			return newError(CodeUsageLimitReached, "bonus usage limit reached")
		}
		balance, errBalance := studentBalance(tx, student.ID, semester.ID)
		if errBalance != nil {
			return errBalance
		}
		if balance < bonus.PricePoints {
			return newError(CodeInsufficientBalance, "not enough points for this bonus")
		}

		request = models.BonusRedemptionRequest{
			Status:             models.RedemptionRequestPending,
			StudentProfileID:   student.ID,
			BonusItemID:        bonus.ID,
			RequestedTeacherID: teacherProfileID,
			SemesterID:         semester.ID,
		}
		return tx.Create(&request).Error
	})
	if errTx != nil {
		return nil, errTx
	}
	return &request, nil
}

// ConfirmBonusRedemptionRequest approves a pending request and debits
// the student. Only the teacher named on the request may decide it;
// other teachers assigned to the bonus are still rejected. Balance and
// usage are re-validated at confirmation time, and a failed
// re-validation leaves the request pending so the teacher can retry or
// decline explicitly once the student earns the points back.
func (s *Service) ConfirmBonusRedemptionRequest(ctx context.Context, teacherUser *models.User, requestID uint64) (*models.PointTransaction, error) {
	if errRole := requireRole(teacherUser, models.RoleTeacher, "only teachers can decide redemption requests"); errRole != nil {
		return nil, errRole
	}

	var entry *models.PointTransaction
	errTx := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		teacher, errTeacher := teacherProfileOf(tx, teacherUser)
		if errTeacher != nil {
			return errTeacher
		}

		request, errRequest := lockRedemptionRequest(tx, requestID)
		if errRequest != nil {
			return errRequest
		}
		if request.RequestedTeacherID != teacher.ID {
			return newError(CodeForbidden, "only the requested teacher can decide this request")
		}
		if request.Status != models.RedemptionRequestPending {
			if request.Status == models.RedemptionRequestApproved {
				return nil
			}
			return newError(CodeRequestDecided, "the request has already been decided")
		}

		bonus, errBonus := loadBonus(tx, request.BonusItemID)
		if errBonus != nil {
			return errBonus
		}

		// The student's state may have changed since the request was filed.
		balance, errBalance := studentBalance(tx, request.StudentProfileID, request.SemesterID)
		if errBalance != nil {
			return errBalance
		}
		if balance < bonus.PricePoints {
			return newError(CodeInsufficientBalance, "the student no longer has enough points")
		}
		used, errUsed := bonusUsedCount(tx, request.StudentProfileID, request.SemesterID, bonus.ID)
		if errUsed != nil {
			return errUsed
		}
		if used >= bonus.MaxUsesPerStudent {
			return newError(CodeUsageLimitReached, "bonus usage limit reached")
		}

		bonusID := bonus.ID
		entry = &models.PointTransaction{
			SemesterID:       request.SemesterID,
			StudentProfileID: request.StudentProfileID,
			CreatedByID:      teacherUser.ID,
			TxType:           models.TxTypeRedeem,
			PointsDelta:      -bonus.PricePoints,
			Message:          fmt.Sprintf("Bonus confirmed by teacher: %s", bonus.Title),
			BonusItemID:      &bonusID,
		}
		if errCreate := tx.Create(entry).Error; errCreate != nil {
			return errCreate
		}

		now := time.Now().UTC()
		return tx.Model(request).Updates(map[string]any{
			"status":        models.RedemptionRequestApproved,
			"decided_at":    now,
			"decided_by_id": teacherUser.ID,
		}).Error
	})
	if errTx != nil {
		return nil, errTx
	}
	return entry, nil
}

// DeclineBonusRedemptionRequest declines a pending request without
// touching the ledger. Declining an already declined request is a
// no-op; an approved request cannot be declined.
func (s *Service) DeclineBonusRedemptionRequest(ctx context.Context, teacherUser *models.User, requestID uint64) error {
	if errRole := requireRole(teacherUser, models.RoleTeacher, "only teachers can decide redemption requests"); errRole != nil {
		return errRole
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		teacher, errTeacher := teacherProfileOf(tx, teacherUser)
		if errTeacher != nil {
			return errTeacher
		}

		request, errRequest := lockRedemptionRequest(tx, requestID)
		if errRequest != nil {
			return errRequest
		}
		if request.RequestedTeacherID != teacher.ID {
			return newError(CodeForbidden, "only the requested teacher can decide this request")
		}
		switch request.Status {
		case models.RedemptionRequestDeclined:
			return nil
		case models.RedemptionRequestApproved:
			return newError(CodeRequestDecided, "the request has already been approved")
		}

		now := time.Now().UTC()
		return tx.Model(request).Updates(map[string]any{
			"status":        models.RedemptionRequestDeclined,
			"decided_at":    now,
			"decided_by_id": teacherUser.ID,
		}).Error
	})
}

// teacherAssignedToBonus reports whether the teacher is in the bonus's
// assigned set.
func teacherAssignedToBonus(tx *gorm.DB, bonusItemID, teacherProfileID uint64) (bool, error) {
	var count int64
	errCount := tx.Table("bonus_item_assigned_teachers").
		Where("bonus_item_id = ? AND teacher_profile_id = ?", bonusItemID, teacherProfileID).
		Count(&count).Error
	if errCount != nil {
		return false, errCount
	}
	return count > 0, nil
}

// lockRedemptionRequest fetches a request row under lock.
func lockRedemptionRequest(tx *gorm.DB, requestID uint64) (*models.BonusRedemptionRequest, error) {
	var request models.BonusRedemptionRequest
	if errFind := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&request, requestID).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, newError(CodeNotFound, "redemption request not found")
		}
		return nil, errFind
	}
	return &request, nil
}
