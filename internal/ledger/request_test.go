package ledger

import (
	"context"
	"testing"

	"github.com/mokykla/pointsapi/internal/models"
)

// newAssignedTeacher adds a second teacher assigned to nothing yet.
func (f *fixture) newAssignedTeacher(t *testing.T, username string) (models.User, models.TeacherProfile) {
	t.Helper()
	user := models.User{Username: username, PasswordHash: "x", Role: models.RoleTeacher}
	mustCreate(t, f.db, &user)
	profile := models.TeacherProfile{UserID: user.ID, DisplayName: username}
	mustCreate(t, f.db, &profile)
	return user, profile
}

func TestCreateRequest(t *testing.T) {
	f := newFixture(t)
	bonus := f.createBonus(t, "Laisva diena", 40, 1, models.BonusCategoryPointsRelated, f.teacher)
	f.grantPoints(t, f.studentA, 50)

	request, errCreate := f.svc.CreateBonusRedemptionRequest(context.Background(), &f.studentUserA, bonus.ID, f.teacher.ID)
	if errCreate != nil {
		t.Fatalf("create request: %v", errCreate)
	}
	if request.Status != models.RedemptionRequestPending {
		t.Fatalf("expected PENDING, got %s", request.Status)
	}

	// filing a request does not touch the ledger
	if got := f.balanceOf(t, f.studentA); got != 50 {
		t.Fatalf("expected balance 50, got %d", got)
	}
}

func TestCreateRequestRejectsUnassignedTeacher(t *testing.T) {
	f := newFixture(t)
	bonus := f.createBonus(t, "Laisva diena", 40, 1, models.BonusCategoryPointsRelated, f.teacher)
	_, other := f.newAssignedTeacher(t, "teacher-2")
	f.grantPoints(t, f.studentA, 50)

	_, errCreate := f.svc.CreateBonusRedemptionRequest(context.Background(), &f.studentUserA, bonus.ID, other.ID)
	wantCode(t, errCreate, CodeTeacherNotAssigned)
}

func TestCreateRequestRejectsDirectBonus(t *testing.T) {
	f := newFixture(t)
	bonus := f.createBonus(t, "Saldainis", 10, 1, models.BonusCategoryOther)
	f.grantPoints(t, f.studentA, 50)

	_, errCreate := f.svc.CreateBonusRedemptionRequest(context.Background(), &f.studentUserA, bonus.ID, f.teacher.ID)
	wantCode(t, errCreate, CodeBonusInactive)
}

func TestCreateRequestRejectsDuplicatePending(t *testing.T) {
	f := newFixture(t)
	bonus := f.createBonus(t, "Laisva diena", 40, 2, models.BonusCategoryPointsRelated, f.teacher)
	f.grantPoints(t, f.studentA, 100)

	ctx := context.Background()
	if _, errCreate := f.svc.CreateBonusRedemptionRequest(ctx, &f.studentUserA, bonus.ID, f.teacher.ID); errCreate != nil {
		t.Fatalf("create request: %v", errCreate)
	}
	_, errCreate := f.svc.CreateBonusRedemptionRequest(ctx, &f.studentUserA, bonus.ID, f.teacher.ID)
	wantCode(t, errCreate, CodeRequestPending)
}

func TestCreateRequestPrechecksBalance(t *testing.T) {
	f := newFixture(t)
	bonus := f.createBonus(t, "Laisva diena", 40, 1, models.BonusCategoryPointsRelated, f.teacher)
	f.grantPoints(t, f.studentA, 10)

	_, errCreate := f.svc.CreateBonusRedemptionRequest(context.Background(), &f.studentUserA, bonus.ID, f.teacher.ID)
	wantCode(t, errCreate, CodeInsufficientBalance)
}

func TestConfirmRequestDebitsStudent(t *testing.T) {
	f := newFixture(t)
	bonus := f.createBonus(t, "Laisva diena", 40, 1, models.BonusCategoryPointsRelated, f.teacher)
	f.grantPoints(t, f.studentA, 50)

	ctx := context.Background()
	request, errCreate := f.svc.CreateBonusRedemptionRequest(ctx, &f.studentUserA, bonus.ID, f.teacher.ID)
	if errCreate != nil {
		t.Fatalf("create request: %v", errCreate)
	}

	entry, errConfirm := f.svc.ConfirmBonusRedemptionRequest(ctx, &f.teacherUser, request.ID)
	if errConfirm != nil {
		t.Fatalf("confirm: %v", errConfirm)
	}
	if entry == nil || entry.PointsDelta != -40 || entry.TxType != models.TxTypeRedeem {
		t.Fatalf("unexpected entry: %+v", entry)
	}
	if got := f.balanceOf(t, f.studentA); got != 10 {
		t.Fatalf("expected balance 10, got %d", got)
	}

	var decided models.BonusRedemptionRequest
	if errFind := f.db.First(&decided, request.ID).Error; errFind != nil {
		t.Fatalf("reload request: %v", errFind)
	}
	if decided.Status != models.RedemptionRequestApproved {
		t.Fatalf("expected APPROVED, got %s", decided.Status)
	}
	if decided.DecidedAt == nil || decided.DecidedByID == nil || *decided.DecidedByID != f.teacherUser.ID {
		t.Fatalf("decision metadata missing: %+v", decided)
	}
}

func TestConfirmRequestByWrongTeacher(t *testing.T) {
	f := newFixture(t)
	_, other := f.newAssignedTeacher(t, "teacher-2")
	otherUser := models.User{}
	if errFind := f.db.First(&otherUser, other.UserID).Error; errFind != nil {
		t.Fatalf("load other user: %v", errFind)
	}
	// both teachers are assigned, but only the requested one may decide
	bonus := f.createBonus(t, "Laisva diena", 40, 1, models.BonusCategoryPointsRelated, f.teacher, other)
	f.grantPoints(t, f.studentA, 50)

	ctx := context.Background()
	request, errCreate := f.svc.CreateBonusRedemptionRequest(ctx, &f.studentUserA, bonus.ID, f.teacher.ID)
	if errCreate != nil {
		t.Fatalf("create request: %v", errCreate)
	}

	_, errConfirm := f.svc.ConfirmBonusRedemptionRequest(ctx, &otherUser, request.ID)
	wantCode(t, errConfirm, CodeForbidden)

	var pending models.BonusRedemptionRequest
	if errFind := f.db.First(&pending, request.ID).Error; errFind != nil {
		t.Fatalf("reload request: %v", errFind)
	}
	if pending.Status != models.RedemptionRequestPending {
		t.Fatalf("expected request to stay PENDING, got %s", pending.Status)
	}
}

func TestConfirmRequestIsIdempotent(t *testing.T) {
	f := newFixture(t)
	bonus := f.createBonus(t, "Laisva diena", 40, 1, models.BonusCategoryPointsRelated, f.teacher)
	f.grantPoints(t, f.studentA, 50)

	ctx := context.Background()
	request, errCreate := f.svc.CreateBonusRedemptionRequest(ctx, &f.studentUserA, bonus.ID, f.teacher.ID)
	if errCreate != nil {
		t.Fatalf("create request: %v", errCreate)
	}
	if _, errConfirm := f.svc.ConfirmBonusRedemptionRequest(ctx, &f.teacherUser, request.ID); errConfirm != nil {
		t.Fatalf("confirm: %v", errConfirm)
	}

	entry, errConfirm := f.svc.ConfirmBonusRedemptionRequest(ctx, &f.teacherUser, request.ID)
	if errConfirm != nil {
		t.Fatalf("second confirm: %v", errConfirm)
	}
	if entry != nil {
		t.Fatalf("second confirm must not debit again, got entry %+v", entry)
	}
	if got := f.balanceOf(t, f.studentA); got != 10 {
		t.Fatalf("expected balance 10, got %d", got)
	}
}

// Re-validation failure leaves the request pending so the teacher can
// retry once the student earns the points back.
func TestConfirmRequestRevalidationLeavesPending(t *testing.T) {
	f := newFixture(t)
	bonus := f.createBonus(t, "Laisva diena", 40, 1, models.BonusCategoryPointsRelated, f.teacher)
	candy := f.createBonus(t, "Saldainis", 30, 1, models.BonusCategoryOther)
	f.grantPoints(t, f.studentA, 50)

	ctx := context.Background()
	request, errCreate := f.svc.CreateBonusRedemptionRequest(ctx, &f.studentUserA, bonus.ID, f.teacher.ID)
	if errCreate != nil {
		t.Fatalf("create request: %v", errCreate)
	}

	// the balance drops below the price while the request waits
	if _, errRedeem := f.svc.RedeemBonus(ctx, &f.studentUserA, candy.ID); errRedeem != nil {
		t.Fatalf("redeem: %v", errRedeem)
	}

	_, errConfirm := f.svc.ConfirmBonusRedemptionRequest(ctx, &f.teacherUser, request.ID)
	wantCode(t, errConfirm, CodeInsufficientBalance)

	var pending models.BonusRedemptionRequest
	if errFind := f.db.First(&pending, request.ID).Error; errFind != nil {
		t.Fatalf("reload request: %v", errFind)
	}
	if pending.Status != models.RedemptionRequestPending {
		t.Fatalf("failed re-validation must leave the request PENDING, got %s", pending.Status)
	}
	if got := f.balanceOf(t, f.studentA); got != 20 {
		t.Fatalf("expected balance 20, got %d", got)
	}
}

func TestDeclineRequest(t *testing.T) {
	f := newFixture(t)
	bonus := f.createBonus(t, "Laisva diena", 40, 1, models.BonusCategoryPointsRelated, f.teacher)
	f.grantPoints(t, f.studentA, 50)

	ctx := context.Background()
	request, errCreate := f.svc.CreateBonusRedemptionRequest(ctx, &f.studentUserA, bonus.ID, f.teacher.ID)
	if errCreate != nil {
		t.Fatalf("create request: %v", errCreate)
	}

	if errDecline := f.svc.DeclineBonusRedemptionRequest(ctx, &f.teacherUser, request.ID); errDecline != nil {
		t.Fatalf("decline: %v", errDecline)
	}
	var declined models.BonusRedemptionRequest
	if errFind := f.db.First(&declined, request.ID).Error; errFind != nil {
		t.Fatalf("reload request: %v", errFind)
	}
	if declined.Status != models.RedemptionRequestDeclined {
		t.Fatalf("expected DECLINED, got %s", declined.Status)
	}
	if got := f.balanceOf(t, f.studentA); got != 50 {
		t.Fatalf("decline must not debit, balance=%d", got)
	}

	// declining again is a no-op
	if errDecline := f.svc.DeclineBonusRedemptionRequest(ctx, &f.teacherUser, request.ID); errDecline != nil {
		t.Fatalf("second decline: %v", errDecline)
	}

	// after a decline the student may file again
	if _, errCreate := f.svc.CreateBonusRedemptionRequest(ctx, &f.studentUserA, bonus.ID, f.teacher.ID); errCreate != nil {
		t.Fatalf("refile request: %v", errCreate)
	}
}

func TestDeclineApprovedRequest(t *testing.T) {
	f := newFixture(t)
	bonus := f.createBonus(t, "Laisva diena", 40, 1, models.BonusCategoryPointsRelated, f.teacher)
	f.grantPoints(t, f.studentA, 50)

	ctx := context.Background()
	request, errCreate := f.svc.CreateBonusRedemptionRequest(ctx, &f.studentUserA, bonus.ID, f.teacher.ID)
	if errCreate != nil {
		t.Fatalf("create request: %v", errCreate)
	}
	if _, errConfirm := f.svc.ConfirmBonusRedemptionRequest(ctx, &f.teacherUser, request.ID); errConfirm != nil {
		t.Fatalf("confirm: %v", errConfirm)
	}

	errDecline := f.svc.DeclineBonusRedemptionRequest(ctx, &f.teacherUser, request.ID)
	wantCode(t, errDecline, CodeRequestDecided)
}
