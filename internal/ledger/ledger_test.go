package ledger

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	dbpkg "github.com/mokykla/pointsapi/internal/db"
	"github.com/mokykla/pointsapi/internal/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// openTestDB opens a migrated in-memory database. A single pooled
// connection keeps concurrent test transactions on one sqlite handle.
func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:ledger_%d?mode=memory&cache=shared", time.Now().UnixNano())
	conn, errOpen := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if errOpen != nil {
		t.Fatalf("open sqlite: %v", errOpen)
	}
	sqlDB, errDB := conn.DB()
	if errDB != nil {
		t.Fatalf("sql db: %v", errDB)
	}
	sqlDB.SetMaxOpenConns(1)
	if errMigrate := dbpkg.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	return conn
}

// fixture is the common cast of a ledger test: one active semester, an
// admin, a budgeted teacher, and two students.
type fixture struct {
	db  *gorm.DB
	svc *Service

	semester models.Semester

	admin       models.User
	teacherUser models.User
	teacher     models.TeacherProfile
	budget      models.TeacherBudget

	studentUserA models.User
	studentA     models.StudentProfile
	studentUserB models.User
	studentB     models.StudentProfile
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conn := openTestDB(t)
	f := &fixture{db: conn, svc: NewService(conn, nil)}

	f.semester = models.Semester{
		Name:      "2026 Ruduo",
		StartDate: datatypes.Date(time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)),
		EndDate:   datatypes.Date(time.Date(2027, 1, 31, 0, 0, 0, 0, time.UTC)),
		IsActive:  true,
	}
	mustCreate(t, conn, &f.semester)

	f.admin = models.User{Username: "admin", PasswordHash: "x", Role: models.RoleAdmin}
	mustCreate(t, conn, &f.admin)

	f.teacherUser = models.User{Username: "teacher", PasswordHash: "x", Role: models.RoleTeacher}
	mustCreate(t, conn, &f.teacherUser)
	f.teacher = models.TeacherProfile{UserID: f.teacherUser.ID, DisplayName: "Ona Mokytoja"}
	mustCreate(t, conn, &f.teacher)
	f.budget = models.TeacherBudget{
		TeacherProfileID: f.teacher.ID,
		SemesterID:       f.semester.ID,
		AllocatedPoints:  100,
	}
	mustCreate(t, conn, &f.budget)

	f.studentUserA = models.User{Username: "student-a", PasswordHash: "x", Role: models.RoleStudent}
	mustCreate(t, conn, &f.studentUserA)
	f.studentA = models.StudentProfile{UserID: f.studentUserA.ID, DisplayName: "Aiste", ClassName: "8A"}
	mustCreate(t, conn, &f.studentA)

	f.studentUserB = models.User{Username: "student-b", PasswordHash: "x", Role: models.RoleStudent}
	mustCreate(t, conn, &f.studentUserB)
	f.studentB = models.StudentProfile{UserID: f.studentUserB.ID, DisplayName: "Benas", ClassName: "8B"}
	mustCreate(t, conn, &f.studentB)

	return f
}

func mustCreate(t *testing.T, conn *gorm.DB, value any) {
	t.Helper()
	if errCreate := conn.Create(value).Error; errCreate != nil {
		t.Fatalf("create %T: %v", value, errCreate)
	}
}

// createBonus adds a bonus to the catalog.
func (f *fixture) createBonus(t *testing.T, title string, price, maxUses int, category models.BonusCategory, teachers ...models.TeacherProfile) models.BonusItem {
	t.Helper()
	bonus := models.BonusItem{
		Title:             title,
		PricePoints:       price,
		MaxUsesPerStudent: maxUses,
		IsActive:          true,
		Category:          category,
		AssignedTeachers:  teachers,
	}
	mustCreate(t, f.db, &bonus)
	return bonus
}

// grantPoints gives a student a balance via an admin adjustment.
func (f *fixture) grantPoints(t *testing.T, student models.StudentProfile, points int) {
	t.Helper()
	if _, errAdjust := f.svc.AdminAdjustPoints(context.Background(), &f.admin, student.ID, points, "seed"); errAdjust != nil {
		t.Fatalf("grant points: %v", errAdjust)
	}
}

// balanceOf reads a student's current balance.
func (f *fixture) balanceOf(t *testing.T, student models.StudentProfile) int {
	t.Helper()
	balance, errBalance := f.svc.StudentBalance(context.Background(), student.ID, f.semester.ID)
	if errBalance != nil {
		t.Fatalf("balance: %v", errBalance)
	}
	return balance
}

// reloadBudget re-reads the teacher budget row.
func (f *fixture) reloadBudget(t *testing.T) models.TeacherBudget {
	t.Helper()
	var budget models.TeacherBudget
	if errFind := f.db.First(&budget, f.budget.ID).Error; errFind != nil {
		t.Fatalf("reload budget: %v", errFind)
	}
	return budget
}

// wantCode asserts err is a domain error with the given code.
func wantCode(t *testing.T, err error, code Code) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error with code %s, got nil", code)
	}
	domainErr, ok := AsError(err)
	if !ok {
		t.Fatalf("expected domain error with code %s, got %v", code, err)
	}
	if domainErr.Code != code {
		t.Fatalf("expected code %s, got %s (%s)", code, domainErr.Code, domainErr.Message)
	}
}

func TestActiveSemesterNone(t *testing.T) {
	conn := openTestDB(t)
	svc := NewService(conn, nil)
	_, errSemester := svc.ActiveSemester(context.Background())
	wantCode(t, errSemester, CodeNoActiveSemester)
}

func TestActiveSemesterAmbiguous(t *testing.T) {
	f := newFixture(t)
	// Simulate a database predating the single-active guard.
	if errDrop := f.db.Exec("DROP INDEX IF EXISTS idx_single_active_semester").Error; errDrop != nil {
		t.Fatalf("drop index: %v", errDrop)
	}
	second := models.Semester{
		Name:      "2027 Pavasaris",
		StartDate: datatypes.Date(time.Date(2027, 2, 1, 0, 0, 0, 0, time.UTC)),
		EndDate:   datatypes.Date(time.Date(2027, 6, 30, 0, 0, 0, 0, time.UTC)),
		IsActive:  true,
	}
	mustCreate(t, f.db, &second)

	_, errSemester := f.svc.ActiveSemester(context.Background())
	wantCode(t, errSemester, CodeAmbiguousSemester)
}

func TestSetActiveSemesterFlips(t *testing.T) {
	f := newFixture(t)
	second := models.Semester{
		Name:      "2027 Pavasaris",
		StartDate: datatypes.Date(time.Date(2027, 2, 1, 0, 0, 0, 0, time.UTC)),
		EndDate:   datatypes.Date(time.Date(2027, 6, 30, 0, 0, 0, 0, time.UTC)),
	}
	mustCreate(t, f.db, &second)

	activated, errActivate := f.svc.SetActiveSemester(context.Background(), &f.admin, second.ID)
	if errActivate != nil {
		t.Fatalf("activate: %v", errActivate)
	}
	if !activated.IsActive {
		t.Fatalf("expected activated semester to be active")
	}

	current, errCurrent := f.svc.ActiveSemester(context.Background())
	if errCurrent != nil {
		t.Fatalf("active semester: %v", errCurrent)
	}
	if current.ID != second.ID {
		t.Fatalf("expected semester %d active, got %d", second.ID, current.ID)
	}

	var old models.Semester
	if errFind := f.db.First(&old, f.semester.ID).Error; errFind != nil {
		t.Fatalf("reload old semester: %v", errFind)
	}
	if old.IsActive {
		t.Fatalf("expected previous semester to be deactivated")
	}
}

func TestSetActiveSemesterRequiresAdmin(t *testing.T) {
	f := newFixture(t)
	_, errActivate := f.svc.SetActiveSemester(context.Background(), &f.teacherUser, f.semester.ID)
	wantCode(t, errActivate, CodeForbidden)
}

func TestAdminAdjustAppendsEntry(t *testing.T) {
	f := newFixture(t)

	entry, errAdjust := f.svc.AdminAdjustPoints(context.Background(), &f.admin, f.studentA.ID, 15, "correction")
	if errAdjust != nil {
		t.Fatalf("adjust: %v", errAdjust)
	}
	if entry.TxType != models.TxTypeAdminAdjust || entry.PointsDelta != 15 {
		t.Fatalf("unexpected entry: %+v", entry)
	}
	if got := f.balanceOf(t, f.studentA); got != 15 {
		t.Fatalf("expected balance 15, got %d", got)
	}

	budget := f.reloadBudget(t)
	if budget.SpentPoints != 0 {
		t.Fatalf("adjustment must not touch teacher budgets, spent=%d", budget.SpentPoints)
	}
}

func TestAdminAdjustRejectsNonAdmin(t *testing.T) {
	f := newFixture(t)
	_, errAdjust := f.svc.AdminAdjustPoints(context.Background(), &f.teacherUser, f.studentA.ID, 10, "")
	wantCode(t, errAdjust, CodeForbidden)
}

func TestAdminAdjustRejectsNonPositive(t *testing.T) {
	f := newFixture(t)
	_, errAdjust := f.svc.AdminAdjustPoints(context.Background(), &f.admin, f.studentA.ID, 0, "")
	wantCode(t, errAdjust, CodeInvalidAmount)
}
