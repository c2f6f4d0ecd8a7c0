package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	dbpkg "github.com/mokykla/pointsapi/internal/db"
	"github.com/mokykla/pointsapi/internal/ledger"
	"github.com/mokykla/pointsapi/internal/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// setupAdmin seeds an admin user, a teacher, and two semesters with only
// the first one active.
func setupAdmin(t *testing.T) (*gorm.DB, *ledger.Service, models.User, models.TeacherProfile, models.Semester, models.Semester) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	dsn := fmt.Sprintf("file:admin_%d?mode=memory&cache=shared", time.Now().UnixNano())
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

	admin := models.User{Username: "admin", PasswordHash: "x", Role: models.RoleAdmin}
	if errCreate := conn.Create(&admin).Error; errCreate != nil {
		t.Fatalf("create admin: %v", errCreate)
	}
	teacherUser := models.User{Username: "teacher", PasswordHash: "x", Role: models.RoleTeacher}
	if errCreate := conn.Create(&teacherUser).Error; errCreate != nil {
		t.Fatalf("create teacher user: %v", errCreate)
	}
	teacher := models.TeacherProfile{UserID: teacherUser.ID, DisplayName: "Ona Mokytoja"}
	if errCreate := conn.Create(&teacher).Error; errCreate != nil {
		t.Fatalf("create teacher profile: %v", errCreate)
	}

	fall := models.Semester{
		Name:      "2026 Ruduo",
		StartDate: datatypes.Date(time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)),
		EndDate:   datatypes.Date(time.Date(2027, 1, 31, 0, 0, 0, 0, time.UTC)),
		IsActive:  true,
	}
	if errCreate := conn.Create(&fall).Error; errCreate != nil {
		t.Fatalf("create semester: %v", errCreate)
	}
	spring := models.Semester{
		Name:      "2027 Pavasaris",
		StartDate: datatypes.Date(time.Date(2027, 2, 1, 0, 0, 0, 0, time.UTC)),
		EndDate:   datatypes.Date(time.Date(2027, 6, 30, 0, 0, 0, 0, time.UTC)),
	}
	if errCreate := conn.Create(&spring).Error; errCreate != nil {
		t.Fatalf("create semester: %v", errCreate)
	}

	return conn, ledger.NewService(conn, nil), admin, teacher, fall, spring
}

func newAdminContext(t *testing.T, w *httptest.ResponseRecorder, user *models.User, method, target string, body any) *gin.Context {
	t.Helper()
	c, _ := gin.CreateTestContext(w)
	var reader *bytes.Reader
	if body != nil {
		encoded, errEncode := json.Marshal(body)
		if errEncode != nil {
			t.Fatalf("encode body: %v", errEncode)
		}
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}
	c.Request = httptest.NewRequest(method, target, reader)
	c.Set("userID", user.ID)
	c.Set("currentUser", user)
	return c
}

func TestBudgetUpsertCreatesAndAmends(t *testing.T) {
	conn, _, admin, teacher, fall, _ := setupAdmin(t)
	h := NewBudgetHandler(conn)

	w := httptest.NewRecorder()
	c := newAdminContext(t, w, &admin, http.MethodPut, "/v0/admin/budgets", gin.H{
		"teacher_profile_id": teacher.ID,
		"semester_id":        fall.ID,
		"allocated_points":   100,
	})
	h.Upsert(c)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d body=%s", w.Code, w.Body.String())
	}

	var budget models.TeacherBudget
	if errFind := conn.Where("teacher_profile_id = ? AND semester_id = ?", teacher.ID, fall.ID).
		First(&budget).Error; errFind != nil {
		t.Fatalf("load budget: %v", errFind)
	}
	if budget.AllocatedPoints != 100 || budget.SpentPoints != 0 {
		t.Fatalf("unexpected budget after create: %+v", budget)
	}

	if errUpdate := conn.Model(&budget).Update("spent_points", 40).Error; errUpdate != nil {
		t.Fatalf("seed spent: %v", errUpdate)
	}

	w = httptest.NewRecorder()
	c = newAdminContext(t, w, &admin, http.MethodPut, "/v0/admin/budgets", gin.H{
		"teacher_profile_id": teacher.ID,
		"semester_id":        fall.ID,
		"allocated_points":   150,
	})
	h.Upsert(c)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d body=%s", w.Code, w.Body.String())
	}

	if errFind := conn.First(&budget, budget.ID).Error; errFind != nil {
		t.Fatalf("reload budget: %v", errFind)
	}
	if budget.AllocatedPoints != 150 {
		t.Fatalf("expected allocation 150, got %d", budget.AllocatedPoints)
	}
	if budget.SpentPoints != 40 {
		t.Fatalf("upsert must not touch spent points, got %d", budget.SpentPoints)
	}
}

func TestBudgetUpsertRejectsUnknownTeacher(t *testing.T) {
	conn, _, admin, _, fall, _ := setupAdmin(t)
	h := NewBudgetHandler(conn)

	w := httptest.NewRecorder()
	c := newAdminContext(t, w, &admin, http.MethodPut, "/v0/admin/budgets", gin.H{
		"teacher_profile_id": 9999,
		"semester_id":        fall.ID,
		"allocated_points":   50,
	})
	h.Upsert(c)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d body=%s", w.Code, w.Body.String())
	}
}

func TestBudgetUpsertRejectsNegativeAllocation(t *testing.T) {
	conn, _, admin, teacher, fall, _ := setupAdmin(t)
	h := NewBudgetHandler(conn)

	w := httptest.NewRecorder()
	c := newAdminContext(t, w, &admin, http.MethodPut, "/v0/admin/budgets", gin.H{
		"teacher_profile_id": teacher.ID,
		"semester_id":        fall.ID,
		"allocated_points":   -10,
	})
	h.Upsert(c)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d body=%s", w.Code, w.Body.String())
	}
}

func TestSemesterActivateFlipsActiveFlag(t *testing.T) {
	conn, svc, admin, _, fall, spring := setupAdmin(t)
	h := NewSemesterHandler(conn, svc)

	w := httptest.NewRecorder()
	c := newAdminContext(t, w, &admin, http.MethodPost, "/v0/admin/semesters/2/activate", nil)
	c.Params = gin.Params{{Key: "id", Value: fmt.Sprintf("%d", spring.ID)}}
	h.Activate(c)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d body=%s", w.Code, w.Body.String())
	}

	var reloadedFall, reloadedSpring models.Semester
	if errFind := conn.First(&reloadedFall, fall.ID).Error; errFind != nil {
		t.Fatalf("reload fall: %v", errFind)
	}
	if errFind := conn.First(&reloadedSpring, spring.ID).Error; errFind != nil {
		t.Fatalf("reload spring: %v", errFind)
	}
	if reloadedFall.IsActive {
		t.Fatal("previous semester should be inactive")
	}
	if !reloadedSpring.IsActive {
		t.Fatal("activated semester should be active")
	}
}

func TestSemesterCreateRejectsReversedDates(t *testing.T) {
	conn, svc, admin, _, _, _ := setupAdmin(t)
	h := NewSemesterHandler(conn, svc)

	w := httptest.NewRecorder()
	c := newAdminContext(t, w, &admin, http.MethodPost, "/v0/admin/semesters", gin.H{
		"name":       "Atbulas",
		"start_date": "2027-06-30",
		"end_date":   "2027-02-01",
	})
	h.Create(c)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d body=%s", w.Code, w.Body.String())
	}
}
