package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	dbpkg "github.com/mokykla/pointsapi/internal/db"
	"github.com/mokykla/pointsapi/internal/ledger"
	"github.com/mokykla/pointsapi/internal/models"
	"github.com/mokykla/pointsapi/internal/settings"
	"gorm.io/gorm"
)

// TeacherHandler handles the teacher-facing endpoints.
type TeacherHandler struct {
	db  *gorm.DB
	svc *ledger.Service
}

// NewTeacherHandler constructs a TeacherHandler.
func NewTeacherHandler(db *gorm.DB, svc *ledger.Service) *TeacherHandler {
	return &TeacherHandler{db: db, svc: svc}
}

// profileOf loads the caller's teacher profile.
func (h *TeacherHandler) profileOf(c *gin.Context, user *models.User) (*models.TeacherProfile, bool) {
	var profile models.TeacherProfile
	if errFind := h.db.WithContext(c.Request.Context()).Where("user_id = ?", user.ID).First(&profile).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "teacher profile not found"})
			return nil, false
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return nil, false
	}
	return &profile, true
}

// awardView is the JSON shape of one awarded entry.
type awardView struct {
	ID          uint64    `json:"id"`
	StudentName string    `json:"student_name"`
	Points      int       `json:"points"`
	Message     string    `json:"message"`
	CreatedAt   time.Time `json:"created_at"`
}

// Dashboard returns the teacher's budget state and recent awards.
func (h *TeacherHandler) Dashboard(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}
	profile, ok := h.profileOf(c, user)
	if !ok {
		return
	}
	semester, errSemester := h.svc.ActiveSemester(c.Request.Context())
	if errSemester != nil {
		renderServiceError(c, errSemester)
		return
	}

	var budget models.TeacherBudget
	budgetResp := gin.H{"allocated": 0, "spent": 0, "remaining": 0}
	errBudget := h.db.WithContext(c.Request.Context()).
		Where("teacher_profile_id = ? AND semester_id = ?", profile.ID, semester.ID).
		First(&budget).Error
	if errBudget == nil {
		budgetResp = gin.H{
			"allocated": budget.AllocatedPoints,
			"spent":     budget.SpentPoints,
			"remaining": budget.Remaining(),
		}
	} else if !errors.Is(errBudget, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	var recent []models.PointTransaction
	if errFind := h.db.WithContext(c.Request.Context()).
		Preload("StudentProfile").
		Where("semester_id = ? AND created_by_id = ? AND tx_type = ?",
			semester.ID, user.ID, models.TxTypeAward).
		Order("created_at DESC, id DESC").
		Limit(20).
		Find(&recent).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	awards := make([]awardView, 0, len(recent))
	for _, row := range recent {
		view := awardView{
			ID:        row.ID,
			Points:    row.PointsDelta,
			Message:   row.Message,
			CreatedAt: row.CreatedAt,
		}
		if row.StudentProfile != nil {
			view.StudentName = row.StudentProfile.DisplayName
		}
		awards = append(awards, view)
	}

	pendingCount := int64(0)
	if errCount := h.db.WithContext(c.Request.Context()).
		Model(&models.BonusRedemptionRequest{}).
		Where("semester_id = ? AND requested_teacher_id = ? AND status = ?",
			semester.ID, profile.ID, models.RedemptionRequestPending).
		Count(&pendingCount).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	topStudents, errTop := h.svc.TopStudents(c.Request.Context(), semester.ID, 5)
	if errTop != nil {
		renderServiceError(c, errTop)
		return
	}

	var activeBonuses []models.BonusItem
	if errFind := h.db.WithContext(c.Request.Context()).
		Where("is_active = ?", true).
		Order("price_points ASC, id ASC").
		Find(&activeBonuses).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	bonuses := make([]gin.H, 0, len(activeBonuses))
	for _, bonus := range activeBonuses {
		bonuses = append(bonuses, gin.H{
			"id":           bonus.ID,
			"title":        bonus.Title,
			"price_points": bonus.PricePoints,
			"category":     bonus.Category,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"semester": gin.H{
			"id":   semester.ID,
			"name": semester.Name,
		},
		"budget":           budgetResp,
		"recent_awards":    awards,
		"pending_requests": pendingCount,
		"top_students":     topStudents,
		"active_bonuses":   bonuses,
	})
}

// studentRosterView lists one student for the award picker.
type studentRosterView struct {
	ID          uint64 `json:"id"`
	DisplayName string `json:"display_name"`
	ClassName   string `json:"class_name"`
}

// Students lists active student profiles, optionally narrowed by a
// name search (?q=) or a class (?class=).
func (h *TeacherHandler) Students(c *gin.Context) {
	query := h.db.WithContext(c.Request.Context()).
		Joins("JOIN users ON users.id = student_profiles.user_id").
		Where("users.disabled = ?", false)
	if search := strings.TrimSpace(c.Query("q")); search != "" {
		query = query.Where(
			dbpkg.CaseInsensitiveLikeExpr(h.db, "student_profiles.display_name"),
			dbpkg.NormalizeLikePattern(h.db, "%"+search+"%"))
	}
	if class := strings.TrimSpace(c.Query("class")); class != "" {
		query = query.Where("student_profiles.class_name = ?", class)
	}
	var profiles []models.StudentProfile
	if errFind := query.
		Order("student_profiles.class_name ASC, student_profiles.display_name ASC").
		Find(&profiles).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	out := make([]studentRosterView, 0, len(profiles))
	for _, profile := range profiles {
		out = append(out, studentRosterView{
			ID:          profile.ID,
			DisplayName: profile.DisplayName,
			ClassName:   profile.ClassName,
		})
	}
	c.JSON(http.StatusOK, gin.H{"students": out})
}

// Ranking returns the top students of the active semester.
func (h *TeacherHandler) Ranking(c *gin.Context) {
	semester, errSemester := h.svc.ActiveSemester(c.Request.Context())
	if errSemester != nil {
		renderServiceError(c, errSemester)
		return
	}
	ranking, errRank := h.svc.TopStudents(c.Request.Context(), semester.ID, 20)
	if errRank != nil {
		renderServiceError(c, errRank)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ranking": ranking})
}

// Guidelines returns the school-wide awarding guidelines text.
func (h *TeacherHandler) Guidelines(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"guidelines": settings.TeacherGuidelines()})
}

// awardRequest defines the request body for awarding points.
type awardRequest struct {
	StudentProfileID uint64 `json:"student_profile_id"`
	Points           int    `json:"points"`
	Message          string `json:"message"`
}

// Award grants points to a student from the teacher's budget.
func (h *TeacherHandler) Award(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}
	var body awardRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if body.StudentProfileID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing student_profile_id"})
		return
	}
	entry, errAward := h.svc.AwardPoints(c.Request.Context(), user, body.StudentProfileID, body.Points, body.Message)
	if errAward != nil {
		renderServiceError(c, errAward)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"transaction_id": entry.ID,
		"points_delta":   entry.PointsDelta,
	})
}

// teacherRequestView is the JSON shape of one incoming request.
type teacherRequestView struct {
	ID          uint64     `json:"id"`
	Status      string     `json:"status"`
	StudentName string     `json:"student_name"`
	ClassName   string     `json:"class_name"`
	BonusTitle  string     `json:"bonus_title"`
	PricePoints int        `json:"price_points"`
	CreatedAt   time.Time  `json:"created_at"`
	DecidedAt   *time.Time `json:"decided_at,omitempty"`
}

// Requests lists redemption requests addressed to the teacher.
func (h *TeacherHandler) Requests(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}
	profile, ok := h.profileOf(c, user)
	if !ok {
		return
	}
	semester, errSemester := h.svc.ActiveSemester(c.Request.Context())
	if errSemester != nil {
		renderServiceError(c, errSemester)
		return
	}

	query := h.db.WithContext(c.Request.Context()).
		Preload("StudentProfile").
		Preload("BonusItem").
		Where("semester_id = ? AND requested_teacher_id = ?", semester.ID, profile.ID)
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	var rows []models.BonusRedemptionRequest
	if errFind := query.Order("created_at DESC, id DESC").Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	out := make([]teacherRequestView, 0, len(rows))
	for _, row := range rows {
		view := teacherRequestView{
			ID:        row.ID,
			Status:    string(row.Status),
			CreatedAt: row.CreatedAt,
			DecidedAt: row.DecidedAt,
		}
		if row.StudentProfile != nil {
			view.StudentName = row.StudentProfile.DisplayName
			view.ClassName = row.StudentProfile.ClassName
		}
		if row.BonusItem != nil {
			view.BonusTitle = row.BonusItem.Title
			view.PricePoints = row.BonusItem.PricePoints
		}
		out = append(out, view)
	}
	c.JSON(http.StatusOK, gin.H{"requests": out})
}

// ConfirmRequest approves a redemption request and debits the student.
func (h *TeacherHandler) ConfirmRequest(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}
	requestID, ok := pathID(c)
	if !ok {
		return
	}
	entry, errConfirm := h.svc.ConfirmBonusRedemptionRequest(c.Request.Context(), user, requestID)
	if errConfirm != nil {
		renderServiceError(c, errConfirm)
		return
	}
	resp := gin.H{"ok": true}
	if entry != nil {
		resp["transaction_id"] = entry.ID
	}
	c.JSON(http.StatusOK, resp)
}

// DeclineRequest declines a redemption request without moving points.
func (h *TeacherHandler) DeclineRequest(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}
	requestID, ok := pathID(c)
	if !ok {
		return
	}
	if errDecline := h.svc.DeclineBonusRedemptionRequest(c.Request.Context(), user, requestID); errDecline != nil {
		renderServiceError(c, errDecline)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
