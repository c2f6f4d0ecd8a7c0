package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mokykla/pointsapi/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// BudgetHandler manages per-semester teacher budgets.
type BudgetHandler struct {
	db *gorm.DB
}

// NewBudgetHandler constructs a BudgetHandler.
func NewBudgetHandler(db *gorm.DB) *BudgetHandler {
	return &BudgetHandler{db: db}
}

// List returns budgets, optionally filtered by semester.
func (h *BudgetHandler) List(c *gin.Context) {
	query := h.db.WithContext(c.Request.Context()).
		Preload("TeacherProfile").
		Preload("Semester")
	if raw := c.Query("semester_id"); raw != "" {
		semesterID, errParse := strconv.ParseUint(raw, 10, 64)
		if errParse != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid semester_id"})
			return
		}
		query = query.Where("semester_id = ?", semesterID)
	}

	var budgets []models.TeacherBudget
	if errFind := query.Order("id ASC").Find(&budgets).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	out := make([]gin.H, 0, len(budgets))
	for _, budget := range budgets {
		entry := gin.H{
			"id":                 budget.ID,
			"teacher_profile_id": budget.TeacherProfileID,
			"semester_id":        budget.SemesterID,
			"allocated":          budget.AllocatedPoints,
			"spent":              budget.SpentPoints,
			"remaining":          budget.Remaining(),
		}
		if budget.TeacherProfile != nil {
			entry["teacher_name"] = budget.TeacherProfile.DisplayName
		}
		if budget.Semester != nil {
			entry["semester_name"] = budget.Semester.Name
		}
		out = append(out, entry)
	}
	c.JSON(http.StatusOK, gin.H{"budgets": out})
}

// upsertBudgetRequest defines the request body for budget writes.
type upsertBudgetRequest struct {
	TeacherProfileID uint64 `json:"teacher_profile_id"`
	SemesterID       uint64 `json:"semester_id"`
	AllocatedPoints  int    `json:"allocated_points"`
}

// Upsert creates or updates the allocation of one budget. Spent points
// are never touched here; only the award operation moves them.
func (h *BudgetHandler) Upsert(c *gin.Context) {
	var body upsertBudgetRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if body.TeacherProfileID == 0 || body.SemesterID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing teacher_profile_id or semester_id"})
		return
	}
	if body.AllocatedPoints < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "allocated_points must not be negative"})
		return
	}

	var teacher models.TeacherProfile
	if errFind := h.db.WithContext(c.Request.Context()).First(&teacher, body.TeacherProfileID).Error; errFind != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "teacher not found"})
		return
	}
	var semester models.Semester
	if errFind := h.db.WithContext(c.Request.Context()).First(&semester, body.SemesterID).Error; errFind != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "semester not found"})
		return
	}

	budget := models.TeacherBudget{
		TeacherProfileID: body.TeacherProfileID,
		SemesterID:       body.SemesterID,
		AllocatedPoints:  body.AllocatedPoints,
	}
	if errUpsert := h.db.WithContext(c.Request.Context()).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "teacher_profile_id"}, {Name: "semester_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"allocated_points": body.AllocatedPoints,
			"updated_at":       time.Now().UTC(),
		}),
	}).Create(&budget).Error; errUpsert != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "upsert budget failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
