package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mokykla/pointsapi/internal/models"
	"gorm.io/gorm"
)

// BonusHandler manages the bonus catalog.
type BonusHandler struct {
	db *gorm.DB
}

// NewBonusHandler constructs a BonusHandler.
func NewBonusHandler(db *gorm.DB) *BonusHandler {
	return &BonusHandler{db: db}
}

// bonusRequest defines the request body for bonus writes.
type bonusRequest struct {
	Title              string   `json:"title"`
	Description        string   `json:"description"`
	PricePoints        int      `json:"price_points"`
	MaxUsesPerStudent  int      `json:"max_uses_per_student"`
	IsActive           *bool    `json:"is_active"`
	Category           string   `json:"category"`
	AssignedTeacherIDs []uint64 `json:"assigned_teacher_ids"`
}

// List returns the full bonus catalog, including inactive entries.
func (h *BonusHandler) List(c *gin.Context) {
	var bonuses []models.BonusItem
	if errFind := h.db.WithContext(c.Request.Context()).
		Preload("AssignedTeachers").
		Order("id ASC").
		Find(&bonuses).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"bonuses": bonuses})
}

// loadTeachers resolves assigned teacher IDs to profiles.
func (h *BonusHandler) loadTeachers(c *gin.Context, ids []uint64) ([]models.TeacherProfile, bool) {
	if len(ids) == 0 {
		return nil, true
	}
	var teachers []models.TeacherProfile
	if errFind := h.db.WithContext(c.Request.Context()).Where("id IN ?", ids).Find(&teachers).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return nil, false
	}
	if len(teachers) != len(ids) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown teacher in assigned_teacher_ids"})
		return nil, false
	}
	return teachers, true
}

// Create adds a bonus to the catalog.
func (h *BonusHandler) Create(c *gin.Context) {
	var body bonusRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	title := strings.TrimSpace(body.Title)
	if title == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing title"})
		return
	}
	if body.PricePoints <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "price_points must be positive"})
		return
	}
	category := models.BonusCategory(strings.TrimSpace(body.Category))
	if category == "" {
		category = models.BonusCategoryOther
	}
	if category != models.BonusCategoryOther && category != models.BonusCategoryPointsRelated {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid category"})
		return
	}
	maxUses := body.MaxUsesPerStudent
	if maxUses <= 0 {
		maxUses = 1
	}
	teachers, okTeachers := h.loadTeachers(c, body.AssignedTeacherIDs)
	if !okTeachers {
		return
	}

	bonus := models.BonusItem{
		Title:             title,
		Description:       strings.TrimSpace(body.Description),
		PricePoints:       body.PricePoints,
		MaxUsesPerStudent: maxUses,
		IsActive:          true,
		Category:          category,
		AssignedTeachers:  teachers,
	}
	if body.IsActive != nil {
		bonus.IsActive = *body.IsActive
	}
	if errCreate := h.db.WithContext(c.Request.Context()).Create(&bonus).Error; errCreate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create bonus failed"})
		return
	}
	c.JSON(http.StatusCreated, bonus)
}

// Update edits a bonus and replaces its assigned teachers.
func (h *BonusHandler) Update(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var body bonusRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	var bonus models.BonusItem
	if errFind := h.db.WithContext(c.Request.Context()).First(&bonus, id).Error; errFind != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "bonus not found"})
		return
	}

	updates := map[string]any{"updated_at": time.Now().UTC()}
	if title := strings.TrimSpace(body.Title); title != "" {
		updates["title"] = title
	}
	if body.Description != "" {
		updates["description"] = strings.TrimSpace(body.Description)
	}
	if body.PricePoints > 0 {
		updates["price_points"] = body.PricePoints
	}
	if body.MaxUsesPerStudent > 0 {
		updates["max_uses_per_student"] = body.MaxUsesPerStudent
	}
	if body.IsActive != nil {
		updates["is_active"] = *body.IsActive
	}
	if category := models.BonusCategory(strings.TrimSpace(body.Category)); category != "" {
		if category != models.BonusCategoryOther && category != models.BonusCategoryPointsRelated {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid category"})
			return
		}
		updates["category"] = category
	}

	if errUpdate := h.db.WithContext(c.Request.Context()).Model(&bonus).Updates(updates).Error; errUpdate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update bonus failed"})
		return
	}

	if body.AssignedTeacherIDs != nil {
		teachers, okTeachers := h.loadTeachers(c, body.AssignedTeacherIDs)
		if !okTeachers {
			return
		}
		if errReplace := h.db.WithContext(c.Request.Context()).
			Model(&bonus).
			Association("AssignedTeachers").
			Replace(teachers); errReplace != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "update assigned teachers failed"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
