package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mokykla/pointsapi/internal/ledger"
	"github.com/mokykla/pointsapi/internal/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// SemesterHandler handles semester administration.
type SemesterHandler struct {
	db  *gorm.DB
	svc *ledger.Service
}

// NewSemesterHandler constructs a SemesterHandler.
func NewSemesterHandler(db *gorm.DB, svc *ledger.Service) *SemesterHandler {
	return &SemesterHandler{db: db, svc: svc}
}

// semesterRequest defines the request body for semester writes.
type semesterRequest struct {
	Name      string `json:"name"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

// parseDate parses a YYYY-MM-DD date string.
func parseDate(raw string) (datatypes.Date, bool) {
	parsed, errParse := time.Parse("2006-01-02", strings.TrimSpace(raw))
	if errParse != nil {
		return datatypes.Date{}, false
	}
	return datatypes.Date(parsed), true
}

// List returns all semesters, newest first.
func (h *SemesterHandler) List(c *gin.Context) {
	var semesters []models.Semester
	if errFind := h.db.WithContext(c.Request.Context()).
		Order("start_date DESC, id DESC").
		Find(&semesters).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"semesters": semesters})
}

// Create adds a new, inactive semester.
func (h *SemesterHandler) Create(c *gin.Context) {
	var body semesterRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	name := strings.TrimSpace(body.Name)
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing name"})
		return
	}
	startDate, okStart := parseDate(body.StartDate)
	endDate, okEnd := parseDate(body.EndDate)
	if !okStart || !okEnd {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid date, expected YYYY-MM-DD"})
		return
	}
	if time.Time(endDate).Before(time.Time(startDate)) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "end_date before start_date"})
		return
	}

	semester := models.Semester{
		Name:      name,
		StartDate: startDate,
		EndDate:   endDate,
	}
	if errCreate := h.db.WithContext(c.Request.Context()).Create(&semester).Error; errCreate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create semester failed"})
		return
	}
	c.JSON(http.StatusCreated, semester)
}

// Update edits a semester's name and dates.
func (h *SemesterHandler) Update(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var body semesterRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	var semester models.Semester
	if errFind := h.db.WithContext(c.Request.Context()).First(&semester, id).Error; errFind != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "semester not found"})
		return
	}

	updates := map[string]any{"updated_at": time.Now().UTC()}
	if name := strings.TrimSpace(body.Name); name != "" {
		updates["name"] = name
	}
	if body.StartDate != "" {
		startDate, okStart := parseDate(body.StartDate)
		if !okStart {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid start_date"})
			return
		}
		updates["start_date"] = startDate
	}
	if body.EndDate != "" {
		endDate, okEnd := parseDate(body.EndDate)
		if !okEnd {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid end_date"})
			return
		}
		updates["end_date"] = endDate
	}

	if errUpdate := h.db.WithContext(c.Request.Context()).Model(&semester).Updates(updates).Error; errUpdate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update semester failed"})
		return
	}
	c.JSON(http.StatusOK, semester)
}

// Activate makes the semester the single active accounting period.
func (h *SemesterHandler) Activate(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	semester, errActivate := h.svc.SetActiveSemester(c.Request.Context(), user, id)
	if errActivate != nil {
		renderServiceError(c, errActivate)
		return
	}
	c.JSON(http.StatusOK, semester)
}
