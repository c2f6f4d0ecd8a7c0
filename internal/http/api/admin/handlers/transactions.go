package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mokykla/pointsapi/internal/ledger"
	"github.com/mokykla/pointsapi/internal/models"
	"gorm.io/gorm"
)

// TransactionHandler exposes the ledger to administrators.
type TransactionHandler struct {
	db  *gorm.DB
	svc *ledger.Service
}

// NewTransactionHandler constructs a TransactionHandler.
func NewTransactionHandler(db *gorm.DB, svc *ledger.Service) *TransactionHandler {
	return &TransactionHandler{db: db, svc: svc}
}

// adminTransactionView is the JSON shape of one ledger entry.
type adminTransactionView struct {
	ID          uint64    `json:"id"`
	SemesterID  uint64    `json:"semester_id"`
	StudentName string    `json:"student_name"`
	TxType      string    `json:"tx_type"`
	PointsDelta int       `json:"points_delta"`
	Message     string    `json:"message"`
	BonusTitle  string    `json:"bonus_title,omitempty"`
	CreatedBy   string    `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
}

// queryUint parses an optional numeric query parameter.
func queryUint(c *gin.Context, name string) (uint64, bool, bool) {
	raw := c.Query(name)
	if raw == "" {
		return 0, false, true
	}
	value, errParse := strconv.ParseUint(raw, 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false, false
	}
	return value, true, true
}

// List returns ledger entries with optional filters and paging.
func (h *TransactionHandler) List(c *gin.Context) {
	query := h.db.WithContext(c.Request.Context()).
		Model(&models.PointTransaction{}).
		Preload("StudentProfile").
		Preload("BonusItem").
		Preload("CreatedBy")

	if semesterID, set, ok := queryUint(c, "semester_id"); !ok {
		return
	} else if set {
		query = query.Where("semester_id = ?", semesterID)
	}
	if studentID, set, ok := queryUint(c, "student_profile_id"); !ok {
		return
	} else if set {
		query = query.Where("student_profile_id = ?", studentID)
	}
	if txType := c.Query("tx_type"); txType != "" {
		query = query.Where("tx_type = ?", txType)
	}

	page := 1
	pageSize := 50
	if value, set, ok := queryUint(c, "page"); !ok {
		return
	} else if set && value > 0 {
		page = int(value)
	}
	if value, set, ok := queryUint(c, "page_size"); !ok {
		return
	} else if set && value > 0 && value <= 200 {
		pageSize = int(value)
	}

	var total int64
	if errCount := query.Count(&total).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	var rows []models.PointTransaction
	if errFind := query.
		Order("created_at DESC, id DESC").
		Limit(pageSize).
		Offset((page - 1) * pageSize).
		Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	out := make([]adminTransactionView, 0, len(rows))
	for _, row := range rows {
		view := adminTransactionView{
			ID:          row.ID,
			SemesterID:  row.SemesterID,
			TxType:      string(row.TxType),
			PointsDelta: row.PointsDelta,
			Message:     row.Message,
			CreatedAt:   row.CreatedAt,
		}
		if row.StudentProfile != nil {
			view.StudentName = row.StudentProfile.DisplayName
		}
		if row.BonusItem != nil {
			view.BonusTitle = row.BonusItem.Title
		}
		if row.CreatedBy != nil {
			view.CreatedBy = row.CreatedBy.Username
		}
		out = append(out, view)
	}
	c.JSON(http.StatusOK, gin.H{
		"transactions": out,
		"total":        total,
		"page":         page,
		"page_size":    pageSize,
	})
}

// adjustRequest defines the request body for administrative grants.
type adjustRequest struct {
	StudentProfileID uint64 `json:"student_profile_id"`
	Points           int    `json:"points"`
	Message          string `json:"message"`
}

// Adjust grants points to a student outside any teacher budget.
func (h *TransactionHandler) Adjust(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}
	var body adjustRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if body.StudentProfileID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing student_profile_id"})
		return
	}
	entry, errAdjust := h.svc.AdminAdjustPoints(c.Request.Context(), user, body.StudentProfileID, body.Points, body.Message)
	if errAdjust != nil {
		renderServiceError(c, errAdjust)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"transaction_id": entry.ID,
		"points_delta":   entry.PointsDelta,
	})
}
