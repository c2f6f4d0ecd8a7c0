package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mokykla/pointsapi/internal/ledger"
	"github.com/mokykla/pointsapi/internal/models"
	"gorm.io/gorm"
)

// StudentHandler handles the student-facing shop and ledger endpoints.
type StudentHandler struct {
	db  *gorm.DB
	svc *ledger.Service
}

// NewStudentHandler constructs a StudentHandler.
func NewStudentHandler(db *gorm.DB, svc *ledger.Service) *StudentHandler {
	return &StudentHandler{db: db, svc: svc}
}

// profileOf loads the caller's student profile.
func (h *StudentHandler) profileOf(c *gin.Context, user *models.User) (*models.StudentProfile, bool) {
	var profile models.StudentProfile
	if errFind := h.db.WithContext(c.Request.Context()).Where("user_id = ?", user.ID).First(&profile).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "student profile not found"})
			return nil, false
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return nil, false
	}
	return &profile, true
}

// transactionView is the JSON shape of one ledger entry.
type transactionView struct {
	ID          uint64    `json:"id"`
	TxType      string    `json:"tx_type"`
	PointsDelta int       `json:"points_delta"`
	Message     string    `json:"message"`
	BonusTitle  string    `json:"bonus_title,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// transactionViews converts ledger rows for JSON output.
func transactionViews(rows []models.PointTransaction) []transactionView {
	out := make([]transactionView, 0, len(rows))
	for _, row := range rows {
		view := transactionView{
			ID:          row.ID,
			TxType:      string(row.TxType),
			PointsDelta: row.PointsDelta,
			Message:     row.Message,
			CreatedAt:   row.CreatedAt,
		}
		if row.BonusItem != nil {
			view.BonusTitle = row.BonusItem.Title
		}
		out = append(out, view)
	}
	return out
}

// Dashboard returns the student's balances and recent activity.
func (h *StudentHandler) Dashboard(c *gin.Context) {
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

	balance, errBalance := h.svc.StudentBalance(c.Request.Context(), profile.ID, semester.ID)
	if errBalance != nil {
		renderServiceError(c, errBalance)
		return
	}
	reserved, errReserved := h.svc.StudentReserved(c.Request.Context(), profile.ID, semester.ID)
	if errReserved != nil {
		renderServiceError(c, errReserved)
		return
	}

	var recent []models.PointTransaction
	if errFind := h.db.WithContext(c.Request.Context()).
		Preload("BonusItem").
		Where("semester_id = ? AND student_profile_id = ?", semester.ID, profile.ID).
		Order("created_at DESC, id DESC").
		Limit(20).
		Find(&recent).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	var lastPurchase *transactionView
	var purchase models.PointTransaction
	errPurchase := h.db.WithContext(c.Request.Context()).
		Preload("BonusItem").
		Where("semester_id = ? AND student_profile_id = ? AND tx_type = ?",
			semester.ID, profile.ID, models.TxTypeRedeem).
		Order("created_at DESC, id DESC").
		First(&purchase).Error
	if errPurchase == nil {
		views := transactionViews([]models.PointTransaction{purchase})
		lastPurchase = &views[0]
	} else if !errors.Is(errPurchase, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	var schoolRecent []models.PointTransaction
	if errFind := h.db.WithContext(c.Request.Context()).
		Preload("BonusItem").
		Preload("StudentProfile").
		Where("semester_id = ? AND tx_type = ?", semester.ID, models.TxTypeAward).
		Order("created_at DESC, id DESC").
		Limit(10).
		Find(&schoolRecent).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	schoolActivity := make([]gin.H, 0, len(schoolRecent))
	for _, row := range schoolRecent {
		entry := gin.H{
			"points_delta": row.PointsDelta,
			"created_at":   row.CreatedAt,
		}
		if row.StudentProfile != nil {
			entry["student_name"] = row.StudentProfile.DisplayName
			entry["class_name"] = row.StudentProfile.ClassName
		}
		schoolActivity = append(schoolActivity, entry)
	}

	c.JSON(http.StatusOK, gin.H{
		"semester": gin.H{
			"id":   semester.ID,
			"name": semester.Name,
		},
		"balance":             balance,
		"reserved":            reserved,
		"available":           balance - reserved,
		"last_purchase":       lastPurchase,
		"recent_transactions": transactionViews(recent),
		"school_activity":     schoolActivity,
	})
}

// Transactions returns the student's full ledger for the active semester.
func (h *StudentHandler) Transactions(c *gin.Context) {
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

	var rows []models.PointTransaction
	if errFind := h.db.WithContext(c.Request.Context()).
		Preload("BonusItem").
		Where("semester_id = ? AND student_profile_id = ?", semester.ID, profile.ID).
		Order("created_at DESC, id DESC").
		Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactions": transactionViews(rows)})
}

// shopTeacherView lists a teacher who may confirm a bonus.
type shopTeacherView struct {
	ID          uint64 `json:"id"`
	DisplayName string `json:"display_name"`
}

// shopGroupView summarizes the active group purchase of a bonus.
type shopGroupView struct {
	Status        string `json:"status"`
	TotalReserved int    `json:"total_reserved"`
	OwnAmount     int    `json:"own_amount"`
	OwnConfirmed  bool   `json:"own_confirmed"`
}

// shopBonusView is the JSON shape of one shop entry.
type shopBonusView struct {
	ID                uint64            `json:"id"`
	Title             string            `json:"title"`
	Description       string            `json:"description"`
	PricePoints       int               `json:"price_points"`
	MaxUsesPerStudent int               `json:"max_uses_per_student"`
	Category          string            `json:"category"`
	UsedCount         int               `json:"used_count"`
	AssignedTeachers  []shopTeacherView `json:"assigned_teachers"`
	Group             *shopGroupView    `json:"group,omitempty"`
	PendingRequest    bool              `json:"pending_request"`
}

// Shop lists active bonuses with the caller's usage and funding state.
func (h *StudentHandler) Shop(c *gin.Context) {
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

	var bonuses []models.BonusItem
	if errFind := h.db.WithContext(c.Request.Context()).
		Preload("AssignedTeachers").
		Where("is_active = ?", true).
		Order("price_points ASC, id ASC").
		Find(&bonuses).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	usedCounts, errUsed := h.usedCountsByBonus(c, profile.ID, semester.ID)
	if errUsed != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	var purchases []models.GroupPurchase
	if errFind := h.db.WithContext(c.Request.Context()).
		Where("semester_id = ? AND status IN ?", semester.ID,
			[]models.GroupPurchaseStatus{models.GroupPurchaseOpen, models.GroupPurchaseAwaitingConfirmation}).
		Find(&purchases).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	groups := make(map[uint64]*shopGroupView, len(purchases))
	for i := range purchases {
		purchase := purchases[i]
		var contributions []models.GroupContribution
		if errFind := h.db.WithContext(c.Request.Context()).
			Where("group_purchase_id = ?", purchase.ID).
			Find(&contributions).Error; errFind != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
			return
		}
		view := &shopGroupView{Status: string(purchase.Status)}
		for _, contribution := range contributions {
			view.TotalReserved += contribution.Amount
			if contribution.StudentProfileID == profile.ID {
				view.OwnAmount = contribution.Amount
				view.OwnConfirmed = contribution.ConfirmedAt != nil
			}
		}
		groups[purchase.BonusItemID] = view
	}

	var pending []models.BonusRedemptionRequest
	if errFind := h.db.WithContext(c.Request.Context()).
		Where("semester_id = ? AND student_profile_id = ? AND status = ?",
			semester.ID, profile.ID, models.RedemptionRequestPending).
		Find(&pending).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	pendingByBonus := make(map[uint64]bool, len(pending))
	for _, request := range pending {
		pendingByBonus[request.BonusItemID] = true
	}

	out := make([]shopBonusView, 0, len(bonuses))
	for _, bonus := range bonuses {
		view := shopBonusView{
			ID:                bonus.ID,
			Title:             bonus.Title,
			Description:       bonus.Description,
			PricePoints:       bonus.PricePoints,
			MaxUsesPerStudent: bonus.MaxUsesPerStudent,
			Category:          string(bonus.Category),
			UsedCount:         usedCounts[bonus.ID],
			AssignedTeachers:  make([]shopTeacherView, 0, len(bonus.AssignedTeachers)),
			Group:             groups[bonus.ID],
			PendingRequest:    pendingByBonus[bonus.ID],
		}
		for _, teacher := range bonus.AssignedTeachers {
			view.AssignedTeachers = append(view.AssignedTeachers, shopTeacherView{
				ID:          teacher.ID,
				DisplayName: teacher.DisplayName,
			})
		}
		out = append(out, view)
	}
	c.JSON(http.StatusOK, gin.H{"bonuses": out})
}

// usedCountsByBonus counts the caller's redemptions per bonus.
func (h *StudentHandler) usedCountsByBonus(c *gin.Context, profileID, semesterID uint64) (map[uint64]int, error) {
	type usedRow struct {
		BonusItemID uint64
		Used        int
	}
	var rows []usedRow
	if errFind := h.db.WithContext(c.Request.Context()).
		Model(&models.PointTransaction{}).
		Select("bonus_item_id, COUNT(*) AS used").
		Where("semester_id = ? AND student_profile_id = ? AND tx_type = ?",
			semesterID, profileID, models.TxTypeRedeem).
		Group("bonus_item_id").
		Scan(&rows).Error; errFind != nil {
		return nil, errFind
	}
	counts := make(map[uint64]int, len(rows))
	for _, row := range rows {
		counts[row.BonusItemID] = row.Used
	}
	return counts, nil
}

// Leaderboard returns the top students of the active semester.
func (h *StudentHandler) Leaderboard(c *gin.Context) {
	semester, errSemester := h.svc.ActiveSemester(c.Request.Context())
	if errSemester != nil {
		renderServiceError(c, errSemester)
		return
	}
	limit := 10
	if raw := c.Query("limit"); raw != "" {
		parsed, errParse := strconv.Atoi(raw)
		if errParse != nil || parsed < 1 || parsed > 100 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = parsed
	}
	ranking, errRank := h.svc.TopStudents(c.Request.Context(), semester.ID, limit)
	if errRank != nil {
		renderServiceError(c, errRank)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ranking": ranking})
}

// requestView is the JSON shape of one redemption request.
type requestView struct {
	ID          uint64     `json:"id"`
	Status      string     `json:"status"`
	BonusTitle  string     `json:"bonus_title"`
	BonusID     uint64     `json:"bonus_id"`
	TeacherName string     `json:"teacher_name"`
	CreatedAt   time.Time  `json:"created_at"`
	DecidedAt   *time.Time `json:"decided_at,omitempty"`
}

// Requests lists the student's own redemption requests.
func (h *StudentHandler) Requests(c *gin.Context) {
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

	var rows []models.BonusRedemptionRequest
	if errFind := h.db.WithContext(c.Request.Context()).
		Preload("BonusItem").
		Preload("RequestedTeacher").
		Where("semester_id = ? AND student_profile_id = ?", semester.ID, profile.ID).
		Order("created_at DESC, id DESC").
		Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	out := make([]requestView, 0, len(rows))
	for _, row := range rows {
		view := requestView{
			ID:        row.ID,
			Status:    string(row.Status),
			BonusID:   row.BonusItemID,
			CreatedAt: row.CreatedAt,
			DecidedAt: row.DecidedAt,
		}
		if row.BonusItem != nil {
			view.BonusTitle = row.BonusItem.Title
		}
		if row.RequestedTeacher != nil {
			view.TeacherName = row.RequestedTeacher.DisplayName
		}
		out = append(out, view)
	}
	c.JSON(http.StatusOK, gin.H{"requests": out})
}

// Redeem spends points on a directly redeemable bonus.
func (h *StudentHandler) Redeem(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}
	bonusID, ok := pathID(c)
	if !ok {
		return
	}
	entry, errRedeem := h.svc.RedeemBonus(c.Request.Context(), user, bonusID)
	if errRedeem != nil {
		renderServiceError(c, errRedeem)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"transaction_id": entry.ID,
		"points_delta":   entry.PointsDelta,
	})
}

// reserveRequest carries a group contribution amount.
type reserveRequest struct {
	Amount int `json:"amount"`
}

// Reserve creates or amends the caller's group contribution.
func (h *StudentHandler) Reserve(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}
	bonusID, ok := pathID(c)
	if !ok {
		return
	}
	var body reserveRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	contribution, errReserve := h.svc.ReserveGroupPoints(c.Request.Context(), user, bonusID, body.Amount)
	if errReserve != nil {
		renderServiceError(c, errReserve)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"contribution_id": contribution.ID,
		"amount":          contribution.Amount,
	})
}

// Withdraw removes the caller's sole contribution from a group purchase.
func (h *StudentHandler) Withdraw(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}
	bonusID, ok := pathID(c)
	if !ok {
		return
	}
	if errWithdraw := h.svc.WithdrawGroupReservation(c.Request.Context(), user, bonusID); errWithdraw != nil {
		renderServiceError(c, errWithdraw)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// ConfirmGroup confirms the caller's stake in a fully funded purchase.
func (h *StudentHandler) ConfirmGroup(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}
	bonusID, ok := pathID(c)
	if !ok {
		return
	}
	if errConfirm := h.svc.ConfirmGroupPurchase(c.Request.Context(), user, bonusID); errConfirm != nil {
		renderServiceError(c, errConfirm)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// createRequestBody names the teacher asked to confirm a redemption.
type createRequestBody struct {
	TeacherProfileID uint64 `json:"teacher_profile_id"`
}

// CreateRequest files a redemption request for a teacher-confirmed bonus.
func (h *StudentHandler) CreateRequest(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}
	bonusID, ok := pathID(c)
	if !ok {
		return
	}
	var body createRequestBody
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if body.TeacherProfileID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing teacher_profile_id"})
		return
	}
	request, errCreate := h.svc.CreateBonusRedemptionRequest(c.Request.Context(), user, bonusID, body.TeacherProfileID)
	if errCreate != nil {
		renderServiceError(c, errCreate)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"request_id": request.ID,
		"status":     request.Status,
	})
}
