package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mokykla/pointsapi/internal/models"
	"github.com/mokykla/pointsapi/internal/security"
	"gorm.io/gorm"
)

// AccountHandler manages student and teacher accounts.
type AccountHandler struct {
	db *gorm.DB
}

// NewAccountHandler constructs an AccountHandler.
func NewAccountHandler(db *gorm.DB) *AccountHandler {
	return &AccountHandler{db: db}
}

// createAccountRequest defines the request body for account creation.
type createAccountRequest struct {
	Username    string `json:"username"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
	ClassName   string `json:"class_name"`
}

// updateAccountRequest defines the request body for account edits.
type updateAccountRequest struct {
	Password    *string `json:"password"`
	DisplayName *string `json:"display_name"`
	ClassName   *string `json:"class_name"`
	Disabled    *bool   `json:"disabled"`
}

// validateCreate trims and checks the shared account fields.
func (body *createAccountRequest) validateCreate(c *gin.Context) bool {
	body.Username = strings.TrimSpace(body.Username)
	body.Password = strings.TrimSpace(body.Password)
	body.DisplayName = strings.TrimSpace(body.DisplayName)
	if body.Username == "" || body.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing username or password"})
		return false
	}
	if body.DisplayName == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing display_name"})
		return false
	}
	return true
}

// createUser inserts the user row shared by both profile kinds.
func (h *AccountHandler) createUser(c *gin.Context, tx *gorm.DB, body createAccountRequest, role models.Role) (*models.User, bool) {
	var exists models.User
	if errCheck := tx.Where("username = ?", body.Username).First(&exists).Error; errCheck == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "username already exists"})
		return nil, false
	}
	hash, errHash := security.HashPassword(body.Password)
	if errHash != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "hash password failed"})
		return nil, false
	}
	user := models.User{
		Username:     body.Username,
		PasswordHash: hash,
		Role:         role,
	}
	if errCreate := tx.Create(&user).Error; errCreate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create user failed"})
		return nil, false
	}
	return &user, true
}

// ListStudents returns all student accounts with profiles.
func (h *AccountHandler) ListStudents(c *gin.Context) {
	var profiles []models.StudentProfile
	if errFind := h.db.WithContext(c.Request.Context()).
		Preload("User").
		Order("class_name ASC, display_name ASC").
		Find(&profiles).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	out := make([]gin.H, 0, len(profiles))
	for _, profile := range profiles {
		entry := gin.H{
			"id":           profile.ID,
			"display_name": profile.DisplayName,
			"class_name":   profile.ClassName,
		}
		if profile.User != nil {
			entry["username"] = profile.User.Username
			entry["disabled"] = profile.User.Disabled
		}
		out = append(out, entry)
	}
	c.JSON(http.StatusOK, gin.H{"students": out})
}

// CreateStudent creates a student account with its profile.
func (h *AccountHandler) CreateStudent(c *gin.Context) {
	var body createAccountRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if !body.validateCreate(c) {
		return
	}

	var profile models.StudentProfile
	errTx := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		user, ok := h.createUser(c, tx, body, models.RoleStudent)
		if !ok {
			return gorm.ErrInvalidData
		}
		profile = models.StudentProfile{
			UserID:      user.ID,
			DisplayName: body.DisplayName,
			ClassName:   strings.TrimSpace(body.ClassName),
		}
		return tx.Create(&profile).Error
	})
	if errTx != nil {
		if !c.Writer.Written() {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "create student failed"})
		}
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"id":           profile.ID,
		"display_name": profile.DisplayName,
		"class_name":   profile.ClassName,
	})
}

// UpdateStudent edits a student's profile and account flags.
func (h *AccountHandler) UpdateStudent(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var body updateAccountRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	var profile models.StudentProfile
	if errFind := h.db.WithContext(c.Request.Context()).Preload("User").First(&profile, id).Error; errFind != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "student not found"})
		return
	}

	profileUpdates := map[string]any{}
	if body.DisplayName != nil && strings.TrimSpace(*body.DisplayName) != "" {
		profileUpdates["display_name"] = strings.TrimSpace(*body.DisplayName)
	}
	if body.ClassName != nil {
		profileUpdates["class_name"] = strings.TrimSpace(*body.ClassName)
	}
	userUpdates, okUser := h.userUpdates(c, body)
	if !okUser {
		return
	}

	errTx := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		if len(profileUpdates) > 0 {
			profileUpdates["updated_at"] = time.Now().UTC()
			if errUpdate := tx.Model(&profile).Updates(profileUpdates).Error; errUpdate != nil {
				return errUpdate
			}
		}
		if len(userUpdates) > 0 {
			userUpdates["updated_at"] = time.Now().UTC()
			if errUpdate := tx.Model(&models.User{}).Where("id = ?", profile.UserID).Updates(userUpdates).Error; errUpdate != nil {
				return errUpdate
			}
		}
		return nil
	})
	if errTx != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update student failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// ListTeachers returns all teacher accounts with profiles.
func (h *AccountHandler) ListTeachers(c *gin.Context) {
	var profiles []models.TeacherProfile
	if errFind := h.db.WithContext(c.Request.Context()).
		Preload("User").
		Order("display_name ASC").
		Find(&profiles).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	out := make([]gin.H, 0, len(profiles))
	for _, profile := range profiles {
		entry := gin.H{
			"id":           profile.ID,
			"display_name": profile.DisplayName,
		}
		if profile.User != nil {
			entry["username"] = profile.User.Username
			entry["disabled"] = profile.User.Disabled
		}
		out = append(out, entry)
	}
	c.JSON(http.StatusOK, gin.H{"teachers": out})
}

// CreateTeacher creates a teacher account with its profile.
func (h *AccountHandler) CreateTeacher(c *gin.Context) {
	var body createAccountRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if !body.validateCreate(c) {
		return
	}

	var profile models.TeacherProfile
	errTx := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		user, ok := h.createUser(c, tx, body, models.RoleTeacher)
		if !ok {
			return gorm.ErrInvalidData
		}
		profile = models.TeacherProfile{
			UserID:      user.ID,
			DisplayName: body.DisplayName,
		}
		return tx.Create(&profile).Error
	})
	if errTx != nil {
		if !c.Writer.Written() {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "create teacher failed"})
		}
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"id":           profile.ID,
		"display_name": profile.DisplayName,
	})
}

// UpdateTeacher edits a teacher's profile and account flags.
func (h *AccountHandler) UpdateTeacher(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var body updateAccountRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	var profile models.TeacherProfile
	if errFind := h.db.WithContext(c.Request.Context()).Preload("User").First(&profile, id).Error; errFind != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "teacher not found"})
		return
	}

	profileUpdates := map[string]any{}
	if body.DisplayName != nil && strings.TrimSpace(*body.DisplayName) != "" {
		profileUpdates["display_name"] = strings.TrimSpace(*body.DisplayName)
	}
	userUpdates, okUser := h.userUpdates(c, body)
	if !okUser {
		return
	}

	errTx := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		if len(profileUpdates) > 0 {
			profileUpdates["updated_at"] = time.Now().UTC()
			if errUpdate := tx.Model(&profile).Updates(profileUpdates).Error; errUpdate != nil {
				return errUpdate
			}
		}
		if len(userUpdates) > 0 {
			userUpdates["updated_at"] = time.Now().UTC()
			if errUpdate := tx.Model(&models.User{}).Where("id = ?", profile.UserID).Updates(userUpdates).Error; errUpdate != nil {
				return errUpdate
			}
		}
		return nil
	})
	if errTx != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update teacher failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// userUpdates builds the user-row updates shared by both account kinds.
func (h *AccountHandler) userUpdates(c *gin.Context, body updateAccountRequest) (map[string]any, bool) {
	updates := map[string]any{}
	if body.Password != nil {
		password := strings.TrimSpace(*body.Password)
		if password == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "empty password"})
			return nil, false
		}
		hash, errHash := security.HashPassword(password)
		if errHash != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "hash password failed"})
			return nil, false
		}
		updates["password_hash"] = hash
	}
	if body.Disabled != nil {
		updates["disabled"] = *body.Disabled
	}
	return updates, true
}
