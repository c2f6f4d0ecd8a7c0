package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mokykla/pointsapi/internal/config"
	"github.com/mokykla/pointsapi/internal/models"
	"github.com/mokykla/pointsapi/internal/security"
	"github.com/mokykla/pointsapi/internal/settings"
	"github.com/pquerna/otp/totp"
	"gorm.io/gorm"
)

// AuthHandler handles authentication endpoints for all roles.
type AuthHandler struct {
	db     *gorm.DB
	jwtCfg config.JWTConfig
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(db *gorm.DB, jwtCfg config.JWTConfig) *AuthHandler {
	return &AuthHandler{db: db, jwtCfg: jwtCfg}
}

// loginRequest defines the request body for login.
type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login authenticates a user. Accounts with TOTP enabled receive a
// short-lived challenge token instead of a session token.
func (h *AuthHandler) Login(c *gin.Context) {
	var body loginRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	username := strings.TrimSpace(body.Username)
	password := strings.TrimSpace(body.Password)
	if username == "" || password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing username or password"})
		return
	}

	var user models.User
	if errFind := h.db.WithContext(c.Request.Context()).Where("username = ?", username).First(&user).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	if user.Disabled {
		c.JSON(http.StatusForbidden, gin.H{"error": "user disabled"})
		return
	}

	if !security.CheckPassword(user.PasswordHash, password) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	if user.TOTPEnabled {
		challenge, errChallenge := security.GenerateTOTPChallenge(h.jwtCfg.Secret, user.ID)
		if errChallenge != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "generate challenge failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"totp_required":   true,
			"challenge_token": challenge,
		})
		return
	}

	h.respondWithUserToken(c, &user)
}

// loginTOTPRequest finishes a TOTP-gated login.
type loginTOTPRequest struct {
	ChallengeToken string `json:"challenge_token"`
	Code           string `json:"code"`
}

// LoginTOTP exchanges a challenge token plus a valid TOTP code for a
// session token.
func (h *AuthHandler) LoginTOTP(c *gin.Context) {
	var body loginTOTPRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	code := strings.TrimSpace(body.Code)
	if body.ChallengeToken == "" || code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing challenge token or code"})
		return
	}

	claims, errParse := security.ParseTOTPChallenge(h.jwtCfg.Secret, body.ChallengeToken)
	if errParse != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid challenge token"})
		return
	}

	var user models.User
	if errFind := h.db.WithContext(c.Request.Context()).First(&user, claims.UserID).Error; errFind != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}
	if user.Disabled {
		c.JSON(http.StatusForbidden, gin.H{"error": "user disabled"})
		return
	}
	if !user.TOTPEnabled || strings.TrimSpace(user.TOTPSecret) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "totp not enabled"})
		return
	}
	if !totp.Validate(code, user.TOTPSecret) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid totp code"})
		return
	}

	h.respondWithUserToken(c, &user)
}

// Me returns the authenticated user's account and profile.
func (h *AuthHandler) Me(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}

	resp := gin.H{
		"id":           user.ID,
		"username":     user.Username,
		"role":         user.Role,
		"totp_enabled": user.TOTPEnabled,
	}
	switch user.Role {
	case models.RoleStudent:
		var profile models.StudentProfile
		if errFind := h.db.WithContext(c.Request.Context()).Where("user_id = ?", user.ID).First(&profile).Error; errFind == nil {
			resp["profile"] = gin.H{
				"id":           profile.ID,
				"display_name": profile.DisplayName,
				"class_name":   profile.ClassName,
			}
		}
	case models.RoleTeacher:
		var profile models.TeacherProfile
		if errFind := h.db.WithContext(c.Request.Context()).Where("user_id = ?", user.ID).First(&profile).Error; errFind == nil {
			resp["profile"] = gin.H{
				"id":           profile.ID,
				"display_name": profile.DisplayName,
			}
		}
	}
	c.JSON(http.StatusOK, resp)
}

// changePasswordRequest defines the request body for password changes.
type changePasswordRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

// ChangePassword updates the authenticated user's password.
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}

	var body changePasswordRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	newPassword := strings.TrimSpace(body.NewPassword)
	if newPassword == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing new password"})
		return
	}
	if !security.CheckPassword(user.PasswordHash, strings.TrimSpace(body.OldPassword)) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	hash, errHash := security.HashPassword(newPassword)
	if errHash != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "hash password failed"})
		return
	}
	if errUpdate := h.db.WithContext(c.Request.Context()).Model(user).Updates(map[string]any{
		"password_hash": hash,
		"updated_at":    time.Now().UTC(),
	}).Error; errUpdate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "change password failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// PrepareTOTP generates a pending TOTP secret for the user.
func (h *AuthHandler) PrepareTOTP(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}
	if user.TOTPEnabled {
		c.JSON(http.StatusConflict, gin.H{"error": "totp already enabled"})
		return
	}

	key, errKey := totp.Generate(totp.GenerateOpts{
		Issuer:      settings.SchoolName(),
		AccountName: user.Username,
	})
	if errKey != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "generate totp secret failed"})
		return
	}
	if errUpdate := h.db.WithContext(c.Request.Context()).Model(user).Updates(map[string]any{
		"totp_secret":  key.Secret(),
		"totp_enabled": false,
		"updated_at":   time.Now().UTC(),
	}).Error; errUpdate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "store totp secret failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"secret": key.Secret(),
		"url":    key.URL(),
	})
}

// totpCodeRequest carries a TOTP code.
type totpCodeRequest struct {
	Code string `json:"code"`
}

// ConfirmTOTP verifies the first code and turns TOTP enforcement on.
func (h *AuthHandler) ConfirmTOTP(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}

	var body totpCodeRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(user.TOTPSecret) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "totp not prepared"})
		return
	}
	if !totp.Validate(strings.TrimSpace(body.Code), user.TOTPSecret) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid totp code"})
		return
	}

	if errUpdate := h.db.WithContext(c.Request.Context()).Model(user).Updates(map[string]any{
		"totp_enabled": true,
		"updated_at":   time.Now().UTC(),
	}).Error; errUpdate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "enable totp failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// DisableTOTP turns TOTP enforcement off after a valid code.
func (h *AuthHandler) DisableTOTP(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}

	var body totpCodeRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if !user.TOTPEnabled {
		c.JSON(http.StatusBadRequest, gin.H{"error": "totp not enabled"})
		return
	}
	if !totp.Validate(strings.TrimSpace(body.Code), user.TOTPSecret) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid totp code"})
		return
	}

	if errUpdate := h.db.WithContext(c.Request.Context()).Model(user).Updates(map[string]any{
		"totp_secret":  "",
		"totp_enabled": false,
		"updated_at":   time.Now().UTC(),
	}).Error; errUpdate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "disable totp failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// respondWithUserToken issues a session JWT for the user.
func (h *AuthHandler) respondWithUserToken(c *gin.Context, user *models.User) {
	token, errToken := security.GenerateToken(h.jwtCfg.Secret, user, h.jwtCfg.Expiry())
	if errToken != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "generate token failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"token":    token,
		"username": user.Username,
		"role":     user.Role,
	})
}
