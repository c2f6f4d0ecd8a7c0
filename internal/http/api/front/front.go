package front

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mokykla/pointsapi/internal/config"
	"github.com/mokykla/pointsapi/internal/http/api/front/handlers"
	"github.com/mokykla/pointsapi/internal/ledger"
	"github.com/mokykla/pointsapi/internal/models"
	"github.com/mokykla/pointsapi/internal/security"
	"gorm.io/gorm"
)

// RegisterFrontRoutes registers public, student, and teacher routes.
func RegisterFrontRoutes(r *gin.Engine, db *gorm.DB, svc *ledger.Service, jwtCfg config.JWTConfig) {
	if r == nil || db == nil || svc == nil {
		return
	}

	authHandler := handlers.NewAuthHandler(db, jwtCfg)
	auth := r.Group("/v0/auth")
	auth.POST("/login", authHandler.Login)
	auth.POST("/login/totp", authHandler.LoginTOTP)

	r.GET("/v0/config", handlers.GetPublicConfig)

	authedAuth := r.Group("/v0/auth")
	authedAuth.Use(userAuthMiddleware(db, jwtCfg))
	authedAuth.GET("/me", authHandler.Me)
	authedAuth.PUT("/password", authHandler.ChangePassword)
	authedAuth.POST("/totp/prepare", authHandler.PrepareTOTP)
	authedAuth.POST("/totp/confirm", authHandler.ConfirmTOTP)
	authedAuth.POST("/totp/disable", authHandler.DisableTOTP)

	studentHandler := handlers.NewStudentHandler(db, svc)
	student := r.Group("/v0/student")
	student.Use(userAuthMiddleware(db, jwtCfg), requireRole(models.RoleStudent))
	student.GET("/dashboard", studentHandler.Dashboard)
	student.GET("/transactions", studentHandler.Transactions)
	student.GET("/shop", studentHandler.Shop)
	student.GET("/leaderboard", studentHandler.Leaderboard)
	student.GET("/requests", studentHandler.Requests)
	student.POST("/bonuses/:id/redeem", studentHandler.Redeem)
	student.POST("/bonuses/:id/reserve", studentHandler.Reserve)
	student.POST("/bonuses/:id/withdraw", studentHandler.Withdraw)
	student.POST("/bonuses/:id/confirm", studentHandler.ConfirmGroup)
	student.POST("/bonuses/:id/request", studentHandler.CreateRequest)

	teacherHandler := handlers.NewTeacherHandler(db, svc)
	teacher := r.Group("/v0/teacher")
	teacher.Use(userAuthMiddleware(db, jwtCfg), requireRole(models.RoleTeacher))
	teacher.GET("/dashboard", teacherHandler.Dashboard)
	teacher.GET("/students", teacherHandler.Students)
	teacher.GET("/ranking", teacherHandler.Ranking)
	teacher.GET("/guidelines", teacherHandler.Guidelines)
	teacher.POST("/award", teacherHandler.Award)
	teacher.GET("/requests", teacherHandler.Requests)
	teacher.POST("/requests/:id/confirm", teacherHandler.ConfirmRequest)
	teacher.POST("/requests/:id/decline", teacherHandler.DeclineRequest)
}

// userAuthMiddleware validates user JWTs and loads the user into context.
func userAuthMiddleware(db *gorm.DB, jwtCfg config.JWTConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization header"})
			return
		}

		token := strings.TrimPrefix(authHeader, "Bearer ")
		if token == authHeader {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization format"})
			return
		}
		token = strings.TrimSpace(token)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "empty token"})
			return
		}

		claims, errJWT := security.ParseToken(jwtCfg.Secret, token)
		if errJWT != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		var user models.User
		if errFind := db.WithContext(c.Request.Context()).First(&user, claims.UserID).Error; errFind != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
			return
		}
		if user.Disabled {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "user disabled"})
			return
		}

		c.Set("userID", user.ID)
		c.Set("currentUser", &user)
		c.Next()
	}
}

// requireRole rejects callers whose account role does not match.
func requireRole(role models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		val, exists := c.Get("currentUser")
		if !exists {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
			return
		}
		user, ok := val.(*models.User)
		if !ok || user.Role != role {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "permission denied"})
			return
		}
		c.Next()
	}
}
