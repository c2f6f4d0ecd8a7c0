package admin

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mokykla/pointsapi/internal/config"
	"github.com/mokykla/pointsapi/internal/http/api/admin/handlers"
	"github.com/mokykla/pointsapi/internal/ledger"
	"github.com/mokykla/pointsapi/internal/models"
	"github.com/mokykla/pointsapi/internal/security"
	"gorm.io/gorm"
)

// RegisterAdminRoutes registers the administration routes.
func RegisterAdminRoutes(r *gin.Engine, db *gorm.DB, svc *ledger.Service, jwtCfg config.JWTConfig) {
	if r == nil || db == nil || svc == nil {
		return
	}

	group := r.Group("/v0/admin")
	group.Use(adminAuthMiddleware(db, jwtCfg))

	semesterHandler := handlers.NewSemesterHandler(db, svc)
	group.GET("/semesters", semesterHandler.List)
	group.POST("/semesters", semesterHandler.Create)
	group.PUT("/semesters/:id", semesterHandler.Update)
	group.POST("/semesters/:id/activate", semesterHandler.Activate)

	accountHandler := handlers.NewAccountHandler(db)
	group.GET("/students", accountHandler.ListStudents)
	group.POST("/students", accountHandler.CreateStudent)
	group.PUT("/students/:id", accountHandler.UpdateStudent)
	group.GET("/teachers", accountHandler.ListTeachers)
	group.POST("/teachers", accountHandler.CreateTeacher)
	group.PUT("/teachers/:id", accountHandler.UpdateTeacher)

	budgetHandler := handlers.NewBudgetHandler(db)
	group.GET("/budgets", budgetHandler.List)
	group.PUT("/budgets", budgetHandler.Upsert)

	bonusHandler := handlers.NewBonusHandler(db)
	group.GET("/bonuses", bonusHandler.List)
	group.POST("/bonuses", bonusHandler.Create)
	group.PUT("/bonuses/:id", bonusHandler.Update)

	settingHandler := handlers.NewSettingHandler(db)
	group.GET("/settings", settingHandler.List)
	group.PUT("/settings/:key", settingHandler.Update)

	transactionHandler := handlers.NewTransactionHandler(db, svc)
	group.GET("/transactions", transactionHandler.List)
	group.POST("/adjust", transactionHandler.Adjust)
}

// adminAuthMiddleware validates admin JWTs and loads the user into context.
func adminAuthMiddleware(db *gorm.DB, jwtCfg config.JWTConfig) gin.HandlerFunc {
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
		if user.Role != models.RoleAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "permission denied"})
			return
		}

		c.Set("userID", user.ID)
		c.Set("currentUser", &user)
		c.Next()
	}
}
