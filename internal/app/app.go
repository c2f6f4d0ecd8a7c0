package app

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mokykla/pointsapi/internal/config"
	"github.com/mokykla/pointsapi/internal/db"
	adminapi "github.com/mokykla/pointsapi/internal/http/api/admin"
	"github.com/mokykla/pointsapi/internal/http/api/front"
	"github.com/mokykla/pointsapi/internal/ledger"
	"github.com/mokykla/pointsapi/internal/logging"
	"github.com/mokykla/pointsapi/internal/models"
	"github.com/mokykla/pointsapi/internal/security"
	"github.com/mokykla/pointsapi/internal/settings"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// AppConfig holds command-line level inputs.
type AppConfig struct {
	ConfigPath string
}

// Migrate opens the database and runs migrations.
func Migrate(ctx context.Context, cfg AppConfig) error {
	conf, errLoad := config.Load(config.ResolveConfigPath(cfg.ConfigPath))
	if errLoad != nil {
		return errLoad
	}
	conn, errOpen := db.Open(conf.Database.DSN)
	if errOpen != nil {
		return errOpen
	}
	return db.Migrate(conn)
}

// CreateAdmin creates an administrator account. It fails when the
// username is already taken.
func CreateAdmin(ctx context.Context, cfg AppConfig, username, password string) error {
	username = strings.TrimSpace(username)
	password = strings.TrimSpace(password)
	if username == "" || password == "" {
		return errors.New("username and password are required")
	}

	conf, errLoad := config.Load(config.ResolveConfigPath(cfg.ConfigPath))
	if errLoad != nil {
		return errLoad
	}
	conn, errOpen := db.Open(conf.Database.DSN)
	if errOpen != nil {
		return errOpen
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return errMigrate
	}

	hash, errHash := security.HashPassword(password)
	if errHash != nil {
		return errHash
	}
	return conn.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var exists models.User
		if errCheck := tx.Where("username = ?", username).First(&exists).Error; errCheck == nil {
			return errors.New("username already exists")
		} else if !errors.Is(errCheck, gorm.ErrRecordNotFound) {
			return errCheck
		}
		return tx.Create(&models.User{
			Username:     username,
			PasswordHash: hash,
			Role:         models.RoleAdmin,
		}).Error
	})
}

// RunServer boots the points API server.
func RunServer(ctx context.Context, cfg AppConfig) error {
	conf, errLoad := config.Load(config.ResolveConfigPath(cfg.ConfigPath))
	if errLoad != nil {
		return errLoad
	}
	logging.Setup(conf.Log)

	conn, errOpen := db.Open(conf.Database.DSN)
	if errOpen != nil {
		return errOpen
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return errMigrate
	}
	if errRefresh := settings.Refresh(ctx, conn); errRefresh != nil {
		return errRefresh
	}

	var cache *redis.Client
	if conf.Redis.Addr != "" {
		cache = redis.NewClient(&redis.Options{
			Addr:     conf.Redis.Addr,
			Password: conf.Redis.Password,
			DB:       conf.Redis.DB,
		})
		if errPing := cache.Ping(ctx).Err(); errPing != nil {
			log.Warnf("redis unavailable, leaderboard caching disabled: %v", errPing)
			cache = nil
		}
	}

	svc := ledger.NewService(conn, cache)

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogMiddleware())
	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	front.RegisterFrontRoutes(engine, conn, svc, conf.JWT)
	adminapi.RegisterAdminRoutes(engine, conn, svc, conf.JWT)

	server := &http.Server{
		Addr:              conf.Server.Addr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("starting points api on %s", conf.Server.Addr)
		if errServe := server.ListenAndServe(); errServe != nil && !errors.Is(errServe, http.ErrServerClosed) {
			errCh <- errServe
			return
		}
		errCh <- nil
	}()

	select {
	case errServe := <-errCh:
		return errServe
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if errShutdown := server.Shutdown(shutdownCtx); errShutdown != nil {
		return errShutdown
	}
	log.Info("server stopped")
	return <-errCh
}

// requestLogMiddleware logs each request with latency and status.
func requestLogMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.WithFields(log.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
		}).Debug("request")
	}
}
