package ledger

import (
	"errors"

	"github.com/mokykla/pointsapi/internal/models"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Service implements the points-ledger and redemption engine. Every
// mutating operation runs inside one database transaction with
// row-level locks on the rows it reads then conditionally writes, so
// concurrent requests against the same budget, balance, or purchase
// serialize and re-evaluate their preconditions.
type Service struct {
	db    *gorm.DB
	cache *redis.Client
}

// NewService constructs a Service. The redis client is optional and
// only used to cache leaderboard reads; pass nil to disable caching.
func NewService(db *gorm.DB, cache *redis.Client) *Service {
	return &Service{db: db, cache: cache}
}

// requireRole rejects callers whose role does not match.
func requireRole(user *models.User, role models.Role, message string) error {
	if user == nil || user.Role != role {
		return newError(CodeForbidden, message)
	}
	return nil
}

// studentProfileOf loads the caller's student profile.
func studentProfileOf(tx *gorm.DB, user *models.User) (*models.StudentProfile, error) {
	var profile models.StudentProfile
	if errFind := tx.Where("user_id = ?", user.ID).First(&profile).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, newError(CodeProfileNotFound, "student profile not found")
		}
		return nil, errFind
	}
	return &profile, nil
}

// teacherProfileOf loads the caller's teacher profile.
func teacherProfileOf(tx *gorm.DB, user *models.User) (*models.TeacherProfile, error) {
	var profile models.TeacherProfile
	if errFind := tx.Where("user_id = ?", user.ID).First(&profile).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, newError(CodeProfileNotFound, "teacher profile not found")
		}
		return nil, errFind
	}
	return &profile, nil
}
