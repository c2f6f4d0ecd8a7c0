package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// RankedStudent is one leaderboard row.
type RankedStudent struct {
	StudentProfileID uint64     `json:"student_profile_id"`
	DisplayName      string     `json:"display_name"`
	ClassName        string     `json:"class_name"`
	TotalPoints      int        `json:"total_points"`
	LifetimePoints   int        `json:"lifetime_points"`
	LastActivityAt   *time.Time `json:"last_activity_at"`
}

// leaderboardTTL bounds how stale a cached leaderboard may get.
const leaderboardTTL = 60 * time.Second

// TopStudents ranks students by their semester totals, breaking ties by
// earliest last activity (students with no activity sort last) and then
// by display name. Lifetime points count every positive delta across
// all semesters. Results are served from the optional redis cache when
// fresh; cache failures are logged and ignored.
func (s *Service) TopStudents(ctx context.Context, semesterID uint64, limit int) ([]RankedStudent, error) {
	if limit <= 0 {
		limit = 5
	}

	cacheKey := fmt.Sprintf("leaderboard:%d:%d", semesterID, limit)
	if s.cache != nil {
		cached, errGet := s.cache.Get(ctx, cacheKey).Result()
		if errGet == nil {
			var ranked []RankedStudent
			if errDecode := json.Unmarshal([]byte(cached), &ranked); errDecode == nil {
				return ranked, nil
			}
		} else if errGet != redis.Nil {
			log.WithError(errGet).Warn("leaderboard cache read failed")
		}
	}

	var ranked []RankedStudent
	errScan := s.db.WithContext(ctx).Raw(`
		SELECT
			sp.id AS student_profile_id,
			sp.display_name,
			sp.class_name,
			COALESCE(SUM(CASE WHEN pt.semester_id = ? THEN pt.points_delta ELSE 0 END), 0) AS total_points,
			COALESCE(SUM(CASE WHEN pt.points_delta > 0 THEN pt.points_delta ELSE 0 END), 0) AS lifetime_points,
			MAX(CASE WHEN pt.semester_id = ? THEN pt.created_at END) AS last_activity_at
		FROM student_profiles sp
		LEFT JOIN point_transactions pt ON pt.student_profile_id = sp.id
		GROUP BY sp.id, sp.display_name, sp.class_name
		ORDER BY total_points DESC, last_activity_at ASC NULLS LAST, sp.display_name ASC
		LIMIT ?`,
		semesterID, semesterID, limit,
	).Scan(&ranked).Error
	if errScan != nil {
		return nil, errScan
	}

	if s.cache != nil {
		encoded, errEncode := json.Marshal(ranked)
		if errEncode == nil {
			if errSet := s.cache.Set(ctx, cacheKey, encoded, leaderboardTTL).Err(); errSet != nil {
				log.WithError(errSet).Warn("leaderboard cache write failed")
			}
		}
	}
	return ranked, nil
}
