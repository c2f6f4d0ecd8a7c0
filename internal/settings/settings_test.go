package settings

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/mokykla/pointsapi/internal/models"
	"gorm.io/gorm"
)

// resetSnapshot clears the process-wide snapshot after a test.
func resetSnapshot(t *testing.T) {
	t.Helper()
	t.Cleanup(func() {
		Store(time.Time{}, map[string]json.RawMessage{})
	})
}

func openSettingsDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:settings_%d?mode=memory&cache=shared", time.Now().UnixNano())
	conn, errOpen := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if errOpen != nil {
		t.Fatalf("open sqlite: %v", errOpen)
	}
	sqlDB, errDB := conn.DB()
	if errDB != nil {
		t.Fatalf("sql db: %v", errDB)
	}
	sqlDB.SetMaxOpenConns(1)
	if errMigrate := conn.AutoMigrate(&models.Setting{}); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	return conn
}

func TestAccessorsFallBackWhenUnset(t *testing.T) {
	resetSnapshot(t)
	Store(time.Time{}, map[string]json.RawMessage{})

	if got := SchoolName(); got != DefaultSchoolName {
		t.Fatalf("expected default school name, got %q", got)
	}
	if got := SchoolLogoURL(); got != "" {
		t.Fatalf("expected empty logo url, got %q", got)
	}
	if got := TeacherGuidelines(); got != "" {
		t.Fatalf("expected empty guidelines, got %q", got)
	}
}

func TestStoreAndStringValue(t *testing.T) {
	resetSnapshot(t)
	Store(time.Now(), map[string]json.RawMessage{
		SchoolNameKey: json.RawMessage(`"Vilniaus licėjus"`),
	})

	if got := SchoolName(); got != "Vilniaus licėjus" {
		t.Fatalf("expected stored school name, got %q", got)
	}
}

func TestStringValueIgnoresMalformedJSON(t *testing.T) {
	resetSnapshot(t)
	Store(time.Now(), map[string]json.RawMessage{
		SchoolNameKey: json.RawMessage(`{broken`),
	})

	if got := SchoolName(); got != DefaultSchoolName {
		t.Fatalf("malformed value must fall back, got %q", got)
	}
}

func TestValueReturnsCopy(t *testing.T) {
	resetSnapshot(t)
	Store(time.Now(), map[string]json.RawMessage{
		SchoolNameKey: json.RawMessage(`"Mokykla"`),
	})

	raw, ok := Value(SchoolNameKey)
	if !ok {
		t.Fatal("expected value present")
	}
	raw[0] = 'x'
	if got := SchoolName(); got != "Mokykla" {
		t.Fatalf("mutating the returned slice must not change the snapshot, got %q", got)
	}
}

func TestUpdateUpsertsAndRefreshes(t *testing.T) {
	resetSnapshot(t)
	conn := openSettingsDB(t)
	ctx := context.Background()

	if errUpdate := Update(ctx, conn, SchoolNameKey, "Kauno gimnazija"); errUpdate != nil {
		t.Fatalf("update: %v", errUpdate)
	}
	if got := SchoolName(); got != "Kauno gimnazija" {
		t.Fatalf("expected refreshed name, got %q", got)
	}

	if errUpdate := Update(ctx, conn, SchoolNameKey, "Kauno licėjus"); errUpdate != nil {
		t.Fatalf("second update: %v", errUpdate)
	}
	if got := SchoolName(); got != "Kauno licėjus" {
		t.Fatalf("expected amended name, got %q", got)
	}

	var count int64
	if errCount := conn.Model(&models.Setting{}).Where("key = ?", SchoolNameKey).Count(&count).Error; errCount != nil {
		t.Fatalf("count rows: %v", errCount)
	}
	if count != 1 {
		t.Fatalf("upsert must keep a single row per key, got %d", count)
	}
}

func TestUpdateRejectsEmptyKey(t *testing.T) {
	resetSnapshot(t)
	conn := openSettingsDB(t)
	if errUpdate := Update(context.Background(), conn, "  ", "value"); errUpdate == nil {
		t.Fatal("expected error for empty key")
	}
}
