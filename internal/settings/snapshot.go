package settings

import (
	"encoding/json"
	"strings"
	"sync/atomic"
	"time"
)

// snapshot holds the in-memory school settings values.
type snapshot struct {
	updatedAt time.Time
	values    map[string]json.RawMessage
}

// globalSnapshot stores the latest snapshot atomically. Settings are
// read on every dashboard render, so reads never touch the database.
var globalSnapshot atomic.Value // stores snapshot

// init seeds the global snapshot.
func init() {
	globalSnapshot.Store(snapshot{values: map[string]json.RawMessage{}})
}

// Store replaces the in-memory snapshot of school settings.
func Store(updatedAt time.Time, values map[string]json.RawMessage) {
	next := make(map[string]json.RawMessage, len(values))
	for k, v := range values {
		key := strings.TrimSpace(k)
		if key == "" {
			continue
		}
		if v == nil {
			next[key] = nil
			continue
		}
		copied := make([]byte, len(v))
		copy(copied, v)
		next[key] = copied
	}

	globalSnapshot.Store(snapshot{
		updatedAt: updatedAt.UTC(),
		values:    next,
	})
}

// UpdatedAt returns the last update timestamp of the snapshot.
func UpdatedAt() time.Time {
	return load().updatedAt
}

// Value returns a copy of the raw settings value for a key.
func Value(key string) (json.RawMessage, bool) {
	cfg := load()
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, false
	}
	val, ok := cfg.values[key]
	if !ok {
		return nil, false
	}
	if val == nil {
		return nil, true
	}
	copied := make([]byte, len(val))
	copy(copied, val)
	return copied, true
}

// StringValue decodes the settings value for a key as a string,
// falling back when the key is missing or malformed.
func StringValue(key, fallback string) string {
	raw, ok := Value(key)
	if !ok || raw == nil {
		return fallback
	}
	var decoded string
	if errDecode := json.Unmarshal(raw, &decoded); errDecode != nil {
		return fallback
	}
	if strings.TrimSpace(decoded) == "" {
		return fallback
	}
	return decoded
}

// SchoolName returns the configured school display name.
func SchoolName() string {
	return StringValue(SchoolNameKey, DefaultSchoolName)
}

// SchoolLogoURL returns the configured logo URL, empty when unset.
func SchoolLogoURL() string {
	return StringValue(SchoolLogoURLKey, "")
}

// LoginBackgroundURL returns the configured login background URL.
func LoginBackgroundURL() string {
	return StringValue(LoginBackgroundURLKey, "")
}

// TeacherGuidelines returns the configured awarding guidelines text.
func TeacherGuidelines() string {
	return StringValue(TeacherGuidelinesKey, "")
}

// load returns the current snapshot with safe defaults.
func load() snapshot {
	v := globalSnapshot.Load()
	cfg, ok := v.(snapshot)
	if !ok {
		return snapshot{values: map[string]json.RawMessage{}}
	}
	if cfg.values == nil {
		return snapshot{updatedAt: cfg.updatedAt, values: map[string]json.RawMessage{}}
	}
	return cfg
}
