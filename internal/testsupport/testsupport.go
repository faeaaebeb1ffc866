// Package testsupport holds shared helpers for package tests: in-memory
// databases with the full schema, quiet loggers, and model factories.
package testsupport

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"vistrail/internal/funnels"
	"vistrail/internal/rules"
	"vistrail/internal/sessions"
)

// testDBCache caches test databases by test name so multiple calls within
// the same test share one database.
var (
	testDBCache   = make(map[string]*gorm.DB)
	testDBCacheMu sync.Mutex
)

func allModels() []any {
	return []any{
		&sessions.Session{},
		&funnels.Step{},
		&funnels.Completion{},
		&rules.Rule{},
		&rules.Trigger{},
	}
}

// SetupTestDB creates a migrated test database. Uses a named in-memory
// database with cache=shared so multiple connections within a test see the
// same data.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	// Use the root test name for caching so subtests share the parent's
	// database.
	rootName := t.Name()
	if idx := strings.Index(rootName, "/"); idx > 0 {
		rootName = rootName[:idx]
	}

	testDBCacheMu.Lock()
	if db, exists := testDBCache[rootName]; exists {
		testDBCacheMu.Unlock()
		return db
	}
	testDBCacheMu.Unlock()

	sanitizedName := strings.ReplaceAll(rootName, "/", "_")
	dsn := fmt.Sprintf("file:test_%s_%d?mode=memory&cache=shared", sanitizedName, time.Now().UnixNano())

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("testsupport: failed to open test database: %v", err)
	}

	db.Exec("PRAGMA foreign_keys = ON")

	if err := db.AutoMigrate(allModels()...); err != nil {
		t.Fatalf("testsupport: failed to migrate models: %v", err)
	}

	testDBCacheMu.Lock()
	testDBCache[rootName] = db
	testDBCacheMu.Unlock()

	t.Cleanup(func() {
		testDBCacheMu.Lock()
		delete(testDBCache, rootName)
		testDBCacheMu.Unlock()
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	return db
}

// GetLogger returns a logger that discards everything.
func GetLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// SessionOption mutates a factory session before it is saved.
type SessionOption func(*sessions.Session)

// CreateTestSession inserts a session with sensible defaults, adjusted by
// the given options.
func CreateTestSession(t *testing.T, db *gorm.DB, siteID string, opts ...SessionOption) sessions.Session {
	t.Helper()

	now := time.Now()
	session := sessions.Session{
		PublicID:     uuid.NewString(),
		SiteID:       siteID,
		CreatedAt:    now,
		LastSeen:     now,
		Country:      "us",
		Browser:      "Chrome",
		OS:           "macOS",
		ScreenSize:   "1920x1080",
		Language:     "en-US",
		VisitedPages: sessions.PageList{"/"},
		PageViews:    1,
	}
	for _, opt := range opts {
		opt(&session)
	}

	if err := db.Create(&session).Error; err != nil {
		t.Fatalf("testsupport: failed to create session: %v", err)
	}
	return session
}

// WithPages sets the visited pages and view count.
func WithPages(pages ...string) SessionOption {
	return func(s *sessions.Session) {
		s.VisitedPages = append(sessions.PageList{}, pages...)
		s.PageViews = len(pages)
	}
}

// WithDuration spreads created_at and last_seen by d.
func WithDuration(d time.Duration) SessionOption {
	return func(s *sessions.Session) {
		s.LastSeen = s.CreatedAt.Add(d)
	}
}

// WithAttribution sets referrer hostname and UTM source/medium.
func WithAttribution(hostname, utmSource, utmMedium string) SessionOption {
	return func(s *sessions.Session) {
		s.ReferrerHostname = hostname
		if hostname != "" {
			s.Referrer = "https://" + hostname + "/"
		}
		s.UTMSource = utmSource
		s.UTMMedium = utmMedium
	}
}
