package sessions_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vistrail/internal/sessions"
	"vistrail/internal/testsupport"
)

func TestRecordHeartbeatCreatesSession(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	store := sessions.NewStore(db, testsupport.GetLogger())

	err := store.RecordHeartbeat(sessions.HeartbeatInput{
		SessionID: "session-1",
		Domain:    "example.com",
		Page:      "/pricing",
		Referrer:  "https://www.google.com/search",
		URLParams: "utm_source=google&utm_medium=cpc&utm_campaign=launch",
		Language:  "en-US,en;q=0.9",
		Browser:   "Chrome",
		OS:        "macOS",
	})
	require.NoError(t, err)

	session, err := store.FindByPublicID("example.com", "session-1")
	require.NoError(t, err)

	assert.Equal(t, "/pricing", session.EntryPage())
	assert.Equal(t, 1, session.ViewCount())
	assert.Equal(t, "www.google.com", session.ReferrerHostname)
	assert.Equal(t, "google", session.UTMSource)
	assert.Equal(t, "cpc", session.UTMMedium)
	assert.Equal(t, "launch", session.UTMCampaign)
	assert.Equal(t, "en-us", session.Language)
	assert.True(t, session.IsBounce())
}

func TestRecordHeartbeatTouchesExistingSession(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	store := sessions.NewStore(db, testsupport.GetLogger())

	start := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, store.RecordHeartbeat(sessions.HeartbeatInput{
		SessionID: "session-2",
		Domain:    "example.com",
		Page:      "/",
		Timestamp: start,
	}))

	// Same page again: only last_seen advances.
	require.NoError(t, store.RecordHeartbeat(sessions.HeartbeatInput{
		SessionID: "session-2",
		Domain:    "example.com",
		Page:      "/",
		Timestamp: start.Add(15 * time.Second),
	}))

	session, err := store.FindByPublicID("example.com", "session-2")
	require.NoError(t, err)
	assert.Equal(t, 1, session.ViewCount())

	// A new page appends and bumps the view count.
	require.NoError(t, store.RecordHeartbeat(sessions.HeartbeatInput{
		SessionID: "session-2",
		Domain:    "example.com",
		Page:      "/features",
		Timestamp: start.Add(30 * time.Second),
	}))

	session, err = store.FindByPublicID("example.com", "session-2")
	require.NoError(t, err)
	assert.Equal(t, 2, session.ViewCount())
	assert.Equal(t, "/", session.EntryPage())
	assert.Equal(t, "/features", session.ExitPage())
	assert.False(t, session.IsBounce())

	duration, ok := session.Duration()
	require.True(t, ok)
	assert.Equal(t, 30*time.Second, duration.Round(time.Second))
}

func TestRecordHeartbeatRefParamFallback(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	store := sessions.NewStore(db, testsupport.GetLogger())

	require.NoError(t, store.RecordHeartbeat(sessions.HeartbeatInput{
		SessionID: "session-3",
		Domain:    "example.com",
		Page:      "/",
		URLParams: "?ref=producthunt",
	}))

	session, err := store.FindByPublicID("example.com", "session-3")
	require.NoError(t, err)
	assert.Equal(t, "producthunt", session.UTMSource)
}

func TestRecordHeartbeatValidation(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	store := sessions.NewStore(db, testsupport.GetLogger())

	assert.Error(t, store.RecordHeartbeat(sessions.HeartbeatInput{Domain: "example.com"}))
	assert.Error(t, store.RecordHeartbeat(sessions.HeartbeatInput{SessionID: "x"}))
}

func TestOnChangeHookFiresAfterWrite(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	store := sessions.NewStore(db, testsupport.GetLogger())

	calls := 0
	store.OnChange(func() { calls++ })

	require.NoError(t, store.RecordHeartbeat(sessions.HeartbeatInput{
		SessionID: "session-4",
		Domain:    "example.com",
		Page:      "/",
	}))
	assert.Equal(t, 1, calls)
}

func TestListBySiteOrdersByCreation(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	store := sessions.NewStore(db, testsupport.GetLogger())

	now := time.Now()
	testsupport.CreateTestSession(t, db, "example.com", func(s *sessions.Session) {
		s.PublicID = "later"
		s.CreatedAt = now
	})
	testsupport.CreateTestSession(t, db, "example.com", func(s *sessions.Session) {
		s.PublicID = "earlier"
		s.CreatedAt = now.Add(-time.Hour)
	})
	testsupport.CreateTestSession(t, db, "other.com")

	listed, err := store.ListBySite("example.com")
	require.NoError(t, err)
	require.Len(t, listed, 2)
	assert.Equal(t, "earlier", listed[0].PublicID)
	assert.Equal(t, "later", listed[1].PublicID)
}

func TestFingerprintSubstitutesUnknown(t *testing.T) {
	s := sessions.Session{Browser: "Firefox", Country: "de"}
	assert.Equal(t, "Firefox|unknown|unknown|de", s.Fingerprint())
}
