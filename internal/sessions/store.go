package sessions

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"gorm.io/gorm"

	"vistrail/internal/pkg/geoip"
)

// HeartbeatInput is the ingestion-side view of one heartbeat payload plus the
// request metadata the transport layer extracts for enrichment.
type HeartbeatInput struct {
	SessionID string
	Page      string
	Domain    string
	Referrer  string
	URLParams string

	// Enrichment extracted from the request, all optional.
	IPAddress  string
	Language   string
	Browser    string
	OS         string
	ScreenSize string
	Timestamp  time.Time
}

// Store persists sessions and notifies registered hooks after every write so
// derived caches can invalidate.
type Store struct {
	db     *gorm.DB
	logger *slog.Logger

	mu    sync.Mutex
	hooks []func()
}

// NewStore creates a session store on the given connection.
func NewStore(db *gorm.DB, logger *slog.Logger) *Store {
	return &Store{db: db, logger: logger}
}

// OnChange registers a hook invoked after every successful write.
func (s *Store) OnChange(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = append(s.hooks, fn)
}

func (s *Store) notifyChange() {
	s.mu.Lock()
	hooks := make([]func(), len(s.hooks))
	copy(hooks, s.hooks)
	s.mu.Unlock()

	for _, fn := range hooks {
		fn()
	}
}

// RecordHeartbeat creates the session on first sight and touches it on every
// subsequent beat. A repeated beat for the current page only advances
// last_seen; a beat for a different page appends it and bumps the view count.
func (s *Store) RecordHeartbeat(input HeartbeatInput) error {
	if input.SessionID == "" || input.Domain == "" {
		return errors.New("heartbeat requires a session id and domain")
	}

	now := input.Timestamp
	if now.IsZero() {
		now = time.Now().UTC()
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var session Session
		qErr := tx.Where("public_id = ? AND site_id = ?", input.SessionID, input.Domain).
			First(&session).Error

		if errors.Is(qErr, gorm.ErrRecordNotFound) {
			session = s.newSession(input, now)
			if err := tx.Create(&session).Error; err != nil {
				return fmt.Errorf("failed to create session: %w", err)
			}
			return nil
		}
		if qErr != nil {
			return fmt.Errorf("failed to look up session: %w", qErr)
		}

		session.LastSeen = now
		if input.Page != "" && session.ExitPage() != input.Page {
			session.VisitedPages = append(session.VisitedPages, input.Page)
			session.PageViews++
		}
		if err := tx.Save(&session).Error; err != nil {
			return fmt.Errorf("failed to update session: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.notifyChange()
	return nil
}

func (s *Store) newSession(input HeartbeatInput, now time.Time) Session {
	session := Session{
		PublicID:   input.SessionID,
		SiteID:     input.Domain,
		CreatedAt:  now,
		LastSeen:   now,
		Language:   normalizeLanguage(input.Language),
		Browser:    input.Browser,
		OS:         input.OS,
		ScreenSize: input.ScreenSize,
		Referrer:   input.Referrer,
		PageViews:  1,
	}

	if input.Page != "" {
		session.VisitedPages = PageList{input.Page}
	} else {
		session.VisitedPages = PageList{}
	}

	if input.Referrer != "" {
		if parsed, err := url.Parse(input.Referrer); err == nil {
			session.ReferrerHostname = parsed.Hostname()
		}
	}

	if input.IPAddress != "" {
		if country := geoip.CountryCode(input.IPAddress); country != geoip.UnknownCountry {
			session.Country = country
		}
	}

	applyUTM(&session, input.URLParams)
	return session
}

// applyUTM extracts UTM attribution from the page query string. Only the
// first page view of a session carries attribution.
func applyUTM(session *Session, rawParams string) {
	rawParams = strings.TrimPrefix(rawParams, "?")
	if rawParams == "" {
		return
	}
	values, err := url.ParseQuery(rawParams)
	if err != nil {
		return
	}
	session.UTMSource = values.Get("utm_source")
	session.UTMMedium = values.Get("utm_medium")
	session.UTMCampaign = values.Get("utm_campaign")
	session.UTMTerm = values.Get("utm_term")
	session.UTMContent = values.Get("utm_content")
	if session.UTMSource == "" {
		session.UTMSource = values.Get("ref")
	}
}

// normalizeLanguage reduces an Accept-Language header to its first tag.
func normalizeLanguage(raw string) string {
	if raw == "" {
		return ""
	}
	first := strings.SplitN(raw, ",", 2)[0]
	first = strings.SplitN(first, ";", 2)[0]
	return strings.TrimSpace(strings.ToLower(first))
}

// ListBySite returns all sessions recorded for a site, oldest first.
func (s *Store) ListBySite(siteID string) ([]Session, error) {
	var result []Session
	err := s.db.Where("site_id = ?", siteID).
		Order("created_at asc, id asc").
		Find(&result).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions for %s: %w", siteID, err)
	}
	return result, nil
}

// FindByPublicID returns one session by its opaque identifier.
func (s *Store) FindByPublicID(siteID, publicID string) (*Session, error) {
	var session Session
	err := s.db.Where("public_id = ? AND site_id = ?", publicID, siteID).
		First(&session).Error
	if err != nil {
		return nil, err
	}
	return &session, nil
}
