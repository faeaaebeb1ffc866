// Package sessions holds the visitor session model and its store.
//
// A session is identified by an opaque client-generated identifier; no
// cookies or fingerprinting are involved. The composite device/geo key used
// elsewhere as a unique-visitor proxy is a documented approximation: distinct
// visitors sharing browser, OS, screen size and country collapse into one,
// and a visitor whose fields rotate mid-session counts twice.
package sessions

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// UnknownField substitutes missing fingerprint components.
const UnknownField = "unknown"

// PageList is an ordered list of visited page paths stored as JSON text.
// Order is visit order: first entry is the entry page, last is the exit page.
type PageList []string

// Value implements driver.Valuer.
func (p PageList) Value() (driver.Value, error) {
	if p == nil {
		p = PageList{}
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to encode page list: %w", err)
	}
	return string(data), nil
}

// Scan implements sql.Scanner.
func (p *PageList) Scan(value interface{}) error {
	if value == nil {
		*p = PageList{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported page list column type %T", value)
	}
	if len(data) == 0 {
		*p = PageList{}
		return nil
	}
	return json.Unmarshal(data, p)
}

// Session represents one visitor's browsing activity on a site between first
// detection and last heartbeat. Read-only to the analytics core; only the
// ingestion side appends to it.
type Session struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"-"`
	PublicID  string    `gorm:"uniqueIndex:idx_site_public_id;size:64;not null" json:"id"`
	SiteID    string    `gorm:"uniqueIndex:idx_site_public_id;index;not null" json:"site_id"`
	CreatedAt time.Time `json:"created_at"`
	LastSeen  time.Time `gorm:"index" json:"last_seen"`

	Country string `gorm:"index" json:"country"`
	Region  string `json:"region"`
	City    string `json:"city"`

	Browser    string `json:"browser"`
	OS         string `json:"os"`
	ScreenSize string `json:"screen_size"`
	Language   string `json:"language"`

	Referrer         string `json:"referrer"`
	ReferrerHostname string `gorm:"index" json:"referrer_hostname"`

	UTMSource   string `json:"utm_source"`
	UTMMedium   string `json:"utm_medium"`
	UTMCampaign string `json:"utm_campaign"`
	UTMTerm     string `json:"utm_term"`
	UTMContent  string `json:"utm_content"`

	VisitedPages PageList `gorm:"type:text" json:"visited_pages"`
	PageViews    int      `gorm:"default:1" json:"page_views"`
}

// EntryPage returns the first visited page, or "" for an empty session.
func (s *Session) EntryPage() string {
	if len(s.VisitedPages) == 0 {
		return ""
	}
	return s.VisitedPages[0]
}

// ExitPage returns the last visited page, or "" for an empty session.
func (s *Session) ExitPage() string {
	if len(s.VisitedPages) == 0 {
		return ""
	}
	return s.VisitedPages[len(s.VisitedPages)-1]
}

// ViewCount returns the recorded page view count, defaulting to 1.
func (s *Session) ViewCount() int {
	if s.PageViews > 0 {
		return s.PageViews
	}
	if n := len(s.VisitedPages); n > 0 {
		return n
	}
	return 1
}

// IsBounce reports whether the session recorded exactly one page view.
func (s *Session) IsBounce() bool {
	return s.ViewCount() == 1
}

// Duration returns the elapsed time between creation and last heartbeat.
// ok is false when either timestamp is missing.
func (s *Session) Duration() (time.Duration, bool) {
	if s.CreatedAt.IsZero() || s.LastSeen.IsZero() {
		return 0, false
	}
	return s.LastSeen.Sub(s.CreatedAt), true
}

// Fingerprint builds the coarse composite key used as a unique-visitor proxy.
func (s *Session) Fingerprint() string {
	return strings.Join([]string{
		orUnknown(s.Browser),
		orUnknown(s.OS),
		orUnknown(s.ScreenSize),
		orUnknown(s.Country),
	}, "|")
}

func orUnknown(v string) string {
	if v == "" {
		return UnknownField
	}
	return v
}
