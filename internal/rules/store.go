package rules

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"
)

// Trigger records one firing of a custom event rule by a session.
type Trigger struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"`
	SiteID    string    `gorm:"index;not null"`
	EventName string    `gorm:"index;not null"`
	SessionID string    `gorm:"index;size:64"`
	PageURL   string
	Metadata  string    `gorm:"type:text"`
	CreatedAt time.Time `gorm:"index"`
}

// Store persists custom event rules and their triggers.
type Store struct {
	db     *gorm.DB
	logger *slog.Logger
}

// NewStore creates a rule store on the given connection.
func NewStore(db *gorm.DB, logger *slog.Logger) *Store {
	return &Store{db: db, logger: logger}
}

// ActiveBySite returns the site's active rules. No rules is a normal outcome.
func (s *Store) ActiveBySite(siteID string) ([]Rule, error) {
	var result []Rule
	err := s.db.Where("site_id = ? AND is_active = ?", siteID, true).
		Order("id asc").
		Find(&result).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load rules for %s: %w", siteID, err)
	}
	return result, nil
}

// SaveRule inserts or updates a rule definition.
func (s *Store) SaveRule(rule *Rule) error {
	if err := s.db.Save(rule).Error; err != nil {
		return fmt.Errorf("failed to save rule: %w", err)
	}
	return nil
}

// RecordTrigger stores one rule firing. Metadata may be any JSON-encodable
// value; encoding failures degrade to an empty object rather than dropping
// the trigger.
func (s *Store) RecordTrigger(siteID, eventName, sessionID, pageURL string, metadata map[string]interface{}) error {
	if eventName == "" {
		return errors.New("trigger requires an event name")
	}

	encoded := "{}"
	if len(metadata) > 0 {
		if data, err := json.Marshal(metadata); err == nil {
			encoded = string(data)
		}
	}

	trigger := Trigger{
		SiteID:    siteID,
		EventName: eventName,
		SessionID: sessionID,
		PageURL:   pageURL,
		Metadata:  encoded,
	}
	if err := s.db.Create(&trigger).Error; err != nil {
		return fmt.Errorf("failed to record trigger: %w", err)
	}

	s.logger.Debug("Recorded custom event trigger",
		slog.String("site_id", siteID),
		slog.String("event_name", eventName),
		slog.String("session_id", sessionID))
	return nil
}

// TriggerCounts returns the number of recorded triggers per event name.
func (s *Store) TriggerCounts(siteID string) (map[string]int64, error) {
	type row struct {
		EventName string
		Count     int64
	}
	var rows []row
	err := s.db.Model(&Trigger{}).
		Select("event_name, COUNT(*) as count").
		Where("site_id = ?", siteID).
		Group("event_name").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count triggers for %s: %w", siteID, err)
	}

	counts := make(map[string]int64, len(rows))
	for _, r := range rows {
		counts[r.EventName] = r.Count
	}
	return counts, nil
}
