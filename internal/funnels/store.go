package funnels

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"
)

// Completion records that a session completed a funnel step. Unique per
// (step, session): reporting the same completion twice is a no-op.
type Completion struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"`
	StepID    uint      `gorm:"uniqueIndex:idx_step_session;not null"`
	SessionID string    `gorm:"uniqueIndex:idx_step_session;size:64;not null"`
	SiteID    string    `gorm:"index"`
	CreatedAt time.Time `gorm:"index"`
}

// CompletionResult is the outcome of a completion report. AlreadyCompleted
// signals an idempotent repeat, which callers treat the same as success.
type CompletionResult struct {
	Success          bool `json:"success"`
	AlreadyCompleted bool `json:"already_completed,omitempty"`
}

// Store persists funnel definitions and completions.
type Store struct {
	db     *gorm.DB
	logger *slog.Logger
}

// NewStore creates a funnel store on the given connection.
func NewStore(db *gorm.DB, logger *slog.Logger) *Store {
	return &Store{db: db, logger: logger}
}

// DefinitionsBySite returns the site's funnel steps ordered by step number.
// No steps is a normal outcome, not an error.
func (s *Store) DefinitionsBySite(siteID string) ([]Step, error) {
	var steps []Step
	err := s.db.Where("site_id = ?", siteID).
		Order("step_number asc").
		Find(&steps).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load funnel steps for %s: %w", siteID, err)
	}
	return steps, nil
}

// SaveStep inserts or updates a funnel step definition.
func (s *Store) SaveStep(step *Step) error {
	if err := s.db.Save(step).Error; err != nil {
		return fmt.Errorf("failed to save funnel step: %w", err)
	}
	return nil
}

// RecordCompletion marks a step completed by a session. The first report
// succeeds; every later report for the same (step, session) pair returns
// AlreadyCompleted without changing any count.
func (s *Store) RecordCompletion(stepID uint, sessionID, siteID string) (CompletionResult, error) {
	if sessionID == "" {
		return CompletionResult{}, errors.New("completion requires a session id")
	}

	var result CompletionResult
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var existing Completion
		qErr := tx.Where("step_id = ? AND session_id = ?", stepID, sessionID).
			First(&existing).Error
		if qErr == nil {
			result = CompletionResult{Success: true, AlreadyCompleted: true}
			return nil
		}
		if !errors.Is(qErr, gorm.ErrRecordNotFound) {
			return fmt.Errorf("failed to check completion: %w", qErr)
		}

		completion := Completion{StepID: stepID, SessionID: sessionID, SiteID: siteID}
		if err := tx.Create(&completion).Error; err != nil {
			return fmt.Errorf("failed to record completion: %w", err)
		}
		result = CompletionResult{Success: true}
		return nil
	})
	if err != nil {
		return CompletionResult{}, err
	}

	s.logger.Debug("Recorded funnel completion",
		slog.Uint64("step_id", uint64(stepID)),
		slog.String("session_id", sessionID),
		slog.Bool("already_completed", result.AlreadyCompleted))
	return result, nil
}

// CompletionCounts returns the number of distinct completing sessions per
// step for a site, keyed by step ID.
func (s *Store) CompletionCounts(siteID string) (map[uint]int64, error) {
	type row struct {
		StepID uint
		Count  int64
	}
	var rows []row
	err := s.db.Model(&Completion{}).
		Select("step_id, COUNT(*) as count").
		Where("site_id = ?", siteID).
		Group("step_id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count completions for %s: %w", siteID, err)
	}

	counts := make(map[uint]int64, len(rows))
	for _, r := range rows {
		counts[r.StepID] = r.Count
	}
	return counts, nil
}
