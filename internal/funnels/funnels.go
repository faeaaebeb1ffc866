// Package funnels defines conversion funnel steps and records their
// completions.
package funnels

import (
	"fmt"
	"time"

	"vistrail/internal/pkg/urlmatch"
)

// StepType discriminates how a funnel step is matched.
type StepType string

const (
	StepPageView    StepType = "page_view"
	StepCustomEvent StepType = "custom_event"
)

// EventType enumerates the in-page events a custom_event step can match.
type EventType string

const (
	EventClick     EventType = "click"
	EventScroll    EventType = "scroll"
	EventClickLink EventType = "click_link"
)

// PageViewConfig configures a page_view step.
type PageViewConfig struct {
	URLPattern string             `json:"url_pattern"`
	MatchType  urlmatch.MatchType `json:"match_type"`
}

// EventConfig configures a custom_event step. Only the fields relevant to
// EventType are set; constructors enforce this.
type EventConfig struct {
	EventType EventType `json:"event_type"`

	// click
	Selector string `json:"selector,omitempty"`

	// scroll
	ScrollPercentage *int   `json:"scroll_percentage,omitempty"`
	PagePattern      string `json:"page_pattern,omitempty"`

	// click_link
	URLPattern string `json:"url_pattern,omitempty"`
	LinkText   string `json:"link_text,omitempty"`
	ExactMatch bool   `json:"exact_match,omitempty"`
}

// Step is one stage of a conversion funnel. StepNumber is 1-based and defines
// the sequence; matching happens per page, ordering is enforced by the
// completion store.
type Step struct {
	ID         uint     `gorm:"primaryKey;autoIncrement" json:"id"`
	SiteID     string   `gorm:"index;not null" json:"site_id"`
	StepNumber int      `gorm:"not null" json:"step_number"`
	Name       string   `gorm:"not null" json:"name"`
	StepType   StepType `gorm:"not null" json:"step_type"`

	PageView *PageViewConfig `gorm:"serializer:json" json:"page_view_config,omitempty"`
	Event    *EventConfig    `gorm:"serializer:json" json:"event_config,omitempty"`

	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

// NewPageViewStep builds a validated page_view step. An empty pattern matches
// every page.
func NewPageViewStep(siteID string, number int, name, urlPattern string, matchType urlmatch.MatchType) (Step, error) {
	if number < 1 {
		return Step{}, fmt.Errorf("step number must be 1-based, got %d", number)
	}
	if urlPattern != "" && !matchType.Valid() {
		return Step{}, fmt.Errorf("invalid match type %q", matchType)
	}
	return Step{
		SiteID:     siteID,
		StepNumber: number,
		Name:       name,
		StepType:   StepPageView,
		PageView:   &PageViewConfig{URLPattern: urlPattern, MatchType: matchType},
	}, nil
}

// NewEventStep builds a validated custom_event step.
func NewEventStep(siteID string, number int, name string, cfg EventConfig) (Step, error) {
	if number < 1 {
		return Step{}, fmt.Errorf("step number must be 1-based, got %d", number)
	}
	switch cfg.EventType {
	case EventClick:
		if cfg.Selector == "" {
			return Step{}, fmt.Errorf("click step %q requires a selector", name)
		}
	case EventScroll:
		if cfg.ScrollPercentage != nil && (*cfg.ScrollPercentage < 0 || *cfg.ScrollPercentage > 100) {
			return Step{}, fmt.Errorf("scroll step %q percentage out of range: %d", name, *cfg.ScrollPercentage)
		}
	case EventClickLink:
		if cfg.URLPattern == "" {
			return Step{}, fmt.Errorf("click_link step %q requires a url pattern", name)
		}
	default:
		return Step{}, fmt.Errorf("unsupported event type %q", cfg.EventType)
	}
	return Step{
		SiteID:     siteID,
		StepNumber: number,
		Name:       name,
		StepType:   StepCustomEvent,
		Event:      &cfg,
	}, nil
}
