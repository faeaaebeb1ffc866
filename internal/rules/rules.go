// Package rules defines custom event rules and records their triggers.
package rules

import (
	"fmt"
	"time"
)

// EventType enumerates what a custom event rule reacts to.
type EventType string

const (
	EventClick      EventType = "click"
	EventFormSubmit EventType = "form_submit"
	EventPageView   EventType = "page_view"
	EventScroll     EventType = "scroll"
	EventCustom     EventType = "custom"
)

// TriggerConfig narrows when a rule fires. Fields are optional and only the
// ones relevant to the rule's event type are consulted.
type TriggerConfig struct {
	PagePattern      string `json:"page_pattern,omitempty"`
	ScrollPercentage *int   `json:"scroll_percentage,omitempty"`
	CustomEventName  string `json:"custom_event_name,omitempty"`
}

// Rule is a user-defined trigger tracked independently of any funnel.
// Inactive rules are never evaluated.
type Rule struct {
	ID            uint          `gorm:"primaryKey;autoIncrement" json:"id"`
	SiteID        string        `gorm:"index;not null" json:"site_id"`
	Name          string        `gorm:"not null" json:"name"`
	EventType     EventType     `gorm:"not null" json:"event_type"`
	EventSelector string        `json:"event_selector,omitempty"`
	Trigger       TriggerConfig `gorm:"serializer:json" json:"trigger_config"`
	IsActive      bool          `gorm:"default:true" json:"is_active"`

	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

// NewRule builds a validated rule.
func NewRule(siteID, name string, eventType EventType, selector string, trigger TriggerConfig) (Rule, error) {
	if name == "" {
		return Rule{}, fmt.Errorf("rule requires a name")
	}
	switch eventType {
	case EventClick, EventFormSubmit, EventPageView, EventScroll:
	case EventCustom:
		if trigger.CustomEventName == "" {
			trigger.CustomEventName = name
		}
	default:
		return Rule{}, fmt.Errorf("unsupported event type %q", eventType)
	}
	if trigger.ScrollPercentage != nil && (*trigger.ScrollPercentage < 0 || *trigger.ScrollPercentage > 100) {
		return Rule{}, fmt.Errorf("rule %q scroll percentage out of range: %d", name, *trigger.ScrollPercentage)
	}
	return Rule{
		SiteID:        siteID,
		Name:          name,
		EventType:     eventType,
		EventSelector: selector,
		Trigger:       trigger,
		IsActive:      true,
	}, nil
}
