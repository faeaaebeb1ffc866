package tracker

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"vistrail/internal/rules"
)

const clickTextLimit = 100

// Firing is one custom event rule match ready to be reported.
type Firing struct {
	RuleName string
	Metadata map[string]interface{}
}

// EventMatcher evaluates custom event rules against the live page. Matching
// errors (e.g. malformed selectors) are suppressed per rule: one broken rule
// must never block the others or break page interactivity.
type EventMatcher struct {
	logger *slog.Logger

	mu    sync.Mutex
	fired map[string]bool
}

// NewEventMatcher creates a matcher with empty per-page state.
func NewEventMatcher(logger *slog.Logger) *EventMatcher {
	return &EventMatcher{logger: logger, fired: make(map[string]bool)}
}

// Reset clears per-page dedupe state. The navigation watcher calls this on
// every SPA route change.
func (m *EventMatcher) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fired = make(map[string]bool)
}

// fireOnce marks a dedupe key and reports whether this was its first firing.
func (m *EventMatcher) fireOnce(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fired[key] {
		return false
	}
	m.fired[key] = true
	return true
}

// MatchClick tests a click rule against the event target, walking up to the
// nearest matching ancestor.
func (m *EventMatcher) MatchClick(rule rules.Rule, target Element) (Firing, bool) {
	if rule.EventType != rules.EventClick || rule.EventSelector == "" || target == nil {
		return Firing{}, false
	}

	matched, err := target.Closest(rule.EventSelector)
	if err != nil {
		m.logger.Debug("Click rule selector failed",
			slog.String("rule", rule.Name), slog.Any("error", err))
		return Firing{}, false
	}
	if matched == nil {
		return Firing{}, false
	}

	return Firing{
		RuleName: rule.Name,
		Metadata: map[string]interface{}{
			"selector": rule.EventSelector,
			"tag":      matched.TagName(),
			"text":     truncate(matched.Text(), clickTextLimit),
		},
	}, true
}

// MatchSubmit tests a form_submit rule against the submitted form. Without a
// selector the rule matches any form.
func (m *EventMatcher) MatchSubmit(rule rules.Rule, form Element) (Firing, bool) {
	if rule.EventType != rules.EventFormSubmit || form == nil {
		return Firing{}, false
	}

	if rule.EventSelector != "" {
		matched, err := form.Matches(rule.EventSelector)
		if err != nil {
			m.logger.Debug("Submit rule selector failed",
				slog.String("rule", rule.Name), slog.Any("error", err))
			return Firing{}, false
		}
		if !matched {
			return Firing{}, false
		}
	}

	return Firing{
		RuleName: rule.Name,
		Metadata: map[string]interface{}{"form": form.TagName()},
	}, true
}

// MatchScroll tests a scroll rule against the page's current scroll
// position. With a configured percentage the rule fires once when the
// threshold is first reached; without one it fires once on any scroll.
// Firing is deduplicated per (rule, threshold) for the whole page view.
func (m *EventMatcher) MatchScroll(rule rules.Rule, page Page) (Firing, bool) {
	if rule.EventType != rules.EventScroll || page == nil {
		return Firing{}, false
	}

	if rule.Trigger.PagePattern != "" && !strings.Contains(page.Path(), rule.Trigger.PagePattern) {
		return Firing{}, false
	}

	percent := scrollPercentage(page)
	key := fmt.Sprintf("rule:%d|any", rule.ID)
	if rule.Trigger.ScrollPercentage != nil {
		threshold := *rule.Trigger.ScrollPercentage
		if percent < float64(threshold) {
			return Firing{}, false
		}
		key = fmt.Sprintf("rule:%d|%d", rule.ID, threshold)
	}

	if !m.fireOnce(key) {
		return Firing{}, false
	}

	return Firing{
		RuleName: rule.Name,
		Metadata: map[string]interface{}{"scroll_percentage": percent},
	}, true
}

// MatchPageView tests a page_view rule against the current path. Without a
// pattern the rule matches unconditionally; with one it matches as a
// substring.
func (m *EventMatcher) MatchPageView(rule rules.Rule, path string) (Firing, bool) {
	if rule.EventType != rules.EventPageView {
		return Firing{}, false
	}
	if rule.Trigger.PagePattern != "" && !strings.Contains(path, rule.Trigger.PagePattern) {
		return Firing{}, false
	}
	return Firing{
		RuleName: rule.Name,
		Metadata: map[string]interface{}{"path": path},
	}, true
}

// scrollPercentage computes how far down the document the viewport bottom
// has travelled. A document that fits in the viewport counts as fully
// scrolled.
func scrollPercentage(page Page) float64 {
	scrollable := page.DocumentHeight() - page.ViewportHeight()
	if scrollable <= 0 {
		return 100
	}
	percent := page.ScrollTop() / scrollable * 100
	if percent > 100 {
		percent = 100
	}
	if percent < 0 {
		percent = 0
	}
	return percent
}

// truncate cuts s to at most limit runes, never splitting a multibyte
// character.
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	seen := 0
	for i := range s {
		if seen == limit {
			return s[:i]
		}
		seen++
	}
	return s
}
